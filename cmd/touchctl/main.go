// touchctl inspects and edits the stored calibration record without
// running the controller.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/touch_controller/internal/app"
	"github.com/relabs-tech/touch_controller/internal/config"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "touchctl",
		Short: "Touch controller maintenance tool",
		Long: `touchctl reads and edits the calibration record kept in the
configured store (file or AT24 EEPROM). Stop the controller before
writing; it only reads the record at boot.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.InitGlobal(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "touch_config.txt", "path to configuration file")

	var asJSON bool
	record := &cobra.Command{
		Use:   "record",
		Short: "Print the stored thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ShowRecord(cmd.OutOrStdout(), asJSON)
		},
	}
	record.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	sensitivity := &cobra.Command{
		Use:   "sensitivity",
		Short: "Show or change the touch sensitivity",
	}
	sensitivity.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the stored and effective sensitivity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				stored, effective, err := app.Sensitivity()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored=%d effective=%d\n", stored, effective)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <0-100>",
			Short: "Store a new sensitivity (0 restores the default)",
			Long:  "The new sensitivity is used from the next calibration pass on.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid sensitivity %q", args[0])
				}
				return app.SetSensitivity(v)
			},
		},
		&cobra.Command{
			Use:   "air <1-100>",
			Short: "Store a new air sensor sensitivity",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid sensitivity %q", args[0])
				}
				return app.SetAirSensitivity(v)
			},
		},
	)

	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Clear the calibrated flag so the next boot recalibrates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.InvalidateRecord(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "calibration record invalidated")
			return nil
		},
	}

	root.AddCommand(record, sensitivity, invalidate)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}
