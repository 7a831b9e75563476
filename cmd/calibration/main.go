// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided touch calibration from the terminal.
//
// Usage:
//
//	sudo ./calibration            # recalibrate only if the stored record is invalid
//	sudo ./calibration -force     # always run a full pass
//	sudo ./calibration -force -export calibration/touch_record.json
//
// Stop the controller first; both need exclusive access to the sensors.
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/touch_controller/internal/app"
	"github.com/relabs-tech/touch_controller/internal/config"
)

func main() {
	configPath := flag.String("config", "touch_config.txt", "Path to configuration file")
	force := flag.Bool("force", false, "Run a full pass even if a valid record is stored")
	export := flag.String("export", "", "Also write the resulting record to this JSON file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCalibration(*force, *export); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
