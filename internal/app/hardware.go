// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/touch_controller/internal/acquisition"
	"github.com/relabs-tech/touch_controller/internal/air"
	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/indicator"
	"github.com/relabs-tech/touch_controller/internal/storage"
	"github.com/relabs-tech/touch_controller/internal/touch"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

// closers collects hardware handles released on shutdown.
type closers []io.Closer

func (c closers) Close() error {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Printf("hardware: close: %v", err)
		}
	}
	return nil
}

func initHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	return nil
}

func modeFromConfig(cfg *config.Config) (zone.Mode, error) {
	return zone.ParseMode(cfg.ZoneMode)
}

// OpenScanner builds the acquisition strategy named by ACQUISITION.
func OpenScanner(cfg *config.Config, hw *closers) (touch.Scanner, error) {
	m, err := modeFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Acquisition {
	case "replay":
		interval := time.Duration(cfg.ScanIntervalMs) * time.Millisecond
		return acquisition.LoadReplay(cfg.ReplayFile, m, interval)
	case "bridge":
		b, err := acquisition.OpenBridge(m, cfg.BridgeSerialPort, cfg.BridgeBaudRate)
		if err != nil {
			return nil, err
		}
		*hw = append(*hw, b)
		return b, nil
	}

	if err := initHost(); err != nil {
		return nil, err
	}
	sel, err := acquisition.OpenGPIOSelector(cfg.MuxPins)
	if err != nil {
		return nil, err
	}

	var bank acquisition.Bank
	switch cfg.Acquisition {
	case "charge":
		bank, err = acquisition.OpenChargeBank(cfg.SendPin, cfg.ReceivePins, cfg.ChargeSamples, cfg.ChargeTimeout)
	case "adc":
		port, perr := spireg.Open(cfg.ADCSPIDevice)
		if perr != nil {
			return nil, fmt.Errorf("failed to open adc spi %s: %w", cfg.ADCSPIDevice, perr)
		}
		*hw = append(*hw, port)
		bank, err = acquisition.NewADCBank(port, m.Count()/acquisition.Addresses)
	default:
		return nil, fmt.Errorf("unknown acquisition %q", cfg.Acquisition)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("hardware: %s acquisition, %d zones", cfg.Acquisition, m.Count())
	return acquisition.NewSweep(m, sel, bank)
}

// OpenStore opens the calibration record region named by STORAGE.
func OpenStore(cfg *config.Config, hw *closers) (storage.Store, error) {
	switch cfg.Storage {
	case "at24":
		if err := initHost(); err != nil {
			return nil, err
		}
		bus, err := i2creg.Open(cfg.EEPROMI2CBus)
		if err != nil {
			return nil, fmt.Errorf("failed to open eeprom i2c bus: %w", err)
		}
		*hw = append(*hw, bus)
		log.Printf("hardware: record in AT24 eeprom at 0x%02X", cfg.EEPROMI2CAddr)
		return storage.NewAT24(bus, cfg.EEPROMI2CAddr, storage.Size), nil
	default:
		f, err := storage.OpenFile(cfg.StoragePath, storage.Size)
		if err != nil {
			return nil, err
		}
		*hw = append(*hw, f)
		log.Printf("hardware: record in %s", cfg.StoragePath)
		return f, nil
	}
}

// OpenIndicator combines the LED strip and the OLED when configured.
// Indicator failures are logged and the device is skipped.
func OpenIndicator(cfg *config.Config, hw *closers) indicator.Indicator {
	m, err := modeFromConfig(cfg)
	if err != nil {
		return indicator.Nop{}
	}
	if cfg.LEDSPIDevice == "" && cfg.DisplayI2CBus == "" {
		return indicator.Nop{}
	}
	if err := initHost(); err != nil {
		log.Printf("hardware: %v", err)
		return indicator.Nop{}
	}

	var multi indicator.Multi
	if cfg.LEDSPIDevice != "" {
		port, err := spireg.Open(cfg.LEDSPIDevice)
		if err != nil {
			log.Printf("hardware: led strip disabled: %v", err)
		} else if strip, err := indicator.NewStrip(port, cfg.LEDCount); err != nil {
			log.Printf("hardware: led strip disabled: %v", err)
			port.Close()
		} else {
			*hw = append(*hw, port)
			multi = append(multi, strip)
		}
	}
	if cfg.DisplayI2CBus != "" {
		bus, err := i2creg.Open(cfg.DisplayI2CBus)
		if err != nil {
			log.Printf("hardware: display disabled: %v", err)
		} else if d, err := indicator.NewDisplay(bus, m.Groups()); err != nil {
			log.Printf("hardware: display disabled: %v", err)
			bus.Close()
		} else {
			*hw = append(*hw, bus)
			multi = append(multi, d)
		}
	}
	return multi
}

// OpenAir starts the beam column when AIR_ENABLED is set; nil otherwise.
func OpenAir(cfg *config.Config, store storage.Store, hw *closers) (*air.Sensor, error) {
	if !cfg.AirEnabled {
		return nil, nil
	}
	if err := initHost(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(cfg.AirSPIDevice)
	if err != nil {
		return nil, fmt.Errorf("failed to open air spi %s: %w", cfg.AirSPIDevice, err)
	}
	*hw = append(*hw, port)
	bank, err := acquisition.NewADCBank(port, air.Sensors)
	if err != nil {
		return nil, err
	}
	return air.New(bank, store, cfg.CalibrationSamples, uint16(cfg.AirMinLevel))
}

// EngineParams maps configuration onto engine parameters.
func EngineParams(cfg *config.Config) (touch.Params, error) {
	m, err := modeFromConfig(cfg)
	if err != nil {
		return touch.Params{}, err
	}
	p := touch.DefaultParams(m)
	p.SampleCount = cfg.CalibrationSamples
	p.DetectionDelta = uint16(cfg.DetectionDelta)
	p.DefaultSensitivity = uint8(cfg.DefaultSensitivity)
	p.ReleaseDelay = time.Duration(cfg.ReleaseDelayMs) * time.Millisecond
	p.FlashPeriod = time.Duration(cfg.FlashPeriodMs) * time.Millisecond
	p.TouchTimeout = time.Duration(cfg.TouchTimeoutMs) * time.Millisecond
	p.GestureHold = cfg.GestureHoldScans
	return p, nil
}
