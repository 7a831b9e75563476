// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/touch_controller/internal/app"
	"github.com/relabs-tech/touch_controller/internal/config"
)

func main() {
	configPath := flag.String("config", "touch_config.txt", "Path to configuration file")
	capture := flag.String("capture", "", "Record scans to this file in replay format")
	period := flag.Duration("period", 100*time.Millisecond, "Time between printed scans")
	flag.Parse()

	log.Println("starting touch-controller raw console")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRawConsole(*capture, *period); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
