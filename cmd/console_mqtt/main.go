package main

import (
	"log"

	"github.com/relabs-tech/touch_controller/internal/app"
	"github.com/relabs-tech/touch_controller/internal/config"
)

func main() {
	log.Println("starting touch-controller console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("touch_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
