package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/touch_controller/internal/air"
	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/touch"
)

func subscribeJSON[T any](client mqtt.Client, topic string, handle func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("mqtt: %s unmarshal error: %v", topic, err)
			return
		}
		handle(v)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}

func formatPhase(ev touch.PhaseEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[CAL ]  phase=%-10s", ev.Phase)
	if ev.Zone >= 0 {
		fmt.Fprintf(&b, " zone=%2d", ev.Zone)
	}
	if ev.Phase == touch.PhaseZoneDone {
		fmt.Fprintf(&b, " baseline=%5d lowest=%5d single=%5d", ev.Baseline, ev.Lowest, ev.Single)
		if ev.Double != 0 {
			fmt.Fprintf(&b, " double=%5d", ev.Double)
		}
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, " error=%q", ev.Error)
	}
	return b.String()
}

// RunConsoleMQTT prints everything the controller publishes.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	err := subscribeJSON(client, cfg.TopicZones, func(ev ZoneEvent) {
		fmt.Printf("[ZONE]  zone=%2d state=%-9s raw=%5d\n", ev.Zone, ev.State, ev.Raw)
	})
	if err != nil {
		return err
	}

	err = subscribeJSON(client, cfg.TopicCalibration, func(ev touch.PhaseEvent) {
		fmt.Println(formatPhase(ev))
	})
	if err != nil {
		return err
	}

	err = subscribeJSON(client, cfg.TopicStatus, func(s Status) {
		fmt.Printf("[STAT]  mode=%d state=%s phase=%s calibrated=%t sensitivity=%d raw=%v\n",
			s.Mode, s.State, s.Phase, s.Calibrated, s.Sensitivity, s.Raw)
	})
	if err != nil {
		return err
	}

	err = subscribeJSON(client, cfg.TopicAir, func(r air.Reading) {
		fmt.Printf("[AIR ]  mask=%06b position=%.3f raw=%v\n", r.Mask, r.Position, r.Raw)
	})
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
