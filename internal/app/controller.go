// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/touch_controller/internal/air"
	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/indicator"
	"github.com/relabs-tech/touch_controller/internal/storage"
	"github.com/relabs-tech/touch_controller/internal/touch"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

// publisher sends one JSON payload to a topic.
type publisher interface {
	Publish(topic string, retained bool, v interface{}) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// Controller owns the scan loop: one goroutine scans, steps the engine and
// publishes results. Commands arrive on a channel and are applied between
// scans.
type Controller struct {
	cfg      *config.Config
	engine   *touch.Engine
	scanner  touch.Scanner
	air      *air.Sensor
	pub      publisher
	commands chan Command

	tracker    touch.Tracker
	events     []touch.PhaseEvent
	last       zone.Frame
	lastAir    *air.Reading
	lastStatus time.Time
}

// NewController builds the engine over store and binds it to scanner.
// A nil air sensor is allowed.
func NewController(cfg *config.Config, scanner touch.Scanner, store storage.Store, ind indicator.Indicator, a *air.Sensor, pub publisher, opts ...touch.Option) (*Controller, error) {
	c := &Controller{
		cfg:      cfg,
		scanner:  scanner,
		air:      a,
		pub:      pub,
		commands: make(chan Command, 16),
	}
	p, err := EngineParams(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]touch.Option{touch.WithIndicator(ind), touch.WithObserver(c.observe)}, opts...)
	c.engine, err = touch.New(store, p, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) Engine() *touch.Engine { return c.engine }

func (c *Controller) observe(ev touch.PhaseEvent) {
	c.events = append(c.events, ev)
}

// Submit queues a command without blocking; a full queue drops it.
func (c *Controller) Submit(cmd Command) bool {
	select {
	case c.commands <- cmd:
		return true
	default:
		log.Printf("controller: command queue full, dropping %q", cmd.Action)
		return false
	}
}

// Tick runs one loop iteration.
func (c *Controller) Tick(now time.Time) {
	c.drainCommands(now)

	f := c.scanner.Scan()
	c.last = f
	st, err := c.engine.Step(f)
	if err != nil {
		log.Printf("controller: %v", err)
	}

	for _, tr := range c.tracker.Update(st) {
		ev := ZoneEvent{Zone: tr.Zone, State: tr.State, Raw: f.Raw[tr.Zone]}
		if err := c.pub.Publish(c.cfg.TopicZones, false, ev); err != nil {
			log.Printf("controller: zone publish error: %v", err)
		}
	}

	c.flushEvents()

	if c.air != nil && c.engine.State() == touch.Steady {
		rd := c.air.Sample()
		if c.lastAir == nil || rd.Mask != c.lastAir.Mask {
			if err := c.pub.Publish(c.cfg.TopicAir, false, rd); err != nil {
				log.Printf("controller: air publish error: %v", err)
			}
		}
		c.lastAir = &rd
	}

	interval := time.Duration(c.cfg.StatusIntervalMs) * time.Millisecond
	if interval > 0 && now.Sub(c.lastStatus) >= interval {
		c.publishStatus(now)
	}
}

func (c *Controller) flushEvents() {
	events := c.events
	c.events = nil
	for _, ev := range events {
		if err := c.pub.Publish(c.cfg.TopicCalibration, false, ev); err != nil {
			log.Printf("controller: calibration publish error: %v", err)
		}
		if ev.Phase == touch.PhaseComplete && c.air != nil {
			c.air.Calibrate()
		}
	}
}

func (c *Controller) publishStatus(now time.Time) {
	c.lastStatus = now
	s := snapshot(c.engine, c.last, c.lastAir, now)
	if err := c.pub.Publish(c.cfg.TopicStatus, true, s); err != nil {
		log.Printf("controller: status publish error: %v", err)
	}
}

func (c *Controller) drainCommands(now time.Time) {
	for {
		select {
		case cmd := <-c.commands:
			if err := c.apply(cmd, now); err != nil {
				log.Printf("controller: command %q: %v", cmd.Action, err)
			}
		default:
			return
		}
	}
}

func (c *Controller) apply(cmd Command, now time.Time) error {
	switch cmd.Action {
	case "calibrate":
		return c.engine.Start(true)
	case "cancel":
		err := c.engine.Cancel()
		c.flushEvents()
		return err
	case "sensitivity":
		if cmd.Value < 0 || cmd.Value > touch.MaxSensitivity {
			return fmt.Errorf("sensitivity must be 0-%d, got %d", touch.MaxSensitivity, cmd.Value)
		}
		if err := c.engine.SetSensitivity(uint8(cmd.Value)); err != nil {
			return err
		}
	case "air_sensitivity":
		if c.air == nil {
			return errors.New("air sensor not enabled")
		}
		if cmd.Value < 1 || cmd.Value > 100 {
			return fmt.Errorf("air sensitivity must be 1-100, got %d", cmd.Value)
		}
		if err := c.air.SetSensitivity(uint8(cmd.Value)); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown action")
	}
	c.publishStatus(now)
	return nil
}

// Run scans until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	if c.air != nil {
		c.air.Calibrate()
	}
	var tick <-chan time.Time
	if ms := c.cfg.ScanIntervalMs; ms > 0 {
		t := time.NewTicker(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}
		c.Tick(time.Now())
	}
}

// RunController opens the configured hardware, connects to MQTT and runs
// the scan loop until SIGINT/SIGTERM.
func RunController() error {
	cfg := config.Get()

	var hw closers
	defer hw.Close()

	scanner, err := OpenScanner(cfg, &hw)
	if err != nil {
		return err
	}
	store, err := OpenStore(cfg, &hw)
	if err != nil {
		return err
	}
	ind := OpenIndicator(cfg, &hw)
	airSensor, err := OpenAir(cfg, store, &hw)
	if err != nil {
		log.Printf("controller: air sensor disabled: %v", err)
		airSensor = nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDController)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("controller: connected to MQTT broker at %s", cfg.MQTTBroker)

	ctrl, err := NewController(cfg, scanner, store, ind, airSensor, mqttPublisher{client: client})
	if err != nil {
		return err
	}

	token := client.Subscribe(cfg.TopicCommand, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("controller: command unmarshal error: %v", err)
			return
		}
		ctrl.Submit(cmd)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("controller: subscribed to %s", cfg.TopicCommand)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("controller: starting scan loop")
	ctrl.Run(ctx)
	log.Println("controller: shutting down")
	return nil
}
