package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Touch surface
	ZoneMode           int // 16 or 32
	CalibrationSamples int
	DetectionDelta     int
	DefaultSensitivity int // 0 = mode default (50 for 16 zones, 97 for 32)
	ReleaseDelayMs     int
	FlashPeriodMs      int
	TouchTimeoutMs     int // 0 = wait for the operator forever
	GestureHoldScans   int // consecutive scans before the gesture recalibrates

	// Timing
	ScanIntervalMs   int
	StatusIntervalMs int

	// Acquisition: "charge", "adc", "bridge" or "replay"
	Acquisition      string
	MuxPins          [3]string
	SendPin          string
	ReceivePins      []string
	ChargeSamples    int
	ChargeTimeout    int
	ADCSPIDevice     string
	BridgeSerialPort string
	BridgeBaudRate   int
	ReplayFile       string

	// Calibration record storage: "file" or "at24"
	Storage       string
	StoragePath   string
	EEPROMI2CBus  string
	EEPROMI2CAddr uint16

	// Indicators
	LEDSPIDevice  string
	LEDCount      int
	DisplayI2CBus string // empty disables the OLED

	// Air sensor
	AirEnabled   bool
	AirSPIDevice string
	AirMinLevel  int

	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string

	// Topics
	TopicZones       string
	TopicCalibration string
	TopicStatus      string
	TopicCommand     string
	TopicAir         string

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every optional key filled in.
func Default() *Config {
	return &Config{
		ZoneMode:           16,
		CalibrationSamples: 75,
		DetectionDelta:     8,
		ReleaseDelayMs:     5000,
		FlashPeriodMs:      500,
		GestureHoldScans:   200,
		ScanIntervalMs:     5,
		StatusIntervalMs:   1000,

		Acquisition:    "charge",
		MuxPins:        [3]string{"GPIO5", "GPIO6", "GPIO13"},
		SendPin:        "GPIO17",
		ReceivePins:    []string{"GPIO27", "GPIO22"},
		ChargeSamples:  3,
		ChargeTimeout:  2000,
		ADCSPIDevice:   "/dev/spidev0.0",
		BridgeBaudRate: 115200,

		Storage:       "file",
		StoragePath:   "calibration/touch_record.bin",
		EEPROMI2CBus:  "1",
		EEPROMI2CAddr: 0x50,

		LEDCount: 31,

		AirSPIDevice: "/dev/spidev0.1",
		AirMinLevel:  100,

		MQTTClientIDController: "touch-controller",
		MQTTClientIDConsole:    "touch-console-subscriber",
		MQTTClientIDWeb:        "touch-web-subscriber",

		TopicZones:       "touch/zones",
		TopicCalibration: "touch/calibration",
		TopicStatus:      "touch/status",
		TopicCommand:     "touch/command",
		TopicAir:         "touch/air",

		WebServerPort: 8080,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intInRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func pinList(value string) []string {
	var pins []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pins = append(pins, p)
		}
	}
	return pins
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Touch surface
	case "ZONE_MODE":
		c.ZoneMode, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ZONE_MODE %q: %w", value, err)
		}
		if c.ZoneMode != 16 && c.ZoneMode != 32 {
			return fmt.Errorf("ZONE_MODE must be 16 or 32, got %d", c.ZoneMode)
		}
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = intInRange(key, value, 1, 10000)
	case "DETECTION_DELTA":
		c.DetectionDelta, err = intInRange(key, value, 1, 65535)
	case "DEFAULT_SENSITIVITY":
		c.DefaultSensitivity, err = intInRange(key, value, 0, 100)
	case "RELEASE_DELAY_MS":
		c.ReleaseDelayMs, err = intInRange(key, value, 0, 60000)
	case "FLASH_PERIOD_MS":
		c.FlashPeriodMs, err = intInRange(key, value, 0, 10000)
	case "TOUCH_TIMEOUT_MS":
		c.TouchTimeoutMs, err = intInRange(key, value, 0, 3600000)
	case "GESTURE_HOLD_SCANS":
		c.GestureHoldScans, err = intInRange(key, value, 1, 100000)

	// Timing
	case "SCAN_INTERVAL_MS":
		c.ScanIntervalMs, err = intInRange(key, value, 0, 10000)
	case "STATUS_INTERVAL_MS":
		c.StatusIntervalMs, err = intInRange(key, value, 0, 600000)

	// Acquisition
	case "ACQUISITION":
		switch value {
		case "charge", "adc", "bridge", "replay":
			c.Acquisition = value
		default:
			return fmt.Errorf("ACQUISITION must be charge, adc, bridge or replay, got %q", value)
		}
	case "MUX_PINS":
		pins := pinList(value)
		if len(pins) != 3 {
			return fmt.Errorf("MUX_PINS needs 3 pins, got %d", len(pins))
		}
		copy(c.MuxPins[:], pins)
	case "SEND_PIN":
		c.SendPin = value
	case "RECEIVE_PINS":
		c.ReceivePins = pinList(value)
	case "CHARGE_SAMPLES":
		c.ChargeSamples, err = intInRange(key, value, 1, 100)
	case "CHARGE_TIMEOUT":
		c.ChargeTimeout, err = intInRange(key, value, 1, 1000000)
	case "ADC_SPI_DEVICE":
		c.ADCSPIDevice = value
	case "BRIDGE_SERIAL_PORT":
		c.BridgeSerialPort = value
	case "BRIDGE_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BRIDGE_BAUD_RATE %q: %w", value, err)
		}
		c.BridgeBaudRate = rate
	case "REPLAY_FILE":
		c.ReplayFile = value

	// Storage
	case "STORAGE":
		if value != "file" && value != "at24" {
			return fmt.Errorf("STORAGE must be file or at24, got %q", value)
		}
		c.Storage = value
	case "STORAGE_PATH":
		c.StoragePath = value
	case "EEPROM_I2C_BUS":
		c.EEPROMI2CBus = value
	case "EEPROM_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid EEPROM_I2C_ADDR %q: %w", value, err)
		}
		c.EEPROMI2CAddr = uint16(addr)

	// Indicators
	case "LED_SPI_DEVICE":
		c.LEDSPIDevice = value
	case "LED_COUNT":
		c.LEDCount, err = intInRange(key, value, 1, 1024)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	// Air sensor
	case "AIR_ENABLED":
		c.AirEnabled, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AIR_ENABLED %q: %w", value, err)
		}
	case "AIR_SPI_DEVICE":
		c.AirSPIDevice = value
	case "AIR_MIN_LEVEL":
		c.AirMinLevel, err = intInRange(key, value, 0, 1023)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_ZONES":
		c.TopicZones = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "TOPIC_AIR":
		c.TopicAir = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intInRange(key, value, 1, 65535)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.Acquisition {
	case "charge":
		if c.SendPin == "" {
			return fmt.Errorf("SEND_PIN is required for charge acquisition")
		}
		if want := c.ZoneMode / 8; len(c.ReceivePins) < want {
			return fmt.Errorf("RECEIVE_PINS needs %d pins for %d zones, got %d", want, c.ZoneMode, len(c.ReceivePins))
		}
	case "adc":
		if c.ADCSPIDevice == "" {
			return fmt.Errorf("ADC_SPI_DEVICE is required for adc acquisition")
		}
	case "bridge":
		if c.BridgeSerialPort == "" {
			return fmt.Errorf("BRIDGE_SERIAL_PORT is required for bridge acquisition")
		}
		if c.BridgeBaudRate == 0 {
			return fmt.Errorf("BRIDGE_BAUD_RATE is required for bridge acquisition")
		}
	case "replay":
		if c.ReplayFile == "" {
			return fmt.Errorf("REPLAY_FILE is required for replay acquisition")
		}
	}
	if c.Storage == "file" && c.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH is required for file storage")
	}
	if c.AirEnabled && c.AirSPIDevice == "" {
		return fmt.Errorf("AIR_SPI_DEVICE is required when AIR_ENABLED is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
