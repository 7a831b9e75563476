package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "touch_config.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t,
		"# broker only",
		"MQTT_BROKER=tcp://localhost:1883",
	))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ZoneMode != 16 || cfg.CalibrationSamples != 75 || cfg.DetectionDelta != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TopicZones != "touch/zones" || cfg.EEPROMI2CAddr != 0x50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t,
		"MQTT_BROKER = tcp://pi:1883",
		"ZONE_MODE=32",
		"ACQUISITION=adc",
		"ADC_SPI_DEVICE=/dev/spidev1.0",
		"MUX_PINS=GPIO1, GPIO2 ,GPIO3",
		"EEPROM_I2C_ADDR=0x57",
		"TOUCH_TIMEOUT_MS=30000",
		"AIR_ENABLED=true",
	))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ZoneMode != 32 || cfg.Acquisition != "adc" || cfg.MuxPins[1] != "GPIO2" {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.EEPROMI2CAddr != 0x57 || cfg.TouchTimeoutMs != 30000 || !cfg.AirEnabled {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"missing broker", []string{"ZONE_MODE=16"}, "MQTT_BROKER is required"},
		{"bad mode", []string{"MQTT_BROKER=x", "ZONE_MODE=24"}, "ZONE_MODE must be 16 or 32"},
		{"sensitivity range", []string{"MQTT_BROKER=x", "DEFAULT_SENSITIVITY=101"}, "DEFAULT_SENSITIVITY must be 0-100"},
		{"unknown key", []string{"MQTT_BROKER=x", "IMU_ACCEL_RANGE=2"}, "unknown config key"},
		{"no equals", []string{"MQTT_BROKER"}, "invalid config line 1"},
		{"too few receive pins", []string{"MQTT_BROKER=x", "ZONE_MODE=32"}, "RECEIVE_PINS needs 4 pins"},
		{"replay without file", []string{"MQTT_BROKER=x", "ACQUISITION=replay"}, "REPLAY_FILE is required"},
		{"unbounded charge", []string{"MQTT_BROKER=x", "CHARGE_TIMEOUT=0"}, "CHARGE_TIMEOUT must be 1-1000000"},
		{"gesture hold", []string{"MQTT_BROKER=x", "GESTURE_HOLD_SCANS=0"}, "GESTURE_HOLD_SCANS must be 1-100000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.lines...))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "touch_config.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTTBroker == "" || cfg.DisplayI2CBus != "" || cfg.LEDCount != 31 {
		t.Fatalf("sample config: %+v", cfg)
	}
}
