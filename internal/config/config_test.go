package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
device_id: scout-042
base_dir: /var/lib/scout

mqtt:
  broker: broker.example.com
  port: 8883
  username: device
  password: hunter2
  ca_cert: /etc/scout/ca.pem

scanning:
  allowed_ranges:
    - 192.168.0.0/16
  max_hosts: 512
  max_duration: 1h
  host_timeout: 10m
  workers: 8
  dispatch_rate: 2.5
  ports: ["1-1024", "8080", "8443"]
  timing: T2
  min_rate: 100

inference:
  endpoint: http://127.0.0.1:8000/infer
  timeout: 45s

collector:
  api_url: https://collector.example.com/api/upload
  api_token: tok-123
  max_attempts: 7
  retry_budget: 15m

button:
  gpio_pin: 17
  long_press: 4s

log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DeviceID != "scout-042" {
		t.Errorf("device_id: %s", cfg.DeviceID)
	}
	if cfg.MQTT.Broker != "broker.example.com" || cfg.MQTT.Port != 8883 {
		t.Errorf("mqtt: %+v", cfg.MQTT)
	}
	if cfg.Scanning.MaxHosts != 512 || cfg.Scanning.MaxDuration != time.Hour {
		t.Errorf("scanning: %+v", cfg.Scanning)
	}
	if cfg.Scanning.DispatchRate != 2.5 || cfg.Scanning.Timing != "T2" {
		t.Errorf("scanning tuning: %+v", cfg.Scanning)
	}
	if cfg.Collector.MaxAttempts != 7 || cfg.Collector.RetryBudget != 15*time.Minute {
		t.Errorf("collector: %+v", cfg.Collector)
	}
	if cfg.Button.LongPress != 4*time.Second {
		t.Errorf("button: %+v", cfg.Button)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
device_id: scout-001
mqtt:
  broker: broker.local
collector:
  api_url: https://collector.local/upload
  api_token: tok
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.MQTT.Port != 8883 {
		t.Errorf("default mqtt port: %d", cfg.MQTT.Port)
	}
	if len(cfg.Scanning.AllowedRanges) != 3 {
		t.Errorf("default allow-list should be the RFC1918 ranges: %v", cfg.Scanning.AllowedRanges)
	}
	if cfg.Scanning.MaxHosts != 1024 || cfg.Scanning.MaxDuration != 2*time.Hour {
		t.Errorf("scanning defaults: %+v", cfg.Scanning)
	}
	if cfg.Scanning.HostTimeout != 15*time.Minute || cfg.Scanning.Workers != 4 {
		t.Errorf("scanning defaults: %+v", cfg.Scanning)
	}
	if cfg.Collector.MaxAttempts != 5 || cfg.Collector.RetryBudget != 10*time.Minute {
		t.Errorf("collector defaults: %+v", cfg.Collector)
	}
	if cfg.Button.LongPress != 3*time.Second {
		t.Errorf("button default: %v", cfg.Button.LongPress)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log default: %s", cfg.Log.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing device_id",
			content: "mqtt:\n  broker: b\ncollector:\n  api_url: u\n",
			wantErr: "device_id",
		},
		{
			name:    "missing broker",
			content: "device_id: d\ncollector:\n  api_url: u\n",
			wantErr: "mqtt.broker",
		},
		{
			name:    "missing collector url",
			content: "device_id: d\nmqtt:\n  broker: b\n",
			wantErr: "collector.api_url",
		},
		{
			name:    "malformed yaml",
			content: "device_id: [unclosed\n",
			wantErr: "parse",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
