package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the device's static configuration. Loaded once at startup and
// treated as read-only by every component.
type Config struct {
	DeviceID string `yaml:"device_id"`
	BaseDir  string `yaml:"base_dir,omitempty"`

	MQTT      MQTTConfig      `yaml:"mqtt"`
	Scanning  ScanningConfig  `yaml:"scanning"`
	Inference InferenceConfig `yaml:"inference,omitempty"`
	Collector CollectorConfig `yaml:"collector"`
	Button    ButtonConfig    `yaml:"button,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	Port       int    `yaml:"port,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	CACert     string `yaml:"ca_cert,omitempty"`
	ClientCert string `yaml:"client_cert,omitempty"`
	ClientKey  string `yaml:"client_key,omitempty"`
}

type ScanningConfig struct {
	AllowedRanges []string      `yaml:"allowed_ranges"`
	MaxHosts      int           `yaml:"max_hosts,omitempty"`
	MaxDuration   time.Duration `yaml:"max_duration,omitempty"`
	HostTimeout   time.Duration `yaml:"host_timeout,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`
	DispatchRate  float64       `yaml:"dispatch_rate,omitempty"` // work items per second

	Ports   []string `yaml:"ports,omitempty"`
	Timing  string   `yaml:"timing,omitempty"`
	MinRate int      `yaml:"min_rate,omitempty"`
}

type InferenceConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

type CollectorConfig struct {
	APIURL      string        `yaml:"api_url"`
	APIToken    string        `yaml:"api_token"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	RetryBudget time.Duration `yaml:"retry_budget,omitempty"`
}

type ButtonConfig struct {
	GPIOPin   int           `yaml:"gpio_pin,omitempty"`
	LongPress time.Duration `yaml:"long_press,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Load reads and validates the device configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 8883
	}
	if len(c.Scanning.AllowedRanges) == 0 {
		// Private address space only; a start command can never widen this.
		c.Scanning.AllowedRanges = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	}
	if c.Scanning.MaxHosts == 0 {
		c.Scanning.MaxHosts = 1024
	}
	if c.Scanning.MaxDuration == 0 {
		c.Scanning.MaxDuration = 2 * time.Hour
	}
	if c.Scanning.HostTimeout == 0 {
		c.Scanning.HostTimeout = 15 * time.Minute
	}
	if c.Scanning.Workers == 0 {
		c.Scanning.Workers = 4
	}
	if c.Scanning.DispatchRate == 0 {
		c.Scanning.DispatchRate = 1
	}
	if c.Scanning.Timing == "" {
		c.Scanning.Timing = "T3"
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 30 * time.Second
	}
	if c.Collector.Timeout == 0 {
		c.Collector.Timeout = 5 * time.Minute
	}
	if c.Collector.MaxAttempts == 0 {
		c.Collector.MaxAttempts = 5
	}
	if c.Collector.RetryBudget == 0 {
		c.Collector.RetryBudget = 10 * time.Minute
	}
	if c.Button.GPIOPin == 0 {
		c.Button.GPIOPin = 18
	}
	if c.Button.LongPress == 0 {
		c.Button.LongPress = 3 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the fields the device cannot run without.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Collector.APIURL == "" {
		return fmt.Errorf("collector.api_url is required")
	}
	return nil
}
