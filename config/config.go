package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
)

// Config is everything the daemon reads at startup: one YAML file plus a
// small set of PI4JD_* environment overrides for values that should not
// live in the file, secrets in particular.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Serial    SerialConfig    `yaml:"serial"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	IO        IOConfig        `yaml:"io"`
}

// LoggingConfig selects log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig covers the HTTP and WebSocket surface.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Auth      AuthConfig       `yaml:"auth"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// AuthConfig holds the token-signing secret and the token lifetime in
// minutes.
type AuthConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// APITimeoutConfig sets the HTTP server timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig tunes the event stream endpoint. Intervals are in
// seconds.
type WebSocketConfig struct {
	Path         string `yaml:"path"`
	PingInterval int    `yaml:"ping_interval"`
	PongTimeout  int    `yaml:"pong_timeout"`
}

// MQTTConfig configures the MQTT GPIO provider and its broker session.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig locates the broker.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig carries broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SerialConfig configures the serial GPIO provider. ReadTimeout is in
// milliseconds.
type SerialConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	ReadTimeout int    `yaml:"read_timeout"`
}

// HistoryConfig configures the SQLite state journal. BusyTimeout is in
// seconds.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig configures the InfluxDB exporter. FlushInterval is in
// milliseconds.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// IOConfig declares provider defaults and the instances created at startup.
type IOConfig struct {
	// Defaults maps an I/O type to the provider id resolved when a create
	// names no provider, e.g. "digital-output: periphio-gpio".
	Defaults map[string]string `yaml:"defaults"`

	Instances []InstanceConfig `yaml:"instances"`
}

// InstanceConfig declares one I/O instance to create during startup.
type InstanceConfig struct {
	ID            string        `yaml:"id"`
	Name          string        `yaml:"name,omitempty"`
	Type          string        `yaml:"type"`
	Provider      string        `yaml:"provider,omitempty"`
	Address       int           `yaml:"address"`
	InitialState  digital.State `yaml:"initial_state,omitempty"`
	ShutdownState digital.State `yaml:"shutdown_state,omitempty"`
	OnState       digital.State `yaml:"on_state,omitempty"`
	Pull          digital.Pull  `yaml:"pull,omitempty"`
	DebounceMS    int           `yaml:"debounce_ms,omitempty"`
}

// IOType returns the declared type as a device.Type.
func (ic InstanceConfig) IOType() device.Type {
	return device.Type(ic.Type)
}

// OutputConfig converts the declaration into a digital output config.
func (ic InstanceConfig) OutputConfig() digital.OutputConfig {
	return digital.OutputConfig{
		ID:            ic.ID,
		Name:          ic.Name,
		Address:       ic.Address,
		InitialState:  ic.InitialState,
		ShutdownState: ic.ShutdownState,
		OnState:       ic.OnState,
	}
}

// InputConfig converts the declaration into a digital input config.
func (ic InstanceConfig) InputConfig() digital.InputConfig {
	return digital.InputConfig{
		ID:       ic.ID,
		Name:     ic.Name,
		Address:  ic.Address,
		Pull:     ic.Pull,
		Debounce: time.Duration(ic.DebounceMS) * time.Millisecond,
	}
}

// Load builds the daemon configuration. Defaults come first, the YAML
// file at path is layered on top, then PI4JD_* environment variables
// override individual values. The result is validated before being
// returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults. Every optional subsystem
// starts disabled and is switched on per section in the YAML file.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				AccessTokenTTL: 15,
			},
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				Path:         "/ws",
				PingInterval: 30,
				PongTimeout:  10,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pi4jd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "pi4j",
		},
		Serial: SerialConfig{
			Baud:        115200,
			ReadTimeout: 500,
		},
		History: HistoryConfig{
			Path:        "./data/pi4j.db",
			BusyTimeout: 5,
		},
		Telemetry: TelemetryConfig{
			BatchSize:     100,
			FlushInterval: 1000,
		},
	}
}

// applyEnv copies non-empty PI4JD_* environment variables over the
// loaded values.
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"PI4JD_HISTORY_PATH":   &c.History.Path,
		"PI4JD_MQTT_HOST":      &c.MQTT.Broker.Host,
		"PI4JD_MQTT_USERNAME":  &c.MQTT.Auth.Username,
		"PI4JD_MQTT_PASSWORD":  &c.MQTT.Auth.Password,
		"PI4JD_INFLUXDB_TOKEN": &c.Telemetry.Token,
		"PI4JD_API_SECRET":     &c.API.Auth.Secret,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate reports every problem it finds in a single error so a bad
// file can be fixed in one pass. Disabled sections are not checked.
func (c *Config) Validate() error {
	var problems []string
	problems = append(problems, c.API.check()...)
	problems = append(problems, c.MQTT.check()...)
	problems = append(problems, c.Serial.check()...)
	problems = append(problems, c.History.check()...)
	problems = append(problems, c.Telemetry.check()...)
	problems = append(problems, c.IO.check()...)

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (a APIConfig) check() []string {
	if !a.Enabled {
		return nil
	}
	var problems []string
	if a.Port < 1 || a.Port > 65535 {
		problems = append(problems, "api.port must be between 1 and 65535")
	}

	// The API drives physical outputs. A guessable signing secret means a
	// forged token can actuate real hardware.
	const minSecretLength = 32
	switch {
	case a.Auth.Secret == "":
		problems = append(problems, "api.auth.secret is required (set PI4JD_API_SECRET environment variable)")
	case len(a.Auth.Secret) < minSecretLength:
		problems = append(problems, "api.auth.secret must be at least 32 characters for adequate security")
	}
	return problems
}

func (m MQTTConfig) check() []string {
	if !m.Enabled {
		return nil
	}
	var problems []string
	if m.Broker.Host == "" {
		problems = append(problems, "mqtt.broker.host is required")
	}
	if m.QoS < 0 || m.QoS > 2 {
		problems = append(problems, "mqtt.qos must be 0, 1, or 2")
	}
	return problems
}

func (s SerialConfig) check() []string {
	if !s.Enabled {
		return nil
	}
	var problems []string
	if s.Port == "" {
		problems = append(problems, "serial.port is required")
	}
	if s.Baud <= 0 {
		problems = append(problems, "serial.baud must be positive")
	}
	return problems
}

func (h HistoryConfig) check() []string {
	if h.Enabled && h.Path == "" {
		return []string{"history.path is required"}
	}
	return nil
}

func (t TelemetryConfig) check() []string {
	if !t.Enabled {
		return nil
	}
	var problems []string
	if t.URL == "" {
		problems = append(problems, "telemetry.url is required")
	}
	if t.Org == "" || t.Bucket == "" {
		problems = append(problems, "telemetry.org and telemetry.bucket are required")
	}
	return problems
}

func (c IOConfig) check() []string {
	var problems []string
	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		switch inst.IOType() {
		case device.DigitalOutput, device.DigitalInput:
		default:
			problems = append(problems, fmt.Sprintf("io.instances[%d].type %q is not a known io type", i, inst.Type))
		}
		if inst.ID == "" {
			problems = append(problems, fmt.Sprintf("io.instances[%d].id is required", i))
		} else if seen[inst.ID] {
			problems = append(problems, fmt.Sprintf("io.instances[%d].id %q declared twice", i, inst.ID))
		}
		seen[inst.ID] = true
		if inst.Address < 0 {
			problems = append(problems, fmt.Sprintf("io.instances[%d].address must not be negative", i))
		}
	}
	return problems
}
