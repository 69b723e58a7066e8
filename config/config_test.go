package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
)

// writeConfig drops YAML content into a fresh temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: text
api:
  enabled: true
  port: 9090
  auth:
    secret: "unit-test-signing-secret-32-bytes!"
mqtt:
  enabled: true
  broker:
    host: mqtt.shed.lan
  topic_prefix: barn
io:
  defaults:
    digital-output: mock-gpio
  instances:
    - id: pump-relay
      type: digital-output
      address: 17
      initial_state: LOW
      shutdown_state: LOW
    - id: tank-low-switch
      type: digital-input
      address: 4
      pull: UP
      debounce_ms: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want level debug, format text", cfg.Logging)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want default kept", cfg.API.Host)
	}
	if cfg.MQTT.Broker.Host != "mqtt.shed.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.shed.lan")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.TopicPrefix != "barn" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "barn")
	}
	if got := cfg.IO.Defaults["digital-output"]; got != "mock-gpio" {
		t.Errorf("IO.Defaults[digital-output] = %q, want %q", got, "mock-gpio")
	}

	if len(cfg.IO.Instances) != 2 {
		t.Fatalf("len(IO.Instances) = %d, want 2", len(cfg.IO.Instances))
	}
	relay, tank := cfg.IO.Instances[0], cfg.IO.Instances[1]
	if relay.InitialState != digital.Low || relay.ShutdownState != digital.Low {
		t.Errorf("relay states = (%s, %s), want (LOW, LOW)", relay.InitialState, relay.ShutdownState)
	}
	if tank.Pull != digital.PullUp || tank.DebounceMS != 20 {
		t.Errorf("tank = pull %s, debounce %d, want UP, 20", tank.Pull, tank.DebounceMS)
	}
}

func TestLoadFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("Load() error = nil, want read failure")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "io: [unterminated")
		if _, err := Load(path); err == nil {
			t.Fatal("Load() error = nil, want parse failure")
		}
	})

	t.Run("invalid content", func(t *testing.T) {
		// API enabled but no signing secret configured.
		path := writeConfig(t, "api:\n  enabled: true\n")
		_, err := Load(path)
		if err == nil {
			t.Fatal("Load() error = nil, want validation failure")
		}
		if !strings.Contains(err.Error(), "api.auth.secret") {
			t.Errorf("Load() error = %v, want mention of api.auth.secret", err)
		}
	})
}

func TestValidate(t *testing.T) {
	secret := "unit-test-signing-secret-32-bytes!"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(*Config) {}, false},
		{"api with secret", func(c *Config) {
			c.API.Enabled = true
			c.API.Auth.Secret = secret
		}, false},
		{"api without secret", func(c *Config) {
			c.API.Enabled = true
		}, true},
		{"api secret too short", func(c *Config) {
			c.API.Enabled = true
			c.API.Auth.Secret = "short"
		}, true},
		{"api port out of range", func(c *Config) {
			c.API.Enabled = true
			c.API.Auth.Secret = secret
			c.API.Port = 70000
		}, true},
		{"disabled api skips checks", func(c *Config) {
			c.API.Port = -1
		}, false},
		{"mqtt without broker host", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker.Host = ""
		}, true},
		{"mqtt qos out of range", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.QoS = 3
		}, true},
		{"serial without port", func(c *Config) {
			c.Serial.Enabled = true
		}, true},
		{"history without path", func(c *Config) {
			c.History.Enabled = true
			c.History.Path = ""
		}, true},
		{"telemetry without url", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Org = "farm"
			c.Telemetry.Bucket = "io"
		}, true},
		{"unknown instance type", func(c *Config) {
			c.IO.Instances = []InstanceConfig{{ID: "x", Type: "analog-output"}}
		}, true},
		{"instance without id", func(c *Config) {
			c.IO.Instances = []InstanceConfig{{Type: "digital-output"}}
		}, true},
		{"duplicate instance ids", func(c *Config) {
			c.IO.Instances = []InstanceConfig{
				{ID: "x", Type: "digital-output"},
				{ID: "x", Type: "digital-input"},
			}
		}, true},
		{"negative address", func(c *Config) {
			c.IO.Instances = []InstanceConfig{{ID: "x", Type: "digital-output", Address: -1}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PI4JD_HISTORY_PATH", "/var/lib/pi4jd/journal.db")
	t.Setenv("PI4JD_MQTT_HOST", "broker.internal")
	t.Setenv("PI4JD_MQTT_USERNAME", "bridge")
	t.Setenv("PI4JD_MQTT_PASSWORD", "swordfish")
	t.Setenv("PI4JD_INFLUXDB_TOKEN", "influx-dev-token")
	t.Setenv("PI4JD_API_SECRET", "env-signing-secret-at-least-32-ch!")

	cfg := DefaultConfig()
	cfg.applyEnv()

	checks := []struct {
		name, got, want string
	}{
		{"History.Path", cfg.History.Path, "/var/lib/pi4jd/journal.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "broker.internal"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "bridge"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "swordfish"},
		{"Telemetry.Token", cfg.Telemetry.Token, "influx-dev-token"},
		{"API.Auth.Secret", cfg.API.Auth.Secret, "env-signing-secret-at-least-32-ch!"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestEnvOverridesIgnoreEmpty(t *testing.T) {
	t.Setenv("PI4JD_MQTT_HOST", "")

	cfg := DefaultConfig()
	cfg.applyEnv()

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want default kept", cfg.MQTT.Broker.Host)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Enabled || cfg.MQTT.Enabled || cfg.Serial.Enabled || cfg.History.Enabled || cfg.Telemetry.Enabled {
		t.Error("DefaultConfig() should leave every optional subsystem disabled")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.TopicPrefix != "pi4j" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "pi4j")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestInstanceConversions(t *testing.T) {
	ic := InstanceConfig{
		ID:            "pump-relay",
		Name:          "Transfer pump",
		Type:          "digital-output",
		Address:       17,
		InitialState:  digital.Low,
		ShutdownState: digital.Low,
		OnState:       digital.High,
		Pull:          digital.PullUp,
		DebounceMS:    20,
	}

	if got := ic.IOType(); got != device.DigitalOutput {
		t.Errorf("IOType() = %s, want %s", got, device.DigitalOutput)
	}

	out := ic.OutputConfig()
	if out.ID != "pump-relay" || out.Address != 17 {
		t.Errorf("OutputConfig() = %+v, want id and address carried over", out)
	}
	if out.OnState != digital.High {
		t.Errorf("OutputConfig().OnState = %s, want HIGH", out.OnState)
	}

	in := ic.InputConfig()
	if in.Pull != digital.PullUp {
		t.Errorf("InputConfig().Pull = %s, want UP", in.Pull)
	}
	if in.Debounce != 20*time.Millisecond {
		t.Errorf("InputConfig().Debounce = %v, want 20ms", in.Debounce)
	}
}
