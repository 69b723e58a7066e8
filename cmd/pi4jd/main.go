// pi4jd - digital I/O daemon
//
// pi4jd loads the configured GPIO providers, creates the declared I/O
// instances, and exposes them over the control API. State transitions
// stream to the WebSocket hub and are recorded to the SQLite journal and
// InfluxDB when those sinks are enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pi4j "github.com/GeVanCo/pi4j-v2"
	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/history"
	"github.com/GeVanCo/pi4j-v2/internal/api"
	"github.com/GeVanCo/pi4j-v2/internal/logging"
	"github.com/GeVanCo/pi4j-v2/plugins/mqttgpio"
	"github.com/GeVanCo/pi4j-v2/plugins/periphio"
	"github.com/GeVanCo/pi4j-v2/plugins/serialgpio"
	"github.com/GeVanCo/pi4j-v2/provider"
	"github.com/GeVanCo/pi4j-v2/telemetry"
)

// Build metadata, injected via -ldflags at release time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/pi4jd.yaml"

// shutdownTimeout bounds the runtime teardown after the context ends.
const shutdownTimeout = 10 * time.Second

func main() {
	configFlag := flag.String("config", defaultConfigPath, "path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, resolveConfigPath(*configFlag)); err != nil {
		fmt.Fprintln(os.Stderr, "pi4jd:", err)
		os.Exit(1)
	}
}

// resolveConfigPath honours the PI4JD_CONFIG environment variable when the
// flag is left at its default.
func resolveConfigPath(flagValue string) string {
	if flagValue != defaultConfigPath {
		return flagValue
	}
	if path := os.Getenv("PI4JD_CONFIG"); path != "" {
		return path
	}
	return flagValue
}

// run assembles the daemon from configuration and blocks until ctx ends.
// main wires up signals; tests call run directly.
func run(ctx context.Context, configPath string) error {
	// Bootstrap logger, replaced once the config is loaded.
	log := logging.Default()
	log.Info("starting pi4jd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("config loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Native GPIO is always available; transport-backed providers load
	// per config.
	plugins := []provider.Plugin{periphio.NewPlugin()}

	var mqttClient *mqttgpio.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqttgpio.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("closing mqtt session")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("mqtt close failed", "error", closeErr)
			}
		}()

		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		plugins = append(plugins, mqttgpio.NewPlugin(mqttClient, cfg.MQTT))
	} else {
		log.Info("MQTT GPIO disabled")
	}

	var serialClient *serialgpio.Client
	if cfg.Serial.Enabled {
		serialClient, err = serialgpio.Open(cfg.Serial)
		if err != nil {
			return fmt.Errorf("opening serial adapter: %w", err)
		}
		defer func() {
			log.Info("closing serial adapter")
			if closeErr := serialClient.Close(); closeErr != nil {
				log.Error("serial close failed", "error", closeErr)
			}
		}()

		serialClient.SetLogger(log.Component("serial"))
		log.Info("serial adapter connected",
			"port", cfg.Serial.Port,
			"baud", cfg.Serial.Baud,
		)

		plugins = append(plugins, serialgpio.NewPlugin(serialClient))
	} else {
		log.Info("serial GPIO disabled")
	}

	// Bootstrap the runtime: load plugins, seal the provider store, create
	// declared instances.
	rt, err := pi4j.New(ctx,
		pi4j.WithConfig(cfg),
		pi4j.WithLogger(log.Component("runtime")),
		pi4j.WithPlugins(plugins...),
	)
	if err != nil {
		return fmt.Errorf("initialising runtime: %w", err)
	}
	defer func() {
		log.Info("shutting down runtime")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if shutdownErr := rt.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("runtime shutdown failed", "error", shutdownErr)
		}
	}()

	providers, platforms := rt.Providers().Counts()
	log.Info("runtime initialised",
		"providers", providers,
		"platforms", platforms,
		"instances", rt.Registry().Count(),
	)

	var journal *history.Journal
	if cfg.History.Enabled {
		journal, err = history.Open(history.Config{
			Path:        cfg.History.Path,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening state journal: %w", err)
		}
		defer func() {
			log.Info("closing state journal")
			if closeErr := journal.Close(); closeErr != nil {
				log.Error("journal close failed", "error", closeErr)
			}
		}()

		journal.SetLogger(log.Component("journal"))
		log.Info("state journal open", "path", journal.Path())
	} else {
		log.Info("state journal disabled")
	}

	var exporter *telemetry.Exporter
	if cfg.Telemetry.Enabled {
		exporter, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connect telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry exporter")
			if closeErr := exporter.Close(); closeErr != nil {
				log.Error("telemetry close failed", "error", closeErr)
			}
		}()

		exporter.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry exporter connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Start the control API, or tap the sinks directly when it is off.
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log.Component("api"),
			Runtime:   rt,
			Journal:   journal,
			Telemetry: exporter,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("api server stop failed", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
		if journal != nil || exporter != nil {
			tapInstances(rt, journal, exporter, log)
		}
	}

	if err := healthCheck(ctx, mqttClient, journal, exporter); err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	log.Info("startup complete")
	<-ctx.Done()
	log.Info("shutdown requested")

	// Teardown runs in the deferred closes above, API first so clients
	// stop issuing commands, transports last.
	log.Info("pi4jd stopped")
	return nil
}

// tapInstances forwards every instance's state transitions to the journal
// and telemetry. The API server installs its own observers when it runs;
// this path covers headless deployments.
func tapInstances(rt *pi4j.Context, journal *history.Journal, exporter *telemetry.Exporter, log *logging.Logger) {
	listener := digital.ListenerFunc(func(ev digital.Event) {
		id := ev.Source.ID()
		at := time.Now()

		if journal != nil {
			recordCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := journal.Record(recordCtx, id, ev.State, at); err != nil {
				log.Warn("journal write failed", "instance_id", id, "error", err)
			}
			cancel()
		}
		if exporter != nil {
			exporter.RecordState(id, ev.State, at)
		}
	})

	tapped := 0
	for _, io := range rt.Registry().All() {
		switch inst := io.(type) {
		case *digital.Output:
			inst.AddListener(listener)
			tapped++
		case *digital.Input:
			inst.AddListener(listener)
			tapped++
		}
	}
	log.Info("state sinks tapped directly", "instances", tapped)
}

// healthCheck pings each connected backend and returns the first failure.
// Nil arguments are skipped, so disabled subsystems never fail the check.
func healthCheck(ctx context.Context, mqttClient *mqttgpio.Client, journal *history.Journal, exporter *telemetry.Exporter) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if journal != nil {
		if err := journal.HealthCheck(ctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	if exporter != nil {
		if err := exporter.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}
