// modemsim - virtual Hayes AT modem
//
// modemsim allocates a pseudo-terminal pair, publishes its peer end behind
// a stable symlink, and answers AT commands on it from a configurable
// JSON response table. Software under test opens the symlink as if it
// were a real serial modem; AT+CFUN=1,1 power-cycles the device the way
// real firmware does, invalidating the open file descriptor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/modemsim/migrations"

	"github.com/nerrad567/modemsim/internal/api"
	"github.com/nerrad567/modemsim/internal/device"
	"github.com/nerrad567/modemsim/internal/events"
	"github.com/nerrad567/modemsim/internal/infrastructure/config"
	"github.com/nerrad567/modemsim/internal/infrastructure/database"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
	"github.com/nerrad567/modemsim/internal/infrastructure/metrics"
	"github.com/nerrad567/modemsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/modemsim/internal/modem"
	"github.com/nerrad567/modemsim/internal/session"
	"github.com/nerrad567/modemsim/internal/transcript"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments, excluding the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("modemsim", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config.yaml")
	linkPath := flags.String("link", "", "symlink path clients open (overrides config)")
	commandsPath := flags.String("commands", "", "JSON response table path (overrides config)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// The default logger already carries the version attribute.
	log := logging.Default()
	log.Info("starting modemsim",
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *linkPath != "" {
		cfg.Serial.LinkPath = *linkPath
	}
	if *commandsPath != "" {
		cfg.Serial.CommandsPath = *commandsPath
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Compile the response table
	table, err := modem.LoadTable(cfg.Serial.CommandsPath)
	if err != nil {
		return fmt.Errorf("loading command table: %w", err)
	}
	log.Info("command table loaded",
		"path", cfg.Serial.CommandsPath,
		"commands", table.Len(),
	)

	// Allocate the terminal pair and install the symlink
	mgr := device.NewManager(cfg.Serial.LinkPath, log)
	dev, err := mgr.Open()
	if err != nil {
		return fmt.Errorf("opening virtual device: %w", err)
	}
	log.Info("virtual modem online",
		"link", cfg.Serial.LinkPath,
		"device", dev.PeerPath,
		"generation", dev.Generation,
	)

	// The event sinks observe the session; none of them drive it.
	sinks := []events.Sink{loggerSink(log)}

	// Transcript journal (optional)
	var store *transcript.Store
	if cfg.Transcript.Enabled {
		db, dbErr := database.Open(ctx, database.Config{
			Path:        cfg.Transcript.Database.Path,
			WALMode:     cfg.Transcript.Database.WALMode,
			BusyTimeout: cfg.Transcript.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening transcript database: %w", dbErr)
		}
		defer func() {
			log.Info("closing transcript database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing transcript database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}

		store = transcript.NewStore(db.DB, log)
		sinks = append(sinks, store)
		log.Info("transcript journal enabled", "path", db.Path())
	}

	// MQTT event publisher (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT, log)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if pubErr := mqttClient.PublishStatus(dev.Generation, dev.PeerPath); pubErr != nil {
			log.Warn("initial status publish failed", "error", pubErr)
		}
		sinks = append(sinks, mqtt.NewPublisher(mqttClient, log))
	}

	// InfluxDB metrics (optional)
	if cfg.Metrics.Enabled {
		metricsClient, metricsErr := metrics.Connect(cfg.Metrics, log)
		if metricsErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", metricsErr)
		}
		defer func() {
			log.Info("closing metrics connection")
			metricsClient.Close()
		}()
		log.Info("metrics enabled",
			"url", cfg.Metrics.URL,
			"bucket", cfg.Metrics.Bucket,
		)
		sinks = append(sinks, metricsClient)
	}

	// WebSocket hub, created ahead of the loop so it can sit on the
	// event path; the API server reuses it.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log)
		go hub.Run(ctx)
		sinks = append(sinks, hub)
	}

	// Build the session loop
	loop := session.New(session.Config{
		Table:      table,
		Devices:    mgr,
		Device:     dev,
		Sink:       events.Multi(sinks...),
		Logger:     log,
		ReadBuffer: cfg.Serial.ReadBuffer,
	})
	defer func() {
		log.Info("releasing virtual device")
		mgr.Close(loop.Device())
	}()

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Session:    loop,
			Table:      table,
			Transcript: store,
			Hub:        hub,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, serving AT commands")

	// Blocks until the context is cancelled
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("session loop: %w", err)
	}

	log.Info("modemsim stopped")
	return nil
}

// loadConfig resolves the configuration. An explicitly named file must
// exist; with no -config flag the default path is used when present and
// plain defaults otherwise, so the binary runs out of the box.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv("MODEMSIM_CONFIG"); env != "" {
			path = env
			explicit = true
		} else {
			path = defaultConfigPath
		}
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// loggerSink logs every session event at debug level.
func loggerSink(log *logging.Logger) events.Sink {
	return events.SinkFunc(func(e events.Event) {
		log.Debug("session event",
			"kind", e.Kind,
			"line", e.Line,
			"generation", e.Generation,
		)
	})
}
