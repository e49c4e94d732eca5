// Gray Logic Base Station - home monitoring device server
//
// This is the main entry point for the base station. Battery-powered
// sensors connect over TCP, register for an id and report status events,
// which are written to the event log and fanned out to MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-basestation/internal/basestation"
	"github.com/nerrad567/gray-logic-basestation/internal/device"
	"github.com/nerrad567/gray-logic-basestation/internal/eventlog"
	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-basestation/migrations"
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

// options are the command-line settings that override the config file.
type options struct {
	configPath string
	port       int
}

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "basestation",
		Short: "Home monitoring base station",
		Long: `basestation accepts TCP connections from battery-powered sensors,
assigns each a device id on registration and records the status
events they report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "TCP port to listen on (overrides server.port)")

	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "basestation %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", date)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses BASESTATION_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BASESTATION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.port != 0 {
		cfg.Server.Port = opts.port
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating --port: %w", err)
		}
	}
	return cfg, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Command-line options
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting base station",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// Device ids restart at 10 every run; the run id tells runs apart.
	runID := uuid.NewString()
	log = logging.New(cfg.Logging, version).With("run_id", runID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	log.Info("server identity",
		"site_id", cfg.Site.ID,
		"site_name", cfg.Site.Name,
	)

	// Event store
	var (
		db    *database.DB
		store eventlog.Sink
	)
	switch cfg.EventLog.Backend {
	case config.EventLogBolt:
		bolt, openErr := eventlog.OpenBoltStore(cfg.EventLog.BoltPath, runID)
		if openErr != nil {
			return fmt.Errorf("opening event store: %w", openErr)
		}
		store = bolt
		log.Info("event store opened", "backend", config.EventLogBolt, "path", cfg.EventLog.BoltPath)
	default:
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		store = eventlog.NewSQLiteStore(db, runID)
		log.Info("event store opened", "backend", config.EventLogSQLite, "path", db.Path())
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			store.Close() //nolint:errcheck // startup already failed
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
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
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
		if err != nil {
			store.Close() //nolint:errcheck // startup already failed
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	sink := buildSink(store, log, mqttClient, influxClient, runID)
	defer func() {
		log.Info("closing event log")
		if closeErr := sink.Close(); closeErr != nil {
			log.Error("error closing event log", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	registry := device.NewRegistry()
	registry.SetLogger(log)

	promRegistry := prometheus.NewRegistry()
	metrics := basestation.NewMetrics(promRegistry)

	dispatcher := basestation.NewDispatcher(registry, sink, metrics)
	dispatcher.SetLogger(log)
	if influxClient != nil {
		dispatcher.SetBatteryRecorder(influxClient)
	}

	reactor := basestation.NewReactor(basestation.Options{
		Addr:           cfg.ListenAddress(),
		PollInterval:   cfg.PollInterval(),
		ReadBufferSize: cfg.Server.ReadBufferSize,
		MaxFrameSize:   cfg.Server.MaxFrameSize,
		WriteTimeout:   cfg.WriteTimeout(),
		MaxConnections: cfg.Server.MaxConnections,
	}, dispatcher, metrics)
	reactor.SetLogger(log)

	if err := reactor.Listen(); err != nil {
		return err
	}
	log.Info("server started",
		"site_name", cfg.Site.Name,
		"addr", reactor.Addr().String(),
	)

	if err := reactor.Run(ctx); err != nil {
		return fmt.Errorf("running reactor: %w", err)
	}

	logSummary(log, promRegistry, registry)

	// Deferred Close() calls run in reverse order:
	// 1. Event log sinks
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database (sqlite backend)

	log.Info("base station stopped")
	return nil
}

// buildSink assembles the event fan-out. The persistent store comes first
// so an event is stored before it is published.
func buildSink(store eventlog.Sink, log *logging.Logger, mqttClient *mqtt.Client, influxClient *influxdb.Client, runID string) *eventlog.MultiSink {
	sinks := []eventlog.Sink{store, eventlog.NewLogSink(log)}
	if mqttClient != nil {
		sinks = append(sinks, eventlog.NewMQTTPublisher(mqttClient, runID))
	}
	if influxClient != nil {
		sinks = append(sinks, eventlog.NewInfluxRecorder(influxClient))
	}
	return eventlog.Multi(sinks...)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil with the bolt backend)
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// logSummary logs the reactor counters and every device registered this run.
func logSummary(log *logging.Logger, g prometheus.Gatherer, registry *device.Registry) {
	values, keys, err := basestation.Summary(g)
	if err != nil {
		log.Warn("gathering metrics", "error", err)
	} else {
		args := make([]any, 0, 2*len(keys))
		for _, k := range keys {
			args = append(args, k, values[k])
		}
		log.Info("metrics summary", args...)
	}

	devices := registry.List()
	log.Info("device summary", "registered", len(devices))
	for _, d := range devices {
		log.Info("device",
			"device_id", d.ID,
			"info", d.Info,
			"battery", d.BatteryLevel,
			"registered_at", d.RegisteredAt,
			"last_seen", d.LastSeen,
		)
	}
}
