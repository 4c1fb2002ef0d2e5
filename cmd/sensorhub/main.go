// SensorHub - sensor telemetry service
//
// This is the main entry point for the SensorHub server. SensorHub stores
// readings from temperature/humidity sensors grouped into channels:
//   - Owners manage channels over a JWT-authenticated REST API
//   - Devices push readings with a channel write key (HTTP or MQTT)
//   - Dashboards query history and join realtime rooms with a read key
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/sensorhub/migrations"

	"github.com/nerrad567/sensorhub/internal/api"
	"github.com/nerrad567/sensorhub/internal/audit"
	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/bridge"
	"github.com/nerrad567/sensorhub/internal/channel"
	"github.com/nerrad567/sensorhub/internal/feed"
	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorhub/internal/infrastructure/relay"
	"github.com/nerrad567/sensorhub/internal/keys"
	"github.com/nerrad567/sensorhub/internal/realtime"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "SENSORHUB_CONFIG"

	// auditQueueSize bounds the audit events waiting to be written.
	auditQueueSize = 256

	// relayReadyTimeout bounds the wait for the Redis subscription.
	relayReadyTimeout = 10 * time.Second
)

// options are the parsed command-line flags.
type options struct {
	configPath  string
	showVersion bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("sensorhub %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, getConfigPath(opts.configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the command line. pflag.ErrHelp is returned after
// usage has been printed for -h/--help.
func parseFlags(args []string) (options, error) {
	var opts options

	fs := pflag.NewFlagSet("sensorhub", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default: $"+configEnvVar+" or "+defaultConfigPath+")")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// An explicit --config wins, then SENSORHUB_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on clean shutdown.
//
//nolint:gocognit,gocyclo // Startup wiring is linear but long
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting SensorHub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Identity and channel keys
	identity := auth.NewService(
		auth.NewUserRepository(db.DB),
		cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.AccessTokenTTL)*time.Minute,
	)

	issuer, err := keys.NewIssuer(keys.IssuerConfig{
		Secret: cfg.Security.ChannelKeys.Secret,
		TTL:    cfg.GetChannelKeyTTL(),
	})
	if err != nil {
		return fmt.Errorf("creating key issuer: %w", err)
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, auditQueueSize)
	recorder.SetLogger(log)
	recorder.Start()
	defer func() {
		log.Info("flushing audit log")
		recorder.Close()
	}()

	channels := channel.NewKeyStore(channel.NewSQLiteRepository(db.DB), issuer, identity)
	channels.SetLogger(log)
	channels.SetEventRecorder(recorder)

	// Realtime rooms. With Redis enabled every node relays its feeds through
	// the shared channel and delivers them into its own hub.
	hub := realtime.NewHub()
	hub.SetLogger(log)
	go hub.Run(ctx)

	checks := make(map[string]api.HealthChecker)

	var broadcaster feed.Broadcaster = hub
	if cfg.Redis.Enabled {
		rel, relErr := startRelay(ctx, cfg.Redis, hub, log)
		if relErr != nil {
			return relErr
		}
		defer func() {
			log.Info("closing redis relay")
			if closeErr := rel.Close(); closeErr != nil {
				log.Error("error closing redis relay", "error", closeErr)
			}
		}()
		broadcaster = rel
		checks["redis"] = api.HealthCheckFunc(rel.Ping)
	} else {
		log.Info("redis relay disabled, broadcasting locally")
	}

	feedRepo := feed.NewSQLiteRepository(db.DB)
	pipeline := feed.NewPipeline(feedRepo, channels, broadcaster)
	pipeline.SetLogger(log)
	feeds := feed.NewService(feedRepo, channels, pipeline)
	feeds.SetLogger(log)

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Warn("influxdb write failed", "error", writeErr)
		})
		pipeline.AddSink(bridge.NewInfluxSink(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)

		ingest := bridge.NewIngest(mqttClient, feeds)
		ingest.SetLogger(log)
		if startErr := ingest.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT ingest: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT ingest")
			if stopErr := ingest.Stop(); stopErr != nil {
				log.Warn("error stopping MQTT ingest", "error", stopErr)
			}
		}()
		pipeline.AddSink(bridge.NewMQTTSink(mqttClient))
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if err := healthCheck(ctx, db, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Auth:     identity,
		Channels: channels,
		Feeds:    feeds,
		Hub:      hub,
		Audit:    auditRepo,
		DB:       db.DB,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, MQTT ingest and
	// client, InfluxDB, Redis relay, audit log, database.

	log.Info("SensorHub stopped")
	return nil
}

// startRelay connects to Redis and waits until the relay subscription is
// live, so no broadcast published after startup is missed.
func startRelay(ctx context.Context, cfg config.RedisConfig, hub *realtime.Hub, log *logging.Logger) (*relay.Relay, error) {
	rel := relay.New(cfg, hub)
	rel.SetLogger(log)

	if err := rel.Ping(ctx); err != nil {
		_ = rel.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- rel.Run(ctx, ready)
	}()

	select {
	case <-ready:
	case err := <-errCh:
		_ = rel.Close()
		return nil, fmt.Errorf("starting redis relay: %w", err)
	case <-time.After(relayReadyTimeout):
		_ = rel.Close()
		return nil, fmt.Errorf("starting redis relay: subscription not ready after %s", relayReadyTimeout)
	}

	go func() {
		if err := <-errCh; err != nil {
			log.Error("redis relay stopped", "error", err)
		}
	}()

	log.Info("redis relay connected", "addr", cfg.Addr, "channel", cfg.Channel)
	return rel, nil
}

// healthCheck verifies the database and every enabled component.
func healthCheck(ctx context.Context, db *database.DB, checks map[string]api.HealthChecker) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
