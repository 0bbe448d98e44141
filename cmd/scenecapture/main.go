// Scene Capture Core - Home Assistant scene state capture service
//
// This is the main entry point for Scene Capture Core, a sidecar service
// that captures live entity states from a running Home Assistant instance
// into its scenes.yaml document. Captures are triggered over MQTT service
// topics or the HTTP API, written atomically, and followed by a scene
// reload so the running instance picks up the new states.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/smartqasa/scene-capture/migrations"

	"github.com/smartqasa/scene-capture/internal/api"
	"github.com/smartqasa/scene-capture/internal/auth"
	"github.com/smartqasa/scene-capture/internal/capture"
	"github.com/smartqasa/scene-capture/internal/hass"
	"github.com/smartqasa/scene-capture/internal/history"
	"github.com/smartqasa/scene-capture/internal/infrastructure/config"
	"github.com/smartqasa/scene-capture/internal/infrastructure/database"
	"github.com/smartqasa/scene-capture/internal/infrastructure/influxdb"
	"github.com/smartqasa/scene-capture/internal/infrastructure/logging"
	"github.com/smartqasa/scene-capture/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	issueToken := flag.String("issue-token", "", "print a service token for the named client and exit")
	flag.Parse()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *issueToken != "" {
		if err := runIssueToken(*issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Scene Capture Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to Home Assistant
	hassClient, err := hass.Connect(ctx, cfg.HomeAssistant, log)
	if err != nil {
		return fmt.Errorf("connecting to Home Assistant: %w", err)
	}
	defer func() {
		log.Info("disconnecting from Home Assistant")
		if closeErr := hassClient.Close(); closeErr != nil {
			log.Error("error closing Home Assistant connection", "error", closeErr)
		}
	}()
	log.Info("Home Assistant connected",
		"url", cfg.HomeAssistant.URL,
		"entities", hassClient.StateCount(),
	)

	hassClient.SetOnConnect(func() {
		log.Info("Home Assistant reconnected")
	})
	hassClient.SetOnDisconnect(func(err error) {
		log.Warn("Home Assistant disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the capture service
	historyRepo := history.NewSQLiteRepository(db.DB)
	store := capture.NewStore(cfg.Scenes.Path, hassClient, log)
	resolver := capture.NewResolver(hassClient, log)
	serializer := capture.NewSerializer(log)

	var metrics capture.MetricsRecorder
	if influxClient != nil {
		metrics = influxClient
	}
	captureService := capture.NewService(store, resolver, serializer, historyRepo, metrics, log)
	log.Info("capture service initialised", "scenes_path", cfg.Scenes.Path)

	// Connect to MQTT broker and start the service listener (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		listener := capture.NewListener(captureService, mqttClient, byte(cfg.MQTT.QoS), log)
		if listenErr := listener.Start(ctx); listenErr != nil {
			return fmt.Errorf("starting MQTT listener: %w", listenErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Start the HTTP API
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Capture:  captureService,
		History:  historyRepo,
		Runtime:  hassClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Periodic history housekeeping
	go pruneHistoryLoop(ctx, historyRepo, log)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, hassClient, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Home Assistant
	// 5. Database

	log.Info("Scene Capture Core stopped")
	return nil
}

// historyRetention is how long capture runs are kept before pruning.
const historyRetention = 90 * 24 * time.Hour

// pruneInterval is how often the housekeeping pass runs.
const pruneInterval = 24 * time.Hour

// pruneHistoryLoop removes old capture records once a day.
func pruneHistoryLoop(ctx context.Context, repo history.Repository, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.Prune(ctx, historyRetention)
			if err != nil {
				log.Warn("pruning capture history failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("pruned capture history", "removed", removed)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses SCENECAPTURE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SCENECAPTURE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// runIssueToken prints a service token for the named client, for provisioning
// dashboards and bridges without a separate tool.
func runIssueToken(service string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := time.Duration(cfg.Security.JWT.TokenTTL) * time.Minute
	token, err := auth.GenerateServiceToken(service, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - hassClient: Home Assistant client to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, hassClient *hass.Client, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := hassClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("homeassistant: %w", err)
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
