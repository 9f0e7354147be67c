// BioFleet Core - biometric terminal fleet manager
//
// This is the main entry point for the BioFleet Core application.
// BioFleet supervises a fleet of network-attached biometric attendance
// terminals: it polls their on-board logs, relays punch events to a
// downstream sink, and exposes an administrative HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biofleet/biofleet-core/internal/api"
	"github.com/biofleet/biofleet-core/internal/audit"
	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
	"github.com/biofleet/biofleet-core/internal/infrastructure/database"
	"github.com/biofleet/biofleet-core/internal/infrastructure/influxdb"
	"github.com/biofleet/biofleet-core/internal/infrastructure/logging"
	"github.com/biofleet/biofleet-core/internal/infrastructure/mqtt"
	"github.com/biofleet/biofleet-core/internal/listener"
	"github.com/biofleet/biofleet-core/internal/relay"
	"github.com/biofleet/biofleet-core/internal/scanner"
	"github.com/biofleet/biofleet-core/internal/terminal"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

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
	log.Info("starting BioFleet Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open the audit database
	db, err := database.Open(cfg.Database)
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

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Device registry, seeded from config
	registry := device.NewRegistry()
	for _, dc := range cfg.Devices {
		if _, addErr := registry.Add(dc.Address, dc.Port, dc.Name, dc.Enabled); addErr != nil {
			return fmt.Errorf("seeding device %q: %w", dc.Name, addErr)
		}
	}
	log.Info("device registry initialised", "devices", registry.Count())

	// Terminal protocol driver. The simulator is always registered;
	// vendor drivers register themselves at import time.
	drv, err := terminal.OpenDriver(cfg.Driver.Name)
	if err != nil {
		return fmt.Errorf("selecting driver: %w", err)
	}
	log.Info("terminal driver selected", "driver", drv.Name())

	// MQTT broker (only needed for the MQTT sink)
	var mqttClient *mqtt.Client
	if cfg.Sink.Type == "mqtt" {
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
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Event sink + relay
	sink, err := buildSink(cfg, mqttClient)
	if err != nil {
		return fmt.Errorf("configuring sink: %w", err)
	}
	rly := relay.New(sink, time.Duration(cfg.Sink.Timeout)*time.Second)
	rly.SetLogger(log)
	log.Info("attendance relay configured", "sink", cfg.Sink.Type)

	// InfluxDB telemetry (optional)
	var telemetry *influxdb.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, connectErr := influxdb.Connect(cfg.InfluxDB)
		if connectErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connectErr)
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
		telemetry = influxdb.NewTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Listener manager
	manager := listener.NewManager(cfg.Listener, registry, drv, rly)
	manager.SetLogger(log)
	defer func() {
		log.Info("stopping listener manager")
		manager.StopAll()
	}()

	// Network scanner
	scn := scanner.New(cfg.Scanner, drv)
	scn.SetLogger(log)

	// API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Registry:  registry,
		Manager:   manager,
		Scanner:   scn,
		AuditRepo: auditRepo,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Fan supervision and relay events out to the WebSocket hub and,
	// when enabled, the telemetry writer and MQTT status mirror.
	hub := server.Hub()
	listenerObs := listener.Observers{hub}
	relayObs := relay.Observers{hub}
	if telemetry != nil {
		listenerObs = append(listenerObs, telemetry)
		relayObs = append(relayObs, telemetry)
	}
	if mqttClient != nil {
		statusPub := mqtt.NewStatusPublisher(mqttClient)
		statusPub.SetLogger(log)
		listenerObs = append(listenerObs, statusPub)
	}
	manager.SetObserver(listenerObs)
	rly.SetObserver(relayObs)

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Launch listeners for enabled devices
	if cfg.Listener.AutoStart {
		manager.StartAll(ctx)
	} else {
		log.Info("listener auto-start disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Listener manager
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if used)
	// 5. Database

	log.Info("BioFleet Core stopped")
	return nil
}

// buildSink selects the configured Event Sink transport.
func buildSink(cfg *config.Config, mqttClient *mqtt.Client) (relay.Sink, error) {
	switch cfg.Sink.Type {
	case "http":
		if cfg.Sink.URL == "" {
			return nil, fmt.Errorf("sink.url is required for the http sink")
		}
		return relay.NewHTTPSink(cfg.Sink.URL, time.Duration(cfg.Sink.Timeout)*time.Second), nil
	case "mqtt":
		if mqttClient == nil {
			return nil, fmt.Errorf("mqtt client is required for the mqtt sink")
		}
		qos := cfg.MQTT.QoS
		if qos < 0 || qos > 2 {
			qos = 1
		}
		return relay.NewMQTTSink(mqttClient, cfg.Sink.Topic, byte(qos)), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}

// getConfigPath returns the configuration file path.
// Uses BIOFLEET_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BIOFLEET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
