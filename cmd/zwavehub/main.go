// ZWave Hub - real-time sync hub for a Z-Wave controller
//
// This is the main entry point for the hub. It bridges one upstream
// Z-Wave controller speaking a line protocol to many authenticated
// WebSocket UI clients, keeping an in-memory mirror of devices, rooms,
// scenes, and presence in between.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wburgers/zwave-hub/internal/api"
	"github.com/wburgers/zwave-hub/internal/authgate"
	"github.com/wburgers/zwave-hub/internal/controller"
	"github.com/wburgers/zwave-hub/internal/hub"
	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
	"github.com/wburgers/zwave-hub/internal/infrastructure/influxdb"
	"github.com/wburgers/zwave-hub/internal/infrastructure/logging"
	"github.com/wburgers/zwave-hub/internal/infrastructure/mqtt"
	"github.com/wburgers/zwave-hub/internal/protocol"
	"github.com/wburgers/zwave-hub/internal/registry"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ZWave Hub",
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

	// In-memory mirror of the controller's state
	reg := registry.New()
	reg.SetLogger(log)

	gate := authgate.New(cfg.Auth)
	gate.SetLogger(log)
	log.Info("auth gate initialised", "mode", cfg.Auth.Mode)

	// Controller session and the command path back to it
	session := controller.New(cfg.Controller, reg)
	session.SetLogger(log)

	commandRouter := hub.NewRouter(reg, session, cfg.Switch.Node, log)
	clientHub := hub.NewHub(cfg.WebSocket, reg, gate, commandRouter, log)
	go clientHub.Run(ctx)

	checks := map[string]api.HealthChecker{
		"controller": session,
	}

	// Optional MQTT event bridge
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
		mqttClient.SetLogger(log)
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Optional InfluxDB telemetry writer
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Wire the event handler before the session dials out so the first
	// refresh is not lost.
	session.SetEventHandler(makeEventHandler(clientHub, reg, mqttClient, influxClient, log))

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting controller session: %w", err)
	}
	defer func() {
		log.Info("stopping controller session")
		session.Stop()
	}()
	log.Info("controller session started",
		"network", cfg.Controller.Network,
		"address", cfg.Controller.Address,
	)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WSPath:   cfg.WebSocket.Path,
		Logger:   log,
		Registry: reg,
		Hub:      clientHub,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Controller session
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)

	log.Info("ZWave Hub stopped")
	return nil
}

// makeEventHandler fans controller state changes out to the WebSocket
// hub and the optional MQTT and InfluxDB bridges. The hub delivery
// always runs; bridge failures are logged and never block it.
func makeEventHandler(clientHub *hub.Hub, reg *registry.Registry, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) controller.EventHandler {
	return func(kind protocol.Kind, payload any) {
		clientHub.HandleControllerEvent(kind, payload)

		if mqttClient != nil {
			if err := mqttClient.PublishEvent(string(kind), payload); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				log.Warn("publishing event to MQTT", "kind", kind, "error", err)
			}
			if kind == protocol.KindDeviceList {
				for _, device := range reg.Devices() {
					if err := mqttClient.PublishDeviceStatus(device); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
						log.Warn("publishing device status to MQTT", "node", device.Node, "error", err)
					}
				}
			}
		}

		if influxClient != nil {
			switch kind {
			case protocol.KindDeviceList:
				for _, device := range reg.Devices() {
					influxClient.WriteDeviceStatus(device)
				}
			case protocol.KindRoomList:
				for _, room := range reg.Rooms() {
					influxClient.WriteRoomClimate(room)
				}
			case protocol.KindRoom:
				if room, ok := payload.(registry.Room); ok {
					influxClient.WriteRoomClimate(room)
				}
			case protocol.KindPresence:
				influxClient.WritePresence(reg.AtHome())
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses ZWAVEHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ZWAVEHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
