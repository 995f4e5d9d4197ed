package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hydroponics-core/internal/api"
	"github.com/nerrad567/hydroponics-core/internal/audit"
	"github.com/nerrad567/hydroponics-core/internal/auth"
	"github.com/nerrad567/hydroponics-core/internal/hydro"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/config"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/logging"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/hydroponics-core/internal/ingest"
)

// tokenPurgeInterval is how often expired refresh tokens are deleted.
const tokenPurgeInterval = time.Hour

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and MQTT ingestion when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.resolveConfigPath())
		},
	}
}

// runServe is the server lifecycle: it returns once ctx is cancelled and
// everything it started has been shut down.
func runServe(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hydroponics Core",
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

	db, err := openDatabase(cfg)
	if err != nil {
		return err
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

	// Accounts
	users := auth.NewUserRepository(db.DB)
	tokens := auth.NewTokenRepository(db.DB)
	if _, seedErr := auth.SeedUser(ctx, users, cfg.Security.SeedUser, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding user: %w", seedErr)
	}
	authService := auth.NewService(users, tokens, cfg.Security.JWT.Secret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	authService.SetLogger(log.Logger)

	// Resource service and audit trail
	service := hydro.NewService(hydro.NewSQLiteStore(db.DB), hydro.PageLimits{
		Default: cfg.API.Pagination.DefaultPageSize,
		Max:     cfg.API.Pagination.MaxPageSize,
	})
	service.SetLogger(log)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, audit.DefaultQueueSize)
	recorder.SetLogger(log)
	service.SetAuditor(recorder)

	// Background workers stop with workerCtx; the recorder is drained last.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(workerCtx)
		close(recorderDone)
	}()
	defer func() {
		stopWorkers()
		<-recorderDone
	}()
	go purgeExpiredTokens(workerCtx, tokens, log)

	// InfluxDB mirror (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		service.AddSink(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT ingestion (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startIngestion(workerCtx, cfg, users, service, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT ingestion disabled")
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Logger:        log,
		Service:       service,
		Auth:          authService,
		Authenticator: auth.NewAuthenticator(users, cfg.Security.JWT.Secret),
		AuditRepo:     auditRepo,
		Recorder:      recorder,
		DB:            db,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// startIngestion connects to the broker, subscribes the reading handler
// and registers the retained latest-reading publisher as a sink.
func startIngestion(ctx context.Context, cfg *config.Config, users auth.UserRepository, service *hydro.Service, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	publisher := ingest.NewLatestPublisher(client, client.Topics(), ingest.DefaultQueueSize)
	publisher.SetLogger(log)
	service.AddSink(publisher)
	go publisher.Run(ctx)

	handler := ingest.NewHandler(users, service, client.Topics())
	handler.SetLogger(log)
	// #nosec G115 -- QoS validated to 0..2 by config.Validate
	if err := handler.Start(client, byte(cfg.MQTT.QoS)); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("starting MQTT ingestion: %w", err)
	}
	return client, nil
}

func purgeExpiredTokens(ctx context.Context, tokens auth.TokenRepository, log *logging.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.DeleteExpired(ctx)
			if err != nil {
				log.Warn("purging expired refresh tokens failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("purged expired refresh tokens", "count", n)
			}
		}
	}
}

func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
