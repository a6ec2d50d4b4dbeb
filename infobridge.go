package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infobridge/infobridge/admin"
	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/cfg"
	"github.com/infobridge/infobridge/coordinator"
	"github.com/infobridge/infobridge/handlers"
	"github.com/infobridge/infobridge/protocol"
	"github.com/infobridge/infobridge/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Str("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("infobridge - MySQL front end for the search backend")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	client, closeClient, err := newBackendClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backend client")
		return
	}
	defer closeClient()

	engine := handlers.NewEngine(client, handlers.Options{DatabaseAlias: cfg.Config.Backend.DatabaseAlias})

	stats, err := coordinator.NewStatementStats(cfg.Config.Admin.StatementStatsSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create statement statistics")
		return
	}

	handler := coordinator.NewCoordinatorHandler(engine, client, stats, coordinator.Options{
		ServerVersion:  cfg.Config.MySQL.ServerVersion,
		VersionComment: cfg.Config.MySQL.VersionComment,
	})

	var sessions admin.SessionLister
	var sessionSource telemetry.SessionSource
	if cfg.Config.MySQL.Enabled {
		log.Info().Msg("Initializing MySQL protocol server")
		mysqlServer := protocol.NewMySQLServer(
			fmt.Sprintf("%s:%d", cfg.Config.MySQL.BindAddress, cfg.Config.MySQL.Port),
			cfg.Config.MySQL.UnixSocket,
			os.FileMode(cfg.Config.MySQL.UnixSocketPerm),
			handler,
		)
		mysqlServer.SetMaxConnections(cfg.Config.MySQL.MaxConnections)
		mysqlServer.SetServerVersion(cfg.Config.MySQL.ServerVersion)

		if err := mysqlServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start MySQL server")
			return
		}
		defer mysqlServer.Stop()
		sessions = mysqlServer
		sessionSource = mysqlServer
	}

	if cfg.Config.Admin.Enabled {
		router := admin.NewRouter(
			admin.NewAdminHandlers(cfg.Config.InstanceID, handler, sessions, stats),
			cfg.Config.Admin.Secret,
			telemetry.GetMetricsHandler(),
		)
		adminServer := admin.NewServer(fmt.Sprintf("%s:%d", cfg.Config.Admin.BindAddress, cfg.Config.Admin.Port), router)
		if err := adminServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start admin server")
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := adminServer.Stop(ctx); err != nil {
				log.Warn().Err(err).Msg("Admin server shutdown incomplete")
			}
		}()
	}

	if cfg.Config.Prometheus.Enabled {
		collector := telemetry.NewMetricsCollector(
			sessionSource,
			stats,
			time.Duration(cfg.Config.Prometheus.CollectIntervalSeconds)*time.Second,
		)
		collector.Start()
		defer collector.Stop()
	}

	log.Info().
		Str("backend", string(cfg.Config.Backend.Protocol)).
		Str("database_alias", engine.Alias()).
		Bool("mysql", cfg.Config.MySQL.Enabled).
		Int("mysql_port", cfg.Config.MySQL.Port).
		Bool("admin", cfg.Config.Admin.Enabled).
		Int("admin_port", cfg.Config.Admin.Port).
		Msg("infobridge started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}

// newBackendClient builds the configured backend transport and its cleanup
func newBackendClient() (backend.Client, func(), error) {
	timeout := time.Duration(cfg.Config.Backend.TimeoutMS) * time.Millisecond

	switch cfg.Config.Backend.Protocol {
	case cfg.BackendMySQL:
		c, err := backend.NewMySQLClient(backend.MySQLConfig{
			DSN:      cfg.Config.Backend.DSN,
			PoolSize: cfg.Config.Backend.PoolSize,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Using MySQL protocol backend")
		return c, func() { c.Close() }, nil
	default:
		c, err := backend.NewHTTPClient(backend.HTTPConfig{
			Endpoint:    cfg.Config.Backend.URL,
			Path:        cfg.Config.Backend.Path,
			BearerToken: cfg.Config.Backend.BearerToken,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("url", cfg.Config.Backend.URL).Msg("Using HTTP backend")
		return c, func() {}, nil
	}
}
