package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/config"
	db "github.com/timothy-holmes/ht-tracker/internal/db"
	httpapi "github.com/timothy-holmes/ht-tracker/internal/httpapi"
	"github.com/timothy-holmes/ht-tracker/internal/metrics"
	temperature "github.com/timothy-holmes/ht-tracker/internal/modules/temperature"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLife,
		"sqliteLogQueries", cfg.SQLiteLogQueries,
		"updateInterval", cfg.UpdateInterval.String(),
		"fetchURL", cfg.FetchURL,
		"fetchTimeout", cfg.FetchTimeout.String(),
		"headersFile", cfg.HeadersFile,
		"timezone", cfg.Location.String(),
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)
	dbConn, err := db.Open(cfg, logger.With("component", "db"))
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	feature, err := temperature.NewFeature(cfg, dbConn, logger)
	if err != nil {
		return err
	}

	if err := feature.Repository.EnsureSchema(ctx); err != nil {
		return err
	}

	var ok int
	err = dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok)
	if err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	logger.Info("database connection successful")

	metrics.Init()
	mux := httpapi.NewMux(dbConn, feature, logger.With("component", "http"))
	feature.RegisterRoutes(mux)

	if feature.Publisher != nil {
		// Short timeout so a missing broker does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = feature.Publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	if err := feature.Scheduler.Start(ctx); err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		// The listener is gone; background work still has to be stopped.
		if shutdownErr := shutdown(feature, srv, logger); shutdownErr != nil {
			logger.Error("shutdown", "error", shutdownErr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	if err := shutdown(feature, srv, logger); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// shutdown stops the scheduler, disconnects MQTT and drains the HTTP server
// within 10s.
func shutdown(feature *temperature.Feature, srv *http.Server, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("scheduler stopping")
	feature.Scheduler.Stop()

	if feature.Publisher != nil {
		logger.Info("mqtt disconnecting")
		feature.Publisher.Disconnect()
	}

	logger.Info("http shutting down")
	return srv.Shutdown(shutdownCtx)
}
