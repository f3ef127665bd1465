package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"

	"github.com/devicepulse/backend/internal/services/aggregate"
	"github.com/devicepulse/backend/internal/services/api"
	"github.com/devicepulse/backend/internal/services/archive"
	"github.com/devicepulse/backend/internal/services/bridge"
	"github.com/devicepulse/backend/internal/services/fanout"
	"github.com/devicepulse/backend/internal/services/ingest"
	"github.com/devicepulse/backend/internal/services/threshold"
	"github.com/devicepulse/backend/internal/storage"
	"github.com/devicepulse/backend/pkg/mqttbus"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Storage ===
	db, err := storage.Open(postgres.Open(cfg.DatabaseDSN))
	if err != nil {
		log.Error("db open failed", "err", err)
		os.Exit(1)
	}
	if err := storage.Migrate(db); err != nil {
		log.Error("db migrate failed", "err", err)
		os.Exit(1)
	}
	devices := storage.NewDeviceStore(db)
	measurements := storage.NewMeasurementStore(db)
	thresholds := storage.NewThresholdStore(db)
	alerts := storage.NewAlertStore(db)

	// === Fanout (initialized once here, torn down with the process) ===
	hub := fanout.NewHub(log)

	// === Optional archive mirror ===
	var arch *archive.Writer
	if cfg.Influx.URL != "" {
		arch, err = archive.NewWriter(cfg.Influx, log)
		if err != nil {
			log.Error("archive init failed", "err", err)
			os.Exit(1)
		}
		defer arch.Close()
	}

	// === Pipeline ===
	resolver := threshold.NewResolver(thresholds)
	orch := ingest.NewOrchestrator(devices, measurements, alerts, resolver, hub, ingest.Options{
		Archive:         archiverOrNil(arch),
		Logger:          log,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpenFor:  cfg.BreakerOpenFor,
	})
	engine := aggregate.NewEngine(measurements)

	// === Optional MQTT bridge ===
	if cfg.MQTT.Host != "" {
		client, err := mqttbus.NewConn(ctx, &cfg.MQTT, log)
		if err != nil {
			log.Error("mqtt connect failed", "err", err)
			os.Exit(1)
		}
		consumer := mqttbus.NewConsumer(client, cfg.BridgeTopic, log)
		go bridge.NewService(consumer, devices, orch, log).Start(ctx)
	}

	// === HTTP ===
	a := api.New(devices, alerts, orch, engine, hub, log)
	health := api.NewHealth(db, arch)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.Router(a, health),
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
}

// archiverOrNil keeps the orchestrator's nil check honest: a nil *Writer
// wrapped in a non-nil interface would defeat it.
func archiverOrNil(w *archive.Writer) ingest.Archiver {
	if w == nil {
		return nil
	}
	return w
}
