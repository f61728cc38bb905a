package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"koroflow/internal/audit"
	"koroflow/internal/consent/adapters"
	consenthandler "koroflow/internal/consent/handler"
	consentmetrics "koroflow/internal/consent/metrics"
	"koroflow/internal/consent/service"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
	"koroflow/internal/database/sqlstore"
	"koroflow/internal/platform/config"
	"koroflow/internal/platform/httpserver"
	"koroflow/internal/platform/logger"
	"koroflow/internal/schema"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the workflow service.
func main() {
	log := logger.New()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	resolver, err := schema.NewResolver(schema.Config{})
	if err != nil {
		log.Fatalf("schema: %v", err)
	}

	dialect, err := sqlstore.NewDialect(cfg.Driver)
	if err != nil {
		log.Fatalf("dialect: %v", err)
	}

	db, err := sql.Open(sqlDriver(cfg.Driver), cfg.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("ping database: %v", err)
	}
	cancel()

	if err := sqlstore.Migrate(ctx, db, dialect, resolver); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	adapter := sqlstore.New(db, dialect, resolver, database.IDConfig{})
	runner := sqlstore.NewRunner(db, adapter)
	pipeline := hooks.New(adapter, log)
	set := adapters.New(pipeline)
	m := consentmetrics.New()

	var publisher audit.Publisher = audit.NoopPublisher{}
	if cfg.KafkaBroker != "" {
		kafka, err := audit.NewKafkaPublisher(cfg.KafkaBroker, cfg.AuditTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		defer kafka.Close()
		publisher = kafka
	}
	fanout := audit.NewWorker(publisher, 256, log)

	workflow := service.New(set, runner, []byte(cfg.Secret), m, fanout, log)
	handler := consenthandler.New(workflow, log)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api", handler.Register)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := fanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("starting koroflow on %s (driver=%s)", cfg.Addr, cfg.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

// sqlDriver maps the configured engine to a registered database/sql driver.
// MySQL and SQL Server dialects are supported by the store; their drivers are
// not bundled, so sql.Open reports them as unknown.
func sqlDriver(driver string) string {
	if driver == "postgres" {
		return "pgx"
	}
	return driver
}
