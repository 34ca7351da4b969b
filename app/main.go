package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/app/ai"
	"taskboard/app/config"
	"taskboard/app/controllers"
	"taskboard/app/jobs"
	"taskboard/app/logger"
	"taskboard/app/routes"
	"taskboard/app/services"
	"taskboard/app/store/memory"
	"taskboard/app/store/neo4jstore"
	"taskboard/app/store/pgstore"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, lock, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("failed to open task store")
	}
	defer closeStore()

	// AI breakdown stays off without a key.
	var provider ai.Provider
	if cfg.AIEnabled() {
		provider = ai.NewOpenAIProvider(cfg, log)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set; breakdown suggestions disabled")
	}

	// Initialize the service layer
	taskService := services.NewTaskService(store, provider, log, cfg.MaxTaskDepth)

	// Initialize the controller layer
	taskController := controllers.NewTaskController(taskService, log)

	router := mux.NewRouter()
	routes.RegisterRoutes(router, taskController, log)

	// Cron
	cr, err := jobs.NewCron(cfg, log, taskService, lock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule audit")
	}
	cr.Start()
	defer cr.Stop()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("server is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

// openStore returns the configured task store, an optional cross-replica lock
// for the audit job, and a close func.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (services.TaskStore, jobs.Locker, func(), error) {
	switch cfg.Store {
	case config.StoreNeo4j:
		driver, err := config.InitNeo4j(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		closeDriver := func() { _ = driver.Close(context.Background()) }
		if err := driver.VerifyConnectivity(ctx); err != nil {
			closeDriver()
			return nil, nil, nil, fmt.Errorf("neo4j connectivity: %w", err)
		}
		st := neo4jstore.New(driver)
		if err := st.EnsureSchema(ctx); err != nil {
			closeDriver()
			return nil, nil, nil, err
		}
		log.Info().Str("uri", cfg.Neo4jURI).Msg("connected to neo4j")
		return st, nil, closeDriver, nil
	case config.StorePostgres:
		st, err := pgstore.Open(ctx, cfg.DBDSN, log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		return st, st, st.Close, nil
	default:
		log.Warn().Msg("using in-memory store; tasks are lost on restart")
		return memory.New(), nil, func() {}, nil
	}
}
