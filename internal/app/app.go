package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/wekker/wekker/internal/config"
	"github.com/wekker/wekker/internal/database"
)

// Application wires configuration, database, router, the reconciliation loop,
// and server lifecycle.
type Application struct {
	cfg    config.Application
	router *mux.Router
	srv    *http.Server
	cron   *cron.Cron
	deps   *Dependencies
}

// NewApplication constructs the full application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	deps, err := BuildDependencies(context.Background(), db, cfg)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	SetupMiddleware(r, deps, cfg)
	RegisterRoutes(r, deps, cfg)

	// Periodic fallback trigger: guarantees eventual re-convergence even if
	// live change signals are missed.
	c := cron.New()
	_, err = c.AddFunc(fmt.Sprintf("@every %dm", cfg.Sync.IntervalMinutes), func() {
		deps.Coalescer.Notify("periodic")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register periodic trigger: %w", err)
	}

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Listen,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, router: r, srv: srv, cron: c, deps: deps}, nil
}

// Run starts the reconciliation loop, the periodic trigger, and the HTTP
// server, and blocks until the process receives SIGINT/SIGTERM or the server
// fails.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.deps.Coalescer.Start(ctx)
	a.deps.Coalescer.Notify("startup")
	a.cron.Start()

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		serverErr <- a.srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.shutdown()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
	a.shutdown()
	return nil
}

func (a *Application) shutdown() {
	a.cron.Stop()
	a.deps.Coalescer.Stop()
}
