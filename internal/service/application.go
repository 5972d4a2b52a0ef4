package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"crosspost-connect/internal/config"
	deliveryhttp "crosspost-connect/internal/delivery/http"
	"crosspost-connect/internal/infrastructure/database"
	"crosspost-connect/internal/infrastructure/logger"
	"crosspost-connect/internal/infrastructure/oauth2"
	"crosspost-connect/internal/infrastructure/redis"
	"crosspost-connect/internal/infrastructure/repository"
	"crosspost-connect/internal/server"
	"crosspost-connect/internal/usecase"
)

// Options composes the fx graph for a loaded configuration. The redis
// client is only constructed when it backs the OAuth state store.
func Options(cfg *config.Config) fx.Option {
	infra := []fx.Option{
		logger.Module,
		database.Module,
		oauth2.Module,
		repository.Module,
		repository.StateModule(cfg.OAuth.StateBackend),
	}
	if cfg.OAuth.StateBackend == config.StateBackendRedis {
		infra = append(infra, redis.Module)
	}

	return fx.Options(
		// Configuration
		fx.Supply(cfg),

		// Infrastructure
		fx.Options(infra...),

		// Business Logic
		usecase.Module,

		// Delivery
		deliveryhttp.Module,

		// Server
		server.Module,
	)
}

// Application wraps the fx.App for service management
type Application struct {
	app      *fx.App
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
	err      error
}

// NewApplication creates a new Application instance
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:      ctx,
		cancel:   cancel,
		doneChan: make(chan struct{}),
	}
}

// Run starts the application
func (a *Application) Run() {
	defer close(a.doneChan)

	cfg, err := config.NewConfig()
	if err != nil {
		a.err = fmt.Errorf("failed to load config: %w", err)
		fmt.Fprintln(os.Stderr, a.err)
		return
	}

	a.app = fx.New(
		// Provide context
		fx.Provide(func() context.Context { return a.ctx }),

		Options(cfg),
	)

	// Start the application
	if err := a.app.Start(a.ctx); err != nil {
		a.err = fmt.Errorf("failed to start: %w", err)
		fmt.Fprintln(os.Stderr, a.err)
		return
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.Shutdown()
	case <-a.ctx.Done():
		// Context was cancelled
	}
}

// Shutdown gracefully shuts down the application
func (a *Application) Shutdown() {
	a.cancel()
	if a.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
		defer cancel()
		a.app.Stop(ctx)
	}
}

// Wait blocks until the application exits
func (a *Application) Wait() {
	<-a.doneChan
}

// Done is closed when Run returns
func (a *Application) Done() <-chan struct{} {
	return a.doneChan
}

// Err reports why Run returned early. Only valid after Done is closed.
func (a *Application) Err() error {
	return a.err
}
