package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"StockPulse/internal/handler/ws"
	"StockPulse/internal/middleware"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/queue"
	"StockPulse/pkg/scheduler"
)

// Closer is an infrastructure resource released on shutdown, in the order
// it was handed to the App.
type Closer struct {
	Name string
	io.Closer
}

// Components are the long-running parts the App drives. Everything except
// HTTP may be nil when disabled by config.
type Components struct {
	HTTP      *xhttp.Server
	WS        *ws.Handler
	Consumer  *pkgkafka.Consumer
	Ingest    pkgkafka.MessageHandler
	Hooks     []pkgkafka.ConsumerHook
	Pipeline  *middleware.UpdatePipeline
	Scheduler *scheduler.Scheduler
	Queue     *queue.Queue
	Collector *applogger.LogCollector
	Closers   []Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	c   Components
}

func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, c: c}
}

// Run starts every component and blocks until SIGINT/SIGTERM or a fatal
// HTTP error, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with the caller owning cancellation.
func (a *App) RunContext(ctx context.Context) error {
	if a.c.HTTP == nil {
		return errors.New("app: http server not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.c.Queue != nil {
		if err := a.c.Queue.Start(); err != nil {
			return fmt.Errorf("start summary queue: %w", err)
		}
		a.l.Info("summary queue started", applogger.Int("workers", a.cfg.Summarizer.Queue.Workers))
	}

	if a.c.Pipeline != nil {
		a.c.Pipeline.Start()
	}

	if a.c.Consumer != nil && a.c.Ingest != nil {
		a.c.Consumer.RegisterHandler(a.c.Ingest)
		a.c.Consumer.SetHook(a.consumerHook())
		if err := a.c.Consumer.Start(runCtx); err != nil {
			a.shutdown()
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}

	if a.c.Scheduler != nil {
		a.c.Scheduler.Start()
		a.l.Info("scheduler started", applogger.String("refresh", a.cfg.Scheduler.RefreshCron))
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.c.HTTP.Errors():
		a.l.Error("http server failed", applogger.Error(err))
		runErr = err
	}
	a.shutdown()
	return runErr
}

// consumerHook puts trace extraction ahead of the configured hooks.
func (a *App) consumerHook() pkgkafka.ConsumerHook {
	hooks := append([]pkgkafka.ConsumerHook{pkgkafka.TraceHook()}, a.c.Hooks...)
	return pkgkafka.NewHookChain(hooks...)
}

// shutdown stops producers of work before the resources they write to.
func (a *App) shutdown() {
	a.l.Info("shutting down...")
	timeout := a.cfg.Server.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.c.WS != nil {
		a.c.WS.Shutdown()
	}
	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.c.Scheduler != nil {
		if err := a.c.Scheduler.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			a.l.Warn("summary queue stop error", applogger.Error(err))
		}
	}
	if a.c.Collector != nil {
		a.c.Collector.Close()
	}

	for _, c := range a.c.Closers {
		if c.Closer == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
