// Package app wires every adapter and use case into a running Guerite
// process, the way bnema-gordon/internal/app/core.go's RunCore/
// createCoreServices assembles gordon-core: load config, build the
// logger, construct the output adapters, then the use cases that consume
// them, then the driving HTTP surface, then block until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/adapters/out/docker"
	"github.com/rcarmo/guerite/internal/adapters/out/eventbus"
	"github.com/rcarmo/guerite/internal/adapters/out/telemetry"
	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/config"
	"github.com/rcarmo/guerite/internal/depgraph"
	"github.com/rcarmo/guerite/internal/engine"
	"github.com/rcarmo/guerite/internal/httpapi"
	"github.com/rcarmo/guerite/internal/inventory"
	"github.com/rcarmo/guerite/internal/notify"
	"github.com/rcarmo/guerite/internal/scheduler"
	"github.com/rcarmo/guerite/internal/statestore"
)

const serviceName = "guerite"

// services holds every wired component for one running process, mirroring
// the teacher's coreServices grouping struct.
type services struct {
	cfg       *config.Config
	log       zerowrap.Logger
	client    out.EngineClient
	eventBus  *eventbus.InMemory
	store     *statestore.Store
	metrics   *telemetry.Metrics
	provider  *telemetry.Provider
	inventory *inventory.Inventory
	planner   *depgraph.Planner
	scheduler *scheduler.Scheduler
	engine    *engine.Engine
	notifier  *notify.Dispatcher
	loop      *Loop
}

// Run loads configuration, wires the process, and blocks until ctx is
// canceled. When cfg.RunOnce is set (GUERITE_RUN_ONCE) it executes a single
// cycle and returns instead of starting the ticking loop and HTTP server.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := zerowrap.New(zerowrap.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx = zerowrap.WithCtx(ctx, log)

	log.Info().
		Str(zerowrap.FieldLayer, "app").
		Str(zerowrap.FieldComponent, "guerite").
		Msg("starting guerite")

	svc, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}

	if err := svc.eventBus.Start(); err != nil {
		return log.WrapErr(err, "failed to start event bus")
	}
	defer func() { _ = svc.eventBus.Stop() }()

	svc.notifier.Start()
	defer svc.notifier.Stop()

	if cfg.RunOnce {
		svc.loop.RunOnce(ctx)
		return nil
	}

	svc.loop.Start(ctx)
	defer svc.loop.Stop()

	if !cfg.HTTPAPIEnabled {
		<-ctx.Done()
		return nil
	}

	handlerCfg := httpapi.Config{Token: cfg.HTTPAPIToken, MetricsEnabled: cfg.HTTPAPIMetrics}
	handler := httpapi.NewHandler(svc.loop, svc.provider.Handler(), handlerCfg, log)
	server := httpapi.NewServer(handler, httpapi.ServerConfig{Host: cfg.HTTPAPIHost, Port: cfg.HTTPAPIPort}, log)

	return serve(ctx, server, log)
}

// build assembles every adapter and use case from cfg. Split out of Run so
// tests can construct a services value against fakes without going through
// config.Load or a live Docker daemon.
func build(ctx context.Context, cfg *config.Config, log zerowrap.Logger) (*services, error) {
	runtime, err := docker.NewRuntime()
	if err != nil {
		return nil, log.WrapErr(err, "failed to create docker runtime")
	}
	runtime.SetLabelSet(cfg.Labels)

	bus := eventbus.NewInMemory(256, log)

	provider, _, err := telemetry.NewProvider(ctx, telemetry.Config{Enabled: cfg.HTTPAPIMetrics}, serviceName, "dev")
	if err != nil {
		return nil, log.WrapErr(err, "failed to create telemetry provider")
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, log.WrapErr(err, "failed to create metrics")
	}
	bus.SetMetrics(metrics)

	store := statestore.New(cfg.StateFile, log)

	transports := buildTransports(cfg)
	notifier := notify.New(notify.Config{Categories: cfg.Notifications}, log, transports...)
	if err := bus.Subscribe(notifier); err != nil {
		return nil, log.WrapErr(err, "failed to subscribe notification dispatcher")
	}

	inv := inventory.New(runtime, inventory.Config{
		Include: cfg.IncludeContainers,
		Exclude: cfg.ExcludeContainers,
		Scope:   cfg.Scope,
	}, log)

	planner := depgraph.New(log)

	sched := scheduler.New(scheduler.Config{
		StartGrace:            cfg.HealthCheckTimeout,
		HealthRestartCooldown: cfg.HealthCheckBackoff,
		RollingRestart:        cfg.RollingRestart,
		Location:              cfg.Timezone,
	}, log)

	eng := engine.New(runtime, bus, engine.Config{
		Cooldown:           cfg.ActionCooldown,
		StopTimeout:        cfg.StopTimeout,
		HealthTimeout:      cfg.HealthCheckTimeout,
		HookTimeoutDefault: cfg.HookTimeout,
		RestartRetryLimit:  cfg.RestartRetryLimit,
		DryRun:             cfg.DryRun,
		GlobalNoPull:       cfg.NoPull,
		GlobalNoRestart:    cfg.NoRestart,
	}, log)

	svc := &services{
		cfg:       cfg,
		log:       log,
		client:    runtime,
		eventBus:  bus,
		store:     store,
		metrics:   metrics,
		provider:  provider,
		inventory: inv,
		planner:   planner,
		scheduler: sched,
		engine:    eng,
		notifier:  notifier,
	}
	svc.loop = NewLoop(svc, log)

	return svc, nil
}

func buildTransports(cfg *config.Config) []notify.Transport {
	var transports []notify.Transport
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		transports = append(transports, &notify.PushoverTransport{
			Token:  cfg.PushoverToken,
			User:   cfg.PushoverUser,
			APIURL: cfg.PushoverAPI,
		})
	}
	if cfg.WebhookURL != "" {
		transports = append(transports, &notify.WebhookTransport{URL: cfg.WebhookURL})
	}
	return transports
}

func serve(ctx context.Context, server interface {
	ListenAndServe() error
	Shutdown(context.Context) error
}, log zerowrap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Str(zerowrap.FieldLayer, "app").Msg("context canceled, shutting down control surface")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("control surface server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("control surface shutdown error")
	}
	return nil
}
