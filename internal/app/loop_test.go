package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcarmo/guerite/internal/adapters/out/dockerfake"
	"github.com/rcarmo/guerite/internal/adapters/out/eventbus"
	"github.com/rcarmo/guerite/internal/boundaries/in"
	"github.com/rcarmo/guerite/internal/config"
	"github.com/rcarmo/guerite/internal/depgraph"
	"github.com/rcarmo/guerite/internal/domain"
	"github.com/rcarmo/guerite/internal/engine"
	"github.com/rcarmo/guerite/internal/inventory"
	"github.com/rcarmo/guerite/internal/notify"
	"github.com/rcarmo/guerite/internal/scheduler"
	"github.com/rcarmo/guerite/internal/statestore"
)

func newTestServices(t *testing.T, fake *dockerfake.Fake) *services {
	t.Helper()
	log := zerowrap.Default()

	cfg := &config.Config{
		StateFile:          filepath.Join(t.TempDir(), "state.json"),
		ActionCooldown:     time.Second,
		StopTimeout:        time.Second,
		HealthCheckTimeout: time.Second,
		HealthCheckBackoff: time.Second,
		RestartRetryLimit:  3,
		RollbackGrace:      time.Hour,
		Timezone:           time.UTC,
	}

	bus := eventbus.NewInMemory(16, log)
	store := statestore.New(cfg.StateFile, log)
	notifier := notify.New(notify.Config{}, log)

	svc := &services{
		cfg:       cfg,
		log:       log,
		client:    fake,
		eventBus:  bus,
		store:     store,
		inventory: inventory.New(fake, inventory.Config{}, log),
		planner:   depgraph.New(log),
		scheduler: scheduler.New(scheduler.Config{Location: time.UTC}, log),
		engine:    engine.New(fake, bus, engine.Config{RestartRetryLimit: 3}, log),
		notifier:  notifier,
	}
	svc.loop = NewLoop(svc, log)
	return svc
}

func TestLoop_RunOnce_TransitionsToIdleAfterFirstPass(t *testing.T) {
	fake := dockerfake.New()
	fake.Seed(domain.MonitoredContainer{
		Name:  "web",
		ID:    "c1",
		State: domain.StateRunning,
		Crons: domain.CronExpressions{Restart: "* * * * *"},
		Spec:  domain.CreateSpec{Image: "nginx:latest"},
	})

	svc := newTestServices(t, fake)
	assert.Equal(t, in.LoopNotReady, svc.loop.State())

	svc.loop.RunOnce(context.Background())

	assert.Equal(t, in.LoopIdle, svc.loop.State())
}

func TestLoop_TriggerCycle_Coalesces(t *testing.T) {
	fake := dockerfake.New()
	svc := newTestServices(t, fake)

	svc.loop.TriggerCycle()
	svc.loop.TriggerCycle()

	select {
	case <-svc.loop.trigger:
	default:
		t.Fatal("expected a pending trigger")
	}
	select {
	case <-svc.loop.trigger:
		t.Fatal("expected the second trigger to coalesce with the first")
	default:
	}
}

func TestLoop_RunOnce_PersistsBackoffState(t *testing.T) {
	fake := dockerfake.New()
	fake.Seed(domain.MonitoredContainer{
		Name:  "api",
		ID:    "c2",
		State: domain.StateRunning,
		Crons: domain.CronExpressions{Update: "* * * * *"},
		Spec:  domain.CreateSpec{Image: "api:latest"},
	})
	fake.FailPull = "api:latest"

	svc := newTestServices(t, fake)
	// A container's crons never fire on the very first cycle (there is no
	// prior tick to measure a firing window against), so back-date prevTick
	// by hand to simulate a daemon that has already been running a minute.
	svc.loop.prevTick = time.Now().Add(-2 * time.Minute)
	svc.loop.RunOnce(context.Background())

	loaded := svc.store.Load()
	rec, ok := loaded["api"]
	require.True(t, ok, "expected a persisted backoff record for api")
	assert.Equal(t, 1, rec.ConsecutiveFailures)
}

func TestLoop_RunOnce_FirstCycleDoesNotFireCrons(t *testing.T) {
	fake := dockerfake.New()
	fake.Seed(domain.MonitoredContainer{
		Name:  "api",
		ID:    "c2",
		State: domain.StateRunning,
		Crons: domain.CronExpressions{Update: "* * * * *"},
		Spec:  domain.CreateSpec{Image: "api:latest"},
	})
	fake.FailPull = "api:latest"

	svc := newTestServices(t, fake)
	svc.loop.RunOnce(context.Background())

	loaded := svc.store.Load()
	_, ok := loaded["api"]
	assert.False(t, ok, "no action should have been dispatched on the first cycle")
}

func TestLoop_RunOnce_DependentSkipsWhenDependencyRollsBack(t *testing.T) {
	fake := dockerfake.New()
	fake.Seed(domain.MonitoredContainer{
		Name:    "db",
		ID:      "c-db",
		Project: "stack",
		State:   domain.StateRunning,
		Crons:   domain.CronExpressions{Recreate: "* * * * *"},
		Spec:    domain.CreateSpec{Image: "db:latest"},
	})
	fake.Seed(domain.MonitoredContainer{
		Name:      "app",
		ID:        "c-app",
		Project:   "stack",
		State:     domain.StateRunning,
		Crons:     domain.CronExpressions{Recreate: "* * * * *"},
		Spec:      domain.CreateSpec{Image: "app:latest"},
		DependsOn: []string{"db"},
	})
	fake.FailCreate = true

	svc := newTestServices(t, fake)
	svc.loop.prevTick = time.Now().Add(-2 * time.Minute)
	svc.loop.RunOnce(context.Background())

	loaded := svc.store.Load()
	dbRec, ok := loaded["db"]
	require.True(t, ok, "expected a persisted backoff record for db")
	assert.Equal(t, 1, dbRec.ConsecutiveFailures, "db's swap should have failed and incremented its failure streak")

	appRec := loaded["app"]
	assert.Zero(t, appRec.ConsecutiveFailures, "app should never have been dispatched while its dependency db rolled back")
	assert.True(t, appRec.LastActionTS.IsZero(), "app should never have run an action while its dependency db rolled back")
}

func TestLoop_StartAndStop(t *testing.T) {
	fake := dockerfake.New()
	svc := newTestServices(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.loop.Start(ctx)
	svc.loop.Stop()

	assert.Equal(t, in.LoopIdle, svc.loop.State())
}
