package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/google/uuid"

	"github.com/rcarmo/guerite/internal/boundaries/in"
	"github.com/rcarmo/guerite/internal/cron"
	"github.com/rcarmo/guerite/internal/depgraph"
	"github.com/rcarmo/guerite/internal/domain"
	"github.com/rcarmo/guerite/internal/engine"
	"github.com/rcarmo/guerite/internal/inventory"
)

// Loop is the control loop driving one cycle per tick: inventory, plan,
// dispatch, persist. Its ticker-plus-running-guard shape follows the
// teacher's usecase/cron.Scheduler, generalized from "one named job" to
// "one named container action".
type Loop struct {
	svc *services
	log zerowrap.Logger

	running atomic.Bool
	state   atomic.Value // in.LoopState

	trigger chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	backoffs map[string]domain.BackoffRecord
	prevTick time.Time

	pruneSched *cron.Schedule
	lastPrune  time.Time

	prevMonitored int64
}

// NewLoop creates a Loop. It does not start ticking until Start is called.
func NewLoop(svc *services, log zerowrap.Logger) *Loop {
	l := &Loop{
		svc:      svc,
		log:      log,
		trigger:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		backoffs: svc.store.Load(),
	}
	l.state.Store(in.LoopNotReady)

	if svc.cfg.PruneCron != "" {
		sched, err := cron.Parse(svc.cfg.PruneCron, svc.cfg.Timezone)
		if err != nil {
			log.Warn().Err(err).Str("cron_expr", svc.cfg.PruneCron).Msg("invalid prune cron expression, pruning disabled")
		} else {
			l.pruneSched = sched
		}
	}

	return l
}

// TriggerCycle implements in.Loop. A pending trigger coalesces with any
// cycle already queued.
func (l *Loop) TriggerCycle() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// State implements in.Loop.
func (l *Loop) State() in.LoopState {
	return l.state.Load().(in.LoopState)
}

// Start spawns the ticking goroutine. One tick per minute, matching the
// teacher's cron scheduler granularity; TriggerCycle can run a cycle
// out of band at any point in between.
func (l *Loop) Start(ctx context.Context) {
	l.runCycle(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-ticker.C:
				l.runCycle(ctx)
			case <-l.trigger:
				l.runCycle(ctx)
			}
		}
	}()
}

// RunOnce executes exactly one cycle and returns, for GUERITE_RUN_ONCE.
func (l *Loop) RunOnce(ctx context.Context) {
	l.runCycle(ctx)
}

// Stop signals the ticking goroutine to exit and waits for it.
func (l *Loop) Stop() {
	select {
	case <-l.stopCh:
		return
	default:
		close(l.stopCh)
	}
	l.wg.Wait()
}

// runCycle guards against overlapping cycles the same way the teacher's
// executeEntry guards a single cron job: CompareAndSwap in, defer out.
func (l *Loop) runCycle(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		l.log.Debug().Str(zerowrap.FieldLayer, "app").Msg("cycle already running, skipping")
		return
	}
	defer l.running.Store(false)

	firstPass := l.State() == in.LoopNotReady
	l.state.Store(in.LoopRunning)
	settled := in.LoopIdle
	defer func() { l.state.Store(settled) }()

	start := time.Now()
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "app",
		zerowrap.FieldUseCase: "ControlLoop",
	})
	log := zerowrap.FromCtx(ctx)

	snapshot, err := l.svc.inventory.Collect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("inventory collection failed, skipping cycle")
		if firstPass {
			settled = in.LoopNotReady
		}
		return
	}

	var all []domain.MonitoredContainer
	for _, group := range snapshot.Groups {
		all = append(all, group.Containers...)
	}

	l.mu.Lock()
	prev := l.prevTick
	if prev.IsZero() {
		prev = start
	}
	backoffs := l.backoffs
	l.mu.Unlock()

	decisions := l.svc.scheduler.Plan(start, prev, all, backoffs)
	decisionByName := make(map[string]domain.ActionKind, len(decisions))
	for _, d := range decisions {
		decisionByName[d.Container.Name] = d.Action
	}

	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	results := make(map[string]domain.BackoffRecord, len(decisions))

	// Cross-project ordering is undefined (§5), so each project group
	// dispatches concurrently, but within a group nodes run in the Dependency
	// Planner's topological order, one at a time, so a dependent never begins
	// before its dependency's outcome for this cycle is known.
	for _, group := range snapshot.Groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.dispatchGroup(ctx, group, decisionByName, backoffs, results, &resultsMu)
		}()
	}
	wg.Wait()

	l.mu.Lock()
	for name, rec := range results {
		l.backoffs[name] = rec
	}
	l.prevTick = start
	l.mu.Unlock()

	if err := l.svc.store.Commit(l.backoffs); err != nil {
		log.Warn().Err(err).Msg("failed to persist backoff state")
	}

	l.svc.engine.SweepLocks(10 * time.Minute)
	l.maybePrune(ctx, start)

	if l.svc.metrics != nil {
		l.svc.metrics.CyclesTotal.Add(ctx, 1)
		l.svc.metrics.CycleDuration.Record(ctx, time.Since(start).Seconds())
		delta := int64(len(all)) - l.prevMonitored
		if delta != 0 {
			l.svc.metrics.MonitoredContainers.Add(ctx, delta)
			l.prevMonitored = int64(len(all))
		}
	}

	if firstPass {
		log.Info().
			Int("monitored_containers", len(all)).
			Int("projects", len(snapshot.Groups)).
			Msg("initial inventory pass complete, schedule active")

		if err := l.svc.eventBus.Publish(domain.Event{
			ID:        uuid.NewString(),
			Type:      domain.EventStartup,
			Category:  domain.CategoryStartup,
			Timestamp: start,
			Title:     "guerite started",
			Message:   "initial inventory pass complete, schedule active",
		}); err != nil {
			log.Warn().Err(err).Msg("failed to publish startup event")
		}

		for _, c := range all {
			l.logSchedulePreview(ctx, c, start)
		}
	}

	if !snapshot.Detect.Empty() {
		log.Info().Strs("containers", snapshot.Detect.Names).Msg("detected new monitored containers")
	}
}

// dispatchGroup walks one project's containers in the Dependency Planner's
// topological order, dispatching each in turn so a dependent is re-gated
// against the live outcome of its dependencies this cycle rather than only
// the pre-cycle snapshot depgraph.Plan computed Ready/Gated from (§5
// Ordering, testable property 4). A dependency that rolls back or fails
// this cycle skips every dependent still waiting behind it with reason
// "dependency_unhealthy"; a statically ungated dependency proceeds as
// normal.
func (l *Loop) dispatchGroup(ctx context.Context, group inventory.ProjectGroup, decisionByName map[string]domain.ActionKind, backoffs map[string]domain.BackoffRecord, results map[string]domain.BackoffRecord, resultsMu *sync.Mutex) {
	nodes := l.svc.planner.Plan(group.Containers)
	nodeByName := make(map[string]depgraph.Node, len(nodes))
	for _, n := range nodes {
		nodeByName[n.Container.Name] = n
	}
	outcomeState := make(map[string]domain.ActionState, len(nodes))

	for _, n := range nodes {
		action, ok := decisionByName[n.Container.Name]
		if !ok {
			continue
		}

		gateReason := ""
		for _, dep := range n.Dependencies {
			switch st, dispatched := outcomeState[dep]; {
			case dispatched && st == domain.StateCommitted:
				// dependency succeeded this cycle, so its live state
				// supersedes whatever the pre-cycle snapshot said.
			case dispatched && st != domain.StateIdle:
				// RolledBack or Failed this cycle.
				gateReason = "dependency_unhealthy"
			default:
				// Not dispatched this cycle, or dispatched but left Idle
				// (skipped for its own reasons) — fall back to this
				// dependency's pre-cycle snapshot: it must be a known,
				// running container with absent or healthy health.
				dn, known := nodeByName[dep]
				if !known || !dn.Container.Running() ||
					(dn.Container.Health != domain.HealthNone && dn.Container.Health != domain.HealthHealthy) {
					gateReason = "dependency_gated"
				}
			}
			if gateReason != "" {
				break
			}
		}

		rec := backoffs[n.Container.Name]
		outcome := l.svc.engine.Dispatch(ctx, n.Container, action, gateReason, rec)
		l.recordOutcome(outcome)
		outcomeState[n.Container.Name] = outcome.State

		resultsMu.Lock()
		results[outcome.Container] = outcome.Backoff
		resultsMu.Unlock()
	}
}

// logSchedulePreview logs one line per monitored container listing the next
// fire time for each of its configured action labels, reproducing the
// original monitor's startup schedule_summary/next_wakeup output (SPEC_FULL
// §2.3).
func (l *Loop) logSchedulePreview(ctx context.Context, c domain.MonitoredContainer, now time.Time) {
	log := zerowrap.FromCtx(ctx)

	exprs := map[domain.ActionKind]string{
		domain.ActionUpdate:        c.Crons.Update,
		domain.ActionRestart:       c.Crons.Restart,
		domain.ActionRecreate:      c.Crons.Recreate,
		domain.ActionHealthRestart: c.Crons.HealthCheck,
	}

	var fires []string
	for _, kv := range domain.DefaultLabelSet().ActionLabelKeys() {
		expr := exprs[kv.Kind]
		if expr == "" {
			continue
		}
		sched, err := cron.Parse(expr, l.svc.cfg.Timezone)
		if err != nil {
			continue
		}
		next := sched.Next(now)
		if next.IsZero() {
			continue
		}
		fires = append(fires, string(kv.Kind)+"="+next.Format(time.RFC3339))
	}

	if len(fires) == 0 {
		return
	}
	log.Info().Str("container", c.Name).Strs("next_fires", fires).Msg("container schedule active")
}

func (l *Loop) recordOutcome(o engine.Outcome) {
	if l.svc.metrics == nil {
		return
	}
	ctx := context.Background()
	switch o.State {
	case domain.StateCommitted:
		l.svc.metrics.ActionSuccessTotal.Add(ctx, 1)
	case domain.StateFailed:
		l.svc.metrics.ActionFailureTotal.Add(ctx, 1)
	case domain.StateRolledBack:
		l.svc.metrics.RollbackTotal.Add(ctx, 1)
	}
}

// maybePrune runs the Pruning component's cron action when GUERITE_PRUNE_CRON
// fires between the previous and current tick (§4.8).
func (l *Loop) maybePrune(ctx context.Context, now time.Time) {
	if l.pruneSched == nil {
		return
	}
	prev := l.lastPrune
	if prev.IsZero() {
		prev = now
	}
	if !l.pruneSched.FiresBetween(prev, now) {
		return
	}
	l.lastPrune = now
	l.svc.engine.Prune(ctx, engine.PruneConfig{Grace: l.svc.cfg.RollbackGrace})
}
