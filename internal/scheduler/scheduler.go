// Package scheduler implements the Scheduler component (§4.5): for each
// monitored container it asks the Clock & Cron Evaluator which of the four
// action-label expressions fired since the last tick, resolves them to at
// most one domain.ActionKind per the precedence rule, and applies the
// monitor-only/rolling-restart modifiers. It does not touch the engine;
// Plan is pure given its inputs, the same way the teacher's backup
// scheduler separated "what's due" from "run it".
package scheduler

import (
	"sort"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/cron"
	"github.com/rcarmo/guerite/internal/domain"
)

// Decision pairs a monitored container with the single action to dispatch
// this cycle. A zero-value Action means the container was considered but
// nothing fired for it, and Plan omits it from the result entirely.
type Decision struct {
	Container domain.MonitoredContainer
	Action    domain.ActionKind
}

// Config controls the cross-cutting timing rules §4.5/§4.7 layer on top of
// raw cron resolution.
type Config struct {
	// StartGrace is how long a container must have been running before a
	// HealthRestart may be dispatched for it (§4.7).
	StartGrace time.Duration
	// HealthRestartCooldown is the minimum spacing between HealthRestarts
	// for the same container (GUERITE_HEALTH_CHECK_BACKOFF_SECONDS).
	HealthRestartCooldown time.Duration
	// RollingRestart caps Update/Recreate dispatch to one container per
	// compose project per cycle when true.
	RollingRestart bool
	// Location is the time zone cron expressions are evaluated in
	// (GUERITE_TZ). Defaults to UTC.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Scheduler resolves cron fires into a dispatch plan.
type Scheduler struct {
	cfg Config
	log zerowrap.Logger
}

// New creates a Scheduler with the given timing configuration.
func New(cfg Config, log zerowrap.Logger) *Scheduler {
	return &Scheduler{cfg: cfg.withDefaults(), log: log}
}

// Plan evaluates every container's cron expressions over the half-open
// interval (prev, now] and returns the containers with a resolved action,
// in a stable container-name order.
func (s *Scheduler) Plan(now, prev time.Time, containers []domain.MonitoredContainer, backoffs map[string]domain.BackoffRecord) []Decision {
	decisions := make([]Decision, 0, len(containers))

	for _, c := range containers {
		action, ok := s.resolveAction(now, prev, c, backoffs)
		if !ok {
			continue
		}
		if c.MonitorOnly {
			action = domain.ActionUpdate
		}
		decisions = append(decisions, Decision{Container: c, Action: action})
	}

	sort.Slice(decisions, func(i, j int) bool {
		return decisions[i].Container.Name < decisions[j].Container.Name
	})

	if s.cfg.RollingRestart {
		decisions = s.applyRollingRestartCap(decisions)
	}

	return decisions
}

func (s *Scheduler) resolveAction(now, prev time.Time, c domain.MonitoredContainer, backoffs map[string]domain.BackoffRecord) (domain.ActionKind, bool) {
	var fired []domain.ActionKind
	for _, kv := range domain.DefaultLabelSet().ActionLabelKeys() {
		expr := s.cronExprFor(c.Crons, kv.Kind)
		if expr == "" {
			continue
		}
		sched, err := cron.Parse(expr, s.cfg.Location)
		if err != nil {
			s.log.Warn().
				Str(zerowrap.FieldLayer, "usecase").
				Str("container", c.Name).
				Str("cron_expr", expr).
				Err(err).
				Msg("invalid cron expression, skipping action")
			continue
		}
		if sched.FiresBetween(prev, now) {
			fired = append(fired, kv.Kind)
		}
	}

	action := domain.ResolveAction(fired)
	if action == "" {
		return "", false
	}

	if action == domain.ActionHealthRestart {
		if !c.Spec.HasHealthcheck {
			return "", false
		}
		if c.Health != domain.HealthUnhealthy {
			return "", false
		}
		if c.Uptime(now) < s.cfg.StartGrace {
			return "", false
		}
		rec := backoffs[c.Name]
		if !rec.HealthRestartAllowed(now, s.cfg.HealthRestartCooldown) {
			return "", false
		}
	}

	return action, true
}

func (s *Scheduler) cronExprFor(c domain.CronExpressions, kind domain.ActionKind) string {
	switch kind {
	case domain.ActionUpdate:
		return c.Update
	case domain.ActionRestart:
		return c.Restart
	case domain.ActionRecreate:
		return c.Recreate
	case domain.ActionHealthRestart:
		return c.HealthCheck
	default:
		return ""
	}
}

// applyRollingRestartCap keeps at most one Update/Recreate decision per
// project group, deferring the rest to the next cycle (§4.5).
func (s *Scheduler) applyRollingRestartCap(decisions []Decision) []Decision {
	dispatchedProject := make(map[string]bool)
	kept := make([]Decision, 0, len(decisions))

	for _, d := range decisions {
		if d.Action != domain.ActionUpdate && d.Action != domain.ActionRecreate {
			kept = append(kept, d)
			continue
		}
		project := d.Container.Project
		if project == "" {
			kept = append(kept, d)
			continue
		}
		if dispatchedProject[project] {
			s.log.Debug().
				Str(zerowrap.FieldLayer, "usecase").
				Str("container", d.Container.Name).
				Str("project", project).
				Msg("deferring action to next cycle, rolling-restart cap reached for project")
			continue
		}
		dispatchedProject[project] = true
		kept = append(kept, d)
	}

	return kept
}
