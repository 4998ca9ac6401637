// Package engine implements the Action Engine component (§4.6-4.9): the
// per-container state machine that carries a resolved action from Idle
// through to Committed, RolledBack, or Failed, plus the lifecycle-hook and
// image-pruning behavior that shares its mutex discipline.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/google/uuid"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
)

// Config carries the timing and mode knobs §6 exposes as GUERITE_* env
// vars that the Action Engine itself consults.
type Config struct {
	Cooldown           time.Duration // GUERITE_ACTION_COOLDOWN_SECONDS, default 60s
	StopTimeout        time.Duration // GUERITE_STOP_TIMEOUT_SECONDS
	HealthTimeout      time.Duration // GUERITE_HEALTH_CHECK_TIMEOUT_SECONDS, default 60s
	HealthPollInterval time.Duration // not separately configured; defaults to 2s
	HookTimeoutDefault time.Duration // GUERITE_HOOK_TIMEOUT_SECONDS, default 60s
	BackoffMax         time.Duration // cap for BackoffRecord doubling, default 3600s
	RestartRetryLimit  int           // GUERITE_RESTART_RETRY_LIMIT, default 3
	DryRun             bool          // GUERITE_DRY_RUN
	GlobalNoPull       bool          // GUERITE_NO_PULL
	GlobalNoRestart    bool          // GUERITE_NO_RESTART
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 60 * time.Second
	}
	if c.HealthPollInterval <= 0 {
		c.HealthPollInterval = 2 * time.Second
	}
	if c.HookTimeoutDefault <= 0 {
		c.HookTimeoutDefault = 60 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Hour
	}
	if c.RestartRetryLimit <= 0 {
		c.RestartRetryLimit = 3
	}
	return c
}

// Engine drives the per-container action state machine. It is stateless
// across calls except for the lock registry and the in-flight artifact
// set, both of which exist to coordinate concurrent Dispatch calls from
// the control loop.
type Engine struct {
	client    out.EngineClient
	events    out.EventPublisher
	cfg       Config
	log       zerowrap.Logger
	locks     *lockRegistry
	artifacts *artifactSet
}

// New creates an Engine.
func New(client out.EngineClient, events out.EventPublisher, cfg Config, log zerowrap.Logger) *Engine {
	return &Engine{
		client:    client,
		events:    events,
		cfg:       cfg.withDefaults(),
		log:       log,
		locks:     newLockRegistry(),
		artifacts: newArtifactSet(),
	}
}

// SweepLocks reclaims idle per-name mutexes; call once per control loop
// tick.
func (e *Engine) SweepLocks(maxIdle time.Duration) {
	e.locks.sweep(maxIdle)
}

// ActiveArtifacts returns the RollbackArtifacts for swaps currently in
// progress, for the Pruning component's grace-window check (§4.8).
func (e *Engine) ActiveArtifacts() []domain.RollbackArtifact {
	return e.artifacts.list()
}

// Outcome is what Dispatch decided for one container, for the caller to
// fold into its BackoffRecord map and event log.
type Outcome struct {
	Container string
	Action    domain.ActionKind
	State     domain.ActionState
	Backoff   domain.BackoffRecord
}

// Dispatch runs the Idle→Guarded→...→{Committed,RolledBack,Failed} state
// machine for one container's resolved action. gateReason is empty when the
// caller has cleared this container to run; otherwise it names why the
// caller gated it this cycle (e.g. "dependency_gated" when a dependency
// isn't running and healthy, "dependency_unhealthy" when a dependency's own
// action rolled back this cycle) and Dispatch skips straight to Idle with
// that reason. backoff is the container's current BackoffRecord; Dispatch
// returns the record to persist afterward, which is unchanged if the action
// was skipped before Guarded.
func (e *Engine) Dispatch(ctx context.Context, c domain.MonitoredContainer, action domain.ActionKind, gateReason string, backoff domain.BackoffRecord) Outcome {
	release := e.locks.acquire(c.Name)
	defer release()

	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "usecase",
		zerowrap.FieldUseCase: "ActionEngine",
		"action":              string(action),
		"container":           c.Name,
	})
	log := zerowrap.FromCtx(ctx)

	now := time.Now()

	// Idle -> Guarded
	if backoff.InCooldownOrBackoff(now, e.cfg.Cooldown) {
		e.emitSkipped(c, action, "cooldown_or_backoff")
		return Outcome{Container: c.Name, Action: action, State: domain.StateIdle, Backoff: backoff}
	}
	if gateReason != "" {
		e.emitSkipped(c, action, gateReason)
		return Outcome{Container: c.Name, Action: action, State: domain.StateIdle, Backoff: backoff}
	}

	effectiveNoPull := c.NoPull || e.cfg.GlobalNoPull
	effectiveNoRestart := c.NoRestart || e.cfg.GlobalNoRestart

	if e.cfg.DryRun {
		log.Info().Msg("dry run, not dispatching action")
		e.emitSkipped(c, action, "dry_run")
		return Outcome{Container: c.Name, Action: action, State: domain.StateIdle, Backoff: backoff}
	}

	// Guarded -> Prepared
	e.runHook(ctx, c, c.Hooks.PreCheck, c.Hooks.PreCheckTimeout, "pre_check")

	workingSpec := c
	if action == domain.ActionUpdate {
		if !effectiveNoPull {
			newImageID, err := e.client.PullImage(ctx, c.Spec.Image)
			if err != nil {
				log.Error().Err(err).Msg("image pull failed")
				backoff.OnFailure(now, e.cfg.BackoffMax)
				e.publish(c, domain.EventUpdateFailed, action, "image pull failed: "+err.Error(), false)
				return Outcome{Container: c.Name, Action: action, State: domain.StateFailed, Backoff: backoff}
			}
			workingSpec.ImageID = newImageID
		} else if cachedID, err := e.client.InspectImageID(ctx, c.Spec.Image); err == nil {
			// No-pull still compares against whatever image id is already
			// cached locally, so an externally pulled image still triggers a
			// swap instead of silently degrading Update to a restart.
			workingSpec.ImageID = cachedID
		}
	}

	if effectiveNoRestart {
		// no-restart suppresses every stop/start; an Update has still pulled.
		log.Info().Msg("no-restart set, not stopping or starting container")
		e.emitSkipped(c, action, "no_restart")
		return Outcome{Container: c.Name, Action: action, State: domain.StateIdle, Backoff: backoff}
	}

	needsSwap := e.needsSwap(action, c, workingSpec, effectiveNoRestart)
	if !needsSwap {
		return e.inPlaceRestart(ctx, c, action, now, backoff)
	}

	return e.swap(ctx, c, action, workingSpec.ImageID, now, backoff)
}

// needsSwap implements the §4.6 table: Update needs a swap only if the
// freshly pulled image id differs from the one the container is running;
// Recreate and HealthRestart always swap; Restart never does. noRestart
// makes it report false for every action, though Dispatch has already
// returned without stopping anything when no-restart is in effect.
func (e *Engine) needsSwap(action domain.ActionKind, original, pulled domain.MonitoredContainer, noRestart bool) bool {
	if noRestart {
		return false
	}
	switch action {
	case domain.ActionUpdate:
		return pulled.ImageID != "" && pulled.ImageID != original.ImageID
	case domain.ActionRecreate, domain.ActionHealthRestart:
		return true
	default:
		return false
	}
}

// inPlaceRestart implements 4.6.a: stop then start, no container identity
// change, reported as Restarted/RestartFailed whichever action led here.
// Terminal for this dispatch.
func (e *Engine) inPlaceRestart(ctx context.Context, c domain.MonitoredContainer, action domain.ActionKind, now time.Time, backoff domain.BackoffRecord) Outcome {
	log := zerowrap.FromCtx(ctx)

	if err := e.stopWithRetry(ctx, c.ID, e.cfg.StopTimeout); err != nil {
		log.Error().Err(err).Msg("stop failed during in-place restart")
		backoff.OnFailure(now, e.cfg.BackoffMax)
		e.publish(c, domain.EventRestartFailed, action, "stop failed: "+err.Error(), false)
		return Outcome{Container: c.Name, Action: action, State: domain.StateFailed, Backoff: backoff}
	}

	if err := e.client.StartContainer(ctx, c.ID); err != nil {
		log.Error().Err(err).Msg("start failed during in-place restart")
		backoff.OnFailure(now, e.cfg.BackoffMax)
		e.publish(c, domain.EventRestartFailed, action, "start failed: "+err.Error(), false)
		return Outcome{Container: c.Name, Action: action, State: domain.StateFailed, Backoff: backoff}
	}

	backoff.OnSuccess(now)
	if action == domain.ActionHealthRestart {
		backoff.LastHealthRestartTS = now
	}
	e.publish(c, domain.EventRestarted, action, "restarted in place", false)
	return Outcome{Container: c.Name, Action: action, State: domain.StateCommitted, Backoff: backoff}
}

// stopWithRetry stops a container, doubling the timeout on each attempt up
// to GUERITE_RESTART_RETRY_LIMIT attempts before force-killing it with a
// zero-timeout stop (§4.6.a). The container itself is never removed here.
func (e *Engine) stopWithRetry(ctx context.Context, nameOrID string, timeout time.Duration) error {
	for attempt := 0; attempt < e.cfg.RestartRetryLimit; attempt++ {
		if err := e.client.StopContainer(ctx, nameOrID, timeout); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		}
		timeout *= 2
	}
	return e.client.StopContainer(ctx, nameOrID, 0)
}

// runHook executes a lifecycle hook if configured. Failures are logged
// only; the caller's action always proceeds (§4.9).
func (e *Engine) runHook(ctx context.Context, c domain.MonitoredContainer, cmd string, timeout time.Duration, point string) {
	if cmd == "" {
		return
	}
	if timeout <= 0 {
		timeout = e.cfg.HookTimeoutDefault
	}
	log := zerowrap.FromCtx(ctx)

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := e.client.ExecInContainer(hookCtx, c.ID, []string{"/bin/sh", "-c", cmd})
	switch {
	case err != nil:
		log.Warn().Str("hook", point).Err(err).Msg("lifecycle hook failed to run")
	case result.ExitCode != 0:
		log.Warn().Str("hook", point).Int("exit_code", result.ExitCode).Msg("lifecycle hook exited non-zero")
	default:
		log.Debug().Str("hook", point).Msg("lifecycle hook succeeded")
	}
}

func (e *Engine) emitSkipped(c domain.MonitoredContainer, action domain.ActionKind, reason string) {
	e.publish(c, domain.EventSkipped, action, fmt.Sprintf("skipped: %s", reason), false)
}

func (e *Engine) publish(c domain.MonitoredContainer, t domain.EventType, action domain.ActionKind, message string, manual bool) {
	if e.events == nil {
		return
	}
	evt := domain.Event{
		ID:                 uuid.NewString(),
		Type:               t,
		Category:           domain.CategoryOf(t),
		Timestamp:          time.Now(),
		ContainerName:      c.Name,
		Action:             action,
		Title:              fmt.Sprintf("%s: %s", action, t),
		Message:            message,
		ManualIntervention: manual,
	}
	if err := e.events.Publish(evt); err != nil {
		e.log.Warn().Err(err).Msg("failed to publish event")
	}
}

func successEventFor(action domain.ActionKind) domain.EventType {
	switch action {
	case domain.ActionUpdate:
		return domain.EventUpdated
	case domain.ActionRecreate:
		return domain.EventRecreated
	case domain.ActionHealthRestart:
		return domain.EventHealthRestarted
	default:
		return domain.EventRestarted
	}
}

func failureEventFor(action domain.ActionKind) domain.EventType {
	switch action {
	case domain.ActionUpdate:
		return domain.EventUpdateFailed
	case domain.ActionRecreate:
		return domain.EventRecreateFailed
	case domain.ActionHealthRestart:
		return domain.EventHealthRestartFail
	default:
		return domain.EventRestartFailed
	}
}

// hostMountExists reports whether a bind mount's host path is present, for
// the Swapping preflight check (§4.6). Skipped for anything but bind
// mounts, since volume and tmpfs sources aren't host filesystem paths.
func hostMountExists(m domain.MountSpec) bool {
	if m.Type != "bind" {
		return true
	}
	_, err := os.Stat(m.Source)
	return err == nil
}
