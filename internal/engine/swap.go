package engine

import (
	"context"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/google/uuid"

	"github.com/rcarmo/guerite/internal/domain"
)

// swap implements Prepared→Swapping→Probing→{Committed,RolledBack} (§4.6):
// rename the running container aside, create its replacement, stop the
// original, move the replacement into the vacated name, and probe its
// health before committing.
func (e *Engine) swap(ctx context.Context, c domain.MonitoredContainer, action domain.ActionKind, pulledImageID string, now time.Time, backoff domain.BackoffRecord) Outcome {
	log := zerowrap.FromCtx(ctx)

	for _, m := range c.Spec.Mounts {
		if m.Type == "bind" && !hostMountExists(m) {
			log.Error().Str("mount", m.Source).Msg("preflight failed, bind mount host path missing")
			backoff.OnFailure(now, e.cfg.BackoffMax)
			e.publish(c, failureEventFor(action), action, "preflight failed: missing bind mount "+m.Source, false)
			return Outcome{Container: c.Name, Action: action, State: domain.StateFailed, Backoff: backoff}
		}
		if m.Type == "volume" && m.Driver != "" && m.Driver != "local" {
			log.Warn().Str("volume", m.Source).Str("driver", m.Driver).Msg("non-local volume driver, proceeding without verification")
		}
	}

	suffix := uuid.NewString()[:8]
	oldName := c.Name + "-guerite-old-" + suffix
	newName := c.Name + "-guerite-new-" + suffix

	if err := e.client.RenameContainer(ctx, c.ID, oldName); err != nil {
		log.Error().Err(err).Msg("failed to rename container aside for swap")
		backoff.OnFailure(now, e.cfg.BackoffMax)
		e.publish(c, failureEventFor(action), action, "rename aside failed: "+err.Error(), false)
		return Outcome{Container: c.Name, Action: action, State: domain.StateFailed, Backoff: backoff}
	}

	artifact := domain.RollbackArtifact{BaseName: c.Name, OldName: oldName, OldID: c.ID, NewName: newName, CreatedAt: now}
	e.artifacts.start(artifact)
	defer e.artifacts.clear(c.Name)

	newID, err := e.client.CreateContainer(ctx, newName, c.Spec)
	if err != nil {
		log.Error().Err(err).Msg("failed to create replacement container")
		return e.rollback(ctx, c, oldName, "", action, "create failed: "+err.Error(), now, backoff)
	}

	e.runHook(ctx, c, c.Hooks.PreUpdate, c.Hooks.PreUpdateTimeout, "pre_update")

	if err := e.stopWithRetry(ctx, oldName, e.cfg.StopTimeout); err != nil {
		log.Error().Err(err).Msg("failed to stop old container during swap")
		return e.rollback(ctx, c, oldName, newID, action, "stop old failed: "+err.Error(), now, backoff)
	}

	if err := e.client.RenameContainer(ctx, newID, c.Name); err != nil {
		log.Error().Err(err).Msg("failed to rename replacement into place")
		return e.rollback(ctx, c, oldName, newID, action, "rename into place failed: "+err.Error(), now, backoff)
	}

	if err := e.client.StartContainer(ctx, newID); err != nil {
		log.Error().Err(err).Msg("failed to start replacement container")
		return e.rollback(ctx, c, oldName, newID, action, "start failed: "+err.Error(), now, backoff)
	}

	if c.Spec.HasHealthcheck && !e.probeHealth(ctx, newID) {
		log.Warn().Msg("health probe did not turn healthy within timeout, rolling back")
		return e.rollback(ctx, c, oldName, newID, action, "health probe timed out", now, backoff)
	}

	return e.commit(ctx, c, oldName, action, pulledImageID, now, backoff)
}

// commit finishes a successful swap: drop the old container, run the
// post-update hook, best-effort remove the superseded image on Update, and
// clear the failure streak.
func (e *Engine) commit(ctx context.Context, c domain.MonitoredContainer, oldName string, action domain.ActionKind, pulledImageID string, now time.Time, backoff domain.BackoffRecord) Outcome {
	log := zerowrap.FromCtx(ctx)

	if err := e.client.RemoveContainer(ctx, oldName, true); err != nil {
		log.Warn().Err(err).Msg("failed to remove old container after commit")
	}

	e.runHook(ctx, c, c.Hooks.PostUpdate, c.Hooks.PostUpdateTimeout, "post_update")

	if action == domain.ActionUpdate && c.ImageID != "" && c.ImageID != pulledImageID {
		if err := e.client.RemoveImage(ctx, c.ImageID, false); err != nil {
			log.Warn().Err(err).Msg("failed to remove prior image after update")
		}
	}

	backoff.OnSuccess(now)
	if action == domain.ActionHealthRestart {
		backoff.LastHealthRestartTS = now
	}
	e.publish(c, successEventFor(action), action, "swap committed", false)
	return Outcome{Container: c.Name, Action: action, State: domain.StateCommitted, Backoff: backoff}
}

// rollback implements Probing→RolledBack: undo whatever of the swap
// completed. newID is empty if the replacement was never created. A
// failure to restore the original container itself is reported as
// ManualIntervention rather than RolledBack, per §7.
func (e *Engine) rollback(ctx context.Context, c domain.MonitoredContainer, oldName, newID string, action domain.ActionKind, reason string, now time.Time, backoff domain.BackoffRecord) Outcome {
	log := zerowrap.FromCtx(ctx)

	if newID != "" {
		_ = e.client.StopContainer(ctx, newID, e.cfg.StopTimeout)
		_ = e.client.RemoveContainer(ctx, newID, true)
	}

	manual := false
	if err := e.client.RenameContainer(ctx, oldName, c.Name); err != nil {
		log.Error().Err(err).Msg("rollback failed, could not rename original container back into place")
		manual = true
	} else if err := e.client.StartContainer(ctx, c.ID); err != nil {
		log.Error().Err(err).Msg("rollback failed, could not restart original container")
		manual = true
	}

	backoff.OnFailure(now, e.cfg.BackoffMax)
	e.publish(c, failureEventFor(action), action, reason, manual)

	state := domain.StateRolledBack
	if manual {
		state = domain.StateFailed
	}
	return Outcome{Container: c.Name, Action: action, State: state, Backoff: backoff}
}

// probeHealth polls engine health status until it reports healthy or the
// configured health timeout elapses.
func (e *Engine) probeHealth(ctx context.Context, nameOrID string) bool {
	deadline := time.Now().Add(e.cfg.HealthTimeout)
	ticker := time.NewTicker(e.cfg.HealthPollInterval)
	defer ticker.Stop()

	for {
		status, hasHealthcheck, err := e.client.GetContainerHealthStatus(ctx, nameOrID)
		if err == nil {
			if !hasHealthcheck {
				return true
			}
			if domain.ParseHealthStatus(status) == domain.HealthHealthy {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
