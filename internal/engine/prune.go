package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/google/uuid"

	"github.com/rcarmo/guerite/internal/domain"
)

// PruneConfig carries the Pruning component's own knobs (§4.8).
type PruneConfig struct {
	Grace time.Duration // GUERITE_ROLLBACK_GRACE_SECONDS, default 3600s
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.Grace <= 0 {
		c.Grace = time.Hour
	}
	return c
}

// Prune runs the Pruning component's cron action (§4.8): remove unused,
// non-dangling images, unless a swap that might still need one of them is
// currently in progress somewhere in the fleet.
func (e *Engine) Prune(ctx context.Context, cfg PruneConfig) {
	cfg = cfg.withDefaults()
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "usecase",
		zerowrap.FieldUseCase: "Pruning",
	})
	log := zerowrap.FromCtx(ctx)
	now := time.Now()

	active := e.ActiveArtifacts()
	for _, a := range active {
		if a.WithinGrace(now, cfg.Grace) {
			log.Info().
				Str("container", a.BaseName).
				Msg("deferring prune, swap in progress within grace window")
			return
		}
	}

	report, err := e.client.PruneImages(ctx, false)
	if err != nil {
		log.Error().Err(err).Msg("image prune failed")
		e.publishPrune(domain.EventPruneFailed, fmt.Sprintf("prune failed: %s", err.Error()))
		return
	}

	log.Info().
		Int("removed", len(report.DeletedIDs)).
		Int64("bytes_reclaimed", report.SpaceReclaimed).
		Msg("image prune completed")
	e.publishPrune(domain.EventPruned, fmt.Sprintf("removed %d images, reclaimed %d bytes", len(report.DeletedIDs), report.SpaceReclaimed))
}

func (e *Engine) publishPrune(t domain.EventType, message string) {
	if e.events == nil {
		return
	}
	evt := domain.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Category:  domain.CategoryOf(t),
		Timestamp: time.Now(),
		Title:     fmt.Sprintf("prune: %s", t),
		Message:   message,
	}
	if err := e.events.Publish(evt); err != nil {
		e.log.Warn().Err(err).Msg("failed to publish event")
	}
}
