package docker

import (
	"context"

	"github.com/bnema/zerowrap"
)

// GetContainerHealthStatus reports the daemon's live health status for a
// container. A healthcheck configured as `Test: ["NONE"]` is treated as no
// healthcheck at all, matching the daemon's own semantics.
func (r *Runtime) GetContainerHealthStatus(ctx context.Context, nameOrID string) (string, bool, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "GetContainerHealthStatus",
		zerowrap.FieldEntityID: nameOrID,
	})
	log := zerowrap.FromCtx(ctx)

	resp, err := r.client.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return "", false, log.WrapErr(err, "failed to inspect container")
	}

	if !hasHealthcheck(resp.Config) {
		return "", false, nil
	}
	if resp.State == nil || resp.State.Health == nil {
		return "", true, nil
	}
	return resp.State.Health.Status, true, nil
}
