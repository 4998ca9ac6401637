// Package out defines output ports (interfaces) for infrastructure.
// These interfaces define the contract between use cases and driven adapters
// (Docker, Podman, etc.).
package out

import (
	"context"
	"time"

	"github.com/rcarmo/guerite/internal/domain"
)

// EngineClient is the narrow container-engine capability set the action
// engine is polymorphic over (§4.3, Design Notes §9). A hand-written
// in-memory fake satisfies this interface for unit tests without a daemon.
type EngineClient interface {
	// ListContainers returns every container the engine knows about,
	// including labels, image id/ref, state, health, mounts, networks,
	// env, and enough of the create-spec to reconstruct it.
	ListContainers(ctx context.Context, all bool) ([]domain.MonitoredContainer, error)
	InspectContainer(ctx context.Context, nameOrID string) (domain.MonitoredContainer, error)

	// PullImage pulls the given reference and returns the resulting local
	// image id.
	PullImage(ctx context.Context, ref string) (imageID string, err error)
	// InspectImageID returns the locally cached image id for a reference
	// without pulling, or domain.ErrImageNotFound if absent locally.
	InspectImageID(ctx context.Context, ref string) (string, error)

	CreateContainer(ctx context.Context, name string, spec domain.CreateSpec) (containerID string, err error)
	RenameContainer(ctx context.Context, nameOrID, newName string) error
	StartContainer(ctx context.Context, nameOrID string) error
	// StopContainer stops with the given timeout; callers apply the
	// retry-then-force-kill policy from §4.6.a themselves.
	StopContainer(ctx context.Context, nameOrID string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, nameOrID string, force bool) error
	RemoveImage(ctx context.Context, imageID string, force bool) error

	// GetContainerHealthStatus reports the engine-observed health status
	// as Docker's own string (empty if no healthcheck applies) and whether
	// the container declares a healthcheck at all. Callers map the string
	// through domain.ParseHealthStatus when they need the typed form.
	GetContainerHealthStatus(ctx context.Context, nameOrID string) (status string, hasHealthcheck bool, err error)

	// ExecInContainer runs a lifecycle hook command inside the container.
	// Callers apply a hook's own timeout via context.WithTimeout.
	ExecInContainer(ctx context.Context, nameOrID string, cmd []string) (*ExecResult, error)

	// PruneImages removes images; danglingOnly restricts removal to
	// untagged, unreferenced images, mirroring the engine's own
	// `image prune` and `image prune -a` distinction.
	PruneImages(ctx context.Context, danglingOnly bool) (PruneReport, error)

	// ListImagesDetailed returns every locally cached image with enough
	// metadata to support the Pruning component's grace-window checks.
	ListImagesDetailed(ctx context.Context) ([]ImageSummary, error)

	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}

// ExecResult holds the result of executing a command in a container.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// PruneReport summarizes the result of an image prune.
type PruneReport struct {
	DeletedIDs     []string
	SpaceReclaimed int64
}

// ImageSummary is a locally cached image, as reported by the engine's image
// list endpoint.
type ImageSummary struct {
	ID       string
	RepoTags []string
	Size     int64
	Created  time.Time
}
