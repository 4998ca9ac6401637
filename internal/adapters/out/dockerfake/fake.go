// Package dockerfake provides an in-memory out.EngineClient test double.
// The Action Engine's swap path drives a multi-step rename/create/stop/
// start sequence where each step's outcome depends on the engine's state
// after the previous one; a call-and-return mock can't express that as
// cheaply as a small stateful fake can, so tests inject failures through
// the Fail* hooks below instead.
package dockerfake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
)

// Container is one container tracked by the fake engine.
type Container struct {
	domain.MonitoredContainer
	Running bool
}

// Fake is a stateful in-memory out.EngineClient. Create it with New (the
// zero value has nil maps) and seed it via Seed before exercising the code
// under test.
type Fake struct {
	mu sync.Mutex

	containers map[string]*Container // keyed by ID
	images     map[string]string     // ref -> image id
	nextID     int

	// FailRename etc. name the container ID (or, for PullImage, the image
	// ref) that the next matching call should fail for. Cleared to "" is
	// not required; tests typically use a fresh Fake per case.
	FailRename      string
	FailCreate      bool
	FailStop        string
	FailStart       string
	FailPull        string
	HealthSequence  []string // health statuses returned on successive polls, last one repeats
	healthPollCount int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		containers: make(map[string]*Container),
		images:     make(map[string]string),
	}
}

// Seed registers a container under its own ID and Name.
func (f *Fake) Seed(c domain.MonitoredContainer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[c.ID] = &Container{MonitoredContainer: c, Running: true}
}

// SeedImage records the image id a reference currently resolves to.
func (f *Fake) SeedImage(ref, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = id
}

func (f *Fake) findByNameOrID(nameOrID string) *Container {
	if c, ok := f.containers[nameOrID]; ok {
		return c
	}
	for _, c := range f.containers {
		if c.Name == nameOrID {
			return c
		}
	}
	return nil
}

func (f *Fake) ListContainers(ctx context.Context, all bool) ([]domain.MonitoredContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]domain.MonitoredContainer, 0, len(f.containers))
	for _, c := range f.containers {
		if !all && !c.Running {
			continue
		}
		list = append(list, c.MonitoredContainer)
	}
	return list, nil
}

func (f *Fake) InspectContainer(ctx context.Context, nameOrID string) (domain.MonitoredContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findByNameOrID(nameOrID)
	if c == nil {
		return domain.MonitoredContainer{}, domain.ErrContainerNotFound
	}
	return c.MonitoredContainer, nil
}

func (f *Fake) PullImage(ctx context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPull == ref {
		return "", fmt.Errorf("simulated pull failure for %s", ref)
	}
	id, ok := f.images[ref]
	if !ok {
		id = "sha256:" + ref
		f.images[ref] = id
	}
	return id, nil
}

func (f *Fake) InspectImageID(ctx context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.images[ref]
	if !ok {
		return "", domain.ErrImageNotFound
	}
	return id, nil
}

func (f *Fake) CreateContainer(ctx context.Context, name string, spec domain.CreateSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return "", fmt.Errorf("simulated create failure for %s", name)
	}
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.containers[id] = &Container{
		MonitoredContainer: domain.MonitoredContainer{
			Name:     name,
			ID:       id,
			ImageRef: spec.Image,
			ImageID:  f.images[spec.Image],
			Spec:     spec,
			State:    domain.StateCreated,
		},
		Running: false,
	}
	return id, nil
}

func (f *Fake) RenameContainer(ctx context.Context, nameOrID, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findByNameOrID(nameOrID)
	if c == nil {
		return domain.ErrContainerNotFound
	}
	if f.FailRename == nameOrID || f.FailRename == c.ID {
		return fmt.Errorf("simulated rename failure for %s", nameOrID)
	}
	c.Name = newName
	return nil
}

func (f *Fake) StartContainer(ctx context.Context, nameOrID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findByNameOrID(nameOrID)
	if c == nil {
		return domain.ErrContainerNotFound
	}
	if f.FailStart == nameOrID || f.FailStart == c.ID {
		return fmt.Errorf("simulated start failure for %s", nameOrID)
	}
	c.Running = true
	c.State = domain.StateRunning
	c.StartedAt = time.Now()
	return nil
}

func (f *Fake) StopContainer(ctx context.Context, nameOrID string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findByNameOrID(nameOrID)
	if c == nil {
		return domain.ErrContainerNotFound
	}
	if f.FailStop == nameOrID || f.FailStop == c.ID {
		return fmt.Errorf("simulated stop failure for %s", nameOrID)
	}
	c.Running = false
	c.State = domain.StateExited
	return nil
}

func (f *Fake) RemoveContainer(ctx context.Context, nameOrID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findByNameOrID(nameOrID)
	if c == nil {
		return nil
	}
	delete(f.containers, c.ID)
	return nil
}

func (f *Fake) RemoveImage(ctx context.Context, imageID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ref, id := range f.images {
		if id == imageID {
			delete(f.images, ref)
		}
	}
	return nil
}

func (f *Fake) GetContainerHealthStatus(ctx context.Context, nameOrID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findByNameOrID(nameOrID)
	if c == nil {
		return "", false, domain.ErrContainerNotFound
	}
	if !c.Spec.HasHealthcheck {
		return "", false, nil
	}
	if len(f.HealthSequence) == 0 {
		return string(domain.HealthHealthy), true, nil
	}
	idx := f.healthPollCount
	if idx >= len(f.HealthSequence) {
		idx = len(f.HealthSequence) - 1
	}
	f.healthPollCount++
	return f.HealthSequence[idx], true, nil
}

func (f *Fake) ExecInContainer(ctx context.Context, nameOrID string, cmd []string) (*out.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findByNameOrID(nameOrID) == nil {
		return nil, domain.ErrContainerNotFound
	}
	return &out.ExecResult{ExitCode: 0}, nil
}

func (f *Fake) PruneImages(ctx context.Context, danglingOnly bool) (out.PruneReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.images))
	for _, id := range f.images {
		ids = append(ids, id)
	}
	f.images = make(map[string]string)
	return out.PruneReport{DeletedIDs: ids}, nil
}

func (f *Fake) ListImagesDetailed(ctx context.Context) ([]out.ImageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := make([]out.ImageSummary, 0, len(f.images))
	for ref, id := range f.images {
		summaries = append(summaries, out.ImageSummary{ID: id, RepoTags: []string{ref}})
	}
	return summaries, nil
}

func (f *Fake) Ping(ctx context.Context) error { return nil }

func (f *Fake) Version(ctx context.Context) (string, error) { return "fake", nil }

var _ out.EngineClient = (*Fake)(nil)
