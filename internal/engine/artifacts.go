package engine

import (
	"sync"

	"github.com/rcarmo/guerite/internal/domain"
)

// artifactSet tracks RollbackArtifacts for swaps currently in progress, so
// Pruning (§4.8) can defer while a swap might still need the image it's
// about to remove. At most one entry exists per base name, per the §3
// invariant.
type artifactSet struct {
	mu    sync.Mutex
	byKey map[string]domain.RollbackArtifact
}

func newArtifactSet() *artifactSet {
	return &artifactSet{byKey: make(map[string]domain.RollbackArtifact)}
}

func (a *artifactSet) start(artifact domain.RollbackArtifact) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byKey[artifact.BaseName] = artifact
}

func (a *artifactSet) clear(baseName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byKey, baseName)
}

func (a *artifactSet) list() []domain.RollbackArtifact {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.RollbackArtifact, 0, len(a.byKey))
	for _, v := range a.byKey {
		out = append(out, v)
	}
	return out
}
