package domain_test

import (
	"testing"

	"github.com/rcarmo/guerite/internal/domain"
)

func TestCategoryOfMapsActionOutcomes(t *testing.T) {
	cases := []struct {
		event domain.EventType
		want  domain.Category
	}{
		{domain.EventUpdated, domain.CategoryUpdate},
		{domain.EventUpdateFailed, domain.CategoryUpdate},
		{domain.EventRestarted, domain.CategoryRestart},
		{domain.EventRecreated, domain.CategoryRecreate},
		{domain.EventHealthRestarted, domain.CategoryHealth},
		{domain.EventPruned, domain.CategoryPrune},
		{domain.EventDetect, domain.CategoryDetect},
		{domain.EventStartup, domain.CategoryStartup},
	}
	for _, c := range cases {
		if got := domain.CategoryOf(c.event); got != c.want {
			t.Errorf("CategoryOf(%q) = %q, want %q", c.event, got, c.want)
		}
	}
}

func TestResolveActionPrecedence(t *testing.T) {
	fired := []domain.ActionKind{domain.ActionHealthRestart, domain.ActionRestart, domain.ActionUpdate}
	if got := domain.ResolveAction(fired); got != domain.ActionUpdate {
		t.Errorf("expected Update to win precedence, got %q", got)
	}

	fired = []domain.ActionKind{domain.ActionHealthRestart, domain.ActionRecreate}
	if got := domain.ResolveAction(fired); got != domain.ActionRecreate {
		t.Errorf("expected Recreate to win over HealthRestart, got %q", got)
	}

	if got := domain.ResolveAction(nil); got != "" {
		t.Errorf("expected empty ActionKind for no firing crons, got %q", got)
	}
}
