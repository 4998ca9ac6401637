// Package inventory implements the Container Inventory component (§4.3):
// it lists containers via the Engine Client, narrows them to the monitored
// set, and groups the result by compose project for the rest of the cycle.
package inventory

import (
	"context"
	"sort"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
)

// Config controls which containers Inventory considers monitored, beyond
// the always-required action-label test.
type Config struct {
	// Include, if non-empty, restricts the monitored set to these names.
	Include []string
	// Exclude removes these names from the monitored set.
	Exclude []string
	// Scope, if set, restricts the monitored set to containers whose
	// guerite.scope label equals this value.
	Scope string
}

// ProjectGroup is every monitored container sharing a compose project
// label, or a singleton group for containers with no project.
type ProjectGroup struct {
	Project    string
	Containers []domain.MonitoredContainer
}

// Snapshot is the result of one Inventory collection cycle.
type Snapshot struct {
	Groups []ProjectGroup
	Detect domain.DetectBatch
}

// Inventory tracks the previous cycle's monitored name set so it can emit a
// Detect batch of newly discovered containers.
type Inventory struct {
	engine    out.EngineClient
	cfg       Config
	log       zerowrap.Logger
	prevNames map[string]struct{}
}

// New creates an Inventory. cfg is re-readable across cycles by replacing
// the Inventory's owner's copy; Inventory itself treats it as fixed for its
// lifetime.
func New(engine out.EngineClient, cfg Config, log zerowrap.Logger) *Inventory {
	return &Inventory{engine: engine, cfg: cfg, log: log, prevNames: map[string]struct{}{}}
}

// Collect lists every container, narrows it to the monitored set, and
// returns it grouped by project along with any newly discovered names.
func (i *Inventory) Collect(ctx context.Context) (Snapshot, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "usecase",
		zerowrap.FieldUseCase: "Inventory",
	})
	log := zerowrap.FromCtx(ctx)

	all, err := i.engine.ListContainers(ctx, true)
	if err != nil {
		return Snapshot{}, log.WrapErr(err, "failed to list containers")
	}

	monitored := make([]domain.MonitoredContainer, 0, len(all))
	for _, c := range all {
		if !i.isMonitored(c) {
			continue
		}
		monitored = append(monitored, c)
	}

	currentNames := make(map[string]struct{}, len(monitored))
	var newNames []string
	for _, c := range monitored {
		currentNames[c.Name] = struct{}{}
		if _, seen := i.prevNames[c.Name]; !seen {
			newNames = append(newNames, c.Name)
		}
	}
	i.prevNames = currentNames

	if len(newNames) > 0 {
		sort.Strings(newNames)
		log.Info().Strs("containers", newNames).Msg("detected new monitored containers")
	}

	return Snapshot{
		Groups: groupByProject(monitored),
		Detect: domain.DetectBatch{Names: newNames},
	}, nil
}

// isMonitored applies §4.3's monitored predicate: at least one action label,
// not swarm-managed, and passing the include/exclude/scope filter chain.
func (i *Inventory) isMonitored(c domain.MonitoredContainer) bool {
	if c.SwarmManaged {
		return false
	}
	if !hasAnyCron(c.Crons) {
		return false
	}
	if len(i.cfg.Include) > 0 && !contains(i.cfg.Include, c.Name) {
		return false
	}
	if contains(i.cfg.Exclude, c.Name) {
		return false
	}
	if i.cfg.Scope != "" && c.Scope != i.cfg.Scope {
		return false
	}
	return true
}

func hasAnyCron(c domain.CronExpressions) bool {
	return c.Update != "" || c.Restart != "" || c.Recreate != "" || c.HealthCheck != ""
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// groupByProject buckets containers by compose project label, in
// deterministic project-name order with the empty-project group (singleton
// containers) sorted alongside the rest.
func groupByProject(containers []domain.MonitoredContainer) []ProjectGroup {
	byProject := map[string][]domain.MonitoredContainer{}
	for _, c := range containers {
		byProject[c.Project] = append(byProject[c.Project], c)
	}

	projects := make([]string, 0, len(byProject))
	for p := range byProject {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	groups := make([]ProjectGroup, 0, len(projects))
	for _, p := range projects {
		members := byProject[p]
		sort.Slice(members, func(a, b int) bool { return members[a].Name < members[b].Name })
		groups = append(groups, ProjectGroup{Project: p, Containers: members})
	}
	return groups
}
