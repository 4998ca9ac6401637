package inventory_test

import (
	"context"
	"testing"

	"github.com/bnema/zerowrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
	"github.com/rcarmo/guerite/internal/inventory"
)

// fakeEngine satisfies out.EngineClient with a fixed ListContainers result;
// every other method is unused by Inventory and panics if called.
type fakeEngine struct {
	out.EngineClient
	containers []domain.MonitoredContainer
}

func (f *fakeEngine) ListContainers(_ context.Context, _ bool) ([]domain.MonitoredContainer, error) {
	return f.containers, nil
}

func withCron(name, project string) domain.MonitoredContainer {
	return domain.MonitoredContainer{
		Name:    name,
		Project: project,
		Crons:   domain.CronExpressions{Update: "* * * * *"},
	}
}

func TestCollect_DropsContainersWithNoActionLabel(t *testing.T) {
	unlabeled := domain.MonitoredContainer{Name: "plain"}
	eng := &fakeEngine{containers: []domain.MonitoredContainer{unlabeled, withCron("web", "")}}
	inv := inventory.New(eng, inventory.Config{}, zerowrap.Default())

	snap, err := inv.Collect(context.Background())
	require.NoError(t, err)

	var names []string
	for _, g := range snap.Groups {
		for _, c := range g.Containers {
			names = append(names, c.Name)
		}
	}
	assert.Equal(t, []string{"web"}, names)
}

func TestCollect_DropsSwarmManagedContainers(t *testing.T) {
	swarm := withCron("svc", "")
	swarm.SwarmManaged = true
	eng := &fakeEngine{containers: []domain.MonitoredContainer{swarm}}
	inv := inventory.New(eng, inventory.Config{}, zerowrap.Default())

	snap, err := inv.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Groups)
}

func TestCollect_AppliesIncludeExcludeAndScope(t *testing.T) {
	a := withCron("a", "")
	b := withCron("b", "")
	c := withCron("c", "")
	c.Scope = "staging"

	eng := &fakeEngine{containers: []domain.MonitoredContainer{a, b, c}}
	inv := inventory.New(eng, inventory.Config{Include: []string{"a", "b", "c"}, Exclude: []string{"b"}, Scope: "staging"}, zerowrap.Default())

	snap, err := inv.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Groups, 1)
	require.Len(t, snap.Groups[0].Containers, 1)
	assert.Equal(t, "c", snap.Groups[0].Containers[0].Name)
}

func TestCollect_GroupsByProject(t *testing.T) {
	eng := &fakeEngine{containers: []domain.MonitoredContainer{
		withCron("web", "shop"),
		withCron("db", "shop"),
		withCron("solo", ""),
	}}
	inv := inventory.New(eng, inventory.Config{}, zerowrap.Default())

	snap, err := inv.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Groups, 2)

	assert.Equal(t, "", snap.Groups[0].Project)
	assert.Equal(t, "shop", snap.Groups[1].Project)
	assert.Len(t, snap.Groups[1].Containers, 2)
}

func TestCollect_DetectsNewContainersAcrossCycles(t *testing.T) {
	eng := &fakeEngine{containers: []domain.MonitoredContainer{withCron("web", "")}}
	inv := inventory.New(eng, inventory.Config{}, zerowrap.Default())

	first, err := inv.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, first.Detect.Names)

	second, err := inv.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Detect.Empty())

	eng.containers = append(eng.containers, withCron("worker", ""))
	third, err := inv.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"worker"}, third.Detect.Names)
}
