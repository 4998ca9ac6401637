// Package depgraph implements the Dependency Planner component (§4.4): a
// per-project directed graph from Links and the depends-on label, sorted
// into a deterministic dispatch order with a dependencies-ready predicate
// that gates nodes whose dependencies aren't running and healthy yet.
package depgraph

import (
	"sort"
	"strings"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/domain"
)

// Node pairs a monitored container with its dependency-readiness for this
// cycle.
type Node struct {
	Container domain.MonitoredContainer
	// Ready reports whether every dependency is running with healthy (or
	// absent) health. Gated is the negation, kept as a field for callers
	// that read it as a predicate on the node rather than an expression.
	Ready bool
	Gated bool
	// Dependencies lists the base names this node depends on, so a caller
	// dispatching nodes in order can re-check a dependent against the live
	// outcome of its dependencies this cycle, not just this snapshot's
	// running/healthy state.
	Dependencies []string
}

// Planner builds dependency-ordered plans for one project group at a time.
type Planner struct {
	log zerowrap.Logger
}

// New creates a Planner.
func New(log zerowrap.Logger) *Planner {
	return &Planner{log: log}
}

// Plan orders a single project's containers into dependency-topological
// order and computes each one's gated status. containers is expected to be
// one project group as produced by internal/inventory; edges that name a
// container outside this slice cannot be verified and are treated as not
// ready, since the planner has no way to confirm they're running.
func (p *Planner) Plan(containers []domain.MonitoredContainer) []Node {
	byName := make(map[string]domain.MonitoredContainer, len(containers))
	for _, c := range containers {
		byName[c.Name] = c
	}

	edges := make(map[string][]string, len(containers)) // name -> dependency base names
	for _, c := range containers {
		edges[c.Name] = dependencyNames(c)
	}

	order := topoOrder(edges, p.log)

	nodes := make([]Node, 0, len(order))
	for _, name := range order {
		c := byName[name]
		ready := p.dependenciesReady(c, edges[name], byName)
		nodes = append(nodes, Node{Container: c, Ready: ready, Gated: !ready, Dependencies: edges[name]})
	}
	return nodes
}

// dependencyNames collects the base names a container depends on, from both
// its engine Links and its depends-on label, deduplicated.
func dependencyNames(c domain.MonitoredContainer) []string {
	seen := map[string]struct{}{}
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, link := range c.Links {
		add(linkBaseName(link))
	}
	for _, dep := range c.DependsOn {
		add(dep)
	}
	sort.Strings(names)
	return names
}

// linkBaseName extracts the target container's base name from a Docker
// Links entry, which takes the form "/source:/target/alias".
func linkBaseName(link string) string {
	parts := strings.SplitN(link, ":", 2)
	name := parts[0]
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// dependenciesReady reports whether every named dependency is a known,
// running container whose health is either absent or healthy.
func (p *Planner) dependenciesReady(c domain.MonitoredContainer, deps []string, byName map[string]domain.MonitoredContainer) bool {
	for _, dep := range deps {
		d, ok := byName[dep]
		if !ok {
			p.log.Warn().
				Str(zerowrap.FieldLayer, "usecase").
				Str("container", c.Name).
				Str("depends_on", dep).
				Msg("dependency not found in project group, treating as not ready")
			return false
		}
		if !d.Running() {
			return false
		}
		if d.Health != domain.HealthNone && d.Health != domain.HealthHealthy {
			return false
		}
	}
	return true
}

// topoOrder performs a deterministic Kahn's-algorithm topological sort over
// the edge map (name -> names it depends on). Ties among zero-in-degree
// nodes are resolved by ascending name so dispatch order is reproducible
// across runs. A remaining cycle is broken by forcing in the
// alphabetically smallest unprocessed node and logged at warn level.
func topoOrder(edges map[string][]string, log zerowrap.Logger) []string {
	inDegree := make(map[string]int, len(edges))
	dependents := make(map[string][]string, len(edges)) // dep name -> names that depend on it
	for name := range edges {
		inDegree[name] = 0
	}
	for name, deps := range edges {
		for _, dep := range deps {
			if _, known := edges[dep]; !known {
				continue // dependency outside this project group, no ordering edge
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	processed := make(map[string]bool, len(edges))
	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(edges))
	for len(order) < len(edges) {
		if len(ready) == 0 {
			// Cycle: force in the smallest unprocessed node.
			var candidates []string
			for name := range edges {
				if !processed[name] {
					candidates = append(candidates, name)
				}
			}
			sort.Strings(candidates)
			log.Warn().
				Str(zerowrap.FieldLayer, "usecase").
				Str("container", candidates[0]).
				Msg("dependency cycle detected, breaking it at this container")
			ready = append(ready, candidates[0])
		}

		name := ready[0]
		ready = ready[1:]
		if processed[name] {
			continue
		}
		processed[name] = true
		order = append(order, name)

		next := append([]string(nil), dependents[name]...)
		sort.Strings(next)
		for _, dependent := range next {
			if processed[dependent] {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				sort.Strings(ready)
			}
		}
	}
	return order
}
