// Package domain contains pure business types without external dependencies.
// These types are used throughout the application and have no tags or
// framework dependencies.
package domain

import "time"

// HealthStatus mirrors the container engine's own healthcheck status.
type HealthStatus string

const (
	HealthNone      HealthStatus = "none"
	HealthStarting  HealthStatus = "starting"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ParseHealthStatus maps the engine's raw health string (as returned by
// GetContainerHealthStatus) to the typed enum, defaulting to HealthNone for
// an empty or unrecognized value.
func ParseHealthStatus(s string) HealthStatus {
	switch HealthStatus(s) {
	case HealthStarting, HealthHealthy, HealthUnhealthy:
		return HealthStatus(s)
	default:
		return HealthNone
	}
}

// ContainerState is the engine-reported run state of a container.
type ContainerState string

const (
	StateCreated    ContainerState = "created"
	StateRunning    ContainerState = "running"
	StateRestarting ContainerState = "restarting"
	StatePaused     ContainerState = "paused"
	StateExited     ContainerState = "exited"
)

// MountSpec is a single bind mount or named volume attached to a container.
type MountSpec struct {
	Source   string // host path for binds, volume name for volumes
	Target   string
	Type     string // "bind" | "volume" | "tmpfs"
	Driver   string // non-empty only for non-local volume drivers
	ReadOnly bool
}

// PortSpec is a single published port mapping.
type PortSpec struct {
	ContainerPort string // e.g. "8080/tcp"
	HostIP        string
	HostPort      string
}

// NetworkAttachment describes one network a container is joined to.
type NetworkAttachment struct {
	NetworkName string
	Aliases     []string
	IPAddress   string
}

// CreateSpec is a fully reconstructable description of how to create a
// container, captured from an existing one so it can be recreated
// identically (or with a new image reference) during a swap.
type CreateSpec struct {
	Image          string
	Env            []string
	Mounts         []MountSpec
	Ports          []PortSpec
	Networks       []NetworkAttachment
	Labels         map[string]string
	RestartPolicy  string
	Entrypoint     []string
	Cmd            []string
	User           string
	WorkingDir     string
	Hostname       string
	Links          []string
	HasHealthcheck bool
}

// LifecycleHooks holds the four hook commands and their per-hook timeouts.
type LifecycleHooks struct {
	PreCheck          string
	PreCheckTimeout   time.Duration
	PreUpdate         string
	PreUpdateTimeout  time.Duration
	PostUpdate        string
	PostUpdateTimeout time.Duration
	PostCheck         string
	PostCheckTimeout  time.Duration
}

// MonitoredContainer is a point-in-time snapshot of a container Guerite
// manages, captured at the start of a cycle.
type MonitoredContainer struct {
	Name         string // current name, identity for the cycle
	ID           string // engine-assigned identifier
	ImageRef     string // repo:tag as written on the container
	ImageID      string // current image digest/id
	Project      string // compose project label, "" if none
	Scope        string // guerite.scope label value, "" if unset
	SwarmManaged bool   // carries com.docker.swarm.service.id
	Links        []string
	DependsOn    []string // base names, parsed from depends_on label
	Crons        CronExpressions
	MonitorOnly  bool
	NoPull       bool
	NoRestart    bool
	Hooks        LifecycleHooks
	Health       HealthStatus
	State        ContainerState
	StartedAt    time.Time
	Spec         CreateSpec
}

// Running reports whether the container is presently up.
func (c MonitoredContainer) Running() bool {
	return c.State == StateRunning
}

// Uptime returns how long the container has been running as of now.
func (c MonitoredContainer) Uptime(now time.Time) time.Duration {
	if c.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(c.StartedAt)
}

// RollbackArtifact describes the renamed-original/new-replacement pair left
// behind while a swap is in progress.
type RollbackArtifact struct {
	BaseName  string
	OldName   string // <name>-guerite-old-<suffix>
	OldID     string
	NewName   string // <name>-guerite-new-<suffix>
	NewID     string
	CreatedAt time.Time
}

// WithinGrace reports whether the artifact is still inside the rollback
// grace window and therefore blocks pruning.
func (a RollbackArtifact) WithinGrace(now time.Time, grace time.Duration) bool {
	return now.Sub(a.CreatedAt) < grace
}

// DetectBatch accumulates newly discovered monitored container names between
// flushes.
type DetectBatch struct {
	Names []string
}

// Empty reports whether the batch has nothing to flush.
func (b DetectBatch) Empty() bool {
	return len(b.Names) == 0
}
