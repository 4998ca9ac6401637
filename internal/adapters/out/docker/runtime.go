// Package docker implements the Engine Client boundary (§4.3 driven port)
// against the Docker Engine API.
package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/zerowrap"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
)

// Runtime implements the out.EngineClient port against a live Docker
// daemon (or anything speaking its API, Podman included).
type Runtime struct {
	client *client.Client
	labels domain.LabelSet
}

// NewRuntime creates a Docker runtime using the standard environment
// variables (DOCKER_HOST, DOCKER_CERT_PATH, ...) to locate the daemon.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &Runtime{client: cli, labels: domain.DefaultLabelSet()}, nil
}

// NewRuntimeWithClient wraps an already-configured client (used by tests and
// by callers pointed at a non-default socket).
func NewRuntimeWithClient(cli *client.Client) *Runtime {
	return &Runtime{client: cli, labels: domain.DefaultLabelSet()}
}

// SetLabelSet overrides the label key names this runtime reads, following
// any GUERITE_*_LABEL configuration.
func (r *Runtime) SetLabelSet(ls domain.LabelSet) {
	r.labels = ls
}

// CreateContainer creates a new container from a reconstructed spec.
func (r *Runtime) CreateContainer(ctx context.Context, name string, spec domain.CreateSpec) (string, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "CreateContainer",
		"container_name":      name,
		"image":                spec.Image,
	})
	log := zerowrap.FromCtx(ctx)

	exposedPorts := make(nat.PortSet)
	portBindings := make(nat.PortMap)
	for _, p := range spec.Ports {
		port := nat.Port(p.ContainerPort)
		exposedPorts[port] = struct{}{}
		portBindings[port] = append(portBindings[port], nat.PortBinding{HostIP: p.HostIP, HostPort: p.HostPort})
	}

	var mounts []mount.Mount
	for _, m := range spec.Mounts {
		mt := mount.Mount{
			Type:     mount.Type(m.Type),
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		}
		if m.Type == "volume" && m.Driver != "" {
			mt.VolumeOptions = &mount.VolumeOptions{DriverConfig: &mount.Driver{Name: m.Driver}}
		}
		mounts = append(mounts, mt)
	}

	containerConfig := &container.Config{
		Image:      spec.Image,
		Env:        spec.Env,
		Entrypoint: spec.Entrypoint,
		Cmd:        spec.Cmd,
		Labels:     spec.Labels,
		User:       spec.User,
		WorkingDir: spec.WorkingDir,
		Hostname:   spec.Hostname,
		ExposedPorts: exposedPorts,
	}

	hostConfig := &container.HostConfig{
		Mounts:       mounts,
		PortBindings: portBindings,
		Links:        spec.Links,
	}
	if spec.RestartPolicy != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyMode(spec.RestartPolicy)}
	}

	var netConfig *network.NetworkingConfig
	if len(spec.Networks) > 0 {
		netConfig = &network.NetworkingConfig{EndpointsConfig: map[string]*network.EndpointSettings{}}
		for _, n := range spec.Networks {
			netConfig.EndpointsConfig[n.NetworkName] = &network.EndpointSettings{Aliases: n.Aliases}
		}
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, netConfig, nil, name)
	if err != nil {
		return "", log.WrapErr(err, "failed to create container")
	}
	log.Info().Str(zerowrap.FieldEntityID, resp.ID).Msg("container created")
	return resp.ID, nil
}

// StartContainer starts a container.
func (r *Runtime) StartContainer(ctx context.Context, nameOrID string) error {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "StartContainer",
		zerowrap.FieldEntityID: nameOrID,
	})
	log := zerowrap.FromCtx(ctx)

	if err := r.client.ContainerStart(ctx, nameOrID, container.StartOptions{}); err != nil {
		return log.WrapErr(err, "failed to start container")
	}
	log.Info().Msg("container started")
	return nil
}

// StopContainer stops a container, giving it timeout to exit gracefully
// before the engine sends SIGKILL.
func (r *Runtime) StopContainer(ctx context.Context, nameOrID string, timeout time.Duration) error {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "StopContainer",
		zerowrap.FieldEntityID: nameOrID,
	})
	log := zerowrap.FromCtx(ctx)

	seconds := int(timeout.Seconds())
	if err := r.client.ContainerStop(ctx, nameOrID, container.StopOptions{Timeout: &seconds}); err != nil {
		return log.WrapErr(err, "failed to stop container")
	}
	log.Info().Msg("container stopped")
	return nil
}

// RemoveContainer removes a container.
func (r *Runtime) RemoveContainer(ctx context.Context, nameOrID string, force bool) error {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "RemoveContainer",
		zerowrap.FieldEntityID: nameOrID,
		"force":                force,
	})
	log := zerowrap.FromCtx(ctx)

	if err := r.client.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: force}); err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Msg("container not found, already removed")
			return nil
		}
		return log.WrapErr(err, "failed to remove container")
	}
	log.Info().Msg("container removed")
	return nil
}

// RenameContainer renames a container, the core primitive behind the swap
// path (§4.6.b): the current container is renamed aside before the
// replacement takes its name.
func (r *Runtime) RenameContainer(ctx context.Context, nameOrID, newName string) error {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "RenameContainer",
		zerowrap.FieldEntityID: nameOrID,
		"new_name":             newName,
	})
	log := zerowrap.FromCtx(ctx)

	if err := r.client.ContainerRename(ctx, nameOrID, newName); err != nil {
		return log.WrapErr(err, "failed to rename container")
	}
	log.Info().Msg("container renamed")
	return nil
}

// ListContainers returns every container the daemon knows about, fully
// inspected so the caller gets labels, health, and a reconstructable spec
// in one call.
func (r *Runtime) ListContainers(ctx context.Context, all bool) ([]domain.MonitoredContainer, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "ListContainers",
		"all":                 all,
	})
	log := zerowrap.FromCtx(ctx)

	summaries, err := r.client.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, log.WrapErr(err, "failed to list containers")
	}

	result := make([]domain.MonitoredContainer, 0, len(summaries))
	for _, s := range summaries {
		mc, err := r.InspectContainer(ctx, s.ID)
		if err != nil {
			log.Warn().Str(zerowrap.FieldEntityID, s.ID).Err(err).Msg("skipping container, inspect failed")
			continue
		}
		result = append(result, mc)
	}
	return result, nil
}

// InspectContainer inspects a single container and maps it to the domain's
// MonitoredContainer, including the guerite.* labels.
func (r *Runtime) InspectContainer(ctx context.Context, nameOrID string) (domain.MonitoredContainer, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "InspectContainer",
		zerowrap.FieldEntityID: nameOrID,
	})
	log := zerowrap.FromCtx(ctx)

	resp, err := r.client.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return domain.MonitoredContainer{}, log.WrapErr(err, "failed to inspect container")
	}
	return r.monitoredContainerFromInspect(resp), nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(s string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && v
}

func parseHookTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func hasHealthcheck(cfg *container.Config) bool {
	if cfg == nil || cfg.Healthcheck == nil {
		return false
	}
	test := cfg.Healthcheck.Test
	return !(len(test) > 0 && test[0] == "NONE")
}

func containerStateFrom(status string) domain.ContainerState {
	switch domain.ContainerState(status) {
	case domain.StateCreated, domain.StateRunning, domain.StateRestarting, domain.StatePaused, domain.StateExited:
		return domain.ContainerState(status)
	default:
		return domain.StateExited
	}
}

func healthFrom(state *container.State, configuredHealthcheck bool) domain.HealthStatus {
	if !configuredHealthcheck || state == nil || state.Health == nil {
		return domain.HealthNone
	}
	return domain.ParseHealthStatus(state.Health.Status)
}

func (r *Runtime) monitoredContainerFromInspect(resp container.InspectResponse) domain.MonitoredContainer {
	labels := map[string]string{}
	if resp.Config != nil {
		labels = resp.Config.Labels
	}
	ls := r.labels
	configuredHealthcheck := resp.Config != nil && hasHealthcheck(resp.Config)

	var startedAt time.Time
	if resp.State != nil && resp.State.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, resp.State.StartedAt); err == nil {
			startedAt = t
		}
	}

	status := ""
	if resp.State != nil {
		status = resp.State.Status
	}

	return domain.MonitoredContainer{
		Name:      strings.TrimPrefix(resp.Name, "/"),
		ID:        resp.ID,
		ImageRef:  resp.Config.Image,
		ImageID:   resp.Image,
		Project:      labels[domain.LabelComposeProject],
		Scope:        labels[ls.Scope],
		SwarmManaged: labels[domain.LabelSwarmService] != "",
		Links:        resp.HostConfig.Links,
		DependsOn: splitCSV(labels[ls.DependsOn]),
		Crons: domain.CronExpressions{
			Update:      labels[ls.Update],
			Restart:     labels[ls.Restart],
			Recreate:    labels[ls.Recreate],
			HealthCheck: labels[ls.HealthCheck],
		},
		MonitorOnly: isTruthy(labels[ls.MonitorOnly]),
		NoPull:      isTruthy(labels[ls.NoPull]),
		NoRestart:   isTruthy(labels[ls.NoRestart]),
		Hooks: domain.LifecycleHooks{
			PreCheck:          labels[ls.PreCheck],
			PreCheckTimeout:   parseHookTimeout(labels[ls.PreCheckTimeout], 0),
			PreUpdate:         labels[ls.PreUpdate],
			PreUpdateTimeout:  parseHookTimeout(labels[ls.PreUpdateTimeout], 0),
			PostUpdate:        labels[ls.PostUpdate],
			PostUpdateTimeout: parseHookTimeout(labels[ls.PostUpdateTimeout], 0),
			PostCheck:         labels[ls.PostCheck],
			PostCheckTimeout:  parseHookTimeout(labels[ls.PostCheckTimeout], 0),
		},
		Health:    healthFrom(resp.State, configuredHealthcheck),
		State:     containerStateFrom(status),
		StartedAt: startedAt,
		Spec:      specFromInspect(resp, configuredHealthcheck),
	}
}

func specFromInspect(resp container.InspectResponse, configuredHealthcheck bool) domain.CreateSpec {
	spec := domain.CreateSpec{
		Image:          resp.Config.Image,
		Env:            resp.Config.Env,
		Entrypoint:     resp.Config.Entrypoint,
		Cmd:            resp.Config.Cmd,
		Labels:         resp.Config.Labels,
		User:           resp.Config.User,
		WorkingDir:     resp.Config.WorkingDir,
		Hostname:       resp.Config.Hostname,
		Links:          resp.HostConfig.Links,
		HasHealthcheck: configuredHealthcheck,
		RestartPolicy:  string(resp.HostConfig.RestartPolicy.Name),
	}

	for _, m := range resp.Mounts {
		spec.Mounts = append(spec.Mounts, domain.MountSpec{
			Source:   m.Source,
			Target:   m.Destination,
			Type:     string(m.Type),
			Driver:   m.Driver,
			ReadOnly: !m.RW,
		})
	}

	if resp.NetworkSettings != nil {
		for containerPort, bindings := range resp.NetworkSettings.Ports {
			for _, b := range bindings {
				spec.Ports = append(spec.Ports, domain.PortSpec{
					ContainerPort: string(containerPort),
					HostIP:        b.HostIP,
					HostPort:      b.HostPort,
				})
			}
		}
		for name, ep := range resp.NetworkSettings.Networks {
			ip := ""
			if ep != nil {
				ip = ep.IPAddress
			}
			var aliases []string
			if ep != nil {
				aliases = ep.Aliases
			}
			spec.Networks = append(spec.Networks, domain.NetworkAttachment{
				NetworkName: name,
				Aliases:     aliases,
				IPAddress:   ip,
			})
		}
	}

	return spec
}

// Ping checks whether the daemon is responsive.
func (r *Runtime) Ping(ctx context.Context) error {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "Ping",
	})
	log := zerowrap.FromCtx(ctx)

	if _, err := r.client.Ping(ctx); err != nil {
		return log.WrapErr(err, "docker ping failed")
	}
	return nil
}

// Version returns the daemon's reported version string.
func (r *Runtime) Version(ctx context.Context) (string, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "Version",
	})
	log := zerowrap.FromCtx(ctx)

	v, err := r.client.ServerVersion(ctx)
	if err != nil {
		return "", log.WrapErr(err, "failed to get docker version")
	}
	return v.Version, nil
}

var _ out.EngineClient = (*Runtime)(nil)
