package domain

// Default label key names (§6). Every key is configurable via a matching
// GUERITE_*_LABEL environment variable; LabelSet below carries the
// effective (possibly overridden) names for a running process.
const (
	DefaultLabelUpdate      = "guerite.update"
	DefaultLabelRestart     = "guerite.restart"
	DefaultLabelRecreate    = "guerite.recreate"
	DefaultLabelHealthCheck = "guerite.health_check"
	DefaultLabelDependsOn   = "guerite.depends_on"
	DefaultLabelScope       = "guerite.scope"
	DefaultLabelMonitorOnly = "guerite.monitor_only"
	DefaultLabelNoPull      = "guerite.no_pull"
	DefaultLabelNoRestart   = "guerite.no_restart"

	DefaultLabelPreCheck   = "guerite.lifecycle.pre_check"
	DefaultLabelPreUpdate  = "guerite.lifecycle.pre_update"
	DefaultLabelPostUpdate = "guerite.lifecycle.post_update"
	DefaultLabelPostCheck  = "guerite.lifecycle.post_check"

	DefaultLabelPreCheckTimeout   = "guerite.lifecycle.pre_check_timeout_seconds"
	DefaultLabelPreUpdateTimeout  = "guerite.lifecycle.pre_update_timeout_seconds"
	DefaultLabelPostUpdateTimeout = "guerite.lifecycle.post_update_timeout_seconds"
	DefaultLabelPostCheckTimeout  = "guerite.lifecycle.post_check_timeout_seconds"

	// Engine-native labels Guerite reads but never configures.
	LabelComposeProject = "com.docker.compose.project"
	LabelSwarmService   = "com.docker.swarm.service.id"
)

// LabelSet is the effective set of label key names a process uses to read
// container metadata, after applying any GUERITE_*_LABEL overrides.
type LabelSet struct {
	Update      string
	Restart     string
	Recreate    string
	HealthCheck string
	DependsOn   string
	Scope       string
	MonitorOnly string
	NoPull      string
	NoRestart   string

	PreCheck   string
	PreUpdate  string
	PostUpdate string
	PostCheck  string

	PreCheckTimeout   string
	PreUpdateTimeout  string
	PostUpdateTimeout string
	PostCheckTimeout  string
}

// DefaultLabelSet returns the built-in label key names.
func DefaultLabelSet() LabelSet {
	return LabelSet{
		Update:      DefaultLabelUpdate,
		Restart:     DefaultLabelRestart,
		Recreate:    DefaultLabelRecreate,
		HealthCheck: DefaultLabelHealthCheck,
		DependsOn:   DefaultLabelDependsOn,
		Scope:       DefaultLabelScope,
		MonitorOnly: DefaultLabelMonitorOnly,
		NoPull:      DefaultLabelNoPull,
		NoRestart:   DefaultLabelNoRestart,

		PreCheck:   DefaultLabelPreCheck,
		PreUpdate:  DefaultLabelPreUpdate,
		PostUpdate: DefaultLabelPostUpdate,
		PostCheck:  DefaultLabelPostCheck,

		PreCheckTimeout:   DefaultLabelPreCheckTimeout,
		PreUpdateTimeout:  DefaultLabelPreUpdateTimeout,
		PostUpdateTimeout: DefaultLabelPostUpdateTimeout,
		PostCheckTimeout:  DefaultLabelPostCheckTimeout,
	}
}

// ActionLabelKeys returns the four cron-bearing label keys in a stable
// order, paired with the ActionKind they configure.
func (l LabelSet) ActionLabelKeys() []struct {
	Kind ActionKind
	Key  string
} {
	return []struct {
		Kind ActionKind
		Key  string
	}{
		{ActionUpdate, l.Update},
		{ActionRestart, l.Restart},
		{ActionRecreate, l.Recreate},
		{ActionHealthRestart, l.HealthCheck},
	}
}
