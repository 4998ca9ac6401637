// Package config loads Guerite's settings from environment variables
// (§6). There is no config file; every knob is a GUERITE_* variable with a
// sane default, bound the way the teacher's daemon-mode loader binds its
// own env-only surface: a private viper instance, SetDefault before
// AutomaticEnv, and a dotted-key-to-underscore replacer
// (bnema-gordon/internal/app/run.go's initConfig, not the file-backed
// internal/config/config.go, is the closer analogue here since Guerite
// carries no file-based configuration layer).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcarmo/guerite/internal/domain"
)

// Config is the fully resolved, immutable configuration for one Guerite
// process. internal/app wires every adapter and use case from it.
type Config struct {
	LogLevel  string
	LogFormat string

	Timezone  *time.Location
	StateFile string

	HealthCheckBackoff time.Duration
	HealthCheckTimeout time.Duration
	ActionCooldown     time.Duration
	RestartRetryLimit  int
	StopTimeout        time.Duration
	RollbackGrace      time.Duration
	PruneTimeout       time.Duration
	HookTimeout        time.Duration
	PruneCron          string

	Notifications map[domain.Category]bool

	DryRun         bool
	MonitorOnly    bool
	NoPull         bool
	NoRestart      bool
	RollingRestart bool
	RunOnce        bool

	Scope             string
	IncludeContainers []string
	ExcludeContainers []string

	HTTPAPIEnabled bool
	HTTPAPIHost    string
	HTTPAPIPort    int
	HTTPAPIToken   string
	HTTPAPIMetrics bool

	Labels domain.LabelSet

	PushoverToken string
	PushoverUser  string
	PushoverAPI   string
	WebhookURL    string
}

// categoryNames maps the GUERITE_NOTIFICATIONS vocabulary to domain
// categories, following the enum in §6.
var categoryNames = map[string]domain.Category{
	"update":   domain.CategoryUpdate,
	"restart":  domain.CategoryRestart,
	"recreate": domain.CategoryRecreate,
	"health":   domain.CategoryHealth,
	"startup":  domain.CategoryStartup,
	"detect":   domain.CategoryDetect,
	"prune":    domain.CategoryPrune,
	"all":      domain.CategoryAll,
}

const defaultPushoverAPI = "https://api.pushover.net/1/messages.json"

// Load reads every GUERITE_* variable (plus the unprefixed DOCKER_HOST,
// left to the Docker client's own FromEnv resolution) and returns a
// validated Config.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tz", "")
	v.SetDefault("state.file", "/var/lib/guerite/state.json")
	v.SetDefault("health.check.backoff.seconds", 300)
	v.SetDefault("health.check.timeout.seconds", 60)
	v.SetDefault("action.cooldown.seconds", 60)
	v.SetDefault("restart.retry.limit", 3)
	v.SetDefault("stop.timeout.seconds", 10)
	v.SetDefault("rollback.grace.seconds", 3600)
	v.SetDefault("prune.timeout.seconds", 180)
	v.SetDefault("hook.timeout.seconds", 60)
	v.SetDefault("prune.cron", "")
	v.SetDefault("notifications", "update")
	v.SetDefault("dry.run", false)
	v.SetDefault("monitor.only", false)
	v.SetDefault("no.pull", false)
	v.SetDefault("no.restart", false)
	v.SetDefault("rolling.restart", false)
	v.SetDefault("run.once", false)
	v.SetDefault("scope", "")
	v.SetDefault("include.containers", "")
	v.SetDefault("exclude.containers", "")
	v.SetDefault("http.api", false)
	v.SetDefault("http.api.host", "0.0.0.0")
	v.SetDefault("http.api.port", 8282)
	v.SetDefault("http.api.token", "")
	v.SetDefault("http.api.metrics", false)

	defaults := domain.DefaultLabelSet()
	v.SetDefault("update.label", defaults.Update)
	v.SetDefault("restart.label", defaults.Restart)
	v.SetDefault("recreate.label", defaults.Recreate)
	v.SetDefault("health.check.label", defaults.HealthCheck)
	v.SetDefault("depends.on.label", defaults.DependsOn)
	v.SetDefault("scope.label", defaults.Scope)
	v.SetDefault("monitor.only.label", defaults.MonitorOnly)
	v.SetDefault("no.pull.label", defaults.NoPull)
	v.SetDefault("no.restart.label", defaults.NoRestart)
	v.SetDefault("lifecycle.pre.check.label", defaults.PreCheck)
	v.SetDefault("lifecycle.pre.update.label", defaults.PreUpdate)
	v.SetDefault("lifecycle.post.update.label", defaults.PostUpdate)
	v.SetDefault("lifecycle.post.check.label", defaults.PostCheck)

	v.SetDefault("pushover.token", "")
	v.SetDefault("pushover.user", "")
	v.SetDefault("pushover.api", defaultPushoverAPI)
	v.SetDefault("webhook.url", "")

	v.SetEnvPrefix("GUERITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		LogLevel:           v.GetString("log.level"),
		LogFormat:          v.GetString("log.format"),
		StateFile:          v.GetString("state.file"),
		HealthCheckBackoff: time.Duration(v.GetInt("health.check.backoff.seconds")) * time.Second,
		HealthCheckTimeout: time.Duration(v.GetInt("health.check.timeout.seconds")) * time.Second,
		ActionCooldown:     time.Duration(v.GetInt("action.cooldown.seconds")) * time.Second,
		RestartRetryLimit:  v.GetInt("restart.retry.limit"),
		StopTimeout:        time.Duration(v.GetInt("stop.timeout.seconds")) * time.Second,
		RollbackGrace:      time.Duration(v.GetInt("rollback.grace.seconds")) * time.Second,
		PruneTimeout:       time.Duration(v.GetInt("prune.timeout.seconds")) * time.Second,
		HookTimeout:        time.Duration(v.GetInt("hook.timeout.seconds")) * time.Second,
		PruneCron:          v.GetString("prune.cron"),

		DryRun:         v.GetBool("dry.run"),
		MonitorOnly:    v.GetBool("monitor.only"),
		NoPull:         v.GetBool("no.pull"),
		NoRestart:      v.GetBool("no.restart"),
		RollingRestart: v.GetBool("rolling.restart"),
		RunOnce:        v.GetBool("run.once"),

		Scope:             v.GetString("scope"),
		IncludeContainers: splitCSV(v.GetString("include.containers")),
		ExcludeContainers: splitCSV(v.GetString("exclude.containers")),

		HTTPAPIEnabled: v.GetBool("http.api"),
		HTTPAPIHost:    v.GetString("http.api.host"),
		HTTPAPIPort:    v.GetInt("http.api.port"),
		HTTPAPIToken:   v.GetString("http.api.token"),
		HTTPAPIMetrics: v.GetBool("http.api.metrics"),

		Labels: domain.LabelSet{
			Update:      v.GetString("update.label"),
			Restart:     v.GetString("restart.label"),
			Recreate:    v.GetString("recreate.label"),
			HealthCheck: v.GetString("health.check.label"),
			DependsOn:   v.GetString("depends.on.label"),
			Scope:       v.GetString("scope.label"),
			MonitorOnly: v.GetString("monitor.only.label"),
			NoPull:      v.GetString("no.pull.label"),
			NoRestart:   v.GetString("no.restart.label"),

			PreCheck:   v.GetString("lifecycle.pre.check.label"),
			PreUpdate:  v.GetString("lifecycle.pre.update.label"),
			PostUpdate: v.GetString("lifecycle.post.update.label"),
			PostCheck:  v.GetString("lifecycle.post.check.label"),

			PreCheckTimeout:   defaults.PreCheckTimeout,
			PreUpdateTimeout:  defaults.PreUpdateTimeout,
			PostUpdateTimeout: defaults.PostUpdateTimeout,
			PostCheckTimeout:  defaults.PostCheckTimeout,
		},

		PushoverToken: v.GetString("pushover.token"),
		PushoverUser:  v.GetString("pushover.user"),
		PushoverAPI:   v.GetString("pushover.api"),
		WebhookURL:    v.GetString("webhook.url"),
	}

	loc, err := resolveTimezone(v.GetString("tz"))
	if err != nil {
		return nil, err
	}
	cfg.Timezone = loc

	cats, err := parseNotifications(v.GetString("notifications"))
	if err != nil {
		return nil, err
	}
	cfg.Notifications = cats

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolveTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("GUERITE_TZ %q: %w", name, err)
	}
	return loc, nil
}

func parseNotifications(raw string) (map[domain.Category]bool, error) {
	result := make(map[domain.Category]bool)
	for _, name := range splitCSV(raw) {
		cat, ok := categoryNames[strings.ToLower(name)]
		if !ok {
			valid := make([]string, 0, len(categoryNames))
			for k := range categoryNames {
				valid = append(valid, k)
			}
			return nil, fmt.Errorf("GUERITE_NOTIFICATIONS: unknown category %q (valid: %s)", name, strings.Join(valid, ", "))
		}
		result[cat] = true
	}
	return result, nil
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

func (c *Config) validate() error {
	if c.HTTPAPIPort < 0 || c.HTTPAPIPort > 65535 {
		return fmt.Errorf("GUERITE_HTTP_API_PORT out of range: %d", c.HTTPAPIPort)
	}
	if len(c.IncludeContainers) > 0 && len(c.ExcludeContainers) > 0 {
		for _, in := range c.IncludeContainers {
			for _, ex := range c.ExcludeContainers {
				if in == ex {
					return fmt.Errorf("container %q listed in both GUERITE_INCLUDE_CONTAINERS and GUERITE_EXCLUDE_CONTAINERS", in)
				}
			}
		}
	}
	return nil
}
