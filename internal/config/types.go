package config

import (
	"time"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/launchenv"
	"github.com/mattjoyce/slate/internal/scripts"
)

// Config is the complete slate configuration.
type Config struct {
	Include      []string              `yaml:"include,omitempty"`
	Service      ServiceConfig         `yaml:"service"`
	State        StateConfig           `yaml:"state"`
	API          APIConfig             `yaml:"api,omitempty"`
	Webhooks     WebhooksConfig        `yaml:"webhooks,omitempty"`
	Tracker      TrackerConfig         `yaml:"tracker"`
	ActionsDir   []string              `yaml:"actions_dir,omitempty"`
	Actions      map[string]ActionConf `yaml:"actions,omitempty"`
	Applications []appstore.SearchSpec `yaml:"applications,omitempty"`
	Environment  launchenv.Options     `yaml:"environment,omitempty"`
	Workfile     WorkfileConfig        `yaml:"workfile"`
	Jobs         JobsConfig            `yaml:"jobs"`
	Maintenance  MaintenanceConfig     `yaml:"maintenance,omitempty"`

	// Files lists every file the configuration was loaded from, root first.
	Files []string `yaml:"-"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StateConfig locates the job database.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the HTTP transport.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines bearer tokens.
type APIAuthConfig struct {
	// APIKey grants every scope.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken is a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// WebhooksConfig defines signed event ingress from the tracking platform.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints,omitempty"`
}

// WebhookEndpoint is one signed ingress path.
type WebhookEndpoint struct {
	Path            string   `yaml:"path"`
	Secret          string   `yaml:"secret"`
	SignatureHeader string   `yaml:"signature_header"`
	MaxBodySize     string   `yaml:"max_body_size,omitempty"` // e.g. "1MB"
	Topics          []string `yaml:"topics,omitempty"`
}

// TrackerConfig selects the tracking platform backend.
type TrackerConfig struct {
	// Fixture is a YAML file served by the in-memory client.
	Fixture string `yaml:"fixture"`
}

// ActionConf tunes one script action.
type ActionConf struct {
	Timeouts scripts.Timeouts `yaml:"timeouts,omitempty"`
}

// WorkfileConfig drives work file resolution.
type WorkfileConfig struct {
	TemplatesDir        string            `yaml:"templates_dir"`
	Extensions          map[string]string `yaml:"extensions,omitempty"`
	FallbackComponents  map[string]string `yaml:"fallback_components,omitempty"`
	Marker              string            `yaml:"marker,omitempty"`
	Padding             int               `yaml:"padding,omitempty"`
	PreferNewestVariant bool              `yaml:"prefer_newest_variant,omitempty"`
	ProjectsRoot        string            `yaml:"projects_root,omitempty"`
	LockDir             string            `yaml:"lock_dir,omitempty"`
}

// JobsConfig sizes the background worker pool.
type JobsConfig struct {
	Workers       int  `yaml:"workers"`
	QueueSize     int  `yaml:"queue_size"`
	TrackSessions bool `yaml:"track_sessions"`

	// Viewers are application patterns offered when opening versions.
	Viewers []string `yaml:"viewers,omitempty"`
}

// MaintenanceConfig schedules background housekeeping. A zero interval
// disables the task.
type MaintenanceConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Jitter       time.Duration `yaml:"jitter"`
	AppRefresh   time.Duration `yaml:"app_refresh"`
	JobRetention time.Duration `yaml:"job_retention"`
}

// Defaults returns a Config with defaults applied.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "slate",
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: 30 * time.Second,
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Workfile: WorkfileConfig{
			Marker:  "v",
			Padding: 3,
		},
		Jobs: JobsConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Maintenance: MaintenanceConfig{
			TickInterval: time.Minute,
		},
	}
}
