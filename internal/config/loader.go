package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/slate/internal/scripts"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a file or from a directory containing
// config.yaml. Files listed under include are merged in order, later files
// overriding earlier ones. Every loaded file is verified against the
// .checksums manifest of its directory when one exists.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	visited := map[string]bool{absPath: true}
	files := []string{absPath}
	if err := loadIncludes(cfg, cfg.Include, filepath.Dir(absPath), visited, &files); err != nil {
		return nil, err
	}
	cfg.Files = files

	if err := verifyAllConfigHashes(files); err != nil {
		return nil, err
	}

	applyConfigDefaults(cfg)
	resolvePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigDir finds the configuration by checking, in order,
// $SLATE_CONFIG_DIR, ~/.config/slate, /etc/slate and ./config.yaml.
func DiscoverConfigDir() (string, error) {
	if dir := os.Getenv("SLATE_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "slate")
		if _, err := os.Stat(userConfigDir); err == nil {
			return userConfigDir, nil
		}
	}

	if _, err := os.Stat("/etc/slate"); err == nil {
		return "/etc/slate", nil
	}

	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml", nil
	}

	return "", fmt.Errorf("no config found (checked: $SLATE_CONFIG_DIR, ~/.config/slate, /etc/slate, ./config.yaml)")
}

// DiscoverAllConfigFiles returns the absolute paths of the root file and
// every file it includes, root first.
func DiscoverAllConfigFiles(configPath string) ([]string, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	visited := map[string]bool{absPath: true}
	files := []string{absPath}
	if err := loadIncludes(cfg, cfg.Include, filepath.Dir(absPath), visited, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func resolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// loadIncludes loads and merges includes depth first. visited guards
// against cycles; files collects the load order.
func loadIncludes(cfg *Config, includes []string, baseDir string, visited map[string]bool, files *[]string) error {
	for i, includePath := range includes {
		includePath = interpolateEnv(includePath)
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, includePath)
		}
		absPath, err := filepath.Abs(includePath)
		if err != nil {
			return fmt.Errorf("include[%d]: failed to resolve path %q: %w", i, includePath, err)
		}

		if visited[absPath] {
			return fmt.Errorf("include[%d]: circular dependency detected: %s", i, absPath)
		}
		if _, err := os.Stat(absPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("include[%d]: file not found: %s\n"+
					"Referenced from: %s\n"+
					"Hint: Check the path is correct and the file exists", i, absPath, baseDir)
			}
			return fmt.Errorf("include[%d]: failed to access file %s: %w", i, absPath, err)
		}
		visited[absPath] = true
		*files = append(*files, absPath)

		included, err := loadConfigFile(absPath)
		if err != nil {
			return fmt.Errorf("include[%d] (%s): %w", i, absPath, err)
		}
		deepMergeConfig(cfg, included)

		if err := loadIncludes(cfg, included.Include, filepath.Dir(absPath), visited, files); err != nil {
			return err
		}
	}
	return nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// deepMergeConfig merges src into dst. Scalars in src win when set, maps
// are merged key by key and lists are appended.
func deepMergeConfig(dst, src *Config) {
	if src.Service.Name != "" {
		dst.Service.Name = src.Service.Name
	}
	if src.Service.LogLevel != "" {
		dst.Service.LogLevel = src.Service.LogLevel
	}
	if src.Service.LogFormat != "" {
		dst.Service.LogFormat = src.Service.LogFormat
	}
	if src.Service.ShutdownTimeout != 0 {
		dst.Service.ShutdownTimeout = src.Service.ShutdownTimeout
	}

	if src.State.Path != "" {
		dst.State.Path = src.State.Path
	}

	if src.API.Enabled {
		dst.API.Enabled = true
	}
	if src.API.Listen != "" {
		dst.API.Listen = src.API.Listen
	}
	if src.API.Auth.APIKey != "" {
		dst.API.Auth.APIKey = src.API.Auth.APIKey
	}
	dst.API.Auth.Tokens = append(dst.API.Auth.Tokens, src.API.Auth.Tokens...)

	if src.Webhooks.Listen != "" {
		dst.Webhooks.Listen = src.Webhooks.Listen
	}
	dst.Webhooks.Endpoints = append(dst.Webhooks.Endpoints, src.Webhooks.Endpoints...)

	if src.Tracker.Fixture != "" {
		dst.Tracker.Fixture = src.Tracker.Fixture
	}

	dst.ActionsDir = append(dst.ActionsDir, src.ActionsDir...)
	if len(src.Actions) > 0 {
		if dst.Actions == nil {
			dst.Actions = make(map[string]ActionConf)
		}
		for id, a := range src.Actions {
			dst.Actions[id] = a
		}
	}

	dst.Applications = append(dst.Applications, src.Applications...)

	dst.Environment.PathLists = append(dst.Environment.PathLists, src.Environment.PathLists...)
	dst.Environment.DynamicDirs = append(dst.Environment.DynamicDirs, src.Environment.DynamicDirs...)
	dst.Environment.Scalars = mergeStrings(dst.Environment.Scalars, src.Environment.Scalars)
	if len(src.Environment.FamilyScalars) > 0 {
		if dst.Environment.FamilyScalars == nil {
			dst.Environment.FamilyScalars = make(map[string]map[string]string)
		}
		for family, vars := range src.Environment.FamilyScalars {
			dst.Environment.FamilyScalars[family] = mergeStrings(dst.Environment.FamilyScalars[family], vars)
		}
	}

	w := src.Workfile
	if w.TemplatesDir != "" {
		dst.Workfile.TemplatesDir = w.TemplatesDir
	}
	dst.Workfile.Extensions = mergeStrings(dst.Workfile.Extensions, w.Extensions)
	dst.Workfile.FallbackComponents = mergeStrings(dst.Workfile.FallbackComponents, w.FallbackComponents)
	if w.Marker != "" {
		dst.Workfile.Marker = w.Marker
	}
	if w.Padding != 0 {
		dst.Workfile.Padding = w.Padding
	}
	if w.PreferNewestVariant {
		dst.Workfile.PreferNewestVariant = true
	}
	if w.ProjectsRoot != "" {
		dst.Workfile.ProjectsRoot = w.ProjectsRoot
	}
	if w.LockDir != "" {
		dst.Workfile.LockDir = w.LockDir
	}

	if src.Jobs.Workers != 0 {
		dst.Jobs.Workers = src.Jobs.Workers
	}
	if src.Jobs.QueueSize != 0 {
		dst.Jobs.QueueSize = src.Jobs.QueueSize
	}
	if src.Jobs.TrackSessions {
		dst.Jobs.TrackSessions = true
	}
	dst.Jobs.Viewers = append(dst.Jobs.Viewers, src.Jobs.Viewers...)

	if src.Maintenance.TickInterval != 0 {
		dst.Maintenance.TickInterval = src.Maintenance.TickInterval
	}
	if src.Maintenance.Jitter != 0 {
		dst.Maintenance.Jitter = src.Maintenance.Jitter
	}
	if src.Maintenance.AppRefresh != 0 {
		dst.Maintenance.AppRefresh = src.Maintenance.AppRefresh
	}
	if src.Maintenance.JobRetention != 0 {
		dst.Maintenance.JobRetention = src.Maintenance.JobRetention
	}
}

func mergeStrings(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.ShutdownTimeout == 0 {
		cfg.Service.ShutdownTimeout = defaults.Service.ShutdownTimeout
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.Workfile.Marker == "" {
		cfg.Workfile.Marker = defaults.Workfile.Marker
	}
	if cfg.Workfile.Padding == 0 {
		cfg.Workfile.Padding = defaults.Workfile.Padding
	}
	if cfg.Workfile.LockDir == "" {
		cfg.Workfile.LockDir = filepath.Join(filepath.Dir(cfg.State.Path), "locks")
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = defaults.Jobs.Workers
	}
	if cfg.Jobs.QueueSize == 0 {
		cfg.Jobs.QueueSize = defaults.Jobs.QueueSize
	}
	if cfg.Maintenance.TickInterval == 0 {
		cfg.Maintenance.TickInterval = defaults.Maintenance.TickInterval
	}
}

// resolvePaths anchors relative filesystem settings at the directory of the
// root config file.
func resolvePaths(cfg *Config, baseDir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	cfg.State.Path = abs(cfg.State.Path)
	cfg.Tracker.Fixture = abs(cfg.Tracker.Fixture)
	for i := range cfg.ActionsDir {
		cfg.ActionsDir[i] = abs(cfg.ActionsDir[i])
	}
	for i := range cfg.Environment.DynamicDirs {
		cfg.Environment.DynamicDirs[i] = abs(cfg.Environment.DynamicDirs[i])
	}
	cfg.Workfile.TemplatesDir = abs(cfg.Workfile.TemplatesDir)
	cfg.Workfile.LockDir = abs(cfg.Workfile.LockDir)
	cfg.Workfile.ProjectsRoot = abs(cfg.Workfile.ProjectsRoot)
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is and caught by validation where they
// matter.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

func unresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); len(m) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if err := unresolved("state.path", cfg.State.Path); err != nil {
		return err
	}

	if cfg.API.Enabled {
		if err := unresolved("api.auth.api_key", cfg.API.Auth.APIKey); err != nil {
			return err
		}
		for i, tok := range cfg.API.Auth.Tokens {
			field := fmt.Sprintf("api.auth.tokens[%d]", i)
			if tok.Token == "" {
				return fmt.Errorf("%s.token is required", field)
			}
			if err := unresolved(field+".token", tok.Token); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("%s.scopes must be non-empty", field)
			}
		}
	}

	if len(cfg.Webhooks.Endpoints) > 0 && cfg.Webhooks.Listen == "" {
		return fmt.Errorf("webhooks.listen is required when endpoints are configured")
	}
	seenPaths := make(map[string]bool)
	for i, ep := range cfg.Webhooks.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("%s.path must start with /", field)
		}
		if seenPaths[ep.Path] {
			return fmt.Errorf("%s.path %s is duplicated", field, ep.Path)
		}
		seenPaths[ep.Path] = true
		if ep.Secret == "" {
			return fmt.Errorf("%s.secret is required", field)
		}
		if err := unresolved(field+".secret", ep.Secret); err != nil {
			return err
		}
		if ep.SignatureHeader == "" {
			return fmt.Errorf("%s.signature_header is required", field)
		}
	}

	for i, app := range cfg.Applications {
		field := fmt.Sprintf("applications[%d]", i)
		if app.Identifier == "" || app.Label == "" {
			return fmt.Errorf("%s: identifier and label are required", field)
		}
		if app.Path == "" && app.Root == "" {
			return fmt.Errorf("%s: one of path or root is required", field)
		}
		if app.Path != "" && app.Root != "" {
			return fmt.Errorf("%s: path and root are mutually exclusive", field)
		}
	}

	for i, pl := range cfg.Environment.PathLists {
		if pl.Variable == "" {
			return fmt.Errorf("environment.path_lists[%d].variable is required", i)
		}
	}

	for family, ext := range cfg.Workfile.Extensions {
		if strings.Trim(ext, ".") == "" {
			return fmt.Errorf("workfile.extensions.%s must not be empty", family)
		}
	}
	if len(cfg.Workfile.Extensions) > 0 && cfg.Workfile.TemplatesDir == "" {
		return fmt.Errorf("workfile.templates_dir is required when extensions are configured")
	}
	if cfg.Workfile.Padding < 1 {
		return fmt.Errorf("workfile.padding must be positive")
	}

	if cfg.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	if cfg.Jobs.QueueSize < 1 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}

	m := cfg.Maintenance
	if m.TickInterval < time.Second {
		return fmt.Errorf("maintenance.tick_interval must be at least 1s")
	}
	if m.Jitter < 0 || m.AppRefresh < 0 || m.JobRetention < 0 {
		return fmt.Errorf("maintenance intervals must not be negative")
	}
	if m.AppRefresh > 0 && m.AppRefresh < m.TickInterval {
		return fmt.Errorf("maintenance.app_refresh must not be shorter than tick_interval")
	}

	for id, a := range cfg.Actions {
		if a.Timeouts.Discover < 0 || a.Timeouts.Interface < 0 || a.Timeouts.Launch < 0 {
			return fmt.Errorf("actions.%s.timeouts must not be negative", id)
		}
	}
	return nil
}

// ActionTimeouts returns the per-action timeouts keyed by identifier.
func (c *Config) ActionTimeouts() map[string]scripts.Timeouts {
	out := make(map[string]scripts.Timeouts, len(c.Actions))
	for id, a := range c.Actions {
		out[id] = a.Timeouts
	}
	return out
}
