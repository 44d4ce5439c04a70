package launchenv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/tracker"
)

// PathList configures one path-list variable. Fragments are appended in
// precedence order: Generic, then the application family's, then the task
// type's. Entries may use {family}, {app} and {task_type}.
type PathList struct {
	Variable  string              `yaml:"variable"`
	Generic   []string            `yaml:"generic,omitempty"`
	Families  map[string][]string `yaml:"families,omitempty"`
	TaskTypes map[string][]string `yaml:"task_types,omitempty"`
}

// PathLists appends the configured plugin directories. Directories that do
// not exist are skipped.
func PathLists(lists []PathList) Contributor {
	return ContributorFunc{ID: "path_lists", Fn: func(ctx context.Context, req Request, env Environment) (Environment, error) {
		family := req.Family()
		taskType := strings.ToLower(req.Task.TypeName)
		for _, pl := range lists {
			var entries []string
			entries = append(entries, pl.Generic...)
			entries = append(entries, pl.Families[family]...)
			if taskType != "" {
				entries = append(entries, pl.TaskTypes[taskType]...)
			}

			var present []string
			for _, entry := range entries {
				dir := placeholders(entry, req)
				if isDir(dir) {
					present = append(present, dir)
				}
			}
			if len(present) > 0 {
				env = env.Append(pl.Variable, present...)
			}
		}
		return env, nil
	}}
}

func placeholders(s string, req Request) string {
	return strings.NewReplacer(
		"{family}", req.Family(),
		"{app}", req.Application.Identifier,
		"{task_type}", strings.ToLower(req.Task.TypeName),
	).Replace(s)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Scalars sets fixed variables: generic ones first, then the family's,
// so a family value wins over a generic one.
func Scalars(generic map[string]string, families map[string]map[string]string) Contributor {
	return ContributorFunc{ID: "scalars", Fn: func(ctx context.Context, req Request, env Environment) (Environment, error) {
		for _, k := range sortedKeys(generic) {
			env = env.Set(k, placeholders(generic[k], req))
		}
		fam := families[req.Family()]
		for _, k := range sortedKeys(fam) {
			env = env.Set(k, placeholders(fam[k], req))
		}
		return env, nil
	}}
}

// EnvironmentAttribute is the context attribute naming extra tool
// environments, e.g. "arnold, yeti".
const EnvironmentAttribute = "environment"

var hostVarPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Dynamic appends variables read from JSON files in dirs. For each
// directory it loads <family>.json, <app>.json, and <tool>_<variant>.json for
// every tool listed in the nearest context's "environment" attribute. A file
// maps variable names to lists of paths; {VAR} in a path expands to the
// absolute value of the host variable VAR. Missing files are skipped.
func Dynamic(dirs []string, lookupEnv func(string) (string, bool)) Contributor {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return ContributorFunc{ID: "dynamic", Fn: func(ctx context.Context, req Request, env Environment) (Environment, error) {
		logger := log.WithComponent("launchenv")
		appID := req.Application.Identifier
		variant := appstore.VariantOf(appID)
		tools := toolList(req)

		for _, dir := range dirs {
			files := []string{req.Family() + ".json", appID + ".json"}
			for _, tool := range tools {
				files = append(files, tool+"_"+variant+".json")
			}
			for _, name := range dedupe(files) {
				path := filepath.Join(dir, name)
				vars, err := loadEnvFile(path)
				if errors.Is(err, fs.ErrNotExist) {
					logger.Debug("environment file not found", "path", path)
					continue
				}
				if err != nil {
					return env, err
				}
				for _, k := range sortedKeys(vars) {
					for _, p := range vars[k] {
						expanded, ok := expandHostVars(p, lookupEnv)
						if !ok {
							logger.Warn("skipping environment path with unset variable", "path", path, "value", p)
							continue
						}
						env = env.Append(k, expanded)
					}
				}
			}
		}
		return env, nil
	}}
}

// toolList reads the environment attribute from the task or its nearest
// ancestor that sets one.
func toolList(req Request) []string {
	chain := append(append([]tracker.Context(nil), req.Ancestors...), req.Task)
	var attr string
	for _, c := range chain {
		if v := strings.TrimSpace(c.Attributes[EnvironmentAttribute]); v != "" {
			attr = v
		}
	}
	var tools []string
	for _, t := range strings.Split(attr, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tools = append(tools, t)
		}
	}
	return tools
}

func loadEnvFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vars map[string][]string
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parse environment file %s: %w", path, err)
	}
	return vars, nil
}

func expandHostVars(p string, lookupEnv func(string) (string, bool)) (string, bool) {
	ok := true
	out := hostVarPattern.ReplaceAllStringFunc(p, func(m string) string {
		v, found := lookupEnv(m[1 : len(m)-1])
		if !found || v == "" {
			ok = false
			return m
		}
		if abs, err := filepath.Abs(v); err == nil {
			return abs
		}
		return v
	})
	return out, ok
}

// Task identity variables.
const (
	TaskIDVar = "FTRACK_TASKID"
	ShotIDVar = "FTRACK_SHOTID"
)

// TaskIdentity exports the task id and its parent id.
func TaskIdentity() Contributor {
	return ContributorFunc{ID: "task_identity", Fn: func(ctx context.Context, req Request, env Environment) (Environment, error) {
		if !req.HasTask() {
			return env, nil
		}
		env = env.Set(TaskIDVar, req.Task.ID)
		if req.Task.ParentID != "" {
			env = env.Set(ShotIDVar, req.Task.ParentID)
		}
		return env, nil
	}}
}

// Frame range variables and their fallback.
const (
	FrameStartVar = "FS"
	FrameEndVar   = "FE"
	DefaultFrame  = "1"
)

// FrameRange exports FS and FE from the nearest ancestor of the task that
// defines them. Anything unresolvable becomes "1".
func FrameRange() Contributor {
	return ContributorFunc{ID: "frame_range", Fn: func(ctx context.Context, req Request, env Environment) (Environment, error) {
		start, end := DefaultFrame, DefaultFrame
		if s, ok := nearestFrame(req.Ancestors, func(c tracker.Context) *float64 { return c.FrameStart }); ok {
			start = s
		}
		if e, ok := nearestFrame(req.Ancestors, func(c tracker.Context) *float64 { return c.FrameEnd }); ok {
			end = e
		}
		env = env.Set(FrameStartVar, start)
		env = env.Set(FrameEndVar, end)
		return env, nil
	}}
}

func nearestFrame(ancestors []tracker.Context, field func(tracker.Context) *float64) (string, bool) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		v := field(ancestors[i])
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		return strconv.Itoa(int(*v)), true
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(in []string) []string {
	var out []string
	for _, s := range in {
		if !contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
