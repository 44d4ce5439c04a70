// Package appstore discovers the creative applications installed on this
// host and answers lookups by identifier.
package appstore

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mattjoyce/slate/internal/log"
)

// DefaultVersionExpression extracts a version such as "11.3v4" from a path.
const DefaultVersionExpression = `(?P<version>\d[\d.a-zA-Z]*)`

// Application is one launchable application.
type Application struct {
	Identifier      string   `json:"identifier" yaml:"identifier"`
	Label           string   `json:"label" yaml:"label"`
	Path            string   `json:"path" yaml:"path"`
	Version         string   `json:"version,omitempty" yaml:"version,omitempty"`
	Icon            string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Variant         string   `json:"variant,omitempty" yaml:"variant,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	LaunchArguments []string `json:"launch_arguments,omitempty" yaml:"launch_arguments,omitempty"`
}

// SearchSpec describes where to look for one application family. Either
// Path names an executable directly, or Root plus Segments are walked level
// by level, each segment a regular expression matched against a whole
// directory entry name.
type SearchSpec struct {
	Path              string   `yaml:"path,omitempty"`
	Root              string   `yaml:"root,omitempty"`
	Segments          []string `yaml:"segments,omitempty"`
	VersionExpression string   `yaml:"version_expression,omitempty"`
	Identifier        string   `yaml:"identifier"` // may contain {version}
	Label             string   `yaml:"label"`      // may contain {version}
	Icon              string   `yaml:"icon,omitempty"`
	Variant           string   `yaml:"variant,omitempty"`
	Description       string   `yaml:"description,omitempty"`
	LaunchArguments   []string `yaml:"launch_arguments,omitempty"`
}

// Store holds discovered applications sorted by label.
type Store struct {
	mu   sync.RWMutex
	apps []Application
}

// NewStore builds a store from known applications. Applications with a
// duplicate identifier are dropped; the first one wins.
func NewStore(apps []Application) *Store {
	s := &Store{}
	s.set(apps)
	return s
}

func (s *Store) set(apps []Application) {
	seen := make(map[string]bool, len(apps))
	out := make([]Application, 0, len(apps))
	for _, a := range apps {
		if a.Identifier == "" || seen[a.Identifier] {
			continue
		}
		seen[a.Identifier] = true
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })

	s.mu.Lock()
	s.apps = out
	s.mu.Unlock()
}

// Discover walks the filesystem for every spec and returns a populated store.
// Missing roots are skipped; malformed specs are reported.
func Discover(specs []SearchSpec) (*Store, error) {
	logger := log.WithComponent("appstore")
	var found []Application
	for i, spec := range specs {
		apps, err := search(spec, logger)
		if err != nil {
			return nil, fmt.Errorf("applications[%d] (%s): %w", i, spec.Identifier, err)
		}
		found = append(found, apps...)
	}
	logger.Debug("discovered applications", "count", len(found))
	return NewStore(found), nil
}

// Refresh re-runs discovery and replaces the store contents.
func (s *Store) Refresh(specs []SearchSpec) error {
	fresh, err := Discover(specs)
	if err != nil {
		return err
	}
	s.set(fresh.Applications())
	return nil
}

// Applications returns a copy of the discovered applications.
func (s *Store) Applications() []Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Application(nil), s.apps...)
}

// GetApplication returns the first application whose identifier matches
// pattern. Patterns support shell wildcards, so "hieroplayer*" matches
// every hieroplayer version.
func (s *Store) GetApplication(pattern string) (Application, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.apps {
		if a.Identifier == pattern {
			return a, true
		}
	}
	for _, a := range s.apps {
		if ok, err := path.Match(pattern, a.Identifier); err == nil && ok {
			return a, true
		}
	}
	return Application{}, false
}

func search(spec SearchSpec, logger *slog.Logger) ([]Application, error) {
	if spec.Identifier == "" || spec.Label == "" {
		return nil, fmt.Errorf("identifier and label are required")
	}

	expr := spec.VersionExpression
	if expr == "" {
		expr = DefaultVersionExpression
	}
	versionRe, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("version_expression: %w", err)
	}

	var paths []string
	if spec.Path != "" {
		if _, err := os.Stat(spec.Path); err != nil {
			logger.Debug("application path not present", "path", spec.Path)
			return nil, nil
		}
		paths = []string{spec.Path}
	} else {
		if spec.Root == "" || len(spec.Segments) == 0 {
			return nil, fmt.Errorf("either path or root with segments is required")
		}
		segments := make([]*regexp.Regexp, len(spec.Segments))
		for i, seg := range spec.Segments {
			re, err := regexp.Compile("^(?:" + seg + ")$")
			if err != nil {
				return nil, fmt.Errorf("segments[%d]: %w", i, err)
			}
			segments[i] = re
		}
		if _, err := os.Stat(spec.Root); err != nil {
			logger.Debug("application root not present", "root", spec.Root)
			return nil, nil
		}
		paths = walk(spec.Root, segments)
	}

	apps := make([]Application, 0, len(paths))
	for _, p := range paths {
		version := extractVersion(versionRe, versionSubject(spec, p))
		apps = append(apps, Application{
			Identifier:      expand(spec.Identifier, version),
			Label:           expand(spec.Label, version),
			Path:            p,
			Version:         version,
			Icon:            spec.Icon,
			Variant:         expand(spec.Variant, version),
			Description:     spec.Description,
			LaunchArguments: append([]string(nil), spec.LaunchArguments...),
		})
	}
	return apps, nil
}

// walk returns every path under root whose successive components match
// segments. Unreadable directories are skipped.
func walk(root string, segments []*regexp.Regexp) []string {
	if len(segments) == 0 {
		return []string{root}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !segments[0].MatchString(e.Name()) {
			continue
		}
		next := filepath.Join(root, e.Name())
		if len(segments) > 1 && !e.IsDir() {
			continue
		}
		out = append(out, walk(next, segments[1:])...)
	}
	return out
}

// versionSubject is the part of p the version expression is applied to:
// the path below root, or the base name of an explicit path.
func versionSubject(spec SearchSpec, p string) string {
	if spec.Path != "" {
		return filepath.Base(p)
	}
	if rel, err := filepath.Rel(spec.Root, p); err == nil {
		return rel
	}
	return p
}

func extractVersion(re *regexp.Regexp, p string) string {
	m := re.FindStringSubmatch(filepath.ToSlash(p))
	if m == nil {
		return ""
	}
	if idx := re.SubexpIndex("version"); idx > 0 && idx < len(m) {
		return m[idx]
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// Family returns the family of an application identifier: "nuke_11.3" is
// family "nuke".
func Family(identifier string) string {
	family, _, _ := strings.Cut(identifier, "_")
	return strings.ToLower(family)
}

// VariantOf returns the part of an identifier after the family:
// "maya_2018" has variant "2018".
func VariantOf(identifier string) string {
	_, variant, _ := strings.Cut(identifier, "_")
	return variant
}

func expand(tpl, version string) string {
	return strings.ReplaceAll(tpl, "{version}", version)
}
