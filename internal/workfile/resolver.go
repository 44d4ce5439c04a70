// Package workfile finds the file an artist should open for a task, or
// creates a first version of it from a template.
package workfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/pathutil"
	"github.com/mattjoyce/slate/internal/tracker"
)

// SceneAssetType is the asset type searched first for work files.
const SceneAssetType = "scene"

// Options configures a Resolver.
type Options struct {
	// TemplatesDir holds one empty template per family: <family>.<ext>.
	TemplatesDir string
	// Extensions maps an application family to its work file extension.
	Extensions map[string]string
	// FallbackComponents maps a family to the component name used when the
	// task has no scene asset (e.g. nuke: nukescript).
	FallbackComponents map[string]string
	// Marker is the version marker, "v" by default.
	Marker string
	// Padding is the digit count of a new first version, 3 by default.
	Padding int
	// PreferNewestVariant picks, among files sharing the winning version
	// string, the most recently modified one.
	PreferNewestVariant bool
	// ProjectsRoot is used when a project has no disk for this platform.
	ProjectsRoot string
	// LockDir holds the lock files guarding first-version creation.
	LockDir string
}

// Origin tells where a resolved path came from.
type Origin string

const (
	OriginComponent Origin = "component" // path recorded on the component
	OriginScan      Origin = "scan"      // newer sibling found on disk
	OriginTemplate  Origin = "template"  // first version path
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Path    string
	Origin  Origin
	Created bool
	// LookupErr is the classified reason an existing file was not used.
	// It is nil when Origin is not OriginTemplate.
	LookupErr error
}

// Resolver resolves work files against the tracker and the filesystem.
type Resolver struct {
	client tracker.Client
	opts   Options
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(client tracker.Client, opts Options) *Resolver {
	if opts.Marker == "" {
		opts.Marker = pathutil.DefaultMarker
	}
	if opts.Padding <= 0 {
		opts.Padding = 3
	}
	return &Resolver{client: client, opts: opts, logger: log.WithComponent("workfile")}
}

// Handles reports whether appID has a work file extension configured.
// Applications without one are launched without a file.
func (r *Resolver) Handles(appID string) bool {
	return r.opts.Extensions[appstore.Family(appID)] != ""
}

// Resolve returns the work file for taskID opened with appID. Lookup
// failures are logged and degrade to a first version created from the
// family template; only a failure to create that file is returned.
func (r *Resolver) Resolve(ctx context.Context, taskID, appID string) (Resolution, error) {
	task, err := r.client.Context(ctx, taskID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load task %s: %w", taskID, err)
	}

	path, origin, lookupErr := r.lookup(ctx, task, appID)
	if lookupErr == nil {
		r.logger.Info("found work file", "task_id", taskID, "path", path, "origin", origin)
		return Resolution{Path: path, Origin: origin}, nil
	}

	lookupErr = classify(lookupErr)
	r.logger.Info("could not find a file to launch", "task_id", taskID, "app", appID, "error", lookupErr)

	dst, src, err := r.firstVersion(ctx, task, appID)
	if err != nil {
		return Resolution{LookupErr: lookupErr}, err
	}
	created, err := CreateFromTemplate(src, dst, r.opts.LockDir)
	if err != nil {
		return Resolution{LookupErr: lookupErr}, fmt.Errorf("create work file from template: %w", err)
	}
	if created {
		r.logger.Info("created work file from template", "task_id", taskID, "path", dst, "template", src)
	}
	return Resolution{Path: dst, Origin: OriginTemplate, Created: created, LookupErr: lookupErr}, nil
}

func (r *Resolver) lookup(ctx context.Context, task tracker.Context, appID string) (string, Origin, error) {
	component, err := r.findComponent(ctx, task, appID)
	if err != nil {
		return "", "", err
	}
	if component.Path == "" {
		return "", "", fmt.Errorf("component %s has no path: %w", component.Name, ErrNotFound)
	}
	r.logger.Debug("component path", "path", component.Path)

	path, newer, err := r.newestSibling(component.Path)
	if err != nil {
		return "", "", err
	}
	origin := OriginComponent
	if newer {
		origin = OriginScan
	}

	if r.opts.PreferNewestVariant {
		if variant, err := r.newestVariant(path); err == nil && variant != path {
			path = variant
			origin = OriginScan
		}
	}

	if _, err := os.Stat(path); err != nil {
		return "", "", err
	}
	return path, origin, nil
}

// findComponent locates the work file component of the task. Scene assets
// are searched newest version first for "<family>_work"; without scene
// assets the task-type asset's latest version and the family's fallback
// component are used. Unpublished versions on the way are published.
func (r *Resolver) findComponent(ctx context.Context, task tracker.Context, appID string) (tracker.Component, error) {
	family := appstore.Family(appID)

	scenes, err := r.client.Assets(ctx, task.ID, SceneAssetType)
	if err != nil {
		return tracker.Component{}, fmt.Errorf("list scene assets: %w", err)
	}
	if len(scenes) > 0 {
		asset, err := pickAsset(scenes, task.Name)
		if err != nil {
			return tracker.Component{}, err
		}
		versions, err := r.client.Versions(ctx, asset.ID)
		if err != nil {
			return tracker.Component{}, fmt.Errorf("list versions of %s: %w", asset.Name, err)
		}
		name := family + "_work"
		for i := len(versions) - 1; i >= 0; i-- {
			if err := r.publish(ctx, versions[i]); err != nil {
				return tracker.Component{}, err
			}
			if c, ok, err := r.component(ctx, versions[i].ID, name); err != nil {
				return tracker.Component{}, err
			} else if ok {
				return c, nil
			}
		}
		return tracker.Component{}, fmt.Errorf("component %s on asset %s: %w", name, asset.Name, ErrNotFound)
	}

	assets, err := r.client.Assets(ctx, task.ID, task.TypeName)
	if err != nil {
		return tracker.Component{}, fmt.Errorf("list %s assets: %w", task.TypeName, err)
	}
	if len(assets) == 0 {
		return tracker.Component{}, fmt.Errorf("no scene or %s asset on task %s: %w", task.TypeName, task.Name, ErrNotFound)
	}
	asset, err := pickAsset(assets, task.Name)
	if err != nil {
		return tracker.Component{}, err
	}
	versions, err := r.client.Versions(ctx, asset.ID)
	if err != nil {
		return tracker.Component{}, fmt.Errorf("list versions of %s: %w", asset.Name, err)
	}
	if len(versions) == 0 {
		return tracker.Component{}, fmt.Errorf("asset %s has no versions: %w", asset.Name, ErrNotFound)
	}
	latest := versions[len(versions)-1]
	if err := r.publish(ctx, latest); err != nil {
		return tracker.Component{}, err
	}

	name, ok := r.opts.FallbackComponents[family]
	if !ok {
		return tracker.Component{}, fmt.Errorf("no fallback component for %s: %w", family, ErrNotFound)
	}
	c, ok, err := r.component(ctx, latest.ID, name)
	if err != nil {
		return tracker.Component{}, err
	}
	if !ok {
		return tracker.Component{}, fmt.Errorf("component %s on asset %s: %w", name, asset.Name, ErrNotFound)
	}
	return c, nil
}

func (r *Resolver) publish(ctx context.Context, v tracker.AssetVersion) error {
	if v.Published {
		return nil
	}
	if err := r.client.PublishVersion(ctx, v.ID); err != nil {
		return fmt.Errorf("publish version %d: %w", v.Version, err)
	}
	r.logger.Info("published version", "version_id", v.ID, "version", v.Version)
	return nil
}

func (r *Resolver) component(ctx context.Context, versionID, name string) (tracker.Component, bool, error) {
	comps, err := r.client.Components(ctx, versionID)
	if err != nil {
		return tracker.Component{}, false, fmt.Errorf("list components: %w", err)
	}
	for _, c := range comps {
		if c.Name == name {
			return c, true, nil
		}
	}
	return tracker.Component{}, false, nil
}

// pickAsset uses the only asset, or the one named like the task.
func pickAsset(assets []tracker.Asset, taskName string) (tracker.Asset, error) {
	if len(assets) == 1 {
		return assets[0], nil
	}
	for _, a := range assets {
		if strings.EqualFold(a.Name, taskName) {
			return a, nil
		}
	}
	return tracker.Asset{}, fmt.Errorf("no asset named %q among %d: %w", taskName, len(assets), ErrNotFound)
}

// newestSibling scans the directory of current for files sharing its prefix
// and extension and returns the one with the greatest version if it is
// strictly newer than current. Siblings with ties resolve to the last one in
// directory order; siblings without a version are ignored.
func (r *Resolver) newestSibling(current string) (string, bool, error) {
	tok, err := pathutil.ParseVersion(current, r.opts.Marker)
	if err != nil {
		return "", false, err
	}
	dir := filepath.Dir(current)
	base := filepath.Base(current)
	prefix := pathutil.SplitPrefix(base, r.opts.Marker)
	ext := filepath.Ext(base)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("scan %s: %w", dir, err)
	}

	var newer []pathutil.Candidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.HasSuffix(name, ext) {
			continue
		}
		if pathutil.SplitPrefix(name, r.opts.Marker) != prefix {
			continue
		}
		ftok, err := pathutil.ParseVersion(name, r.opts.Marker)
		if err != nil {
			r.logger.Debug("skipping sibling without version", "file", name)
			continue
		}
		if ftok.Number > tok.Number {
			newer = append(newer, pathutil.Candidate{Path: filepath.Join(dir, name), Version: ftok, Exists: true})
		}
	}

	best, ok := pathutil.SelectLatest(newer)
	if !ok {
		return current, false, nil
	}
	return best.Path, true, nil
}

// newestVariant returns the most recently modified file in path's directory
// that carries the same zero-padded version string and extension.
func (r *Resolver) newestVariant(path string) (string, error) {
	tok, err := pathutil.ParseVersion(path, r.opts.Marker)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	version := strings.ToLower(pathutil.FormatVersion(r.opts.Marker, tok.Number, tok.Width))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	best := ""
	var bestInfo fs.FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) || !strings.Contains(strings.ToLower(name), version) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if bestInfo == nil || !info.ModTime().Before(bestInfo.ModTime()) {
			best, bestInfo = filepath.Join(dir, name), info
		}
	}
	if best == "" {
		return "", fmt.Errorf("no variant of %s: %w", path, ErrNotFound)
	}
	return best, nil
}

// firstVersion returns the path of a new first version and its template:
// <disk>/<root>/<category>/<ancestors...>/<task>_v001.<ext>.
func (r *Resolver) firstVersion(ctx context.Context, task tracker.Context, appID string) (dst, src string, err error) {
	family := appstore.Family(appID)
	ext, ok := r.opts.Extensions[family]
	if !ok || ext == "" {
		return "", "", fmt.Errorf("no work file extension configured for %s", family)
	}
	ext = strings.TrimPrefix(ext, ".")

	ancestors, err := r.client.Ancestors(ctx, task.ID)
	if err != nil {
		return "", "", fmt.Errorf("load ancestors of %s: %w", task.Name, err)
	}

	parts := []string{}
	var project *tracker.Context
	var folders []string
	category := ""
	for i := range ancestors {
		a := ancestors[i]
		if a.ObjectType == "Project" {
			project = &ancestors[i]
			continue
		}
		if category == "" {
			category = categoryFor(a.ObjectType)
		}
		folders = append(folders, strings.ToLower(a.Name))
	}
	if category == "" {
		category = "tasks"
	}

	base := r.opts.ProjectsRoot
	if project != nil {
		if disk := diskFor(project.Disk); disk != "" {
			base = disk
		}
	}
	if base == "" {
		return "", "", errors.New("no projects root for first version")
	}
	parts = append(parts, base)
	if project != nil && project.Root != "" {
		parts = append(parts, project.Root)
	}
	parts = append(parts, category)
	parts = append(parts, folders...)

	name := task.Name + "_" + pathutil.FormatVersion(r.opts.Marker, 1, r.opts.Padding) + "." + ext
	dst = filepath.Join(append(parts, name)...)
	src = filepath.Join(r.opts.TemplatesDir, family+"."+ext)
	return dst, src, nil
}

func categoryFor(objectType string) string {
	switch objectType {
	case "Episode":
		return "episodes"
	case "Sequence":
		return "sequences"
	case "Shot":
		return "shots"
	default:
		return ""
	}
}

func diskFor(d tracker.Disk) string {
	if runtime.GOOS == "windows" {
		return d.Windows
	}
	return d.Unix
}
