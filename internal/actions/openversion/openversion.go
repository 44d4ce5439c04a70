// Package openversion opens a component of an asset version in a viewer
// application.
package openversion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/launcher"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/tracker"
)

// Identifier of the action.
const Identifier = "slate.open_version"

// DefaultViewers are the application patterns offered when none are configured.
var DefaultViewers = []string{"djvview*", "quicktime*", "rv*"}

// Action opens a version's component in a viewer.
type Action struct {
	action.Base
	client   tracker.Client
	launcher *launcher.Launcher
	viewers  []string
}

// New creates the action. viewers are application identifier patterns.
func New(client tracker.Client, l *launcher.Launcher, viewers []string) *Action {
	if len(viewers) == 0 {
		viewers = DefaultViewers
	}
	return &Action{
		Base: action.Base{Desc: action.Descriptor{
			Identifier:  Identifier,
			Label:       "Open version",
			Description: "Open a component of the version in a viewer",
		}},
		client:   client,
		launcher: l,
		viewers:  viewers,
	}
}

// Discover accepts one selected asset version when a viewer is installed.
func (a *Action) Discover(ctx context.Context, actx *action.Context) (bool, error) {
	e, ok := actx.Single()
	if !ok || e.Type != "AssetVersion" {
		return false, nil
	}
	return len(a.applications()) > 0, nil
}

// Interface offers the version's components and the viewers until both
// have been chosen.
func (a *Action) Interface(ctx context.Context, actx *action.Context) ([]protocol.Item, error) {
	_, haveComp := actx.Value("component")
	_, haveApp := actx.Value("application")
	if haveComp && haveApp {
		return nil, nil
	}

	e, _ := actx.Single()
	comps, err := a.client.Components(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("list components of %s: %w", e.ID, err)
	}

	compOptions := make([]protocol.Option, 0, len(comps))
	for _, c := range comps {
		compOptions = append(compOptions, protocol.Option{Label: c.Name, Value: c.ID})
	}
	appOptions := []protocol.Option{}
	for _, app := range a.applications() {
		appOptions = append(appOptions, protocol.Option{Label: app.Label, Value: app.Identifier})
	}

	items := []protocol.Item{
		{Label: "Component", Type: "enumerator", Name: "component", Data: compOptions},
		{Label: "Viewer", Type: "enumerator", Name: "application", Data: appOptions},
	}
	if len(compOptions) > 0 {
		items[0].Value = compOptions[0].Value
	}
	if len(appOptions) > 0 {
		items[1].Value = appOptions[0].Value
	}
	return items, nil
}

// Launch opens the chosen component.
func (a *Action) Launch(ctx context.Context, actx *action.Context) (action.Result, error) {
	e, _ := actx.Single()
	componentID, _ := actx.Value("component")
	appID, _ := actx.Value("application")

	comps, err := a.client.Components(ctx, e.ID)
	if err != nil {
		log.WithAction(Identifier).Error("could not list components", "version_id", e.ID, "error", err)
		return action.Outcome(false, "Components could not be loaded."), nil
	}

	var path string
	for _, c := range comps {
		if c.ID == componentID {
			path = c.Path
			break
		}
	}
	if path == "" {
		return action.Outcome(false, fmt.Sprintf("Component %q not found on version.", componentID)), nil
	}

	r := a.launcher.Launch(ctx, appID, launcher.Request{File: FrameFile(path)})
	return action.Outcome(r.Success, r.Message), nil
}

func (a *Action) applications() []appstore.Application {
	var out []appstore.Application
	seen := map[string]bool{}
	for _, pattern := range a.viewers {
		for _, app := range a.launcher.Store().Applications() {
			if seen[app.Identifier] {
				continue
			}
			if ok, _ := filepath.Match(pattern, app.Identifier); ok {
				seen[app.Identifier] = true
				out = append(out, app)
			}
		}
	}
	return out
}

// FrameFile maps a sequence path such as shot.%04d.exr or shot.####.exr to
// the first existing frame in its directory with the same extension. Paths
// that exist, or sequences with no frames on disk, are returned unchanged.
func FrameFile(path string) string {
	if !strings.ContainsAny(filepath.Base(path), "%#") {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return path
	}
	var frames []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			frames = append(frames, entry.Name())
		}
	}
	if len(frames) == 0 {
		return path
	}
	sort.Strings(frames)
	return filepath.Join(dir, frames[0])
}
