package workfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/tracker"
	"github.com/mattjoyce/slate/internal/tracker/mocks"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type env struct {
	root      string
	templates string
	client    *tracker.Memory
	resolver  *Resolver
}

// newEnv builds project Alpha / SQ01 / SH010 / Comp (task) rooted in a temp dir.
func newEnv(t *testing.T, assets []tracker.Asset, versions []tracker.AssetVersion, comps []tracker.Component) *env {
	t.Helper()
	root := t.TempDir()
	templates := filepath.Join(root, "templates")
	touch(t, filepath.Join(templates, "nuke.nk"), "# empty nuke script\n")

	client := tracker.NewMemory(tracker.Fixture{
		Contexts: []tracker.Context{
			{ID: "proj", Name: "Alpha", ObjectType: "Project", Root: "alpha", Disk: tracker.Disk{Unix: filepath.Join(root, "projects"), Windows: filepath.Join(root, "projects")}},
			{ID: "seq", Name: "SQ01", ObjectType: "Sequence", ParentID: "proj"},
			{ID: "shot", Name: "SH010", ObjectType: "Shot", ParentID: "seq"},
			{ID: "task", Name: "Comp", ObjectType: "Task", TypeName: "Compositing", ParentID: "shot"},
		},
		Assets:     assets,
		Versions:   versions,
		Components: comps,
	})

	r := NewResolver(client, Options{
		TemplatesDir:       templates,
		Extensions:         map[string]string{"nuke": "nk", "maya": ".ma"},
		FallbackComponents: map[string]string{"nuke": "nukescript", "maya": "work_file"},
		LockDir:            filepath.Join(root, "locks"),
	})
	return &env{root: root, templates: templates, client: client, resolver: r}
}

func TestResolvePrefersNewerFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "shot_v001.nk"), "v1")
	touch(t, filepath.Join(dir, "shot_v003.nk"), "v3")
	touch(t, filepath.Join(dir, "shot_v002.ma"), "other extension")
	touch(t, filepath.Join(dir, "other_v009.nk"), "other prefix")

	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "comp", Type: "scene", ContextID: "task"}},
		[]tracker.AssetVersion{{ID: "v1", AssetID: "a1", Version: 1, Published: true}},
		[]tracker.Component{{ID: "c1", VersionID: "v1", Name: "nuke_work", Path: filepath.Join(dir, "shot_v001.nk")}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke_11.3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shot_v003.nk"), res.Path)
	assert.Equal(t, OriginScan, res.Origin)
	assert.False(t, res.Created)
	assert.NoError(t, res.LookupErr)
}

func TestResolveKeepsComponentPathWhenLatest(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "shot_v004.nk"), "v4")
	touch(t, filepath.Join(dir, "shot_v002.nk"), "v2")

	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "comp", Type: "scene", ContextID: "task"}},
		[]tracker.AssetVersion{{ID: "v4", AssetID: "a1", Version: 4, Published: true}},
		[]tracker.Component{{ID: "c1", VersionID: "v4", Name: "nuke_work", Path: filepath.Join(dir, "shot_v004.nk")}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shot_v004.nk"), res.Path)
	assert.Equal(t, OriginComponent, res.Origin)
}

func TestResolvePublishesVersionsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "comp_v001.nk"), "v1")

	e := newEnv(t,
		[]tracker.Asset{
			{ID: "a0", Name: "plate", Type: "scene", ContextID: "task"},
			{ID: "a1", Name: "COMP", Type: "scene", ContextID: "task"},
		},
		[]tracker.AssetVersion{
			{ID: "v1", AssetID: "a1", Version: 1, Published: false},
			{ID: "v2", AssetID: "a1", Version: 2, Published: false},
		},
		[]tracker.Component{{ID: "c1", VersionID: "v1", Name: "nuke_work", Path: filepath.Join(dir, "comp_v001.nk")}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke_11")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comp_v001.nk"), res.Path)
	assert.Equal(t, []tracker.Change{
		{Op: "publish", EntityID: "v2"},
		{Op: "publish", EntityID: "v1"},
	}, e.client.Pending())
}

func TestResolveFallbackComponentOnTaskTypeAsset(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "comp_v002.nk"), "v2")

	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "anything", Type: "Compositing", ContextID: "task"}},
		[]tracker.AssetVersion{
			{ID: "v1", AssetID: "a1", Version: 1, Published: true},
			{ID: "v2", AssetID: "a1", Version: 2, Published: false},
		},
		[]tracker.Component{{ID: "c2", VersionID: "v2", Name: "nukescript", Path: filepath.Join(dir, "comp_v002.nk")}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke_10")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comp_v002.nk"), res.Path)

	v, err := e.client.Version(context.Background(), "v2")
	require.NoError(t, err)
	assert.True(t, v.Published)
}

func TestResolveCreatesFirstVersionFromTemplate(t *testing.T) {
	e := newEnv(t, nil, nil, nil)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke_11.3")
	require.NoError(t, err)

	want := filepath.Join(e.root, "projects", "alpha", "sequences", "sq01", "sh010", "Comp_v001.nk")
	assert.Equal(t, want, res.Path)
	assert.Equal(t, OriginTemplate, res.Origin)
	assert.True(t, res.Created)
	assert.True(t, errors.Is(res.LookupErr, ErrNotFound), "lookup error = %v", res.LookupErr)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "# empty nuke script\n", string(data))
}

func TestResolveDoesNotOverwriteExistingFirstVersion(t *testing.T) {
	e := newEnv(t, nil, nil, nil)
	want := filepath.Join(e.root, "projects", "alpha", "sequences", "sq01", "sh010", "Comp_v001.nk")
	touch(t, want, "artist work")

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.Equal(t, want, res.Path)
	assert.False(t, res.Created)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "artist work", string(data))
}

func TestResolveMalformedVersionFallsBack(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "comp.nk"), "no version")

	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "comp", Type: "scene", ContextID: "task"}},
		[]tracker.AssetVersion{{ID: "v1", AssetID: "a1", Version: 1, Published: true}},
		[]tracker.Component{{ID: "c1", VersionID: "v1", Name: "nuke_work", Path: filepath.Join(dir, "comp.nk")}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.Equal(t, OriginTemplate, res.Origin)
	assert.True(t, errors.Is(res.LookupErr, ErrMalformedVersion), "lookup error = %v", res.LookupErr)
}

func TestResolveMissingDirectoryIsNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone", "comp_v001.nk")
	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "comp", Type: "scene", ContextID: "task"}},
		[]tracker.AssetVersion{{ID: "v1", AssetID: "a1", Version: 1, Published: true}},
		[]tracker.Component{{ID: "c1", VersionID: "v1", Name: "nuke_work", Path: missing}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.True(t, errors.Is(res.LookupErr, ErrNotFound), "lookup error = %v", res.LookupErr)
}

func TestResolveUnreadableDirectoryIsPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "comp_v001.nk"), "v1")
	if err := os.Chmod(dir, 0o300); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "comp", Type: "scene", ContextID: "task"}},
		[]tracker.AssetVersion{{ID: "v1", AssetID: "a1", Version: 1, Published: true}},
		[]tracker.Component{{ID: "c1", VersionID: "v1", Name: "nuke_work", Path: filepath.Join(dir, "comp_v001.nk")}},
	)

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.True(t, errors.Is(res.LookupErr, ErrPermissionDenied), "lookup error = %v", res.LookupErr)
}

func TestResolveAmbiguousAssetsFallBack(t *testing.T) {
	e := newEnv(t,
		[]tracker.Asset{
			{ID: "a1", Name: "plate", Type: "scene", ContextID: "task"},
			{ID: "a2", Name: "roto", Type: "scene", ContextID: "task"},
		},
		nil, nil,
	)
	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.Equal(t, OriginTemplate, res.Origin)
	assert.True(t, errors.Is(res.LookupErr, ErrNotFound))
}

func TestResolveNoExtensionConfigured(t *testing.T) {
	e := newEnv(t, nil, nil, nil)
	_, err := e.resolver.Resolve(context.Background(), "task", "houdini_16")
	assert.Error(t, err)
}

func TestResolveUnknownTask(t *testing.T) {
	e := newEnv(t, nil, nil, nil)
	_, err := e.resolver.Resolve(context.Background(), "nope", "nuke")
	assert.True(t, errors.Is(err, tracker.ErrNotFound))
}

func TestResolvePreferNewestVariant(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "comp_v002.nk"), "v2")
	touch(t, filepath.Join(dir, "comp_v002_fix.nk"), "v2 variant")
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "comp_v002.nk"), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	e := newEnv(t,
		[]tracker.Asset{{ID: "a1", Name: "comp", Type: "scene", ContextID: "task"}},
		[]tracker.AssetVersion{{ID: "v1", AssetID: "a1", Version: 2, Published: true}},
		[]tracker.Component{{ID: "c1", VersionID: "v1", Name: "nuke_work", Path: filepath.Join(dir, "comp_v002.nk")}},
	)
	e.resolver.opts.PreferNewestVariant = true

	res, err := e.resolver.Resolve(context.Background(), "task", "nuke")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comp_v002_fix.nk"), res.Path)
}

func TestResolveTrackerFailureDuringLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	touch(t, filepath.Join(root, "templates", "nuke.nk"), "tpl")

	client := mocks.NewMockClient(ctrl)
	task := tracker.Context{ID: "t", Name: "Comp", ObjectType: "Task", TypeName: "Compositing", ParentID: "p"}
	client.EXPECT().Context(gomock.Any(), "t").Return(task, nil)
	client.EXPECT().Assets(gomock.Any(), "t", SceneAssetType).Return(nil, errors.New("timeout"))
	client.EXPECT().Ancestors(gomock.Any(), "t").Return([]tracker.Context{
		{ID: "p", Name: "Alpha", ObjectType: "Project", Root: "alpha", Disk: tracker.Disk{Unix: root, Windows: root}},
	}, nil)

	r := NewResolver(client, Options{
		TemplatesDir: filepath.Join(root, "templates"),
		Extensions:   map[string]string{"nuke": "nk"},
		LockDir:      filepath.Join(root, "locks"),
	})
	res, err := r.Resolve(context.Background(), "t", "nuke")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "alpha", "tasks", "Comp_v001.nk"), res.Path)
	assert.Error(t, res.LookupErr)
}

func TestResolverHandles(t *testing.T) {
	e := newEnv(t, nil, nil, nil)
	assert.True(t, e.resolver.Handles("nuke_13.0"))
	assert.True(t, e.resolver.Handles("maya_2024"))
	assert.False(t, e.resolver.Handles("rv_7"))
}
