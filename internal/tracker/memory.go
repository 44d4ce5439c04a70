package tracker

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document loaded by LoadFixture.
type Fixture struct {
	Schemas    []Schema       `yaml:"schemas"`
	Contexts   []Context      `yaml:"contexts"`
	Assets     []Asset        `yaml:"assets"`
	Versions   []AssetVersion `yaml:"versions"`
	Components []Component    `yaml:"components"`
}

// Change is a pending modification waiting for Commit.
type Change struct {
	Op       string
	EntityID string
}

// Memory is an in-process Client backed by a fixture. It is safe for
// concurrent use.
type Memory struct {
	mu         sync.RWMutex
	schemas    []Schema
	contexts   map[string]Context
	assets     []Asset
	versions   map[string]AssetVersion
	components []Component
	pending    []Change
	commits    int
}

var _ Client = (*Memory)(nil)

// NewMemory builds a Memory client from f.
func NewMemory(f Fixture) *Memory {
	m := &Memory{
		schemas:    append([]Schema(nil), f.Schemas...),
		contexts:   make(map[string]Context, len(f.Contexts)),
		assets:     append([]Asset(nil), f.Assets...),
		versions:   make(map[string]AssetVersion, len(f.Versions)),
		components: append([]Component(nil), f.Components...),
	}
	for _, c := range f.Contexts {
		m.contexts[c.ID] = c
	}
	for _, v := range f.Versions {
		m.versions[v.ID] = v
	}
	return m
}

// LoadFixture reads a YAML fixture file into a Memory client.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tracker fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tracker fixture %s: %w", path, err)
	}
	return NewMemory(f), nil
}

func (m *Memory) Schemas(ctx context.Context) ([]Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Schema(nil), m.schemas...), nil
}

func (m *Memory) Context(ctx context.Context, id string) (Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return Context{}, fmt.Errorf("context %q: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *Memory) Ancestors(ctx context.Context, id string) ([]Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context %q: %w", id, ErrNotFound)
	}

	var chain []Context
	seen := map[string]bool{id: true}
	for parent := c.ParentID; parent != ""; {
		if seen[parent] {
			return nil, fmt.Errorf("context %q: parent cycle at %q", id, parent)
		}
		seen[parent] = true
		p, ok := m.contexts[parent]
		if !ok {
			return nil, fmt.Errorf("context %q parent %q: %w", id, parent, ErrNotFound)
		}
		chain = append(chain, p)
		parent = p.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (m *Memory) Assets(ctx context.Context, contextID, assetType string) ([]Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Asset
	for _, a := range m.assets {
		if a.ContextID == contextID && (assetType == "" || a.Type == assetType) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) Versions(ctx context.Context, assetID string) ([]AssetVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AssetVersion
	for _, v := range m.versions {
		if v.AssetID == assetID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Memory) Version(ctx context.Context, id string) (AssetVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return AssetVersion{}, fmt.Errorf("version %q: %w", id, ErrNotFound)
	}
	return v, nil
}

// PublishVersion marks a version published. Publishing is irreversible and
// publishing an already published version is a no-op.
func (m *Memory) PublishVersion(ctx context.Context, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[versionID]
	if !ok {
		return fmt.Errorf("version %q: %w", versionID, ErrNotFound)
	}
	if v.Published {
		return nil
	}
	v.Published = true
	m.versions[versionID] = v
	m.pending = append(m.pending, Change{Op: "publish", EntityID: versionID})
	return nil
}

func (m *Memory) Components(ctx context.Context, versionID string) ([]Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Component
	for _, c := range m.components {
		if c.VersionID == versionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.commits++
	return nil
}

// Pending returns the changes recorded since the last Commit.
func (m *Memory) Pending() []Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Change(nil), m.pending...)
}

// Commits returns how many times Commit has been called.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}
