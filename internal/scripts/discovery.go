package scripts

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/slate/internal/action"
)

// Discover walks roots for manifest.yaml files. Invalid scripts are logged
// and skipped; duplicate identifiers keep the first discovered. Roots are
// processed in order.
func Discover(roots []string, logger *slog.Logger) ([]*Script, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		out  []*Script
		seen = make(map[string]string)
	)
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve actions dir %q: %w", root, err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			return nil, fmt.Errorf("actions dir %s: %w", absRoot, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("actions dir is not a directory: %s", absRoot)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			s, err := load(filepath.Dir(path), absRoot)
			if err != nil {
				logger.Warn("failed to load action script", "path", filepath.Dir(path), "error", err)
				return nil
			}
			if kept, dup := seen[s.Identifier]; dup {
				logger.Warn("duplicate action ignored (keeping first discovered)",
					"action", s.Identifier, "ignored_path", s.Dir, "kept_path", kept)
				return nil
			}
			seen[s.Identifier] = s.Dir
			out = append(out, s)
			logger.Info("loaded action script", "action", s.Identifier, "path", s.Dir)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan actions dir %s: %w", absRoot, err)
		}
	}
	return out, nil
}

func load(dir, root string) (*Script, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	entrypoint := filepath.Join(dir, m.Entrypoint)
	if err := checkEntrypoint(entrypoint, dir, root); err != nil {
		return nil, err
	}

	return &Script{
		Descriptor: action.Descriptor{
			Identifier:  m.Identifier,
			Label:       m.Label,
			Variant:     m.Variant,
			Description: m.Description,
			Icon:        m.Icon,
		},
		Dir:        dir,
		Entrypoint: entrypoint,
		Protocol:   m.Protocol,
		Commands:   m.Commands,
	}, nil
}

// checkEntrypoint requires the entrypoint to resolve inside both the action
// directory and the actions root, to be executable, and the action directory
// not to be world-writable.
func checkEntrypoint(entrypoint, dir, root string) error {
	resolved, err := filepath.EvalSymlinks(entrypoint)
	if err != nil {
		return fmt.Errorf("failed to resolve entrypoint: %w", err)
	}
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve action dir: %w", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("failed to resolve actions dir: %w", err)
	}

	sep := string(os.PathSeparator)
	if !strings.HasPrefix(resolved, resolvedRoot+sep) {
		return fmt.Errorf("entrypoint %s is outside actions dir %s", resolved, resolvedRoot)
	}
	if !strings.HasPrefix(resolved, resolvedDir+sep) {
		return fmt.Errorf("entrypoint %s is outside action dir %s", resolved, resolvedDir)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("entrypoint not found: %w", err)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("entrypoint is not executable: %s", resolved)
	}

	dirInfo, err := os.Stat(resolvedDir)
	if err != nil {
		return fmt.Errorf("action dir not found: %w", err)
	}
	if dirInfo.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("action dir is world-writable: %s", resolvedDir)
	}
	return nil
}
