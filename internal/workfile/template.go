package workfile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/zeebo/blake3"
)

// CreateFromTemplate copies src to dst unless dst already exists. Missing
// parent directories are created. The copy lands under a temporary name and
// is hard-linked into place, so dst is never overwritten and concurrent
// callers see at most one copy. created reports whether this call wrote dst.
func CreateFromTemplate(src, dst, lockDir string) (created bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("create work file directory: %w", err)
	}

	if lockDir == "" {
		lockDir = os.TempDir()
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(lockDir, lockName(dst)))
	if err := lock.Lock(); err != nil {
		return false, fmt.Errorf("acquire template lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", dst, err)
	}

	tmp, err := copyToTemp(src, filepath.Dir(dst))
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		// Filesystems without hard links: the lock and the stat above
		// already guard against overwriting.
		if err := os.Rename(tmp, dst); err != nil {
			return false, fmt.Errorf("place work file: %w", err)
		}
	}
	return true, nil
}

func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open template: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, ".slate-template-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy template: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return out.Name(), nil
}

// lockName derives a stable lock file name for dst so the lock lives
// outside the artists' directories.
func lockName(dst string) string {
	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	sum := blake3.Sum256([]byte(abs))
	return "slate-" + hex.EncodeToString(sum[:8]) + ".lock"
}
