package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem describes the mount holding a path.
type Filesystem struct {
	Type    string
	Network bool
}

var networkTypes = map[string]bool{
	"9p":     true,
	"afpfs":  true,
	"afs":    true,
	"cifs":   true,
	"nfs":    true,
	"smb2":   true,
	"smbfs":  true,
	"webdav": true,
}

// ProbeFilesystem reports the filesystem of path, or of its nearest
// existing ancestor when path has not been created yet.
func ProbeFilesystem(path string) (Filesystem, error) {
	return probeWith(path, statfsType)
}

func probeWith(path string, statType func(string) (string, error)) (Filesystem, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return Filesystem{}, err
	}
	typ, err := statType(dir)
	if err != nil {
		return Filesystem{}, fmt.Errorf("statfs %s: %w", dir, err)
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	return Filesystem{Type: typ, Network: networkTypes[typ]}, nil
}

// checkLocal refuses database paths on network shares, where SQLite file
// locking cannot be trusted.
func checkLocal(path string, statType func(string) (string, error)) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}
	fs, err := probeWith(path, statType)
	if err != nil {
		return err
	}
	if fs.Network {
		return fmt.Errorf("state.path %s is on a %s network share; the state database must live on a local disk", path, fs.Type)
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("stat %s: %w", dir, err)
		case filepath.Dir(dir) == dir:
			return "", fmt.Errorf("no existing parent for %s", abs)
		}
	}
}
