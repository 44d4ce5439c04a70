package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fixedType(typ string) func(string) (string, error) {
	return func(string) (string, error) { return typ, nil }
}

func TestCheckLocal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	if err := checkLocal(dbPath, fixedType("ext4")); err != nil {
		t.Fatalf("local disk rejected: %v", err)
	}

	err := checkLocal(dbPath, fixedType("NFS"))
	if err == nil {
		t.Fatal("network share accepted")
	}
	for _, want := range []string{"nfs", "local disk", "state.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}

	if err := checkLocal("", fixedType("ext4")); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestProbeUsesNearestExistingParent(t *testing.T) {
	root := t.TempDir()
	var probed string
	fs, err := probeWith(filepath.Join(root, "shows", "abc", "state.db"), func(p string) (string, error) {
		probed = p
		return "smb2", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if probed != root {
		t.Fatalf("probed %q, want %q", probed, root)
	}
	if !fs.Network || fs.Type != "smb2" {
		t.Fatalf("fs = %+v", fs)
	}
}

func TestProbeStatError(t *testing.T) {
	_, err := probeWith(t.TempDir(), func(string) (string, error) {
		return "", os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err = %v", err)
	}
}

func TestProbeFilesystemTempDir(t *testing.T) {
	fs, err := ProbeFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("ProbeFilesystem: %v", err)
	}
	if fs.Type == "" {
		t.Fatal("empty filesystem type")
	}
}
