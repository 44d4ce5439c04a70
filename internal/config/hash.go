package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile is the manifest name written next to config files.
const ChecksumFile = ".checksums"

// ChecksumManifest records the BLAKE3 hash of every config file in one
// directory, keyed by base name.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// LockFileResult captures the hash written for one file.
type LockFileResult struct {
	Path string
	Hash string
}

// LockReport captures checksum generation for one directory.
type LockReport struct {
	ConfigDir    string
	ChecksumPath string
	Written      bool
	Files        []LockFileResult
}

// Mismatch describes a config file whose content no longer matches its
// recorded hash, or that is missing from the manifest.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	if m.Expected == "" {
		return fmt.Sprintf("%s: not recorded in %s", m.Path, ChecksumFile)
	}
	return fmt.Sprintf("%s: expected %s, got %s", m.Path, m.Expected, m.Actual)
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}
	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}
	return nil
}

// Lock hashes files and writes one manifest per containing directory.
// With dryRun the reports are computed but nothing is written.
func Lock(files []string, dryRun bool) ([]LockReport, error) {
	byDir := groupByDir(files)
	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	reports := make([]LockReport, 0, len(dirs))
	for _, dir := range dirs {
		manifest := ChecksumManifest{
			Version:     1,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Hashes:      make(map[string]string),
		}
		report := LockReport{
			ConfigDir:    dir,
			ChecksumPath: filepath.Join(dir, ChecksumFile),
		}

		for _, path := range byDir[dir] {
			hash, err := ComputeBlake3Hash(path)
			if err != nil {
				return nil, fmt.Errorf("failed to hash %s: %w", path, err)
			}
			manifest.Hashes[filepath.Base(path)] = hash
			report.Files = append(report.Files, LockFileResult{Path: path, Hash: hash})
		}

		if !dryRun {
			data, err := yaml.Marshal(manifest)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal checksums: %w", err)
			}
			if err := os.WriteFile(report.ChecksumPath, data, 0600); err != nil {
				return nil, fmt.Errorf("failed to write checksums: %w", err)
			}
			report.Written = true
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// LoadChecksums reads the manifest from a config directory.
func LoadChecksums(configDir string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(configDir, ChecksumFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}

// Check compares files against the manifests of their directories.
// Directories without a manifest are unlocked and not reported.
func Check(files []string) ([]Mismatch, error) {
	var mismatches []Mismatch
	for dir, paths := range groupByDir(files) {
		manifest, err := LoadChecksums(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, path := range paths {
			expected := manifest.Hashes[filepath.Base(path)]
			actual, err := ComputeBlake3Hash(path)
			if err != nil {
				return nil, err
			}
			if expected != actual {
				mismatches = append(mismatches, Mismatch{Path: path, Expected: expected, Actual: actual})
			}
		}
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Path < mismatches[j].Path })
	return mismatches, nil
}

func verifyAllConfigHashes(files []string) error {
	mismatches, err := Check(files)
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		return nil
	}
	errs := make([]error, 0, len(mismatches))
	for _, m := range mismatches {
		errs = append(errs, errors.New(m.String()))
	}
	return fmt.Errorf("config integrity check failed (if the edit was intentional, run: slate config lock): %w",
		errors.Join(errs...))
}

func groupByDir(files []string) map[string][]string {
	out := make(map[string][]string)
	for _, f := range files {
		dir := filepath.Dir(f)
		out[dir] = append(out[dir], f)
	}
	return out
}
