package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFileName sits next to the config file and pins its BLAKE3 hash.
const ChecksumFileName = ".checksums"

// ErrNoChecksums reports that no manifest exists for a config file. Callers
// treat it as "integrity verification not enabled".
var ErrNoChecksums = errors.New("no checksums manifest")

// ChecksumManifest is the on-disk shape of the .checksums file.
type ChecksumManifest struct {
	Version int               `yaml:"version"`
	Hashes  map[string]string `yaml:"hashes"`
}

// ComputeBlake3Hash computes the hex BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// WriteChecksums records the current hash of configPath in the manifest next
// to it, authorizing the present contents.
func WriteChecksums(configPath string) (string, error) {
	hash, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return "", err
	}

	manifest := ChecksumManifest{
		Version: 1,
		Hashes: map[string]string{
			filepath.Base(configPath): hash,
		},
	}
	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checksums: %w", err)
	}

	manifestPath := checksumPath(configPath)
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", manifestPath, err)
	}
	return manifestPath, nil
}

// VerifyChecksums checks configPath against the manifest next to it. Returns
// ErrNoChecksums when no manifest exists, an error on mismatch, nil on match.
func VerifyChecksums(configPath string) error {
	manifestPath := checksumPath(configPath)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoChecksums
		}
		return fmt.Errorf("failed to read %s: %w", manifestPath, err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", manifestPath, err)
	}

	name := filepath.Base(configPath)
	expected, ok := manifest.Hashes[name]
	if !ok {
		return fmt.Errorf("%s is not covered by %s; run 'hookpipe config lock'", name, manifestPath)
	}

	actual, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s\n"+
			"The config changed since it was locked; run 'hookpipe config lock' to authorize it", name, expected, actual)
	}
	return nil
}

func checksumPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ChecksumFileName)
}
