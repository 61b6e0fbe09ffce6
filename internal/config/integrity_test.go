package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const integrityYAML = `
listen: 127.0.0.1:8080
hooks:
  - path: /deploy
    program: echo
`

func TestChecksumRoundTrip(t *testing.T) {
	path := writeConfig(t, integrityYAML)

	require.ErrorIs(t, VerifyChecksums(path), ErrNoChecksums)

	manifestPath, err := WriteChecksums(path)
	require.NoError(t, err)
	require.FileExists(t, manifestPath)

	require.NoError(t, VerifyChecksums(path))
}

func TestChecksumDetectsTampering(t *testing.T) {
	path := writeConfig(t, integrityYAML)

	_, err := WriteChecksums(path)
	require.NoError(t, err)

	tampered := integrityYAML + "  - path: /evil\n    program: rm\n"
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	err = VerifyChecksums(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "hash mismatch")
}

func TestLoadRejectsTamperedConfig(t *testing.T) {
	path := writeConfig(t, integrityYAML)

	_, err := WriteChecksums(path)
	require.NoError(t, err)

	// Still loads while the hash matches.
	_, err = Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(integrityYAML+"# edited\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadWithoutManifestSucceeds(t *testing.T) {
	path := writeConfig(t, integrityYAML)

	// Absent manifest means integrity checking is simply not enabled.
	_, err := Load(path)
	require.NoError(t, err)
}

func TestComputeBlake3HashStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	a, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	b, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}
