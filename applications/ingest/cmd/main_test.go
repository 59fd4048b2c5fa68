package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSpool(t *testing.T, manifest string) (string, string, string) {
	t.Helper()

	root := t.TempDir()
	spoolDir := filepath.Join(root, "spool")
	storageDir := filepath.Join(root, "storage")
	require.NoError(t, os.MkdirAll(spoolDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(spoolDir, "php1A2b"), []byte("Lorem ipsum dolor sit amet"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(spoolDir, "php3C4d"), []byte("\x89PNG\r\n\x1a\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(spoolDir, "manifest.yml"), []byte(manifest), 0o600))

	configPath := filepath.Join(root, "config.yml")
	cfg := fmt.Sprintf("spool:\n  dir: %s\nstorage:\n  dir: %s\n  workers: 2\nlog:\n  level: error\n", spoolDir, storageDir)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	return configPath, spoolDir, storageDir
}

func TestIngest(t *testing.T) {
	manifest := `
uploads:
  - {file: php1A2b, error: 0, name: lorem.txt, type: text/plain}
  - {file: php3C4d, error: 0, name: tux.png}
  - {file: php5E6f, error: 4}
`
	configPath, spoolDir, storageDir := setupSpool(t, manifest)

	require.NoError(t, ingest(context.Background(), configPath, false, log.NewNopLogger()))

	stored, err := filepath.Glob(filepath.Join(storageDir, "*"))
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	left, err := filepath.Glob(filepath.Join(spoolDir, "php*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestIngestStrict(t *testing.T) {
	manifest := `
uploads:
  - {file: php1A2b, error: 0}
  - {file: ../outside, error: 0}
`
	configPath, spoolDir, _ := setupSpool(t, manifest)

	err := ingest(context.Background(), configPath, true, log.NewNopLogger())
	assert.ErrorIs(t, err, errRejected)

	_, err = os.Stat(filepath.Join(spoolDir, "php1A2b"))
	assert.NoError(t, err)
}

func TestIngestKeepsManifest(t *testing.T) {
	manifest := `
uploads:
  - {file: manifest.yml, error: 0}
  - {file: php1A2b, error: 0}
`
	configPath, spoolDir, storageDir := setupSpool(t, manifest)

	err := ingest(context.Background(), configPath, true, log.NewNopLogger())
	assert.ErrorIs(t, err, errRejected)

	require.NoError(t, ingest(context.Background(), configPath, false, log.NewNopLogger()))

	got, err := os.ReadFile(filepath.Join(spoolDir, "manifest.yml"))
	require.NoError(t, err)
	assert.Equal(t, manifest, string(got))

	stored, err := filepath.Glob(filepath.Join(storageDir, "*"))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngestBadConfig(t *testing.T) {
	err := ingest(context.Background(), filepath.Join(t.TempDir(), "missing.yml"), false, log.NewNopLogger())
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand(log.NewNopLogger())
	cmd.SetArgs([]string{"version"})
	assert.Error(t, cmd.Execute())

	version = "v1.2.3"
	defer func() { version = "" }()

	var out bytes.Buffer
	cmd = newRootCommand(log.NewNopLogger())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "v1.2.3\n", out.String())
}
