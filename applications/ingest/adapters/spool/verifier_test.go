package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/upfile/applications/ingest/domain"
)

func TestVerifier(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/var/spool/upload/php1A2b", []byte("data"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/var/spool/upload/nested/php3C4d", []byte("data"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/etc/passwd", []byte("root"), 0o644))

	v := NewVerifier(fs, "/var/spool/upload/", log.NewNopLogger())
	assert.Equal(t, "/var/spool/upload", v.Dir())

	assert.True(t, v.IsUploadedFile("/var/spool/upload/php1A2b"))
	assert.True(t, v.IsUploadedFile("/var/spool/upload/./php1A2b"))

	for _, path := range []string{
		"/var/spool/upload/missing",
		"/var/spool/upload/nested",
		"/var/spool/upload/nested/php3C4d",
		"/var/spool/upload/../../../etc/passwd",
		"/etc/passwd",
		"php1A2b",
		"",
	} {
		assert.False(t, v.IsUploadedFile(path), path)
	}
}

func TestVerifierExcludesManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/var/spool/upload/php1A2b", []byte("data"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/var/spool/upload/manifest.yml", []byte("uploads: []"), 0o600))

	v := NewVerifier(fs, "/var/spool/upload", log.NewNopLogger(), "/var/spool/upload/./manifest.yml")
	assert.True(t, v.IsUploadedFile("/var/spool/upload/php1A2b"))
	assert.False(t, v.IsUploadedFile("/var/spool/upload/manifest.yml"))
	assert.False(t, v.IsUploadedFile("/var/spool/upload/nested/../manifest.yml"))

	m := Manifest{Uploads: []map[string]interface{}{
		{"file": "manifest.yml", "error": 0},
		{"file": "php1A2b", "error": 0},
	}}
	files, rejected := m.Files(v.Dir(), domain.WithFs(fs), domain.WithVerifier(v))
	assert.Len(t, files, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, 0, rejected[0].Index)
	assert.ErrorIs(t, rejected[0].Err, domain.ErrRuntime)
}

func TestVerifierRejectsSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "regular"), []byte("data"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	v := NewVerifier(afero.NewOsFs(), dir, log.NewNopLogger())
	assert.True(t, v.IsUploadedFile(filepath.Join(dir, "regular")))
	assert.False(t, v.IsUploadedFile(filepath.Join(dir, "link")))
}
