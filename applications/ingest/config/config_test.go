package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConfig(t *testing.T) {
	want := Server{
		Spool:   Spool{Dir: "/var/spool/upload", Manifest: "manifest.yml"},
		Storage: Storage{Dir: "/srv/storage", Workers: 8},
		Log:     Log{Level: "info"},
	}

	got, err := Parse("config.yml")

	assert.NoError(t, got.Validate())
	assert.Equal(t, nil, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "/var/spool/upload/manifest.yml", got.Spool.ManifestPath())
}

func TestParseConfigErrors(t *testing.T) {
	_, err := Parse("missing.yml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	assert.NoError(t, os.WriteFile(path, []byte("api:\n  http_addr: 0.0.0.0:8002\n"), 0o600))
	_, err = Parse(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Server{
		Spool:   Spool{Dir: "/var/spool/upload", Manifest: "/etc/upfile/manifest.yml"},
		Storage: Storage{Dir: "/srv/storage", Workers: 1},
		Log:     Log{Level: "debug"},
	}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "/etc/upfile/manifest.yml", valid.Spool.ManifestPath())

	noSpool := valid
	noSpool.Spool.Dir = ""
	assert.Error(t, noSpool.Validate())

	noStorage := valid
	noStorage.Storage.Dir = ""
	assert.Error(t, noStorage.Validate())

	same := valid
	same.Storage.Dir = "/var/spool/upload/"
	assert.Error(t, same.Validate())

	badLevel := valid
	badLevel.Log.Level = "verbose"
	assert.Error(t, badLevel.Validate())
}
