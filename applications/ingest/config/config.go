package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	defaultWorkers  = 4
	defaultManifest = "manifest.yml"
)

type Server struct {
	Spool   Spool   `yaml:"spool"`
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
}

type Spool struct {
	// Dir is where the upload mechanism leaves uploaded files.
	Dir string `yaml:"dir"`
	// Manifest lists the uploads; relative to Dir unless absolute.
	Manifest string `yaml:"manifest"`
}

type Storage struct {
	Dir     string `yaml:"dir"`
	Workers int    `yaml:"workers"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Parse reads a YAML config file and fills in defaults.
func Parse(path string) (Server, error) {
	var cfg Server

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("can't read config file: %w", err)
	}
	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("can't parse config file: %w", err)
	}

	if cfg.Spool.Manifest == "" {
		cfg.Spool.Manifest = defaultManifest
	}
	if cfg.Storage.Workers == 0 {
		cfg.Storage.Workers = defaultWorkers
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// ManifestPath resolves the manifest against the spool directory.
func (s Spool) ManifestPath() string {
	if filepath.IsAbs(s.Manifest) {
		return s.Manifest
	}
	return filepath.Join(s.Dir, s.Manifest)
}

func (s Server) Validate() error {
	if s.Spool.Dir == "" {
		return errors.New("spool.dir is required")
	}
	if s.Storage.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if filepath.Clean(s.Spool.Dir) == filepath.Clean(s.Storage.Dir) {
		return errors.New("spool.dir and storage.dir must differ")
	}
	if s.Storage.Workers < 0 {
		return fmt.Errorf("storage.workers must be positive, got %d", s.Storage.Workers)
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", s.Log.Level)
	}
	return nil
}
