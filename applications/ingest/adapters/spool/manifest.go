package spool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/donmikel/upfile/applications/ingest/domain"
)

// Manifest lists the uploads of one request as written by the upload
// mechanism. Each entry carries the keys understood by domain.Decode.
type Manifest struct {
	Uploads []map[string]interface{} `yaml:"uploads"`
}

// Rejection is a manifest entry that could not become an UploadedFile.
type Rejection struct {
	Index int
	File  string
	Err   error
}

func LoadManifest(fs afero.Fs, path string) (Manifest, error) {
	var m Manifest

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return m, fmt.Errorf("can't read manifest: %w", err)
	}
	if err = yaml.UnmarshalStrict(data, &m); err != nil {
		return m, fmt.Errorf("can't parse manifest: %w", err)
	}

	return m, nil
}

// Files decodes every entry. Relative paths are resolved against dir. Bad
// entries are reported as rejections and do not stop the others.
func (m Manifest) Files(dir string, opts ...domain.Option) ([]*domain.UploadedFile, []Rejection) {
	files := make([]*domain.UploadedFile, 0, len(m.Uploads))
	var rejected []Rejection

	for i, entry := range m.Uploads {
		fields := make(map[string]interface{}, len(entry))
		for k, v := range entry {
			fields[k] = v
		}
		if p, ok := fields[domain.FieldFile].(string); ok && p != "" && !strings.Contains(p, "://") && !filepath.IsAbs(p) {
			fields[domain.FieldFile] = filepath.Join(dir, p)
		}

		f, err := domain.Decode(fields, opts...)
		if err != nil {
			rejected = append(rejected, Rejection{
				Index: i,
				File:  fmt.Sprint(entry[domain.FieldFile]),
				Err:   err,
			})
			continue
		}
		files = append(files, f)
	}

	return files, rejected
}
