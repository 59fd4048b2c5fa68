package spool

import (
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
)

// Verifier recognizes the files an upload mechanism left in its spool
// directory. Only regular files placed directly in the directory count.
type Verifier struct {
	fs       afero.Fs
	dir      string
	excluded map[string]struct{}
	logger   log.Logger
}

// NewVerifier builds a Verifier for dir. Files listed in excluded, such as
// the spool manifest, are never treated as uploads.
func NewVerifier(fs afero.Fs, dir string, logger log.Logger, excluded ...string) *Verifier {
	v := &Verifier{
		fs:       fs,
		dir:      filepath.Clean(dir),
		excluded: make(map[string]struct{}, len(excluded)),
		logger:   logger,
	}
	for _, path := range excluded {
		v.excluded[filepath.Clean(path)] = struct{}{}
	}
	return v
}

func (v *Verifier) Dir() string {
	return v.dir
}

func (v *Verifier) IsUploadedFile(path string) bool {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) || filepath.Dir(clean) != v.dir {
		level.Debug(v.logger).Log("msg", "path outside of spool", "path", path, "spool", v.dir)
		return false
	}

	if _, ok := v.excluded[clean]; ok {
		level.Debug(v.logger).Log("msg", "path is excluded from spool", "path", path)
		return false
	}

	info, err := v.lstat(clean)
	if err != nil {
		level.Debug(v.logger).Log("msg", "can't stat spooled file", "path", path, "err", err)
		return false
	}
	if !info.Mode().IsRegular() {
		level.Debug(v.logger).Log("msg", "spooled path is not a regular file", "path", path, "mode", info.Mode())
		return false
	}

	return true
}

func (v *Verifier) lstat(path string) (os.FileInfo, error) {
	if l, ok := v.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return v.fs.Stat(path)
}
