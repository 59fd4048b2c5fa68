package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/upfile/applications/ingest"
	"github.com/donmikel/upfile/applications/ingest/domain"
	"github.com/donmikel/upfile/applications/ingest/interfaces"
)

const defaultWorkers = 4

type service struct {
	fs                afero.Fs
	storageDir        string
	storedFileStorage interfaces.StoredFileStorage
	workers           int
	logger            log.Logger
	now               func() time.Time
}

type Option func(*service)

// WithWorkers bounds how many uploads StoreAll moves at the same time.
func WithWorkers(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithFs sets the filesystem used to inspect stored files. It must be the
// one the uploads were built with.
func WithFs(fs afero.Fs) Option {
	return func(s *service) {
		if fs != nil {
			s.fs = fs
		}
	}
}

func NewService(storageDir string, storedFileStorage interfaces.StoredFileStorage, logger log.Logger, opts ...Option) ingest.UploadService {
	s := &service{
		fs:                afero.NewOsFs(),
		storageDir:        storageDir,
		storedFileStorage: storedFileStorage,
		workers:           defaultWorkers,
		logger:            logger,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Store(ctx context.Context, file *domain.UploadedFile) (domain.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredFile{}, err
	}

	id := uuid.NewString()
	target := filepath.Join(s.storageDir, id+extension(file.ClientFilename()))

	if err := file.MoveTo(target); err != nil {
		return domain.StoredFile{}, fmt.Errorf("can't move uploaded file %q: %w", file.ClientFilename(), err)
	}

	stored, err := s.describe(ctx, file, id, target)
	if err != nil {
		// The upload can't be moved back once MoveTo succeeded; leave a trace
		// of where it ended up.
		level.Error(s.logger).Log("msg", "uploaded file stranded in storage",
			"id", id,
			"client_filename", file.ClientFilename(),
			"path", target,
			"err", err,
		)
		return domain.StoredFile{}, err
	}

	level.Info(s.logger).Log("msg", "uploaded file stored",
		"id", id,
		"client_filename", stored.ClientFilename,
		"media_type", stored.MediaType,
		"path", target,
		"size", humanize.Bytes(uint64(stored.Size)),
	)

	return stored, nil
}

// describe records a moved upload in storedFileStorage.
func (s *service) describe(ctx context.Context, file *domain.UploadedFile, id, target string) (domain.StoredFile, error) {
	stored := domain.StoredFile{
		ID:             id,
		Path:           target,
		ClientFilename: file.ClientFilename(),
		MediaType:      file.ClientMediaType(),
		StoredAt:       s.now().UTC(),
	}

	info, err := s.fs.Stat(target)
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("can't stat stored file: %w", err)
	}
	stored.Size = info.Size()

	if stored.MediaType == "" {
		mediaType, err := s.detectMediaType(target)
		if err != nil {
			return domain.StoredFile{}, fmt.Errorf("can't detect media type: %w", err)
		}
		stored.MediaType = mediaType
	}

	if declared, ok := file.Size(); ok && declared != stored.Size {
		level.Debug(s.logger).Log("msg", "declared size differs from stored size",
			"id", id,
			"declared", humanize.Bytes(uint64(declared)),
			"stored", humanize.Bytes(uint64(stored.Size)),
		)
	}

	if err = s.storedFileStorage.Save(ctx, stored); err != nil {
		return domain.StoredFile{}, fmt.Errorf("can't save stored file: %w", err)
	}

	return stored, nil
}

// StoreAll moves files in parallel, each upload handled by exactly one
// goroutine. Results keep the order of files. The first failure cancels the
// uploads that have not started yet.
func (s *service) StoreAll(ctx context.Context, files []*domain.UploadedFile) ([]domain.StoredFile, error) {
	result := make([]domain.StoredFile, len(files))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			stored, err := s.Store(ctx, file)
			if err != nil {
				return err
			}
			result[i] = stored
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *service) detectMediaType(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}

	return mt.String(), nil
}

func extension(clientFilename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(clientFilename)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
