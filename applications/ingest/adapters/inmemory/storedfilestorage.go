package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/upfile/applications/ingest/domain"
	"github.com/donmikel/upfile/applications/ingest/interfaces"
)

type inMemoryStoredFileStorage struct {
	files map[string]domain.StoredFile
	mutex sync.RWMutex
	log   log.Logger
}

func NewStoredFileStorage(logger log.Logger) interfaces.StoredFileStorage {
	return &inMemoryStoredFileStorage{
		files: map[string]domain.StoredFile{},
		log:   logger,
	}
}

func (i *inMemoryStoredFileStorage) Save(ctx context.Context, file domain.StoredFile) error {
	if file.ID == "" {
		return fmt.Errorf("stored file without id")
	}

	i.mutex.Lock()
	defer i.mutex.Unlock()

	if _, ok := i.files[file.ID]; ok {
		return fmt.Errorf("stored file with id = %s already exists", file.ID)
	}
	i.files[file.ID] = file

	level.Debug(i.log).Log("msg", "stored file saved",
		"id", file.ID,
		"path", file.Path,
	)

	return nil
}

func (i *inMemoryStoredFileStorage) Get(ctx context.Context, id string) (domain.StoredFile, error) {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	f, ok := i.files[id]
	if !ok {
		return domain.StoredFile{}, fmt.Errorf("stored file with id = %s not found", id)
	}

	return f, nil
}

func (i *inMemoryStoredFileStorage) List(ctx context.Context) ([]domain.StoredFile, error) {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	result := make([]domain.StoredFile, 0, len(i.files))
	for _, f := range i.files {
		result = append(result, f)
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].StoredAt.Equal(result[b].StoredAt) {
			return result[a].ID < result[b].ID
		}
		return result[a].StoredAt.Before(result[b].StoredAt)
	})

	return result, nil
}
