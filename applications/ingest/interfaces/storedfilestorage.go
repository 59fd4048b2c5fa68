package interfaces

import (
	"context"

	"github.com/donmikel/upfile/applications/ingest/domain"
)

type StoredFileStorage interface {
	Save(ctx context.Context, file domain.StoredFile) error
	Get(ctx context.Context, id string) (domain.StoredFile, error)
	List(ctx context.Context) ([]domain.StoredFile, error)
}
