package ingest

import (
	"context"

	"github.com/donmikel/upfile/applications/ingest/domain"
)

type UploadService interface {
	Store(ctx context.Context, file *domain.UploadedFile) (domain.StoredFile, error)
	StoreAll(ctx context.Context, files []*domain.UploadedFile) ([]domain.StoredFile, error)
}
