package domain

import "time"

// StoredFile describes an upload after it has been moved into storage.
type StoredFile struct {
	ID             string
	Path           string
	ClientFilename string
	MediaType      string
	Size           int64
	StoredAt       time.Time
}
