package domain

import "fmt"

// UploadStatus is the outcome reported by the upload mechanism. The set is
// closed: values outside the table below are rejected, never defaulted.
type UploadStatus int

const (
	StatusOK        UploadStatus = 0
	StatusIniSize   UploadStatus = 1
	StatusFormSize  UploadStatus = 2
	StatusPartial   UploadStatus = 3
	StatusNoFile    UploadStatus = 4
	StatusNoTmpDir  UploadStatus = 6
	StatusCantWrite UploadStatus = 7
	StatusExtension UploadStatus = 8
)

type statusInfo struct {
	name    string
	message string
}

var statuses = map[UploadStatus]statusInfo{
	StatusOK:        {name: "OK"},
	StatusIniSize:   {name: "EXCEEDS_INI_SIZE_LIMIT", message: "The uploaded file exceeds the upload_max_filesize directive in php.ini"},
	StatusFormSize:  {name: "EXCEEDS_FORM_SIZE_LIMIT", message: "The uploaded file exceeds the MAX_FILE_SIZE directive that was specified in the HTML form"},
	StatusPartial:   {name: "PARTIAL_UPLOAD", message: "The uploaded file was only partially uploaded"},
	StatusNoFile:    {name: "NO_FILE", message: "No file was uploaded"},
	StatusNoTmpDir:  {name: "NO_TMP_DIR", message: "Missing a temporary folder"},
	StatusCantWrite: {name: "CANT_WRITE", message: "Failed to write file to disk."},
	StatusExtension: {name: "EXTENSION_BLOCKED", message: "A PHP extension stopped the file upload."},
}

// StatusFromCode maps a raw upload error code onto the closed set.
func StatusFromCode(code int) (UploadStatus, error) {
	s := UploadStatus(code)
	if !s.Valid() {
		return 0, newError(ErrValue, MsgInvalidStatus)
	}
	return s, nil
}

func (s UploadStatus) Valid() bool {
	_, ok := statuses[s]
	return ok
}

func (s UploadStatus) String() string {
	if info, ok := statuses[s]; ok {
		return info.name
	}
	return fmt.Sprintf("UploadStatus(%d)", int(s))
}

// Message is the fixed human readable text bound to a failed status. It is
// empty for StatusOK and for values outside the set.
func (s UploadStatus) Message() string {
	return statuses[s].message
}

// Err returns the runtime error describing a failed upload, or nil for
// StatusOK. Values outside the set yield the value error.
func (s UploadStatus) Err() error {
	if !s.Valid() {
		return newError(ErrValue, MsgInvalidStatus)
	}
	if s == StatusOK {
		return nil
	}
	return newError(ErrRuntime, s.Message())
}
