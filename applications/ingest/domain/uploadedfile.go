package domain

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// UploadVerifier tells whether a path was produced by the hosting upload
// mechanism. Its answer is trusted as is.
type UploadVerifier interface {
	IsUploadedFile(path string) bool
}

// UploadVerifierFunc adapts a plain function to UploadVerifier.
type UploadVerifierFunc func(path string) bool

func (f UploadVerifierFunc) IsUploadedFile(path string) bool {
	return f(path)
}

// source is either a pathSource or a streamSource.
type source interface {
	isSource()
}

type pathSource struct {
	path string
}

type streamSource struct {
	stream *Stream
}

func (pathSource) isSource()   {}
func (streamSource) isSource() {}

// UploadedFile is one uploaded file backed by a path or by a Stream. It can
// be moved exactly once. An UploadedFile is not safe for concurrent use.
type UploadedFile struct {
	src    source
	status UploadStatus

	size            int64
	hasSize         bool
	clientFilename  string
	clientMediaType string

	fs       afero.Fs
	verifier UploadVerifier

	// stream memoizes the lazily opened view of a path source.
	stream *Stream
	moved  bool
}

type Option func(*UploadedFile)

// WithSize declares the size reported by the client. It is never checked
// against the actual content.
func WithSize(size int64) Option {
	return func(u *UploadedFile) {
		u.size = size
		u.hasSize = true
	}
}

func WithClientFilename(name string) Option {
	return func(u *UploadedFile) {
		u.clientFilename = name
	}
}

func WithClientMediaType(mediaType string) Option {
	return func(u *UploadedFile) {
		u.clientMediaType = mediaType
	}
}

// WithFs sets the filesystem paths and move targets live on. Defaults to the
// OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(u *UploadedFile) {
		if fs != nil {
			u.fs = fs
		}
	}
}

// WithVerifier sets the upload mechanism check for path sources. Without one
// no path is accepted.
func WithVerifier(v UploadVerifier) Option {
	return func(u *UploadedFile) {
		u.verifier = v
	}
}

// New dispatches on the dynamic type of file: a string is a path or a
// scheme://URI, a *Stream is adopted. code is the raw upload error code.
func New(file interface{}, code int, opts ...Option) (*UploadedFile, error) {
	switch f := file.(type) {
	case string:
		status, err := StatusFromCode(code)
		if err != nil {
			return nil, err
		}
		return FromPath(f, status, opts...)
	case *Stream:
		if f == nil {
			break
		}
		status, err := StatusFromCode(code)
		if err != nil {
			return nil, err
		}
		return FromStream(f, status, opts...)
	}
	return nil, newError(ErrType, "Invalid file provided for UploadedFile; must be a string path or a *Stream")
}

// FromPath builds an UploadedFile from a path. A value of the form
// scheme://... is opened as a stream right away; any other path is opened
// only on demand. Plain paths and file:// URIs must be recognized by the
// verifier.
func FromPath(path string, status UploadStatus, opts ...Option) (*UploadedFile, error) {
	u, err := newUploadedFile(status, opts)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, newError(ErrInvalidArgument, "Invalid file provided for UploadedFile; must be a non-empty string")
	}

	if scheme, _ := splitScheme(path); scheme != "" {
		s, err := OpenStream(path, "r+", WithStreamFs(u.fs))
		if err != nil {
			return nil, wrapError(ErrRuntime, MsgInvalidStream, err)
		}
		if s.wrapper == wrapperFile && !u.isUploaded(s.path) {
			s.Close()
			return nil, newError(ErrRuntime, MsgNotUploaded)
		}
		u.src = streamSource{stream: s}
		return u, nil
	}

	if !u.isUploaded(path) {
		return nil, newError(ErrRuntime, MsgNotUploaded)
	}
	u.src = pathSource{path: path}
	return u, nil
}

func (u *UploadedFile) isUploaded(path string) bool {
	return u.verifier != nil && u.verifier.IsUploadedFile(path)
}

// FromStream builds an UploadedFile that takes ownership of s.
func FromStream(s *Stream, status UploadStatus, opts ...Option) (*UploadedFile, error) {
	if s == nil {
		return nil, newError(ErrType, "Invalid stream provided for UploadedFile")
	}
	u, err := newUploadedFile(status, opts)
	if err != nil {
		return nil, err
	}
	u.src = streamSource{stream: s}
	return u, nil
}

func newUploadedFile(status UploadStatus, opts []Option) (*UploadedFile, error) {
	if err := status.Err(); err != nil {
		return nil, err
	}
	u := &UploadedFile{
		status: status,
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.hasSize && u.size < 0 {
		return nil, newError(ErrValue, "Size for UploadedFile must be a non-negative integer")
	}
	return u, nil
}

// Stream returns the content as a Stream. Path sources are opened once and
// the same Stream is returned afterwards.
func (u *UploadedFile) Stream() (*Stream, error) {
	if u.moved {
		return nil, newError(ErrRuntime, MsgStreamAfterMove)
	}

	switch src := u.src.(type) {
	case streamSource:
		return src.stream, nil
	case pathSource:
		if u.stream != nil {
			return u.stream, nil
		}
		s, err := OpenStream(src.path, "r+", WithStreamFs(u.fs))
		if err != nil {
			return nil, wrapError(ErrRuntime, MsgInvalidStream, err)
		}
		u.stream = s
		return s, nil
	default:
		panic("domain: unknown upload source")
	}
}

// MoveTo relocates the upload to target. It succeeds at most once; a failed
// attempt may be retried with another target.
func (u *UploadedFile) MoveTo(target string) error {
	if strings.TrimSpace(target) == "" {
		return newError(ErrInvalidArgument, MsgInvalidMoveTarget)
	}
	if u.moved {
		return newError(ErrRuntime, MsgAlreadyMoved)
	}
	target = filepath.Clean(target)

	var err error
	switch src := u.src.(type) {
	case pathSource:
		err = u.movePath(src.path, target)
	case streamSource:
		err = u.moveStream(src.stream, target)
	default:
		panic("domain: unknown upload source")
	}
	if err != nil {
		return err
	}

	u.moved = true
	return nil
}

func (u *UploadedFile) movePath(path, target string) error {
	if u.stream != nil {
		if err := u.stream.Close(); err != nil {
			return err
		}
		u.stream = nil
	}

	if err := u.fs.Rename(path, target); err == nil {
		return nil
	}

	// Rename fails across devices; copy and drop the original instead.
	if err := copyFile(u.fs, path, target); err != nil {
		return wrapError(ErrRuntime, "Uploaded file could not be moved to "+target, err)
	}
	if err := u.fs.Remove(path); err != nil {
		return wrapError(ErrRuntime, "Uploaded file could not be moved to "+target, err)
	}
	return nil
}

func (u *UploadedFile) moveStream(src *Stream, target string) error {
	// Opening the target for writing would truncate the source itself.
	if src.ownsPath && samePath(src.path, target) {
		return newError(ErrRuntime, "Uploaded file could not be moved to "+target+"; target is the source")
	}

	dst, err := OpenStream(target, "w", WithStreamFs(u.fs))
	if err != nil {
		return wrapError(ErrRuntime, "Uploaded file could not be moved to "+target, err)
	}

	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		return wrapError(ErrRuntime, "Uploaded file could not be moved to "+target, err)
	}
	if err = dst.Close(); err != nil {
		return wrapError(ErrRuntime, "Uploaded file could not be moved to "+target, err)
	}
	return src.discard()
}

func samePath(a, b string) bool {
	if absA, err := filepath.Abs(a); err == nil {
		a = absA
	}
	if absB, err := filepath.Abs(b); err == nil {
		b = absB
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func copyFile(fs afero.Fs, from, to string) error {
	in, err := fs.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Size returns the size declared at construction, if any.
func (u *UploadedFile) Size() (int64, bool) {
	return u.size, u.hasSize
}

func (u *UploadedFile) Status() UploadStatus {
	return u.status
}

func (u *UploadedFile) ClientFilename() string {
	return u.clientFilename
}

func (u *UploadedFile) ClientMediaType() string {
	return u.clientMediaType
}

// Moved reports whether MoveTo has succeeded.
func (u *UploadedFile) Moved() bool {
	return u.moved
}
