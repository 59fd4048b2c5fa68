package domain

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
)

const (
	wrapperFile    = "plainfile"
	wrapperMemory  = "memory"
	wrapperTemp    = "temp"
	wrapperAdopted = "adopted"

	memoryStreamName = "/stream"
	modeLetters      = "rwaxcbte+"
	tempStreamPrefix = "stream-"
)

// Stream gives uniform byte access over exactly one resource. The resource is
// owned by the stream until Detach hands it back or Close releases it. A
// Stream is not safe for concurrent use.
type Stream struct {
	resource interface{}
	fs       afero.Fs
	path     string
	uri      string
	mode     string
	wrapper  string

	readable bool
	writable bool
	seekable bool

	pos      int64
	eof      bool
	detached bool

	// ownsPath is set when the stream opened path itself, removeOnClose for
	// temp:// streams.
	ownsPath      bool
	removeOnClose bool
}

type StreamOption func(*Stream)

// WithStreamFs sets the filesystem plain and temp:// URIs are resolved on.
func WithStreamFs(fs afero.Fs) StreamOption {
	return func(s *Stream) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// OpenStream opens uri with an fopen style mode. Supported URIs are plain
// paths, file://path, memory:// and temp://.
func OpenStream(uri, mode string, opts ...StreamOption) (*Stream, error) {
	flag, readable, writable, err := parseMode(mode)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		fs:       afero.NewOsFs(),
		uri:      uri,
		mode:     mode,
		readable: readable,
		writable: writable,
		seekable: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	var f afero.File
	scheme, rest := splitScheme(uri)
	switch scheme {
	case "", "file":
		if rest == "" {
			return nil, newError(ErrRuntime, MsgInvalidStream)
		}
		s.wrapper = wrapperFile
		s.path = rest
		s.ownsPath = true
		f, err = s.fs.OpenFile(rest, flag, 0o644)
		if err == nil {
			err = rejectDir(f)
		}
	case "memory":
		s.wrapper = wrapperMemory
		s.fs = afero.NewMemMapFs()
		s.path = memoryStreamName
		s.readable, s.writable = true, true
		f, err = s.fs.OpenFile(memoryStreamName, os.O_RDWR|os.O_CREATE, 0o600)
	case "temp":
		s.wrapper = wrapperTemp
		s.readable, s.writable = true, true
		s.removeOnClose = true
		f, err = afero.TempFile(s.fs, "", tempStreamPrefix)
		if err == nil {
			s.path = f.Name()
		}
	default:
		return nil, newError(ErrRuntime, MsgInvalidStream)
	}
	if err != nil {
		return nil, wrapError(ErrRuntime, MsgInvalidStream, err)
	}

	s.resource = f
	return s, nil
}

// NewStream adopts an already open resource. Its capabilities follow from the
// io interfaces it implements; it must at least be a reader or a writer.
func NewStream(resource interface{}) (*Stream, error) {
	_, readable := resource.(io.Reader)
	_, writable := resource.(io.Writer)
	if !readable && !writable {
		return nil, newError(ErrType, "Stream resource must be an io.Reader or io.Writer")
	}
	seeker, seekable := resource.(io.Seeker)

	s := &Stream{
		resource: resource,
		wrapper:  wrapperAdopted,
		readable: readable,
		writable: writable,
		seekable: seekable,
	}
	if named, ok := resource.(interface{ Name() string }); ok {
		s.uri = named.Name()
	}
	if seekable {
		if off, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			s.pos = off
		} else {
			s.seekable = false
		}
	}
	return s, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	if err := s.check(s.readable, "Cannot read from non-readable stream"); err != nil {
		return 0, err
	}
	n, err := s.resource.(io.Reader).Read(p)
	s.pos += int64(n)
	if errors.Is(err, io.EOF) {
		s.eof = true
	}
	return n, err
}

// ReadN returns up to length bytes. A short result at the end of the stream
// is not an error.
func (s *Stream) ReadN(length int) ([]byte, error) {
	if err := s.check(s.readable, "Cannot read from non-readable stream"); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, newError(ErrInvalidArgument, "Length parameter cannot be negative")
	}
	return io.ReadAll(io.LimitReader(s, int64(length)))
}

func (s *Stream) Write(p []byte) (int, error) {
	if err := s.check(s.writable, "Cannot write to a non-writable stream"); err != nil {
		return 0, err
	}
	n, err := s.resource.(io.Writer).Write(p)
	s.pos += int64(n)
	if err != nil {
		return n, wrapError(ErrRuntime, "Unable to write to stream", err)
	}
	return n, nil
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.check(s.seekable, "Stream is not seekable"); err != nil {
		return 0, err
	}
	off, err := s.resource.(io.Seeker).Seek(offset, whence)
	if err != nil {
		return 0, wrapError(ErrRuntime, "Unable to seek to stream position", err)
	}
	s.pos = off
	s.eof = false
	return off, nil
}

func (s *Stream) Rewind() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Tell returns the cursor. Seekable resources are asked directly so appends
// are accounted for.
func (s *Stream) Tell() (int64, error) {
	if err := s.check(true, ""); err != nil {
		return 0, err
	}
	if s.seekable {
		off, err := s.resource.(io.Seeker).Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, wrapError(ErrRuntime, "Unable to determine stream position", err)
		}
		s.pos = off
	}
	return s.pos, nil
}

// EOF reports whether a read has hit the end of the resource since the last
// seek.
func (s *Stream) EOF() (bool, error) {
	if err := s.check(true, ""); err != nil {
		return false, err
	}
	return s.eof, nil
}

// Size returns the byte length of the resource, or false when it cannot be
// determined.
func (s *Stream) Size() (int64, bool) {
	if s.detached {
		return 0, false
	}
	if st, ok := s.resource.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := st.Stat(); err == nil {
			return info.Size(), true
		}
	}
	if !s.seekable {
		return 0, false
	}
	seeker := s.resource.(io.Seeker)
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if _, rerr := seeker.Seek(cur, io.SeekStart); err != nil || rerr != nil {
		return 0, false
	}
	return end, true
}

// Contents reads everything from the current position to the end.
func (s *Stream) Contents() (string, error) {
	if err := s.check(s.readable, "Cannot read from non-readable stream"); err != nil {
		return "", err
	}
	b, err := io.ReadAll(s)
	if err != nil {
		return "", wrapError(ErrRuntime, "Unable to read stream contents", err)
	}
	return string(b), nil
}

func (s *Stream) Readable() bool { return !s.detached && s.readable }
func (s *Stream) Writable() bool { return !s.detached && s.writable }
func (s *Stream) Seekable() bool { return !s.detached && s.seekable }

// Metadata describes the resource. A detached stream has none.
func (s *Stream) Metadata() map[string]interface{} {
	if s.detached {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"uri":          s.uri,
		"mode":         s.mode,
		"seekable":     s.seekable,
		"eof":          s.eof,
		"wrapper_type": s.wrapper,
	}
}

func (s *Stream) MetadataValue(key string) (interface{}, bool) {
	v, ok := s.Metadata()[key]
	return v, ok
}

// Detach hands the resource back to the caller and leaves the stream
// unusable. Detaching twice returns nil.
func (s *Stream) Detach() interface{} {
	if s.detached {
		return nil
	}
	r := s.resource
	s.resource = nil
	s.detached = true
	s.readable, s.writable, s.seekable = false, false, false
	return r
}

// Close releases the resource if the stream still owns it.
func (s *Stream) Close() error {
	if s.detached {
		return nil
	}
	removeOnClose, fs, path := s.removeOnClose, s.fs, s.path
	r := s.Detach()

	var err error
	if c, ok := r.(io.Closer); ok {
		err = c.Close()
	}
	if removeOnClose && path != "" {
		if rerr := fs.Remove(path); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	if err != nil {
		return wrapError(ErrRuntime, "Unable to close stream", err)
	}
	return nil
}

// discard closes the stream and removes the file backing it when the stream
// opened that file itself.
func (s *Stream) discard() error {
	owned, fs, path := s.ownsPath, s.fs, s.path
	if err := s.Close(); err != nil {
		return err
	}
	if !owned || path == "" {
		return nil
	}
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return wrapError(ErrRuntime, "Unable to remove stream source", err)
	}
	return nil
}

func (s *Stream) check(capable bool, msg string) error {
	if s.detached {
		return newError(ErrRuntime, MsgDetached)
	}
	if !capable {
		return newError(ErrRuntime, msg)
	}
	return nil
}

func rejectDir(f afero.File) error {
	info, err := f.Stat()
	if err == nil && info.IsDir() {
		err = errors.New("is a directory")
	}
	if err != nil {
		f.Close()
	}
	return err
}

func splitScheme(uri string) (string, string) {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return "", uri
	}
	return strings.ToLower(uri[:idx]), uri[idx+len("://"):]
}

// parseMode translates an fopen style mode into open flags. As with fopen
// the first letter selects the mode and '+' anywhere after it adds the other
// direction; the remaining letters are accepted and ignored.
func parseMode(mode string) (flag int, readable, writable bool, err error) {
	if mode == "" || strings.Trim(mode[1:], modeLetters) != "" {
		return 0, false, false, newError(ErrInvalidArgument, "Invalid stream mode: "+mode)
	}
	plus := strings.Contains(mode[1:], "+")

	switch mode[0] {
	case 'r':
		flag, readable = os.O_RDONLY, true
		if plus {
			flag, writable = os.O_RDWR, true
		}
		return flag, readable, writable, nil
	case 'w':
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case 'a':
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case 'x':
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case 'c':
		flag = os.O_WRONLY | os.O_CREATE
	default:
		return 0, false, false, newError(ErrInvalidArgument, "Invalid stream mode: "+mode)
	}
	if plus {
		flag = flag&^os.O_WRONLY | os.O_RDWR
		readable = true
	}
	return flag, readable, true, nil
}
