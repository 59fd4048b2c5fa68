package domain

import "errors"

// Error kinds. Every failure returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrType            = errors.New("type error")
	ErrValue           = errors.New("value error")
	ErrRuntime         = errors.New("runtime error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Messages that consumers match on. They must stay verbatim.
const (
	MsgNotUploaded       = "It is not a valid uploaded file"
	MsgInvalidStream     = "Invalid filename. Unable to open the stream."
	MsgInvalidStatus     = "Error status for UploadedFile must be an UPLOAD_ERR_* constant"
	MsgStreamAfterMove   = "Cannot retrieve stream after it has been moved"
	MsgAlreadyMoved      = "Cannot move file; already moved!"
	MsgInvalidMoveTarget = "Invalid path provided for move operation; must be a non-empty string"
	MsgDetached          = "Stream is detached"
)

// Error is a classified failure. Error() returns the message only, the cause
// is reachable through errors.Unwrap.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
