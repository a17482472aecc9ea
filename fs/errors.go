package fs

import "errors"

var (
	ErrPermission   = errors.New("permission denied")
	ErrNotSupported = errors.New("not supported")
	ErrNoSuchFile   = errors.New("no such file")
	ErrClosed       = errors.New("file closed")
)
