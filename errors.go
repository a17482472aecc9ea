package peribus

import "errors"

// Protocol- and namespace-level errors surfaced to clients as Rerror.
// The connection dispatcher formats these into its Rerror text, with
// per-request detail (fid numbers, file names) appended; the string
// sent on the wire is never a stable code, so callers must not depend
// on exact wording.
var (
	ErrFidInUse     = errors.New("fid already in use")
	ErrNoSuchFid    = errors.New("no such fid")
	ErrNotOpen      = errors.New("fid not open")
	ErrAlreadyOpen  = errors.New("fid already open")
	ErrPermission   = errors.New("permission denied")
	ErrNotDir       = errors.New("not a directory")
	ErrNoSuchFile   = errors.New("no such file")
	ErrNotSupported = errors.New("not supported")
	ErrAuthRefused  = errors.New("authentication not required")
)
