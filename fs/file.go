// Package fs implements the synthetic file hierarchy: polymorphic file
// objects that give blocking, stream, queue, capture, and control
// semantics a uniform file interface. None of these types know about
// 9P; the connection dispatcher in package conn adapts
// Topen/Tread/Twrite/Tclunk onto the methods below.
package fs

import (
	"context"

	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// A File is the capability set every synthetic file implements: qid,
// stat, open, read, write, clunk. fid is an opaque per-connection handle
// supplied by the caller (the conn package); files that need per-fid
// state (cursors, aux buffers) key it off fid.
type File interface {
	// Qid returns the file's stable identity.
	Qid() styxproto.Qid

	// Stat returns the file's current metadata.
	Stat() styxproto.Stat

	// Open is called once per fid, after a successful permission check.
	// Implementations that need per-generation setup (e.g. a stream file
	// resetting its cursor) do it here.
	Open(ctx context.Context, fid uint64, mode uint8) error

	// Read returns up to count bytes starting at offset for the given
	// fid. It may block (stream/supplementary/queue/terminal files) and
	// must honor ctx cancellation. It may return fewer bytes than
	// requested; zero bytes signals EOF or end-of-generation, never an
	// error by itself.
	Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error)

	// Write writes data at offset for the given fid and returns the
	// number of bytes accepted.
	Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error)

	// Clunk releases any per-fid state. It never returns an error to the
	// wire; a panic or logged failure here still results in Rclunk.
	Clunk(fid uint64)
}

// Truncator is implemented by files that honor Twstat's "set length=0"
// idiom for O_TRUNC. Files that don't implement it simply succeed
// silently.
type Truncator interface {
	Truncate() error
}

// A Creator is implemented by directories that opt into Tcreate --
// whether creation is allowed is a policy decision left to the
// directory.
type Creator interface {
	Create(ctx context.Context, name string, perm uint32, mode uint8) (File, error)
}

// Directory is the capability set of a directory: in addition to File,
// it supports name resolution and listing. Child iteration order is the
// order children were added, so directory reads are deterministic.
type Directory interface {
	File

	// Walk resolves a single path component. ok is false if no such
	// child exists. This may perform I/O; it must not block
	// indefinitely, as it runs inline in the dispatcher's walk loop.
	Walk(ctx context.Context, name string) (File, bool, error)

	// Children returns the directory's entries in stable iteration
	// order, for directory-read framing.
	Children() []DirEntry

	// Add inserts or replaces a child.
	Add(name string, f File)

	// Remove deletes a child by name. It is a no-op if absent.
	Remove(name string)
}

// DirEntry pairs a child's name with the file it names, as returned by
// Directory.Children.
type DirEntry struct {
	Name string
	File File
}

// NewStat builds a styxproto.Stat from a qid and the common fields every
// synthetic file needs. length is ignored (forced to 0) for directories.
func NewStat(qid styxproto.Qid, name string, mode uint32, length uint64) styxproto.Stat {
	if qid.Type&styxproto.QTDIR != 0 {
		mode |= styxproto.DMDIR
		length = 0
	}
	return styxproto.Stat{
		Type:   0,
		Dev:    0,
		Qid:    qid,
		Mode:   mode,
		Atime:  0,
		Mtime:  0,
		Length: length,
		Name:   name,
		Uid:    "peribus",
		Gid:    "peribus",
		Muid:   "peribus",
	}
}

// CanWrite reports whether mode (from Stat.Mode) permits the owner to
// write -- the check Topen makes before allowing OWRITE/ORDWR.
func CanWrite(mode uint32) bool {
	return mode&0o200 != 0
}
