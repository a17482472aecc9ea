package fs

import (
	"context"
	"sync"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// Dir is the directory synthetic file: a mapping from child name to
// child File, walkable one component at a time, with insertion order
// preserved for deterministic directory reads.
type Dir struct {
	name  string
	qid   styxproto.Qid
	pool  *qidpool.Pool
	path  string // full path, used as the qidpool key
	mode  uint32
	onNew func(name string, perm uint32, mode uint8) (File, error)

	mu       sync.RWMutex
	order    []string
	children map[string]File
}

// NewDir creates a directory named name at the given path (the path is
// only used as the qidpool key, so siblings with the same name under
// different parents don't collide). mode is the unix-style permission
// bits; the directory bit is added automatically.
func NewDir(pool *qidpool.Pool, path, name string, mode uint32) *Dir {
	d := &Dir{
		name:     name,
		pool:     pool,
		path:     path,
		mode:     mode,
		children: make(map[string]File),
	}
	d.qid = pool.LoadOrStore(path, styxproto.QTDIR)
	return d
}

// WithCreate opts a directory into Tcreate support; hook is called with
// the requested name/perm/mode and returns the File to install, or an
// error to refuse.
func (d *Dir) WithCreate(hook func(name string, perm uint32, mode uint8) (File, error)) *Dir {
	d.onNew = hook
	return d
}

func (d *Dir) Qid() styxproto.Qid { return d.qid }

func (d *Dir) Stat() styxproto.Stat {
	return NewStat(d.qid, d.name, d.mode, 0)
}

func (d *Dir) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }

// Read on a directory is never called directly; directory reads go
// through the dedicated framing path in conn, which calls Children
// instead. Read is only present to satisfy the File interface and
// always returns an empty slice.
func (d *Dir) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	return nil, nil
}

func (d *Dir) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	return 0, ErrPermission
}

func (d *Dir) Clunk(fid uint64) {}

func (d *Dir) Walk(ctx context.Context, name string) (File, bool, error) {
	if name == "." {
		return d, true, nil
	}
	d.mu.RLock()
	f, ok := d.children[name]
	d.mu.RUnlock()
	return f, ok, nil
}

func (d *Dir) Children() []DirEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DirEntry, 0, len(d.order))
	for _, name := range d.order {
		if f, ok := d.children[name]; ok {
			out = append(out, DirEntry{Name: name, File: f})
		}
	}
	return out
}

func (d *Dir) Add(name string, f File) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.children[name]; !exists {
		d.order = append(d.order, name)
	}
	d.children[name] = f
	d.pool.Bump(d.path)
}

func (d *Dir) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[name]; !ok {
		return
	}
	delete(d.children, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.pool.Del(d.path + "/" + name)
	d.pool.Bump(d.path)
}

// Create implements Creator when onNew has been installed via
// WithCreate.
func (d *Dir) Create(ctx context.Context, name string, perm uint32, mode uint8) (File, error) {
	if d.onNew == nil {
		return nil, ErrNotSupported
	}
	f, err := d.onNew(name, perm, mode)
	if err != nil {
		return nil, err
	}
	d.Add(name, f)
	return f, nil
}
