package routes

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// File is the synthetic routes file: reading it lists every route as
// "<src> -> <dst> [running|stopped]" lines; writing it accepts
// "<src> -> <dst>" to add a route or "-<src>" to remove one, one
// directive per line, tolerant of surrounding whitespace.
type File struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32

	mgr *Manager

	mu  sync.Mutex
	gen []byte // cached listing blob for the current fid generation
}

func NewFile(pool *qidpool.Pool, path, name string, mode uint32, mgr *Manager) *File {
	return &File{
		name: name,
		path: path,
		pool: pool,
		mode: mode,
		mgr:  mgr,
		qid:  pool.LoadOrStore(path, styxproto.QTFILE),
	}
}

func (f *File) Qid() styxproto.Qid { return f.qid }

func (f *File) Stat() styxproto.Stat {
	return styxproto.Stat{
		Qid:  f.qid,
		Mode: f.mode,
		Name: f.name,
		Uid:  "peribus", Gid: "peribus", Muid: "peribus",
	}
}

func (f *File) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }
func (f *File) Clunk(fid uint64)                                      {}

func (f *File) listing() []byte {
	var buf bytes.Buffer
	for _, r := range f.mgr.List() {
		state := "stopped"
		if r.Running {
			state = "running"
		}
		fmt.Fprintf(&buf, "%s -> %s %s\n", r.Src, r.Dst, state)
	}
	return buf.Bytes()
}

// Read serves the route listing, rebuilt fresh on every offset-0 read
// so a re-opened fid always sees current state.
func (f *File) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	if offset == 0 {
		f.gen = f.listing()
	}
	blob := f.gen
	f.mu.Unlock()

	if offset < 0 || int(offset) >= len(blob) {
		return nil, nil
	}
	end := int(offset) + count
	if end > len(blob) {
		end = len(blob)
	}
	out := make([]byte, end-int(offset))
	copy(out, blob[offset:end])
	return out, nil
}

// Write parses one directive per line: "src -> dst" adds a route,
// "-src" removes one. Unknown grammar produces a descriptive error,
// which the dispatcher reports back as an Rerror under the request's
// own tag.
func (f *File) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			f.mgr.Remove(strings.TrimSpace(line[1:]))
			continue
		}
		parts := strings.SplitN(line, "->", 2)
		if len(parts) != 2 {
			return len(data), fmt.Errorf("routes: malformed directive %q", line)
		}
		src := strings.TrimSpace(parts[0])
		dst := strings.TrimSpace(parts[1])
		if src == "" || dst == "" {
			return len(data), fmt.Errorf("routes: malformed directive %q", line)
		}
		if err := f.mgr.Add(src, dst); err != nil {
			return len(data), err
		}
	}
	f.pool.Bump(f.path)
	return len(data), nil
}
