package fs

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// Handler executes control lines written to a ControlFile and reports a
// status blob back for reads.
type Handler interface {
	// Execute runs one control line (already trimmed of surrounding
	// whitespace; never empty). The returned response is reserved for
	// handlers that want to surface a per-command result some other way
	// (e.g. logging); ControlFile.Write itself discards it -- Read only
	// ever returns Status.
	Execute(line string) (response []byte, err error)
	// Status returns the handler's current status snapshot.
	Status() []byte
}

// ControlFile is a write-to-command, read-to-status file: writes are
// split on newlines and each non-empty trimmed line is handed to the
// Handler in order; reads return the Handler's current status. Writes
// are serialized under the file's own mutex, so two concurrent Twrites
// never interleave lines mid-Execute.
type ControlFile struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32

	mu      sync.Mutex
	handler Handler
}

func NewControlFile(pool *qidpool.Pool, path, name string, mode uint32, handler Handler) *ControlFile {
	return &ControlFile{
		name:    name,
		path:    path,
		pool:    pool,
		mode:    mode,
		handler: handler,
		qid:     pool.LoadOrStore(path, styxproto.QTFILE),
	}
}

func (f *ControlFile) Qid() styxproto.Qid { return f.qid }

func (f *ControlFile) Stat() styxproto.Stat {
	return NewStat(f.qid, f.name, f.mode, uint64(len(f.handler.Status())))
}

func (f *ControlFile) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }
func (f *ControlFile) Clunk(fid uint64)                                      {}

// Read returns the handler's current status, sliced at offset/count
// like a plain data file -- no cursor, no blocking.
func (f *ControlFile) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	status := f.handler.Status()
	f.mu.Unlock()

	if offset < 0 || int(offset) >= len(status) {
		return nil, nil
	}
	end := int(offset) + count
	if end > len(status) {
		end = len(status)
	}
	out := make([]byte, end-int(offset))
	copy(out, status[offset:end])
	return out, nil
}

// Write splits data on newlines and runs each non-empty trimmed line
// through the handler, serialized under the file's mutex.
func (f *ControlFile) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := f.handler.Execute(line); err != nil {
			return len(data), err
		}
	}
	f.pool.Bump(f.path)
	return len(data), nil
}
