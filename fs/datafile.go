package fs

import (
	"context"
	"sync"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// DataFile is a mutable in-memory byte buffer: plain offset reads and
// writes, with sparse extension that zero-fills the gap on a write
// past the current end.
type DataFile struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32

	mu   sync.Mutex
	data []byte
}

// NewDataFile creates a data file named name, addressed by path in the
// qid pool, with the given unix-style permission bits.
func NewDataFile(pool *qidpool.Pool, path, name string, mode uint32) *DataFile {
	return &DataFile{
		name: name,
		path: path,
		pool: pool,
		mode: mode,
		qid:  pool.LoadOrStore(path, styxproto.QTFILE),
	}
}

func (f *DataFile) Qid() styxproto.Qid { return f.qid }

func (f *DataFile) Stat() styxproto.Stat {
	f.mu.Lock()
	n := len(f.data)
	f.mu.Unlock()
	return NewStat(f.qid, f.name, f.mode, uint64(n))
}

func (f *DataFile) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }

func (f *DataFile) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset < 0 || int(offset) >= len(f.data) {
		return nil, nil
	}
	end := int(offset) + count
	if end > len(f.data) {
		end = len(f.data)
	}
	out := make([]byte, end-int(offset))
	copy(out, f.data[offset:end])
	return out, nil
}

func (f *DataFile) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := int(offset) + len(data)
	if end > len(f.data) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:end], data)
	f.pool.Bump(f.path)
	return len(data), nil
}

func (f *DataFile) Clunk(fid uint64) {}

// Truncate implements Truncator: Twstat with length=0 resets the
// buffer to empty.
func (f *DataFile) Truncate() error {
	f.mu.Lock()
	f.data = f.data[:0]
	f.mu.Unlock()
	f.pool.Bump(f.path)
	return nil
}

// Set overwrites the file's entire content, for use by collaborators
// that want to seed or replace a data file's value outside of a 9P
// write (e.g. session save/load).
func (f *DataFile) Set(content []byte) {
	f.mu.Lock()
	f.data = append([]byte(nil), content...)
	f.mu.Unlock()
	f.pool.Bump(f.path)
}

// Bytes returns a copy of the file's current content.
func (f *DataFile) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...)
}
