package fs

import (
	"context"
	"sync"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

type supplementState int

const (
	supplementWaiting supplementState = iota
	supplementReady
	supplementConsumed
)

// SupplementFile is the one-shot, rearming companion to a stream: a
// single atomic delivery per generation, e.g. a plumbing rule that
// extracts a fenced code block out of an agent's main output stream.
// States cycle WAITING -> READY -> CONSUMED -> WAITING.
type SupplementFile struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32

	mu      sync.Mutex
	state   supplementState
	content []byte

	bc *broadcaster
}

func NewSupplementFile(pool *qidpool.Pool, path, name string, mode uint32) *SupplementFile {
	return &SupplementFile{
		name: name,
		path: path,
		pool: pool,
		mode: mode,
		qid:  pool.LoadOrStore(path, styxproto.QTAPPEND),
		bc:   newBroadcaster(),
	}
}

func (f *SupplementFile) Qid() styxproto.Qid { return f.qid }

func (f *SupplementFile) Stat() styxproto.Stat {
	f.mu.Lock()
	n := len(f.content)
	f.mu.Unlock()
	return NewStat(f.qid, f.name, f.mode, uint64(n))
}

func (f *SupplementFile) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }
func (f *SupplementFile) Clunk(fid uint64)                                      {}

// SetReady stores content and transitions WAITING -> READY, waking
// waiters. Called by the producer (e.g. a stream-scanning plumbing
// rule) once per generation.
func (f *SupplementFile) SetReady(content []byte) {
	f.mu.Lock()
	f.content = append([]byte(nil), content...)
	f.state = supplementReady
	f.mu.Unlock()
	f.pool.Bump(f.path)
	f.bc.wake()
}

// Read rearms on an offset-0 reopen of a CONSUMED file, then blocks for
// READY, delivers content[offset:offset+count], and transitions to
// CONSUMED once the slice reaches the end of content.
func (f *SupplementFile) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	if offset == 0 && f.state == supplementConsumed {
		f.state = supplementWaiting
	}
	f.mu.Unlock()

	for {
		f.mu.Lock()
		if f.state == supplementReady {
			break
		}
		if f.state == supplementConsumed {
			// A trailing read past the end of an already-delivered
			// generation (offset != 0, so the rearm above didn't fire):
			// this is the EOF read that ends a cat loop, not a reason to
			// block for the next SetReady.
			f.mu.Unlock()
			return nil, nil
		}
		ch := f.bc.token()
		f.mu.Unlock()
		if err := f.bc.wait(ctx, ch); err != nil {
			return nil, err
		}
	}
	defer f.mu.Unlock()

	if offset < 0 || int(offset) >= len(f.content) {
		if offset == 0 && len(f.content) == 0 {
			f.state = supplementConsumed
		}
		return nil, nil
	}
	end := int(offset) + count
	reachedEnd := end >= len(f.content)
	if end > len(f.content) {
		end = len(f.content)
	}
	out := make([]byte, end-int(offset))
	copy(out, f.content[offset:end])
	if reachedEnd {
		f.state = supplementConsumed
	}
	return out, nil
}

// Write lets a client set content directly, transitioning straight to
// READY -- useful for injecting content without a separate call.
func (f *SupplementFile) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	f.SetReady(data)
	return len(data), nil
}
