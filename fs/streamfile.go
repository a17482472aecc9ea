package fs

import (
	"context"
	"sync"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// StreamFile is the append-only, growing buffer with per-fid cursors and
// a generation gate -- the primitive that turns `while true; do cat
// FILE; done` into a zero-poll, lifelong subscription.
//
// States cycle IDLE -> STREAMING -> IDLE. Each producer session (from
// Reset to Finish) is a generation. The gate is a boolean latch, open
// while a generation is running, that a cursor-zero reader blocks on;
// it decouples "a generation will deliver bytes" from "bytes are
// currently available", which is what lets Finish alone (no Reset) leave
// a waiting reader blocked.
type StreamFile struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32

	maxBytes int

	mu         sync.Mutex
	buf        []byte
	discarded  int64 // total bytes ever trimmed from the front of buf
	eof        bool  // current generation has called Finish
	gateOpen   bool  // a generation is currently running
	generation uint64
	cursors    map[uint64]int64 // fid -> absolute position (discarded + index into buf)

	bc *broadcaster
}

// NewStreamFile creates a stream file with the given soft size bound;
// once the buffer exceeds maxBytes, the oldest bytes are discarded and
// every fid's cursor is clamped forward to match. A non-positive
// maxBytes means unbounded.
func NewStreamFile(pool *qidpool.Pool, path, name string, mode uint32, maxBytes int) *StreamFile {
	return &StreamFile{
		name:     name,
		path:     path,
		pool:     pool,
		mode:     mode,
		maxBytes: maxBytes,
		qid:      pool.LoadOrStore(path, styxproto.QTAPPEND),
		cursors:  make(map[uint64]int64),
		bc:       newBroadcaster(),
	}
}

func (f *StreamFile) Qid() styxproto.Qid { return f.qid }

func (f *StreamFile) Stat() styxproto.Stat {
	f.mu.Lock()
	n := len(f.buf)
	f.mu.Unlock()
	// Reports the live buffer length, not 0, so real clients sizing
	// before a read see something useful.
	return NewStat(f.qid, f.name, f.mode, uint64(n))
}

// Open clears any stale cursor a previous fid generation left behind
// under this fid number; the fid's cursor is actually seeded by its
// first Read call (which sees no entry and starts from that call's
// offset). A fid opened at a non-zero offset skips the gate -- this is
// how mid-stream seeks stay consistent.
func (f *StreamFile) Open(ctx context.Context, fid uint64, mode uint8) error {
	f.mu.Lock()
	delete(f.cursors, fid)
	f.mu.Unlock()
	return nil
}

func (f *StreamFile) Clunk(fid uint64) {
	f.mu.Lock()
	delete(f.cursors, fid)
	f.mu.Unlock()
}

// Reset drops all buffered bytes, clears every advanced cursor, clears EOF, opens
// the generation gate, and wakes every waiter. It returns the new
// generation number, exported for logging/metrics; the wire protocol
// never sees it.
//
// Cursors still sitting at 0 are left in place rather than erased: those
// fids are either parked on the gate (never having read anything from
// the previous generation) or simply never advanced, so position 0 in
// the fresh buffer is exactly where they belong. A cursor that had
// already advanced belonged to a generation that no longer exists and
// is erased, so that reader's next loop iteration observes "cursor
// invalidated" and returns empty bytes.
func (f *StreamFile) Reset() uint64 {
	f.mu.Lock()
	f.buf = nil
	f.discarded = 0
	for fid, cur := range f.cursors {
		if cur != 0 {
			delete(f.cursors, fid)
		}
	}
	f.eof = false
	f.gateOpen = true
	f.generation++
	gen := f.generation
	f.mu.Unlock()
	f.pool.Bump(f.path)
	f.bc.wake()
	return gen
}

// Append extends the buffer, discarding the oldest bytes if maxBytes is
// exceeded, and wakes every waiter.
func (f *StreamFile) Append(data []byte) {
	f.mu.Lock()
	f.buf = append(f.buf, data...)
	f.trimLocked()
	f.mu.Unlock()
	f.pool.Bump(f.path)
	f.bc.wake()
}

// Finish marks end-of-generation: buffered bytes remain readable until
// drained, after which reads return empty; the generation gate closes,
// so a reader that opens afresh blocks again until the next Reset.
func (f *StreamFile) Finish() {
	f.mu.Lock()
	f.eof = true
	f.gateOpen = false
	f.mu.Unlock()
	f.bc.wake()
}

// Generation returns the current generation counter.
func (f *StreamFile) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

func (f *StreamFile) trimLocked() {
	if f.maxBytes <= 0 || len(f.buf) <= f.maxBytes {
		return
	}
	drop := len(f.buf) - f.maxBytes
	f.buf = f.buf[drop:]
	f.discarded += int64(drop)
}

// Read implements the consumer side of the gate: obtain/create the
// cursor, gate on cursor==0, then loop serving bytes / EOF / blocking.
func (f *StreamFile) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	cur, ok := f.cursors[fid]
	if !ok || cur < 0 {
		cur = offset
		f.cursors[fid] = cur
	}
	gen := f.generation
	f.mu.Unlock()

	if cur == 0 {
		if err := f.waitForGate(ctx, gen); err != nil {
			return nil, err
		}
	}

	for {
		f.mu.Lock()
		// reset() may have invalidated this fid's cursor out from under
		// a blocked reader; that's an "old generation ended" signal.
		live, ok := f.cursors[fid]
		if !ok {
			f.mu.Unlock()
			return nil, nil
		}
		pos := live - f.discarded
		if pos < 0 {
			// fell behind the discard watermark: jump forward to it
			// rather than re-delivering already-trimmed bytes.
			pos = 0
			live = f.discarded
		}
		if int(pos) < len(f.buf) {
			avail := f.buf[pos:]
			n := count
			if n > len(avail) {
				n = len(avail)
			}
			out := make([]byte, n)
			copy(out, avail[:n])
			f.cursors[fid] = live + int64(n)
			f.mu.Unlock()
			return out, nil
		}
		if f.eof {
			f.mu.Unlock()
			return nil, nil
		}
		ch := f.bc.token()
		f.mu.Unlock()
		if err := f.bc.wait(ctx, ch); err != nil {
			return nil, err
		}
		// on wake: did our own cursor get invalidated by a Reset while
		// we were parked? the loop re-checks f.cursors[fid] above.
	}
}

// waitForGate returns once the gate is open, or once a Reset has started
// a generation after gen even if Finish has already closed the gate
// again, so a parked reader never misses a short generation.
func (f *StreamFile) waitForGate(ctx context.Context, gen uint64) error {
	for {
		f.mu.Lock()
		if f.gateOpen || f.generation != gen {
			f.mu.Unlock()
			return nil
		}
		ch := f.bc.token()
		f.mu.Unlock()
		if err := f.bc.wait(ctx, ch); err != nil {
			return err
		}
	}
}

// Write lets a client inject bytes directly into the stream, treated
// exactly like a producer-side Append (used for plumbing a second
// agent's prompt straight into a route's destination, for instance).
func (f *StreamFile) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	f.Append(data)
	return len(data), nil
}
