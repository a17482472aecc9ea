package fs

import (
	"context"
	"sync"
	"time"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// defaultQueuePoll bounds how long a Read on an empty QueueFile blocks
// before returning an empty slice: a bounded timeout rather than
// blocking indefinitely.
const defaultQueuePoll = 200 * time.Millisecond

// QueueFile is a bounded FIFO of byte blobs. Post enqueues, dropping
// the oldest entry on overflow; Read dequeues one item, buffering any
// remainder larger than the requested count for the next Read.
type QueueFile struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32
	cap  int
	poll time.Duration

	mu      sync.Mutex
	items   [][]byte
	pending []byte // remainder of a partially-delivered item

	bc *broadcaster
}

// NewQueueFile creates a bounded queue file with room for capacity
// items before the oldest is dropped.
func NewQueueFile(pool *qidpool.Pool, path, name string, mode uint32, capacity int) *QueueFile {
	return &QueueFile{
		name: name,
		path: path,
		pool: pool,
		mode: mode,
		cap:  capacity,
		poll: defaultQueuePoll,
		qid:  pool.LoadOrStore(path, styxproto.QTFILE),
		bc:   newBroadcaster(),
	}
}

func (f *QueueFile) Qid() styxproto.Qid { return f.qid }

func (f *QueueFile) Stat() styxproto.Stat {
	f.mu.Lock()
	n := len(f.items)
	f.mu.Unlock()
	return NewStat(f.qid, f.name, f.mode, uint64(n))
}

func (f *QueueFile) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }
func (f *QueueFile) Clunk(fid uint64)                                      {}

// Post enqueues an item, dropping the oldest if the queue is full.
func (f *QueueFile) Post(item []byte) {
	f.mu.Lock()
	if f.cap > 0 && len(f.items) >= f.cap {
		f.items = f.items[1:]
	}
	f.items = append(f.items, append([]byte(nil), item...))
	f.mu.Unlock()
	f.bc.wake()
}

// Read dequeues one item (or a remainder buffered from a previous
// partial delivery); if the queue is empty it waits up to the poll
// interval, then returns an empty slice rather than blocking forever.
func (f *QueueFile) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	if len(f.pending) == 0 {
		if len(f.items) == 0 {
			ch := f.bc.token()
			f.mu.Unlock()

			timer := time.NewTimer(f.poll)
			defer timer.Stop()
			select {
			case <-ch:
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			f.mu.Lock()
			if len(f.items) == 0 {
				f.mu.Unlock()
				return nil, nil
			}
		}
		f.pending = f.items[0]
		f.items = f.items[1:]
	}
	defer f.mu.Unlock()

	n := count
	if n > len(f.pending) {
		n = len(f.pending)
	}
	out := make([]byte, n)
	copy(out, f.pending[:n])
	f.pending = f.pending[n:]
	return out, nil
}

// Write is equivalent to Post.
func (f *QueueFile) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	f.Post(data)
	return len(data), nil
}
