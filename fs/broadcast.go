package fs

import (
	"context"
	"sync"
)

// broadcaster is the "list of waiter signals" the stream, queue,
// supplementary, and terminal-stdout files all need: any number of
// blocked readers must wake whenever the file's producer side calls
// append/set_ready/mark_ready/reset/finish. It is a single condition
// one or more goroutines can park on, rebuilt fresh after every wake so
// a waiter that arrives between two wakes doesn't miss one it wasn't
// there for.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

// wake releases every goroutine currently parked in wait. Callers change
// the file's state under its own lock and call wake after releasing it;
// a waiter takes its token under that same lock, so it either sees the
// new state or holds a token this wake closes.
func (b *broadcaster) wake() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}

// wait blocks until the next call to wake, ctx is cancelled, or the
// connection tears down. Callers must NOT hold the file's state lock
// when calling wait; the usual pattern is:
//
//	for {
//	    mu.Lock()
//	    if ready { ...; mu.Unlock(); return }
//	    ch := bc.token()
//	    mu.Unlock()
//	    if err := bc.wait(ctx, ch); err != nil { return err }
//	}
func (b *broadcaster) token() chan struct{} {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) wait(ctx context.Context, ch chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
