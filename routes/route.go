// Package routes implements named persistent pipes between synthetic
// files, each backed by a loop equivalent to `while true; do cat $src >
// $dst; done`. Because reads on the stream and supplementary files in
// package fs block until there is something to deliver, that loop is
// zero-CPU at rest and wakes the instant a generation opens. An empty
// queue file returns after its poll interval, so a queue source wakes
// the loop once per interval.
package routes

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"aqwari.net/retry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/peripherialabs/peribus-sub000/fs"
	ilog "github.com/peripherialabs/peribus-sub000/internal/log"
)

// routeReadCount bounds a single cat-loop read; routes move data in
// chunks rather than byte-at-a-time.
const routeReadCount = 1 << 16

var fidCounter uint64

func nextFid() uint64 { return atomic.AddUint64(&fidCounter, 1) }

// Route is one named source -> destination pipe. It owns its own fid
// number into both files so that concurrent routes reading the same
// source don't share (and corrupt) each other's cursor.
type Route struct {
	ID       string // stable identity for log correlation across restarts of the loop
	Src, Dst string

	srcFile fs.File
	dstFile fs.File
	fid     uint64

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	running bool
}

func newRoute(src, dst string, srcFile, dstFile fs.File) *Route {
	return &Route{
		ID:      uuid.NewString(),
		Src:     src,
		Dst:     dst,
		srcFile: srcFile,
		dstFile: dstFile,
		fid:     nextFid(),
	}
}

func (r *Route) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	go r.loop(ctx)
}

// loop is the cat-equivalent: block on a source read, forward whatever
// arrives to the destination, repeat. A read or write error backs off
// exponentially using aqwari.net/retry and keeps trying rather than
// giving up -- a route is only stopped by an explicit remove, not by a
// transient destination failure.
func (r *Route) loop(ctx context.Context) {
	defer close(r.done)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	backoff := retry.Exponential(10 * time.Millisecond).Max(2 * time.Second)
	try := 0
	log := ilog.WithFields(logrus.Fields{"route": r.ID, "src": r.Src, "dst": r.Dst})

	for {
		if ctx.Err() != nil {
			return
		}

		data, err := r.srcFile.Read(ctx, r.fid, 0, routeReadCount)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			try++
			d := backoff(try)
			log.Warnf("source read failed: %v; retrying in %v", err, d)
			time.Sleep(d)
			continue
		}
		if len(data) == 0 {
			// End of a generation. Clunk our own fid so the next Read
			// looks like a fresh open: its cursor starts over at 0 and
			// blocks on the source's gate again instead of spinning on
			// an already-past-EOF cursor.
			r.srcFile.Clunk(r.fid)
			continue
		}
		try = 0

		if _, err := r.dstFile.Write(ctx, r.fid, 0, data); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("destination write failed: %v", err)
			try++
			time.Sleep(backoff(try))
		}
	}
}

func (r *Route) stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.srcFile.Clunk(r.fid)
}

// Running reports whether the route's cat-loop is still active.
func (r *Route) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
