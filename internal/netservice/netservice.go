// Package netservice runs a set of 9P2000 servers -- one per logical
// listener, each Server carrying its own Root (several may share one
// tree) -- and fans their lifetimes into a
// single graceful shutdown, using errgroup to supervise a fixed set of
// long-running goroutines instead of hand-rolled sync.WaitGroup
// plumbing.
package netservice

import (
	"context"
	"errors"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/peripherialabs/peribus-sub000/conn"
	ilog "github.com/peripherialabs/peribus-sub000/internal/log"
)

// Listener pairs a network listener with the server instance that owns
// it, so a Group can Accept on several servers at once (the main
// namespace and, for example, an adjacent display server).
type Listener struct {
	Name     string
	Server   *conn.Server
	Listener net.Listener
}

// Group runs a fixed set of Listeners until ctx is canceled, then closes
// every listener so their Serve loops unwind, and waits for all of them
// to return.
type Group struct {
	listeners []Listener
}

// New builds a Group from the given listeners.
func New(listeners ...Listener) *Group {
	return &Group{listeners: listeners}
}

// Run blocks until ctx is canceled or any listener's Serve returns a
// fatal error, then tears down every other listener and returns the
// first error encountered (nil on a clean ctx-cancel shutdown).
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for _, l := range g.listeners {
		l := l
		eg.Go(func() error {
			ilog.WithField("listener", l.Name).Infof("serving on %s", l.Listener.Addr())
			err := l.Server.Serve(l.Listener)
			if ctx.Err() != nil {
				// Shutdown in progress; a "closed" error from our own
				// listener.Close() below isn't a real failure.
				return nil
			}
			return err
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		for _, l := range g.listeners {
			if err := l.Listener.Close(); err != nil && !isClosed(err) {
				ilog.WithField("listener", l.Name).Warnf("close error: %v", err)
			}
		}
		return nil
	})

	return eg.Wait()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
