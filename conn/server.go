package conn

import (
	"net"
	"time"

	"aqwari.net/retry"
	"github.com/sirupsen/logrus"

	"github.com/peripherialabs/peribus-sub000/fs"
	ilog "github.com/peripherialabs/peribus-sub000/internal/log"
	"github.com/peripherialabs/peribus-sub000/internal/tracing"
)

// Server owns one served tree. All state lives inside a Server
// instance, so multiple independent servers can run in one process.
type Server struct {
	// Root is served as the attach point for every new connection.
	Root fs.Directory

	// MaxSize is the largest msize this server will negotiate; zero
	// means styxproto.MaxMsize.
	MaxSize uint32

	// Logger receives per-connection diagnostics. Nil means the
	// process-wide logger, internal/log.Std.
	Logger *logrus.Logger

	// Trace, if set, is called with every decoded/encoded message on
	// every connection, for wire-level debugging.
	Trace tracing.Func
}

func (s *Server) maxMsize() uint32 {
	if s.MaxSize == 0 {
		return maxMsize
	}
	return s.MaxSize
}

func (s *Server) log() *logrus.Entry {
	l := s.Logger
	if l == nil {
		l = ilog.Std
	}
	return logrus.NewEntry(l)
}

func (s *Server) traceFunc() tracing.Func {
	if s.Trace == nil {
		return tracing.Discard
	}
	return s.Trace
}

const maxMsize = 1 << 16

// Serve accepts connections on l until it returns a non-temporary
// error, serving each on its own goroutine. Temporary Accept errors
// are retried with exponential backoff.
func (s *Server) Serve(l net.Listener) error {
	type temporary interface {
		Temporary() bool
	}

	backoff := retry.Exponential(time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if te, ok := err.(temporary); ok && te.Temporary() {
				try++
				d := backoff(try)
				s.log().Warnf("accept error: %v; retrying in %v", err, d)
				time.Sleep(d)
				continue
			}
			return err
		}
		try = 0

		c := newConn(rwc, s)
		go c.Serve()
	}
}

// ListenAndServe listens on network/address and serves connections
// until Serve returns.
func (s *Server) ListenAndServe(network, address string) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(l)
}
