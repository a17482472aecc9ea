// Package conn implements the 9P2000 connection dispatcher:
// per-connection fid table, concurrent per-request task dispatch, and
// Tflush cancellation. A connection's lifetime is shaped around a
// bufio.Writer and a decode loop driving synthetic files rather than a
// user-supplied Handler.
package conn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/peripherialabs/peribus-sub000/fs"
	"github.com/peripherialabs/peribus-sub000/internal/tracing"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// defaultIOHeader is the fixed overhead 9P2000 subtracts from msize to
// get iounit: size[4] type[1] tag[2] fid[4] offset[8] count[4]/extra.
const defaultIOHeader = 24

type connState int

const (
	stateNew connState = iota
	stateActive
)

// fidEntry is the per-fid state the dispatcher owns: the file, its
// ancestor directories, qid, open mode, opened flag, and the cached
// directory-read blob.
type fidEntry struct {
	file      fs.File
	ancestors []fs.Directory // root..immediate parent, for ".." (nil at the root fid)
	qid       styxproto.Qid
	mode      uint8
	opened    bool

	dirCache []byte // cached stat blob for directory reads
}

// Conn is the server side of one 9P2000 connection. Every field it
// owns is private to this connection; nothing here is ever shared
// across connections -- the fid table belongs entirely to the
// connection loop.
type Conn struct {
	id    string
	rwc   net.Conn
	srv   *Server
	log   *logrus.Entry
	trace tracing.Func

	state connState
	msize uint32

	writeMu sync.Mutex
	bw      *bufio.Writer

	fidMu sync.Mutex
	fids  map[uint32]*fidEntry

	pendingMu sync.Mutex
	pending   map[uint16]context.CancelFunc

	wg sync.WaitGroup
}

func newConn(rwc net.Conn, srv *Server) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:      id,
		rwc:     rwc,
		srv:     srv,
		log:     srv.log().WithField("conn", id).WithField("remote", rwc.RemoteAddr()),
		trace:   srv.traceFunc(),
		msize:   styxproto.MaxMsize,
		bw:      bufio.NewWriter(rwc),
		fids:    make(map[uint32]*fidEntry),
		pending: make(map[uint16]context.CancelFunc),
	}
}

// Serve runs the connection's framing loop until the socket closes or
// a framing error forces it shut. It never returns an error; all
// failures are logged and the connection is torn down.
func (c *Conn) Serve() {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			c.log.Errorf("panic serving connection: %v\n%s", r, buf)
		}
		c.teardown()
	}()

	var buf []byte
	chunk := make([]byte, 32*1024)

	for {
		m, consumed, err := styxproto.Decode(buf, int(c.msize))
		if err == nil {
			c.trace("rx", m)
			buf = buf[consumed:]
			c.dispatch(m)
			continue
		}
		if err == styxproto.ErrTooLarge {
			c.log.Warn("message exceeds negotiated msize; closing connection")
			return
		}
		if err != styxproto.ErrShort {
			// A frame whose length prefix is plausible (at least the
			// 7-byte header, within msize, fully buffered) is dropped
			// whole and the loop moves on to the next message. An
			// implausible prefix leaves no way to find the next message,
			// so the connection is closed.
			if len(buf) >= 4 {
				size := int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16 | int(buf[3])<<24
				if size >= 7 && size <= len(buf) {
					c.log.Warnf("decode error: %v; skipping", err)
					buf = buf[size:]
					continue
				}
			}
			c.log.Warnf("decode error: %v; closing connection", err)
			return
		}

		n, err := c.rwc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				c.log.Debugf("connection read error: %v", err)
			}
			return
		}
	}
}

func (c *Conn) teardown() {
	c.pendingMu.Lock()
	for _, cancel := range c.pending {
		cancel()
	}
	c.pending = nil
	c.pendingMu.Unlock()

	c.wg.Wait()
	c.rwc.Close()
}

// writeMessage serializes one R-message onto the wire under the
// connection's write mutex, so concurrent tasks never interleave
// frames.
func (c *Conn) writeMessage(m styxproto.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var buf []byte
	buf = styxproto.Encode(buf, m)
	c.trace("tx", m)
	if _, err := c.bw.Write(buf); err != nil {
		c.log.Debugf("write error: %v", err)
		return
	}
	if err := c.bw.Flush(); err != nil {
		c.log.Debugf("flush error: %v", err)
	}
}

func (c *Conn) rerror(tag uint16, format string, args ...interface{}) {
	c.writeMessage(styxproto.Rerror{Tag: tag, Ename: fmt.Sprintf(format, args...)})
}
