package conn

import (
	"context"
	"strings"
	"time"

	peribus "github.com/peripherialabs/peribus-sub000"
	"github.com/peripherialabs/peribus-sub000/fs"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// statTimeout bounds a single child's Stat call during a directory
// read; a timeout skips that child rather than stalling the whole
// readdir.
const statTimeout = 200 * time.Millisecond

// dispatch routes one decoded message to its handler. Tversion is
// handled inline, since framing depends on the msize it negotiates;
// every other message runs in its own goroutine so a blocked Tread
// never blocks a concurrent Twrite on the same connection.
func (c *Conn) dispatch(m styxproto.Message) {
	if v, ok := m.(styxproto.Tversion); ok {
		c.handleTversion(v)
		return
	}
	if c.state != stateActive {
		c.rerror(m.MessageTag(), "protocol version not negotiated")
		return
	}

	tag := m.MessageTag()
	ctx, cancel := context.WithCancel(context.Background())

	c.pendingMu.Lock()
	c.pending[tag] = cancel
	c.pendingMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.pendingMu.Lock()
			delete(c.pending, tag)
			c.pendingMu.Unlock()
			cancel()
		}()
		defer func() {
			if r := recover(); r != nil {
				// Any panic in a handler surfaces as Rerror, never
				// crashes the connection.
				c.rerror(tag, "internal error: %v", r)
			}
		}()
		c.handle(ctx, m)
	}()
}

func (c *Conn) handle(ctx context.Context, m styxproto.Message) {
	switch v := m.(type) {
	case styxproto.Tauth:
		c.handleTauth(v)
	case styxproto.Tattach:
		c.handleTattach(v)
	case styxproto.Tflush:
		c.handleTflush(v)
	case styxproto.Twalk:
		c.handleTwalk(ctx, v)
	case styxproto.Topen:
		c.handleTopen(ctx, v)
	case styxproto.Tcreate:
		c.handleTcreate(ctx, v)
	case styxproto.Tread:
		c.handleTread(ctx, v)
	case styxproto.Twrite:
		c.handleTwrite(ctx, v)
	case styxproto.Tclunk:
		c.handleTclunk(v)
	case styxproto.Tstat:
		c.handleTstat(v)
	case styxproto.Twstat:
		c.handleTwstat(v)
	case styxproto.Tremove:
		c.handleTremove(v)
	case styxproto.Unknown:
		c.rerror(v.Tag, "unknown message type %s", styxproto.MessageName(v.Type))
	default:
		c.rerror(m.MessageTag(), "unexpected message %T", m)
	}
}

func (c *Conn) handleTversion(m styxproto.Tversion) {
	c.fidMu.Lock()
	c.fids = make(map[uint32]*fidEntry)
	c.fidMu.Unlock()

	c.pendingMu.Lock()
	for _, cancel := range c.pending {
		cancel()
	}
	c.pending = make(map[uint16]context.CancelFunc)
	c.pendingMu.Unlock()

	if !strings.HasPrefix(m.Version, "9P2000") {
		c.writeMessage(styxproto.Rversion{Tag: styxproto.NoTag, Msize: m.Msize, Version: "unknown"})
		c.state = stateNew
		return
	}

	msize := m.Msize
	if msize > c.srv.maxMsize() {
		msize = c.srv.maxMsize()
	}
	c.msize = msize
	c.state = stateActive
	c.writeMessage(styxproto.Rversion{Tag: styxproto.NoTag, Msize: msize, Version: "9P2000"})
}

func (c *Conn) handleTauth(m styxproto.Tauth) {
	c.rerror(m.Tag, "%v", peribus.ErrAuthRefused)
}

func (c *Conn) handleTattach(m styxproto.Tattach) {
	c.fidMu.Lock()
	_, inUse := c.fids[m.Fid]
	if inUse {
		c.fidMu.Unlock()
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrFidInUse, m.Fid)
		return
	}
	root := c.srv.Root
	entry := &fidEntry{file: root, qid: root.Qid()}
	c.fids[m.Fid] = entry
	c.fidMu.Unlock()

	c.writeMessage(styxproto.Rattach{Tag: m.Tag, Qid: entry.qid})
}

func (c *Conn) handleTflush(m styxproto.Tflush) {
	c.pendingMu.Lock()
	cancel, ok := c.pending[m.Oldtag]
	if ok {
		delete(c.pending, m.Oldtag)
	}
	c.pendingMu.Unlock()
	if ok {
		cancel()
	}
	c.writeMessage(styxproto.Rflush{Tag: m.Tag})
}

func (c *Conn) getFid(fid uint32) (*fidEntry, bool) {
	c.fidMu.Lock()
	e, ok := c.fids[fid]
	c.fidMu.Unlock()
	return e, ok
}

func (c *Conn) handleTwalk(ctx context.Context, m styxproto.Twalk) {
	src, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}

	if len(m.Wname) == 0 {
		// Clone walk: newfid must be a distinct alias onto the same file.
		if m.Newfid != m.Fid {
			if _, exists := c.getFid(m.Newfid); exists {
				c.rerror(m.Tag, "%v (newfid %d)", peribus.ErrFidInUse, m.Newfid)
				return
			}
			c.fidMu.Lock()
			c.fids[m.Newfid] = &fidEntry{file: src.file, ancestors: src.ancestors, qid: src.qid}
			c.fidMu.Unlock()
		}
		c.writeMessage(styxproto.Rwalk{Tag: m.Tag, Wqid: nil})
		return
	}

	cur := src.file
	// ancestors is root..immediate-parent; ".." pops it, descending
	// into a child pushes the directory being left.
	ancestors := append([]fs.Directory(nil), src.ancestors...)
	qids := make([]styxproto.Qid, 0, len(m.Wname))

walkLoop:
	for _, name := range m.Wname {
		switch {
		case name == ".":
			// stays put
		case name == "..":
			if n := len(ancestors); n > 0 {
				cur = ancestors[n-1]
				ancestors = ancestors[:n-1]
			}
			// at the root, ".." is a self-walk
		default:
			dir, isDir := cur.(fs.Directory)
			if !isDir {
				if len(qids) == 0 {
					c.rerror(m.Tag, "%v", peribus.ErrNotDir)
					return
				}
				break walkLoop
			}
			child, found, err := dir.Walk(ctx, name)
			if err != nil || !found {
				if len(qids) == 0 {
					c.rerror(m.Tag, "%v: %q", peribus.ErrNoSuchFile, name)
					return
				}
				break walkLoop
			}
			ancestors = append(ancestors, dir)
			cur = child
		}
		qids = append(qids, cur.Qid())
	}

	if len(qids) < len(m.Wname) {
		// Partial success: return what was walked, create nothing.
		c.writeMessage(styxproto.Rwalk{Tag: m.Tag, Wqid: qids})
		return
	}

	if m.Newfid != m.Fid {
		if _, exists := c.getFid(m.Newfid); exists {
			c.rerror(m.Tag, "%v (newfid %d)", peribus.ErrFidInUse, m.Newfid)
			return
		}
	}
	c.fidMu.Lock()
	c.fids[m.Newfid] = &fidEntry{file: cur, ancestors: ancestors, qid: cur.Qid()}
	c.fidMu.Unlock()
	c.writeMessage(styxproto.Rwalk{Tag: m.Tag, Wqid: qids})
}

func (c *Conn) handleTopen(ctx context.Context, m styxproto.Topen) {
	e, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}
	if e.opened {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrAlreadyOpen, m.Fid)
		return
	}

	wantsWrite := m.Mode&3 == styxproto.OWRITE || m.Mode&3 == styxproto.ORDWR
	if wantsWrite && !fs.CanWrite(e.file.Stat().Mode) {
		c.rerror(m.Tag, "%v", peribus.ErrPermission)
		return
	}

	if err := e.file.Open(ctx, uint64(m.Fid), m.Mode); err != nil {
		c.rerror(m.Tag, "%v", err)
		return
	}

	c.fidMu.Lock()
	e.opened = true
	e.mode = m.Mode
	c.fidMu.Unlock()

	iounit := c.msize - defaultIOHeader
	c.writeMessage(styxproto.Ropen{Tag: m.Tag, Qid: e.qid, IOunit: iounit})
}

func (c *Conn) handleTcreate(ctx context.Context, m styxproto.Tcreate) {
	e, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}
	dir, isDir := e.file.(fs.Directory)
	if !isDir {
		c.rerror(m.Tag, "%v", peribus.ErrNotDir)
		return
	}
	creator, ok := dir.(fs.Creator)
	if !ok {
		c.rerror(m.Tag, "%v", peribus.ErrNotSupported)
		return
	}
	newFile, err := creator.Create(ctx, m.Name, m.Perm, m.Mode)
	if err != nil {
		c.rerror(m.Tag, "%v", err)
		return
	}

	// 9P semantics: after a successful create, the original fid refers
	// to the newly created file.
	ancestors := append(append([]fs.Directory(nil), e.ancestors...), dir)
	c.fidMu.Lock()
	c.fids[m.Fid] = &fidEntry{file: newFile, ancestors: ancestors, qid: newFile.Qid(), opened: true, mode: m.Mode}
	c.fidMu.Unlock()

	iounit := c.msize - defaultIOHeader
	c.writeMessage(styxproto.Rcreate{Tag: m.Tag, Qid: newFile.Qid(), IOunit: iounit})
}

func (c *Conn) handleTread(ctx context.Context, m styxproto.Tread) {
	e, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}
	if !e.opened {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNotOpen, m.Fid)
		return
	}

	count := m.Count
	if iounit := c.msize - defaultIOHeader; count > iounit {
		count = iounit
	}

	if dir, isDir := e.file.(fs.Directory); isDir {
		data := c.readDir(ctx, e, dir, m.Offset, int(count))
		c.writeMessage(styxproto.Rread{Tag: m.Tag, Data: data})
		return
	}

	data, err := e.file.Read(ctx, uint64(m.Fid), int64(m.Offset), int(count))
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled by Tflush: no reply
		}
		c.rerror(m.Tag, "%v", err)
		return
	}
	c.writeMessage(styxproto.Rread{Tag: m.Tag, Data: data})
}

// readDir implements the directory-read protocol: build and cache a
// packed-stat blob on first read, then serve whole records out of the
// cache, never splitting one across two replies.
func (c *Conn) readDir(ctx context.Context, e *fidEntry, dir fs.Directory, offset uint64, count int) []byte {
	c.fidMu.Lock()
	cache := e.dirCache
	c.fidMu.Unlock()

	if offset == 0 || cache == nil {
		cache = c.buildDirCache(dir)
		c.fidMu.Lock()
		e.dirCache = cache
		c.fidMu.Unlock()
	}

	if int(offset) >= len(cache) {
		return nil
	}

	end := int(offset)
	first := true
	for end < len(cache) {
		size := int(cache[end]) | int(cache[end+1])<<8
		recLen := size + 2
		if end+recLen > int(offset)+count {
			if first {
				// A single record larger than count: serve it anyway so
				// the client makes forward progress.
				end += recLen
			}
			break
		}
		end += recLen
		first = false
	}
	return cache[offset:end]
}

func (c *Conn) buildDirCache(dir fs.Directory) []byte {
	var blob []byte
	for _, entry := range dir.Children() {
		statCtx, cancel := context.WithTimeout(context.Background(), statTimeout)
		done := make(chan styxproto.Stat, 1)
		go func(f fs.File) { done <- f.Stat() }(entry.File)

		select {
		case st := <-done:
			blob = st.Marshal(blob)
		case <-statCtx.Done():
			// Stat timeout: skip this child, continue the listing.
		}
		cancel()
	}
	return blob
}

func (c *Conn) handleTwrite(ctx context.Context, m styxproto.Twrite) {
	e, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}
	if !e.opened {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNotOpen, m.Fid)
		return
	}

	n, err := e.file.Write(ctx, uint64(m.Fid), int64(m.Offset), m.Data)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.rerror(m.Tag, "%v", err)
		return
	}
	c.writeMessage(styxproto.Rwrite{Tag: m.Tag, Count: uint32(n)})
}

func (c *Conn) handleTclunk(m styxproto.Tclunk) {
	c.fidMu.Lock()
	e, ok := c.fids[m.Fid]
	delete(c.fids, m.Fid)
	c.fidMu.Unlock()

	if ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Warnf("clunk hook panicked for fid %d: %v", m.Fid, r)
				}
			}()
			e.file.Clunk(uint64(m.Fid))
		}()
	}
	c.writeMessage(styxproto.Rclunk{Tag: m.Tag})
}

func (c *Conn) handleTstat(m styxproto.Tstat) {
	e, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}
	c.writeMessage(styxproto.Rstat{Tag: m.Tag, Stat: e.file.Stat()})
}

func (c *Conn) handleTwstat(m styxproto.Twstat) {
	e, ok := c.getFid(m.Fid)
	if !ok {
		c.rerror(m.Tag, "%v (fid %d)", peribus.ErrNoSuchFid, m.Fid)
		return
	}
	if m.Stat.Length == 0 {
		if t, ok := e.file.(fs.Truncator); ok {
			if err := t.Truncate(); err != nil {
				c.rerror(m.Tag, "%v", err)
				return
			}
		}
	}
	// Every other wstat field is a silent no-op.
	c.writeMessage(styxproto.Rwstat{Tag: m.Tag})
}

func (c *Conn) handleTremove(m styxproto.Tremove) {
	c.rerror(m.Tag, "%v", peribus.ErrNotSupported)
}
