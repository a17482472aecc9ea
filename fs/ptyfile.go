package fs

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kr/pty"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// ptyState is IDLE, CAPTURING, READY, CONSUMED -- the same shape as
// the supplementary file's WAITING/READY/CONSUMED, plus a CAPTURING
// state the debounce timer drives into READY.
type ptyState int

const (
	ptyIdle ptyState = iota
	ptyCapturing
	ptyReady
	ptyConsumed
)

// defaultPtyDebounce is how long the PTY must sit silent before its
// current capture is considered complete and promoted to READY.
const defaultPtyDebounce = 300 * time.Millisecond

// PtyFile is the stdout-capture file of a shell attached via a real
// PTY. StartCapture/CaptureOutput/MarkReady are the
// producer-side contract; a background pump goroutine drives
// CaptureOutput off PTY reads and MarkReady off a debounce timer.
// Control (resize, signal, sending an input line) is a separate
// concern, exercised through the methods below rather than the file's
// own Read/Write, which serve only the captured-output contract.
type PtyFile struct {
	name string
	path string
	pool *qidpool.Pool
	qid  styxproto.Qid
	mode uint32

	debounce time.Duration

	mu      sync.Mutex
	state   ptyState
	content []byte

	master *os.File
	cmd    *exec.Cmd

	done     chan struct{}
	closeErr error
	bc       *broadcaster

	scrollback *StreamFile
}

// SetScrollback wires a companion stream that receives
// every byte the PTY produces, independent of the debounce-gated
// content buffer above -- a long-lived shell session's full history,
// as opposed to just the most recent command's output.
func (f *PtyFile) SetScrollback(s *StreamFile) {
	f.mu.Lock()
	f.scrollback = s
	f.mu.Unlock()
}

// NewPtyFile spawns cmd under a new PTY and begins capturing its
// output. The caller is responsible for eventually calling Close.
func NewPtyFile(pool *qidpool.Pool, path, name string, mode uint32, cmd *exec.Cmd) (*PtyFile, error) {
	master, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	f := &PtyFile{
		name:     name,
		path:     path,
		pool:     pool,
		mode:     mode,
		debounce: defaultPtyDebounce,
		master:   master,
		cmd:      cmd,
		done:     make(chan struct{}),
		qid:      pool.LoadOrStore(path, styxproto.QTAPPEND),
		bc:       newBroadcaster(),
	}
	f.StartCapture()
	go f.pump()
	return f, nil
}

func (f *PtyFile) Qid() styxproto.Qid { return f.qid }

func (f *PtyFile) Stat() styxproto.Stat {
	f.mu.Lock()
	n := len(f.content)
	f.mu.Unlock()
	return NewStat(f.qid, f.name, f.mode, uint64(n))
}

func (f *PtyFile) Open(ctx context.Context, fid uint64, mode uint8) error { return nil }
func (f *PtyFile) Clunk(fid uint64)                                      {}

// StartCapture transitions IDLE/CONSUMED -> CAPTURING and clears the
// content buffer. Called whenever a new shell command is about to be
// sent, so its output starts a fresh generation.
func (f *PtyFile) StartCapture() {
	f.mu.Lock()
	f.state = ptyCapturing
	f.content = nil
	f.mu.Unlock()
}

// CaptureOutput appends to the content buffer while CAPTURING; bytes
// arriving outside that state (e.g. after MarkReady but before the
// next StartCapture) are dropped.
func (f *PtyFile) CaptureOutput(data []byte) {
	f.mu.Lock()
	if f.state != ptyCapturing {
		f.mu.Unlock()
		return
	}
	f.content = append(f.content, data...)
	f.mu.Unlock()
}

// MarkReady transitions CAPTURING -> READY and wakes waiters. Called
// by the debounce timer once the PTY has been silent for f.debounce.
func (f *PtyFile) MarkReady() {
	f.mu.Lock()
	if f.state != ptyCapturing {
		f.mu.Unlock()
		return
	}
	f.state = ptyReady
	f.mu.Unlock()
	f.pool.Bump(f.path)
	f.bc.wake()
}

// Read is identical to SupplementFile.Read: block for READY, deliver
// content[offset:offset+count], rearm to IDLE on a fresh offset-0
// reopen of a CONSUMED file.
func (f *PtyFile) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	if offset == 0 && f.state == ptyConsumed {
		f.state = ptyIdle
	}
	f.mu.Unlock()

	for {
		f.mu.Lock()
		if f.state == ptyReady {
			break
		}
		if f.state == ptyConsumed {
			// A trailing read past the end of an already-delivered
			// capture (offset != 0, so the rearm above didn't fire):
			// this is the EOF read that ends a cat loop, not a reason to
			// block for the next MarkReady.
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
			f.state = ptyConsumed
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
		f.state = ptyConsumed
	}
	return out, nil
}

// Write is not part of the stdout-capture contract; input goes through
// SendLine so it is always paired with a StartCapture. The control
// file is the exclusive write-side control plane for the shell.
func (f *PtyFile) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	return 0, ErrNotSupported
}

// SendLine writes line plus a trailing newline to the shell's stdin
// and starts a fresh capture generation.
func (f *PtyFile) SendLine(line string) error {
	f.StartCapture()
	_, err := f.master.Write([]byte(line + "\n"))
	return err
}

// Resize applies a new terminal window size.
func (f *PtyFile) Resize(rows, cols uint16) error {
	return pty.Setsize(f.master, &pty.Winsize{Rows: rows, Cols: cols})
}

// Signal delivers a signal to the shell process.
func (f *PtyFile) Signal(sig os.Signal) error {
	if f.cmd.Process == nil {
		return nil
	}
	return f.cmd.Process.Signal(sig)
}

// Close tears down the pump goroutine and the PTY master; it does not
// wait for the shell process to exit.
func (f *PtyFile) Close() error {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	return f.master.Close()
}

// pump forwards PTY output into CaptureOutput and drives MarkReady off
// a debounce timer reset by every chunk received.
func (f *PtyFile) pump() {
	chunks := make(chan []byte)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := f.master.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-f.done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(f.debounce)
	defer timer.Stop()
	for {
		select {
		case chunk := <-chunks:
			f.CaptureOutput(chunk)
			f.mu.Lock()
			sb := f.scrollback
			f.mu.Unlock()
			if sb != nil {
				sb.Append(chunk)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(f.debounce)
		case <-timer.C:
			f.MarkReady()
			timer.Reset(f.debounce)
		case <-f.done:
			return
		}
	}
}
