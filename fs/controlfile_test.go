package fs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
)

// fakeHandler is a minimal Handler for exercising ControlFile's write
// parsing and status reads without any real agent/PTY behind it.
type fakeHandler struct {
	mu      sync.Mutex
	lines   []string
	status  string
	failOn  string
}

func (h *fakeHandler) Execute(line string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if line == h.failOn {
		return nil, fmt.Errorf("unknown command %q", line)
	}
	h.lines = append(h.lines, line)
	h.status = fmt.Sprintf("ran %d commands", len(h.lines))
	return nil, nil
}

func (h *fakeHandler) Status() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return []byte(h.status)
}

func TestControlFileWriteSplitsLinesAndTrims(t *testing.T) {
	pool := qidpool.New()
	h := &fakeHandler{}
	f := NewControlFile(pool, "/ctl", "ctl", 0o666, h)
	ctx := context.Background()

	_, err := f.Write(ctx, 1, 0, []byte("  reset  \n\nstart\n"))
	if err != nil {
		t.Fatal(err)
	}
	h.mu.Lock()
	got := strings.Join(h.lines, ",")
	h.mu.Unlock()
	if got != "reset,start" {
		t.Fatalf("lines = %q, want \"reset,start\" (blank trimmed, whitespace stripped)", got)
	}
}

func TestControlFileUnknownCommandErrors(t *testing.T) {
	pool := qidpool.New()
	h := &fakeHandler{failOn: "bogus"}
	f := NewControlFile(pool, "/ctl", "ctl", 0o666, h)

	_, err := f.Write(context.Background(), 1, 0, []byte("bogus\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestControlFileReadReturnsStatus(t *testing.T) {
	pool := qidpool.New()
	h := &fakeHandler{}
	f := NewControlFile(pool, "/ctl", "ctl", 0o666, h)
	ctx := context.Background()

	f.Write(ctx, 1, 0, []byte("start\n"))
	got, err := f.Read(ctx, 1, 0, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ran 1 commands" {
		t.Fatalf("status read = %q", got)
	}
}
