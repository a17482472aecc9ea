package fs

import (
	"context"
	"testing"
	"time"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
)

func newTestQueue(t *testing.T, capacity int) *QueueFile {
	t.Helper()
	pool := qidpool.New()
	q := NewQueueFile(pool, "/queue", "queue", 0o666, capacity)
	q.poll = 30 * time.Millisecond
	return q
}

func TestQueueFilePostAndRead(t *testing.T) {
	q := newTestQueue(t, 4)
	ctx := context.Background()

	q.Post([]byte("one"))
	q.Post([]byte("two"))

	got, err := q.Read(ctx, 1, 0, 100)
	if err != nil || string(got) != "one" {
		t.Fatalf("first dequeue = %q, err=%v", got, err)
	}
	got, err = q.Read(ctx, 1, 0, 100)
	if err != nil || string(got) != "two" {
		t.Fatalf("second dequeue = %q, err=%v", got, err)
	}
}

func TestQueueFileEmptyReadTimesOutToEmptySlice(t *testing.T) {
	q := newTestQueue(t, 4)
	start := time.Now()
	got, err := q.Read(context.Background(), 1, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("empty queue read = %q, want empty", got)
	}
	if time.Since(start) < q.poll {
		t.Fatal("Read returned before the poll interval elapsed")
	}
}

func TestQueueFileDropsOldestOnOverflow(t *testing.T) {
	q := newTestQueue(t, 2)
	q.Post([]byte("a"))
	q.Post([]byte("b"))
	q.Post([]byte("c")) // drops "a"

	ctx := context.Background()
	got, _ := q.Read(ctx, 1, 0, 10)
	if string(got) != "b" {
		t.Fatalf("first = %q, want \"b\" (oldest dropped)", got)
	}
	got, _ = q.Read(ctx, 1, 0, 10)
	if string(got) != "c" {
		t.Fatalf("second = %q, want \"c\"", got)
	}
}

func TestQueueFilePendingRemainderBuffered(t *testing.T) {
	q := newTestQueue(t, 4)
	q.Post([]byte("abcdef"))

	ctx := context.Background()
	got, err := q.Read(ctx, 1, 0, 3)
	if err != nil || string(got) != "abc" {
		t.Fatalf("first partial read = %q, err=%v", got, err)
	}
	got, err = q.Read(ctx, 1, 0, 10)
	if err != nil || string(got) != "def" {
		t.Fatalf("remainder read = %q, err=%v", got, err)
	}
}

func TestQueueFileWriteIsPost(t *testing.T) {
	q := newTestQueue(t, 4)
	ctx := context.Background()
	n, err := q.Write(ctx, 1, 0, []byte("hi"))
	if err != nil || n != 2 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	got, _ := q.Read(ctx, 1, 0, 10)
	if string(got) != "hi" {
		t.Fatalf("read after write = %q", got)
	}
}
