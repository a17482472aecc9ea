package fs

import (
	"context"
	"testing"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
)

func TestDataFileWriteAndRead(t *testing.T) {
	pool := qidpool.New()
	f := NewDataFile(pool, "/input", "input", 0o666)
	ctx := context.Background()

	n, err := f.Write(ctx, 1, 0, []byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	got, err := f.Read(ctx, 1, 0, 100)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Read = %q, %v", got, err)
	}
}

// TestDataFileWriteZeroFillsGap checks that a Twrite at an offset past
// the current length zero-fills the gap.
func TestDataFileWriteZeroFillsGap(t *testing.T) {
	pool := qidpool.New()
	f := NewDataFile(pool, "/input", "input", 0o666)
	ctx := context.Background()

	f.Write(ctx, 1, 0, []byte("ab"))
	f.Write(ctx, 1, 5, []byte("cd"))

	got := f.Bytes()
	want := []byte{'a', 'b', 0, 0, 0, 'c', 'd'}
	if string(got) != string(want) {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
}

func TestDataFileReadPastEndReturnsEmpty(t *testing.T) {
	pool := qidpool.New()
	f := NewDataFile(pool, "/input", "input", 0o666)
	f.Set([]byte("abc"))

	got, err := f.Read(context.Background(), 1, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("read past end = %q, want empty", got)
	}
}

func TestDataFileTruncate(t *testing.T) {
	pool := qidpool.New()
	f := NewDataFile(pool, "/input", "input", 0o666)
	f.Set([]byte("content"))

	if err := f.Truncate(); err != nil {
		t.Fatal(err)
	}
	if len(f.Bytes()) != 0 {
		t.Fatalf("Bytes() after Truncate = %q, want empty", f.Bytes())
	}
}

func TestDataFileStatLengthMatchesContent(t *testing.T) {
	pool := qidpool.New()
	f := NewDataFile(pool, "/input", "input", 0o666)
	f.Set([]byte("12345"))
	if got := f.Stat().Length; got != 5 {
		t.Fatalf("Stat().Length = %d, want 5", got)
	}
}
