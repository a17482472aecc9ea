package fs

import (
	"context"
	"testing"

	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/styxproto"
)

func TestDirStatLengthAlwaysZero(t *testing.T) {
	pool := qidpool.New()
	d := NewDir(pool, "/agents", "agents", 0o555)
	d.Add("foo", NewDataFile(pool, "/agents/foo", "foo", 0o666))

	st := d.Stat()
	if st.Length != 0 {
		t.Fatalf("directory Stat().Length = %d, want 0", st.Length)
	}
	if !st.IsDir() {
		t.Fatal("directory stat does not carry DMDIR")
	}
}

func TestDirChildrenPreservesInsertionOrder(t *testing.T) {
	pool := qidpool.New()
	d := NewDir(pool, "/", "/", 0o555)
	names := []string{"c", "a", "b"}
	for _, n := range names {
		d.Add(n, NewDataFile(pool, "/"+n, n, 0o666))
	}
	entries := d.Children()
	if len(entries) != len(names) {
		t.Fatalf("Children() returned %d entries, want %d", len(entries), len(names))
	}
	for i, e := range entries {
		if e.Name != names[i] {
			t.Fatalf("Children()[%d] = %q, want %q", i, e.Name, names[i])
		}
	}
}

func TestDirWalkDotStaysAtSelf(t *testing.T) {
	pool := qidpool.New()
	d := NewDir(pool, "/", "/", 0o555)
	f, ok, err := d.Walk(context.Background(), ".")
	if err != nil || !ok {
		t.Fatalf("Walk(.) ok=%v err=%v", ok, err)
	}
	if f != d {
		t.Fatal("Walk(.) did not return the directory itself")
	}
}

func TestDirWalkMissingChild(t *testing.T) {
	pool := qidpool.New()
	d := NewDir(pool, "/", "/", 0o555)
	_, ok, err := d.Walk(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Walk found a child that was never added")
	}
}

func TestDirRemove(t *testing.T) {
	pool := qidpool.New()
	d := NewDir(pool, "/", "/", 0o555)
	d.Add("x", NewDataFile(pool, "/x", "x", 0o666))
	d.Remove("x")
	if _, ok, _ := d.Walk(context.Background(), "x"); ok {
		t.Fatal("Walk found a child after Remove")
	}
	if len(d.Children()) != 0 {
		t.Fatalf("Children() after Remove = %v, want empty", d.Children())
	}
	// Removing an absent child is a no-op, not an error.
	d.Remove("x")
}

func TestDirCreateRequiresOptIn(t *testing.T) {
	pool := qidpool.New()
	d := NewDir(pool, "/", "/", 0o555)
	if _, err := d.Create(context.Background(), "new", 0o666, styxproto.OWRITE); err != ErrNotSupported {
		t.Fatalf("Create without WithCreate = %v, want ErrNotSupported", err)
	}

	d.WithCreate(func(name string, perm uint32, mode uint8) (File, error) {
		return NewDataFile(pool, "/"+name, name, 0o666), nil
	})
	f, err := d.Create(context.Background(), "new", 0o666, styxproto.OWRITE)
	if err != nil {
		t.Fatalf("Create after WithCreate: %v", err)
	}
	if f == nil {
		t.Fatal("Create returned a nil file")
	}
	if _, ok, _ := d.Walk(context.Background(), "new"); !ok {
		t.Fatal("Create did not insert the new file into the directory")
	}
}

func TestNewStatForcesDirectoryBitsAndZeroLength(t *testing.T) {
	qid := styxproto.NewQid(styxproto.QTDIR, 0, 1)
	st := NewStat(qid, "d", 0o555, 999)
	if st.Length != 0 {
		t.Fatalf("Length = %d, want 0 for a directory qid", st.Length)
	}
	if st.Mode&styxproto.DMDIR == 0 {
		t.Fatal("Mode missing DMDIR for a directory qid")
	}
}

func TestCanWrite(t *testing.T) {
	if CanWrite(0o444) {
		t.Fatal("CanWrite(0o444) = true, want false")
	}
	if !CanWrite(0o666) {
		t.Fatal("CanWrite(0o666) = false, want true")
	}
}
