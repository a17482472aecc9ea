package routes

import (
	"context"
	"testing"
	"time"

	"github.com/peripherialabs/peribus-sub000/fs"
	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
)

// fakeResolver is a flat path -> file map, standing in for a real
// synthetic tree's Walk-based lookup.
type fakeResolver struct {
	files map[string]fs.File
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{files: make(map[string]fs.File)}
}

func (r *fakeResolver) add(path string, f fs.File) {
	r.files[path] = f
}

func (r *fakeResolver) Resolve(path string) (fs.File, bool) {
	f, ok := r.files[path]
	return f, ok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerAddUnknownSourceFails(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	r.add("/dst", fs.NewDataFile(pool, "/dst", "dst", 0o666))

	m := NewManager(r)
	if err := m.Add("/nope", "/dst"); err == nil {
		t.Fatal("expected an error for an unresolvable source")
	}
}

func TestManagerAddUnknownDestinationFails(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	r.add("/src", fs.NewDataFile(pool, "/src", "src", 0o666))

	m := NewManager(r)
	if err := m.Add("/src", "/nope"); err == nil {
		t.Fatal("expected an error for an unresolvable destination")
	}
}

func TestManagerAddListRemove(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	src := fs.NewStreamFile(pool, "/src", "src", 0o666, 0)
	dst := fs.NewDataFile(pool, "/dst", "dst", 0o666)
	r.add("/src", src)
	r.add("/dst", dst)

	m := NewManager(r)
	if err := m.Add("/src", "/dst"); err != nil {
		t.Fatal(err)
	}

	list := m.List()
	if len(list) != 1 || list[0].Src != "/src" || list[0].Dst != "/dst" {
		t.Fatalf("List() = %+v", list)
	}
	if !list[0].Running {
		t.Fatal("freshly added route reports not running")
	}

	m.Remove("/src")
	if got := m.List(); len(got) != 0 {
		t.Fatalf("List() after Remove = %+v, want empty", got)
	}
}

func TestManagerAddReplacesExistingRouteForSameSource(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	src := fs.NewStreamFile(pool, "/src", "src", 0o666, 0)
	dstA := fs.NewDataFile(pool, "/a", "a", 0o666)
	dstB := fs.NewDataFile(pool, "/b", "b", 0o666)
	r.add("/src", src)
	r.add("/a", dstA)
	r.add("/b", dstB)

	m := NewManager(r)
	if err := m.Add("/src", "/a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Add("/src", "/b"); err != nil {
		t.Fatal(err)
	}

	list := m.List()
	if len(list) != 1 || list[0].Dst != "/b" {
		t.Fatalf("List() = %+v, want a single route now pointed at /b", list)
	}

	src.Reset()
	src.Append([]byte("hello"))
	waitFor(t, "replacement route to deliver", func() bool {
		return string(dstB.Bytes()) == "hello"
	})
	if len(dstA.Bytes()) != 0 {
		t.Fatalf("old route still delivered to /a: %q", dstA.Bytes())
	}
}

func TestManagerStopAllStopsEveryRoute(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	src1 := fs.NewStreamFile(pool, "/s1", "s1", 0o666, 0)
	dst1 := fs.NewDataFile(pool, "/d1", "d1", 0o666)
	src2 := fs.NewStreamFile(pool, "/s2", "s2", 0o666, 0)
	dst2 := fs.NewDataFile(pool, "/d2", "d2", 0o666)
	r.add("/s1", src1)
	r.add("/d1", dst1)
	r.add("/s2", src2)
	r.add("/d2", dst2)

	m := NewManager(r)
	if err := m.Add("/s1", "/d1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Add("/s2", "/d2"); err != nil {
		t.Fatal(err)
	}

	m.StopAll()
	if got := m.List(); len(got) != 0 {
		t.Fatalf("List() after StopAll = %+v, want empty", got)
	}
}

// TestRouteCarriesOneGenerationEndToEnd exercises a full
// reset/append/finish cycle through a live route: the destination
// data file, which a route always writes to at offset 0, ends up
// holding exactly the source's single chunk for that generation.
func TestRouteCarriesOneGenerationEndToEnd(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	src := fs.NewStreamFile(pool, "/src", "src", 0o666, 0)
	dst := fs.NewDataFile(pool, "/dst", "dst", 0o666)
	r.add("/src", src)
	r.add("/dst", dst)

	m := NewManager(r)
	if err := m.Add("/src", "/dst"); err != nil {
		t.Fatal(err)
	}
	defer m.StopAll()

	src.Reset()
	src.Append([]byte("gen-one-payload"))
	src.Finish()

	waitFor(t, "destination to receive the first generation", func() bool {
		return string(dst.Bytes()) == "gen-one-payload"
	})

	// A second generation: the route's next source Read starts a fresh
	// cursor at 0 (Reset invalidated the old one), so the whole new
	// generation again arrives as a single chunk overwriting the
	// destination from the front.
	src.Reset()
	src.Append([]byte("gen-two-longer-payload"))
	src.Finish()

	waitFor(t, "destination to receive the second generation", func() bool {
		return string(dst.Bytes()) == "gen-two-longer-payload"
	})
}

func TestRouteStopClunksSourceFid(t *testing.T) {
	r := newFakeResolver()
	pool := qidpool.New()
	src := fs.NewStreamFile(pool, "/src", "src", 0o666, 0)
	dst := fs.NewDataFile(pool, "/dst", "dst", 0o666)
	r.add("/src", src)
	r.add("/dst", dst)

	m := NewManager(r)
	if err := m.Add("/src", "/dst"); err != nil {
		t.Fatal(err)
	}

	// Let the route's own goroutine actually start reading before we
	// tear it down, so stop() exercises a real in-flight cancellation.
	time.Sleep(20 * time.Millisecond)
	m.Remove("/src")

	// A fresh read under a new fid should start from a clean cursor,
	// confirming the route's fid was released rather than left dangling
	// in a blocked state forever.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	src.Reset()
	src.Append([]byte("after-stop"))
	got, err := src.Read(ctx, 999, 0, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "after-stop" {
		t.Fatalf("Read after route removal = %q", got)
	}
}
