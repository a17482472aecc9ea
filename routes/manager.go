package routes

import (
	"fmt"
	"sync"

	"github.com/peripherialabs/peribus-sub000/fs"
)

// Resolver looks up a file by its full path in the server's synthetic
// tree. The manager depends on this rather than on the tree directly,
// so it never needs to know how names are walked.
type Resolver interface {
	Resolve(path string) (fs.File, bool)
}

// Manager owns every active route, keyed by source path: adding a
// route for a source that already has one stops the old one first and
// starts a fresh replacement.
type Manager struct {
	resolver Resolver

	mu     sync.Mutex
	order  []string
	routes map[string]*Route
}

func NewManager(resolver Resolver) *Manager {
	return &Manager{resolver: resolver, routes: make(map[string]*Route)}
}

// Add creates and starts a route from src to dst, stopping and
// replacing any existing route for the same source.
func (m *Manager) Add(src, dst string) error {
	srcFile, ok := m.resolver.Resolve(src)
	if !ok {
		return fmt.Errorf("routes: no such source %q", src)
	}
	dstFile, ok := m.resolver.Resolve(dst)
	if !ok {
		return fmt.Errorf("routes: no such destination %q", dst)
	}

	r := newRoute(src, dst, srcFile, dstFile)

	m.mu.Lock()
	if existing, ok := m.routes[src]; ok {
		m.mu.Unlock()
		existing.stop()
		m.mu.Lock()
	} else {
		m.order = append(m.order, src)
	}
	m.routes[src] = r
	m.mu.Unlock()

	r.start()
	return nil
}

// Remove stops and erases the route for src, if any.
func (m *Manager) Remove(src string) {
	m.mu.Lock()
	r, ok := m.routes[src]
	if ok {
		delete(m.routes, src)
		for i, s := range m.order {
			if s == src {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if ok {
		r.stop()
	}
}

// RouteInfo is one row of Manager.List.
type RouteInfo struct {
	Src, Dst string
	Running  bool
}

// List yields every route in the order it was added, as
// (src, dst, running) triples.
func (m *Manager) List() []RouteInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RouteInfo, 0, len(m.order))
	for _, src := range m.order {
		r := m.routes[src]
		out = append(out, RouteInfo{Src: r.Src, Dst: r.Dst, Running: r.Running()})
	}
	return out
}

// StopAll shuts down every route, for connection/server teardown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Route, 0, len(m.routes))
	for _, r := range m.routes {
		all = append(all, r)
	}
	m.routes = make(map[string]*Route)
	m.order = nil
	m.mu.Unlock()

	for _, r := range all {
		r.stop()
	}
}
