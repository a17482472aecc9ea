// Package qidpool manages allocation of 9P Qids, the server-chosen
// identities that must stay stable across a file's lifetime and whose
// version must increment on mutation.
package qidpool

import (
	"sync"
	"sync/atomic"

	"github.com/peripherialabs/peribus-sub000/styxproto"
)

// A Pool hands out unique paths and tracks per-name Qids. A Pool must be
// created with New.
type Pool struct {
	mu   sync.Mutex
	m    map[string]styxproto.Qid
	path uint64
}

// New returns a new, empty Pool.
func New() *Pool {
	return &Pool{m: make(map[string]styxproto.Qid)}
}

// LoadOrStore returns the Qid associated with name, allocating a fresh one
// of the given type (version 0, a never-before-used path) if none exists
// yet.
func (p *Pool) LoadOrStore(name string, qtype styxproto.QidType) styxproto.Qid {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.m[name]; ok {
		return q
	}
	q := styxproto.NewQid(qtype, 0, atomic.AddUint64(&p.path, 1))
	p.m[name] = q
	return q
}

// Bump increments the version of the Qid associated with name, for use
// whenever a file's content or directory listing changes in a way
// observable through stat. It is a no-op if name has no Qid yet.
func (p *Pool) Bump(name string) styxproto.Qid {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.m[name]
	if !ok {
		return styxproto.Qid{}
	}
	q.Version++
	p.m[name] = q
	return q
}

// Del removes a Qid from a Pool. Once removed, its path is never reused:
// a later LoadOrStore with the same name gets a fresh path.
func (p *Pool) Del(name string) {
	p.mu.Lock()
	delete(p.m, name)
	p.mu.Unlock()
}

// Load fetches the Qid currently associated with name. ok is false if no
// such Qid has been allocated.
func (p *Pool) Load(name string) (q styxproto.Qid, ok bool) {
	p.mu.Lock()
	q, ok = p.m[name]
	p.mu.Unlock()
	return q, ok
}
