package service

import (
	"sync"

	"legalchat/internal/domain"
)

// Pending tracks which operation kinds have a request outstanding.
// A kind is in flight from a successful TryAcquire until the matching Release.
type Pending struct {
	mu    sync.Mutex
	flags map[domain.OperationKind]bool
}

func NewPending() *Pending {
	return &Pending{flags: make(map[domain.OperationKind]bool)}
}

// TryAcquire marks kind as in flight. It reports false, changing nothing, if it already was.
func (p *Pending) TryAcquire(kind domain.OperationKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flags[kind] {
		return false
	}
	p.flags[kind] = true
	return true
}

func (p *Pending) Release(kind domain.OperationKind) {
	p.mu.Lock()
	delete(p.flags, kind)
	p.mu.Unlock()
}

func (p *Pending) InFlight(kind domain.OperationKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags[kind]
}

// Snapshot returns the in-flight state of every known kind.
func (p *Pending) Snapshot() map[domain.OperationKind]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[domain.OperationKind]bool, len(domain.OperationKinds))
	for _, k := range domain.OperationKinds {
		out[k] = p.flags[k]
	}
	return out
}
