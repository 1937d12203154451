package sources

import (
	"sync"
	"time"
)

// serverBreaker tracks consecutive fetch failures per server URL and holds a
// misbehaving server out of rotation for a cool-off period instead of
// hammering it every cycle.
type serverBreaker struct {
	mu        sync.Mutex
	threshold int
	cooloff   time.Duration
	entries   map[string]*breakerEntry
	now       func() time.Time
}

type breakerEntry struct {
	failures  int
	openUntil time.Time
}

func newServerBreaker(threshold int, cooloff time.Duration) *serverBreaker {
	return &serverBreaker{
		threshold: threshold,
		cooloff:   cooloff,
		entries:   make(map[string]*breakerEntry),
		now:       time.Now,
	}
}

// Allow reports whether the server may be queried this cycle.
func (b *serverBreaker) Allow(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[url]
	if !ok {
		return true
	}
	if e.openUntil.IsZero() {
		return true
	}
	if b.now().After(e.openUntil) {
		// Half-open: let one attempt through.
		e.openUntil = time.Time{}
		return true
	}
	return false
}

func (b *serverBreaker) Success(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, url)
}

func (b *serverBreaker) Failure(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[url]
	if !ok {
		e = &breakerEntry{}
		b.entries[url] = e
	}
	e.failures++
	if e.failures >= b.threshold {
		e.openUntil = b.now().Add(b.cooloff)
		e.failures = 0
	}
}
