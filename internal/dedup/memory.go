package dedup

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store remembers alert keys for a suppression window. Seen records the key
// and reports whether it was already present.
type Store interface {
	Seen(key string) bool
}

// Memory is the in-process store. Entries expire after the configured TTL,
// so an alert for the same domain and expiry re-fires once the window ends.
type Memory struct {
	lru *expirable.LRU[string, struct{}]
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, struct{}](16384, nil, ttl)}
}

func (m *Memory) Seen(key string) bool {
	if _, ok := m.lru.Get(key); ok {
		return true
	}
	m.lru.Add(key, struct{}{})
	return false
}
