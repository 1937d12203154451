package dedup

import (
	"testing"
	"time"
)

func TestMemory_Seen(t *testing.T) {
	m := NewMemory(time.Hour)

	if m.Seen("ssl_expiry|a.com|2024-12-31") {
		t.Error("expected false for first occurrence")
	}
	if !m.Seen("ssl_expiry|a.com|2024-12-31") {
		t.Error("expected true for second occurrence")
	}
	if m.Seen("ssl_expiry|b.com|2024-12-31") {
		t.Error("expected false for a different key")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)

	if m.Seen("k") {
		t.Fatal("expected false for first occurrence")
	}
	time.Sleep(50 * time.Millisecond)
	if m.Seen("k") {
		t.Error("expected key forgotten after TTL")
	}
}
