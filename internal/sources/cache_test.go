package sources

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")

	if err := WriteCache(path, []string{"z.com", "a.com", "m.com"}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a.com", "m.com", "z.com"}) {
		t.Errorf("ReadCache() = %v", got)
	}
}

func TestReadCache_MissingFileIsEmpty(t *testing.T) {
	got, err := ReadCache(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("missing cache must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestReadCache_SkipsCommentsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")
	content := "# managed by domainwatch\nExample.COM.\n\n  b.com  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"example.com", "b.com"}) {
		t.Errorf("ReadCache() = %v", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Example.COM", "example.com"},
		{"example.com.", "example.com"},
		{"  a.b  ", "a.b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServerBreaker(t *testing.T) {
	b := newServerBreaker(3, time.Minute)
	now := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	const url = "https://a.example.com"

	if !b.Allow(url) {
		t.Fatal("fresh server must be allowed")
	}
	b.Failure(url)
	b.Failure(url)
	if !b.Allow(url) {
		t.Fatal("below threshold must still be allowed")
	}
	b.Failure(url)
	if b.Allow(url) {
		t.Fatal("expected breaker open after third consecutive failure")
	}

	// After the cool-off one attempt goes through (half-open).
	now = now.Add(2 * time.Minute)
	if !b.Allow(url) {
		t.Fatal("expected half-open attempt after cool-off")
	}
	b.Success(url)
	if !b.Allow(url) {
		t.Fatal("success must close the breaker")
	}
}
