package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oversite/domainwatch/internal/policy"
)

func writeTemplates(t *testing.T, html, plain string) string {
	t.Helper()
	dir := t.TempDir()
	if html != "" {
		if err := os.WriteFile(filepath.Join(dir, htmlTemplateName), []byte(html), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if plain != "" {
		if err := os.WriteFile(filepath.Join(dir, plainTemplateName), []byte(plain), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func sslEvent() *policy.Event {
	return &policy.Event{
		Domain:        "expiring.example.com",
		Kind:          policy.KindSSLExpiry,
		DaysRemaining: 10,
		HasDays:       true,
		Expiry:        time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC),
		Timestamp:     time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	dir := writeTemplates(t,
		"<p>{{.Domain}} expires in {{.DaysRemaining}} days ({{.Expiry}})</p>",
		"{{.KindTitle}}: {{.Domain}} - {{.DaysRemaining}} days",
	)
	r, err := NewRenderer(dir, Branding{ProductName: "domainwatch", SupportURL: "https://support.example.com"})
	if err != nil {
		t.Fatal(err)
	}

	html, plain, err := r.Render(sslEvent())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "expiring.example.com expires in 10 days (2024-11-30)") {
		t.Errorf("unexpected html: %q", html)
	}
	if !strings.Contains(plain, "SSL Certificate Expiry: expiring.example.com - 10 days") {
		t.Errorf("unexpected plain: %q", plain)
	}
}

func TestRender_PersistentErrorShowsNA(t *testing.T) {
	dir := writeTemplates(t, "<p>{{.DaysRemaining}}</p>", "{{.DaysRemaining}} {{.Message}}")
	r, err := NewRenderer(dir, Branding{})
	if err != nil {
		t.Fatal(err)
	}

	ev := &policy.Event{
		Domain:    "ssl:flaky.com",
		Kind:      policy.KindPersistentError,
		Message:   "timeout after 3 attempts",
		Timestamp: time.Now(),
	}
	html, plain, err := r.Render(ev)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "N/A") {
		t.Errorf("persistent-error html must show N/A, got %q", html)
	}
	if !strings.Contains(plain, "timeout after 3 attempts") {
		t.Errorf("plain must carry the error message, got %q", plain)
	}
}

func TestNewRenderer_MissingTemplateFails(t *testing.T) {
	dir := writeTemplates(t, "<p>{{.Domain}}</p>", "") // no plain template
	if _, err := NewRenderer(dir, Branding{}); err == nil {
		t.Fatal("expected error for missing plain template")
	}
}

func TestRender_EmptyBodyIsFailure(t *testing.T) {
	dir := writeTemplates(t, "{{if false}}x{{end}}", "{{.Domain}}")
	r, err := NewRenderer(dir, Branding{})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Render(sslEvent()); err == nil {
		t.Fatal("an empty rendered body must be an error, never sent")
	}
}

func TestRender_ShippedTemplates(t *testing.T) {
	r, err := NewRenderer("../../templates", Branding{ProductName: "domainwatch"})
	if err != nil {
		t.Fatalf("shipped templates must load: %v", err)
	}
	html, plain, err := r.Render(sslEvent())
	if err != nil {
		t.Fatal(err)
	}
	for _, body := range []string{html, plain} {
		if !strings.Contains(body, "expiring.example.com") {
			t.Errorf("body missing domain: %q", body)
		}
		if !strings.Contains(body, "10") {
			t.Errorf("body missing days: %q", body)
		}
	}
}

func TestSubject(t *testing.T) {
	r := &Renderer{}
	if got := r.Subject(sslEvent()); got != "SSL Expiry Alert: expiring.example.com (10 days remaining)" {
		t.Errorf("unexpected subject: %q", got)
	}
	ev := &policy.Event{Domain: "smtp", Kind: policy.KindPersistentError}
	if got := r.Subject(ev); got != "Persistent Error Alert: smtp" {
		t.Errorf("unexpected subject: %q", got)
	}
}
