package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"path/filepath"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/oversite/domainwatch/internal/policy"
)

const (
	htmlTemplateName  = "alert_html.tmpl"
	plainTemplateName = "alert_plain.tmpl"
)

// Branding is carried into every rendered notification.
type Branding struct {
	ProductName string
	LogoURL     string
	SupportURL  string
}

// Data is the context every template renders from. DaysRemaining is the
// string "N/A" for persistent-error alerts.
type Data struct {
	Domain        string
	Kind          string
	KindTitle     string
	DaysRemaining string
	Expiry        string
	Message       string
	GeneratedAt   string
	ProductName   string
	LogoURL       string
	SupportURL    string
}

// Renderer loads the HTML and plain templates once and renders alert events
// into email bodies. A render failure suppresses dispatch for that event; an
// empty body is treated as a failure too, never sent.
type Renderer struct {
	html     *htmltemplate.Template
	plain    *texttemplate.Template
	branding Branding
}

func NewRenderer(dir string, branding Branding) (*Renderer, error) {
	html, err := htmltemplate.ParseFiles(filepath.Join(dir, htmlTemplateName))
	if err != nil {
		return nil, fmt.Errorf("load html template: %w", err)
	}
	plain, err := texttemplate.ParseFiles(filepath.Join(dir, plainTemplateName))
	if err != nil {
		return nil, fmt.Errorf("load plain template: %w", err)
	}
	return &Renderer{html: html, plain: plain, branding: branding}, nil
}

// Render produces the HTML and plain bodies for one event.
func (r *Renderer) Render(ev *policy.Event) (html, plain string, err error) {
	data := r.data(ev)

	var hb bytes.Buffer
	if err := r.html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	var pb bytes.Buffer
	if err := r.plain.Execute(&pb, data); err != nil {
		return "", "", fmt.Errorf("render plain: %w", err)
	}
	if strings.TrimSpace(hb.String()) == "" || strings.TrimSpace(pb.String()) == "" {
		return "", "", fmt.Errorf("rendered empty body for %s alert on %s", ev.Kind, ev.Domain)
	}
	return hb.String(), pb.String(), nil
}

// Subject builds the one-line subject for an event.
func (r *Renderer) Subject(ev *policy.Event) string {
	switch ev.Kind {
	case policy.KindSSLExpiry:
		return fmt.Sprintf("SSL Expiry Alert: %s (%d days remaining)", ev.Domain, ev.DaysRemaining)
	case policy.KindDomainExpiry:
		return fmt.Sprintf("Domain Expiry Alert: %s (%d days remaining)", ev.Domain, ev.DaysRemaining)
	default:
		return fmt.Sprintf("Persistent Error Alert: %s", ev.Domain)
	}
}

func (r *Renderer) data(ev *policy.Event) Data {
	d := Data{
		Domain:        ev.Domain,
		Kind:          string(ev.Kind),
		DaysRemaining: "N/A",
		Message:       ev.Message,
		GeneratedAt:   ev.Timestamp.UTC().Format(time.RFC1123),
		ProductName:   r.branding.ProductName,
		LogoURL:       r.branding.LogoURL,
		SupportURL:    r.branding.SupportURL,
	}
	if ev.HasDays {
		d.DaysRemaining = strconv.Itoa(ev.DaysRemaining)
		d.Expiry = ev.Expiry.UTC().Format("2006-01-02")
	}
	switch ev.Kind {
	case policy.KindSSLExpiry:
		d.KindTitle = "SSL Certificate Expiry"
	case policy.KindDomainExpiry:
		d.KindTitle = "Domain Registration Expiry"
	case policy.KindPersistentError:
		d.KindTitle = "Persistent Check Failure"
	}
	return d
}
