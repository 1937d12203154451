package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oversite/domainwatch/internal/config"
	"github.com/oversite/domainwatch/internal/health"
	"github.com/oversite/domainwatch/internal/policy"
	"github.com/oversite/domainwatch/internal/probe"
)

type fakeGatherer struct{ domains []string }

func (f *fakeGatherer) Gather(context.Context) []string { return f.domains }

type fakeProber struct{ results map[string]probe.Result }

func (f *fakeProber) Check(_ context.Context, domain string) probe.Result {
	if r, ok := f.results[domain]; ok {
		return r
	}
	return probe.Succeeded(time.Now().AddDate(1, 0, 0), time.Now())
}

type fakeRenderer struct{ fail bool }

func (f *fakeRenderer) Render(ev *policy.Event) (string, string, error) {
	if f.fail {
		return "", "", errors.New("template not found")
	}
	return "<p>" + ev.Domain + "</p>", ev.Domain, nil
}

func (f *fakeRenderer) Subject(ev *policy.Event) string {
	return fmt.Sprintf("%s: %s", ev.Kind, ev.Domain)
}

type fakeDispatcher struct {
	sent []string
	err  error
}

func (f *fakeDispatcher) Dispatch(subject, html, plain string) error {
	f.sent = append(f.sent, subject)
	return f.err
}

func testMonitor(domains []string, ssl, reg *fakeProber, r Renderer, d *fakeDispatcher) (*Monitor, *health.Handler) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.BatchSize = 4
	cfg.BatchDelay = 0

	engine := policy.NewEngine(policy.Thresholds{SSLDays: 15, DomainDays: 45}, 3, time.Hour)
	h := health.NewHandler()
	m := New(cfg, zap.NewNop().Sugar(), &fakeGatherer{domains: domains}, ssl, reg, engine, r, d, h)
	return m, h
}

func TestRunCycle_DispatchesQualifyingEventsOnce(t *testing.T) {
	now := time.Now()
	ssl := &fakeProber{results: map[string]probe.Result{
		"expiring.example.com": probe.Succeeded(now.AddDate(0, 0, 10), now),
		"healthy.example.com":  probe.Succeeded(now.AddDate(0, 0, 200), now),
	}}
	reg := &fakeProber{results: map[string]probe.Result{}}
	d := &fakeDispatcher{}

	m, h := testMonitor([]string{"expiring.example.com", "healthy.example.com"}, ssl, reg, &fakeRenderer{}, d)
	m.RunCycle(context.Background())

	if len(d.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d: %v", len(d.sent), d.sent)
	}
	if d.sent[0] != "ssl_expiry: expiring.example.com" {
		t.Errorf("unexpected subject: %q", d.sent[0])
	}
	if !h.IsReady() {
		t.Error("handler must be ready after the first completed cycle")
	}
}

func TestRunCycle_ThresholdBoundary(t *testing.T) {
	now := time.Now().Truncate(time.Hour)
	ssl := &fakeProber{results: map[string]probe.Result{
		"at.example.com":   {Kind: probe.Success, Expiry: now.AddDate(0, 0, 15), DaysRemaining: 15},
		"past.example.com": {Kind: probe.Success, Expiry: now.AddDate(0, 0, 16), DaysRemaining: 16},
	}}
	reg := &fakeProber{results: map[string]probe.Result{}}
	d := &fakeDispatcher{}

	m, _ := testMonitor([]string{"at.example.com", "past.example.com"}, ssl, reg, &fakeRenderer{}, d)
	m.RunCycle(context.Background())

	if len(d.sent) != 1 {
		t.Fatalf("expected one notification (inclusive boundary), got %v", d.sent)
	}
	if d.sent[0] != "ssl_expiry: at.example.com" {
		t.Errorf("unexpected subject: %q", d.sent[0])
	}
}

func TestRunCycle_RenderFailureSuppressesDispatch(t *testing.T) {
	now := time.Now()
	ssl := &fakeProber{results: map[string]probe.Result{
		"expiring.example.com": probe.Succeeded(now.AddDate(0, 0, 5), now),
	}}
	reg := &fakeProber{results: map[string]probe.Result{}}
	d := &fakeDispatcher{}

	m, _ := testMonitor([]string{"expiring.example.com"}, ssl, reg, &fakeRenderer{fail: true}, d)
	m.RunCycle(context.Background())

	if len(d.sent) != 0 {
		t.Errorf("render failure must suppress dispatch, got %v", d.sent)
	}
}

func TestRunCycle_DispatchFailureNotRetried(t *testing.T) {
	now := time.Now()
	ssl := &fakeProber{results: map[string]probe.Result{
		"expiring.example.com": probe.Succeeded(now.AddDate(0, 0, 5), now),
	}}
	reg := &fakeProber{results: map[string]probe.Result{}}
	d := &fakeDispatcher{err: errors.New("smtp unreachable")}

	m, _ := testMonitor([]string{"expiring.example.com"}, ssl, reg, &fakeRenderer{}, d)
	m.RunCycle(context.Background())

	if len(d.sent) != 1 {
		t.Errorf("expected exactly one delivery attempt, got %d", len(d.sent))
	}
}

func TestRunCycle_ProbeFailuresProduceNoExpiryAlerts(t *testing.T) {
	ssl := &fakeProber{results: map[string]probe.Result{
		"flaky.example.com": {Kind: probe.TransientFailure, Cause: errors.New("timeout")},
	}}
	reg := &fakeProber{results: map[string]probe.Result{
		"flaky.example.com": {Kind: probe.Unparseable, Raw: "???"},
	}}
	d := &fakeDispatcher{}

	m, _ := testMonitor([]string{"flaky.example.com"}, ssl, reg, &fakeRenderer{}, d)
	m.RunCycle(context.Background())

	if len(d.sent) != 0 {
		t.Errorf("failures must not produce expiry alerts, got %v", d.sent)
	}
}

func TestRunCycle_EmptyDomainSetIsNotFatal(t *testing.T) {
	d := &fakeDispatcher{}
	m, h := testMonitor(nil, &fakeProber{}, &fakeProber{}, &fakeRenderer{}, d)
	m.RunCycle(context.Background())

	if len(d.sent) != 0 {
		t.Errorf("no domains, no alerts: %v", d.sent)
	}
	if !h.IsReady() {
		t.Error("an empty cycle still completes")
	}
}
