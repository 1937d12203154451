package monitor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/oversite/domainwatch/internal/config"
	"github.com/oversite/domainwatch/internal/health"
	"github.com/oversite/domainwatch/internal/logging"
	"github.com/oversite/domainwatch/internal/metrics"
	"github.com/oversite/domainwatch/internal/notify"
	"github.com/oversite/domainwatch/internal/policy"
	"github.com/oversite/domainwatch/internal/probe"
	"github.com/oversite/domainwatch/internal/schedule"
)

// Gatherer produces the working domain set for a cycle.
type Gatherer interface {
	Gather(ctx context.Context) []string
}

// Prober runs one classified check against one domain.
type Prober interface {
	Check(ctx context.Context, domain string) probe.Result
}

// Renderer turns an event into email bodies.
type Renderer interface {
	Render(ev *policy.Event) (html, plain string, err error)
	Subject(ev *policy.Event) string
}

// outcome carries both probe results for one domain out of the worker pool.
// Workers only fill this in; all alerting happens on the run-loop goroutine.
type outcome struct {
	domain string
	ssl    probe.Result
	reg    probe.Result
}

// Monitor ties the pipeline together: gather, probe in bounded batches,
// evaluate policy, render and dispatch. One bad domain or server never
// aborts a cycle.
type Monitor struct {
	cfg        *config.Config
	log        *logging.Logger
	gatherer   Gatherer
	ssl        Prober
	reg        Prober
	engine     *policy.Engine
	renderer   Renderer
	dispatcher notify.Dispatcher
	health     *health.Handler
}

func New(cfg *config.Config, log *logging.Logger, gatherer Gatherer, ssl, reg Prober,
	engine *policy.Engine, renderer Renderer, dispatcher notify.Dispatcher, h *health.Handler) *Monitor {
	return &Monitor{
		cfg:        cfg,
		log:        log,
		gatherer:   gatherer,
		ssl:        ssl,
		reg:        reg,
		engine:     engine,
		renderer:   renderer,
		dispatcher: dispatcher,
		health:     h,
	}
}

// Run executes cycles on the configured interval until ctx is done. The
// first cycle starts immediately.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		m.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full gather-probe-alert pass.
func (m *Monitor) RunCycle(ctx context.Context) {
	tr := otel.Tracer("domainwatch/monitor")
	ctx, span := tr.Start(ctx, "RunCycle")
	defer span.End()

	started := time.Now()

	domains := m.gatherer.Gather(ctx)
	metrics.DomainsGauge.Set(float64(len(domains)))
	if len(domains) == 0 {
		m.finishCycle(started, 0)
		return
	}
	m.log.Infow("cycle started", "domains", len(domains))

	opts := schedule.Options{
		BatchSize:    m.cfg.BatchSize,
		MaxBatchSize: m.cfg.MaxBatchSize,
		Delay:        m.cfg.BatchDelay,
		OnPanic: func(domain string, v any) {
			m.log.Errorw("probe panicked", "domain", domain, "panic", v)
		},
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = m.cfg.Concurrency
	}

	results := schedule.Run(ctx, domains, opts, func(ctx context.Context, domain string) outcome {
		o := outcome{domain: domain}
		o.ssl = m.ssl.Check(ctx, domain)
		metrics.ProbesTotal.WithLabelValues(string(probe.CheckSSL), o.ssl.Kind.String()).Inc()
		o.reg = m.reg.Check(ctx, domain)
		metrics.ProbesTotal.WithLabelValues(string(probe.CheckRegistration), o.reg.Kind.String()).Inc()
		return o
	})

	// Batches are fully collected; evaluate and alert from this goroutine
	// only, so counters and the dedup store see no concurrent access.
	events := 0
	for _, o := range results {
		if o.domain == "" {
			continue // abandoned by shutdown mid-cycle
		}
		m.logResult(o.domain, probe.CheckSSL, o.ssl)
		m.logResult(o.domain, probe.CheckRegistration, o.reg)
		if ev := m.engine.Evaluate(o.domain, probe.CheckSSL, o.ssl); ev != nil {
			m.dispatch(ev)
			events++
		}
		if ev := m.engine.Evaluate(o.domain, probe.CheckRegistration, o.reg); ev != nil {
			m.dispatch(ev)
			events++
		}
	}

	m.finishCycle(started, events)
}

func (m *Monitor) finishCycle(started time.Time, events int) {
	metrics.CycleSeconds.Observe(time.Since(started).Seconds())
	if m.health != nil {
		m.health.SetReady(true)
	}
	m.log.Infow("cycle finished", "duration", time.Since(started), "alerts", events)
}

func (m *Monitor) logResult(domain string, check probe.Check, res probe.Result) {
	switch res.Kind {
	case probe.Success:
		m.log.Infow("checked", "domain", domain, "check", check, "days_remaining", res.DaysRemaining)
	case probe.Unparseable:
		m.log.Warnw("could not extract expiry", "domain", domain, "check", check, "raw", res.Raw, "err", res.Cause)
	default:
		m.log.Errorw("probe failed", "domain", domain, "check", check, "kind", res.Kind, "err", res.Cause)
	}
}

// dispatch makes exactly one delivery attempt for the event. Render failures
// suppress dispatch entirely. A delivery failure is logged and fed into the
// persistent-error counter so an ongoing transport outage surfaces on a
// later cycle; the event itself is never retried.
func (m *Monitor) dispatch(ev *policy.Event) {
	metrics.AlertsTotal.WithLabelValues(string(ev.Kind)).Inc()

	html, plain, err := m.renderer.Render(ev)
	if err != nil {
		m.log.Errorw("render failed, notification suppressed", "domain", ev.Domain, "kind", ev.Kind, "err", err)
		return
	}

	if err := m.dispatcher.Dispatch(m.renderer.Subject(ev), html, plain); err != nil {
		metrics.SendFailures.Inc()
		m.log.Errorw("notification dispatch failed", "domain", ev.Domain, "kind", ev.Kind, "err", err)
		if ev.Kind != policy.KindPersistentError {
			if pe := m.engine.RecordFailure("smtp", err.Error()); pe != nil {
				m.dispatch(pe)
			}
		}
		return
	}
	m.log.Infow("notification sent", "domain", ev.Domain, "kind", ev.Kind)
}
