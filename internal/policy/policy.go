package policy

import (
	"fmt"
	"time"

	"github.com/oversite/domainwatch/internal/dedup"
	"github.com/oversite/domainwatch/internal/probe"
)

// Kind is the class of alert an event carries.
type Kind string

const (
	KindSSLExpiry       Kind = "ssl_expiry"
	KindDomainExpiry    Kind = "domain_expiry"
	KindPersistentError Kind = "persistent_error"
)

// Event is the decision that a notification should be attempted. Exactly one
// dispatch attempt is made per event; it is never requeued.
type Event struct {
	Domain        string
	Kind          Kind
	DaysRemaining int
	HasDays       bool
	Expiry        time.Time
	Message       string
	Timestamp     time.Time
}

// Thresholds are inclusive: days_remaining == threshold fires.
type Thresholds struct {
	SSLDays    int
	DomainDays int
}

// Engine turns probe results into alert events. Expiry alerts fire when the
// remaining days drop to the threshold or below. Failures never produce an
// expiry alert directly; instead a per-scope counter fires one
// persistent_error event after enough consecutive failures inside the
// configured window. The engine is driven only from the orchestrating
// goroutine and needs no locking.
type Engine struct {
	thresholds   Thresholds
	errThreshold int
	errInterval  time.Duration
	counters     map[string]*errorState
	suppress     dedup.Store
	now          func() time.Time
}

type errorState struct {
	count       int
	windowStart time.Time
}

func NewEngine(thresholds Thresholds, errThreshold int, errInterval time.Duration) *Engine {
	return &Engine{
		thresholds:   thresholds,
		errThreshold: errThreshold,
		errInterval:  errInterval,
		counters:     make(map[string]*errorState),
		now:          time.Now,
	}
}

// WithSuppression plugs in a dedup store; identical events inside the
// store's TTL are dropped before dispatch.
func (e *Engine) WithSuppression(s dedup.Store) *Engine {
	e.suppress = s
	return e
}

// Evaluate maps one probe result to at most one event.
func (e *Engine) Evaluate(domain string, check probe.Check, res probe.Result) *Event {
	switch res.Kind {
	case probe.Success:
		return e.evaluateExpiry(domain, check, res)
	default:
		scope := fmt.Sprintf("%s:%s", check, domain)
		cause := "unknown"
		if res.Cause != nil {
			cause = res.Cause.Error()
		}
		return e.RecordFailure(scope, cause)
	}
}

func (e *Engine) evaluateExpiry(domain string, check probe.Check, res probe.Result) *Event {
	var kind Kind
	var threshold int
	switch check {
	case probe.CheckSSL:
		kind, threshold = KindSSLExpiry, e.thresholds.SSLDays
	case probe.CheckRegistration:
		kind, threshold = KindDomainExpiry, e.thresholds.DomainDays
	default:
		return nil
	}
	// Inclusive comparison: the threshold day itself qualifies, and an
	// already-expired target trivially does.
	if res.DaysRemaining > threshold {
		return nil
	}
	ev := &Event{
		Domain:        domain,
		Kind:          kind,
		DaysRemaining: res.DaysRemaining,
		HasDays:       true,
		Expiry:        res.Expiry,
		Timestamp:     e.now(),
	}
	if e.suppressed(ev) {
		return nil
	}
	return ev
}

// RecordFailure advances the persistent-error counter for a scope and
// returns an event once the threshold is reached inside the window. The
// counter and window reset after firing.
func (e *Engine) RecordFailure(scope, cause string) *Event {
	now := e.now()
	st, ok := e.counters[scope]
	if !ok || now.Sub(st.windowStart) > e.errInterval {
		st = &errorState{windowStart: now}
		e.counters[scope] = st
	}
	st.count++
	if st.count < e.errThreshold {
		return nil
	}
	delete(e.counters, scope)
	ev := &Event{
		Domain:    scope,
		Kind:      KindPersistentError,
		Message:   cause,
		Timestamp: now,
	}
	if e.suppressed(ev) {
		return nil
	}
	return ev
}

func (e *Engine) suppressed(ev *Event) bool {
	if e.suppress == nil {
		return false
	}
	return e.suppress.Seen(ev.key())
}

// key identifies an event for suppression: same domain, kind and expiry day
// means the same underlying condition.
func (ev *Event) key() string {
	if ev.Kind == KindPersistentError {
		return fmt.Sprintf("%s|%s", ev.Kind, ev.Domain)
	}
	return fmt.Sprintf("%s|%s|%s", ev.Kind, ev.Domain, ev.Expiry.Format("2006-01-02"))
}
