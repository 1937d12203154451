package probe

import (
	"math"
	"time"
)

// Check identifies which probe produced a result.
type Check string

const (
	CheckSSL          Check = "ssl"
	CheckRegistration Check = "registration"
)

// Kind classifies the outcome of a single probe.
type Kind int

const (
	// Success means an expiry timestamp was extracted.
	Success Kind = iota
	// TransientFailure covers timeouts, refused connections and handshake
	// failures; candidates for retry, never for an expiry alert.
	TransientFailure
	// FatalFailure covers failures that retrying cannot fix, such as
	// rejected credentials.
	FatalFailure
	// Unparseable means the remote answered but no expiry could be
	// extracted from the response.
	Unparseable
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	case FatalFailure:
		return "fatal_failure"
	case Unparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Result is the classified outcome of one probe against one domain.
// DaysRemaining is negative when the expiry already passed. Raw carries the
// unparsed value for diagnosis when Kind is Unparseable.
type Result struct {
	Kind          Kind
	Expiry        time.Time
	DaysRemaining int
	Cause         error
	Raw           string
}

// Succeeded builds a Success result for the given expiry.
func Succeeded(expiry, now time.Time) Result {
	return Result{Kind: Success, Expiry: expiry, DaysRemaining: DaysUntil(expiry, now)}
}

// DaysUntil returns whole days between now and t, floored, so a certificate
// that expired twelve hours ago reports -1, not 0.
func DaysUntil(t, now time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}
