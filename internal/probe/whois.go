package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/likexian/whois"
	"golang.org/x/net/publicsuffix"

	"github.com/oversite/domainwatch/internal/retry"
)

// expiryLabels are tried in order against each line of the WHOIS response.
var expiryLabels = []string{
	"Expiry Date",
	"Expiration Date",
	"Registry Expiry Date",
	"Expires On",
	"paid-till",
}

// expiryFormats are tried in order against the extracted value. ISO first.
var expiryFormats = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2 2006",
	"02-Jan-2006",
	"2006.01.02",
}

// WhoisProber queries registration expiry over WHOIS. Queries go to the
// registrable apex, and responses are cached per apex so a large set of
// subdomains costs a single registry query.
type WhoisProber struct {
	client *whois.Client
	cache  *expirable.LRU[string, Result]
	policy retry.Policy
	now    func() time.Time
}

func NewWhois(timeout time.Duration, policy retry.Policy) *WhoisProber {
	c := whois.NewClient()
	c.SetTimeout(timeout)
	return &WhoisProber{
		client: c,
		cache:  expirable.NewLRU[string, Result](4096, nil, time.Hour),
		policy: policy,
		now:    time.Now,
	}
}

// Check queries WHOIS for the domain's apex and classifies the outcome.
func (p *WhoisProber) Check(ctx context.Context, domain string) Result {
	a := apex(domain)
	if res, ok := p.cache.Get(a); ok {
		return res
	}

	var text string
	err := retry.Do(ctx, p.policy, func() error {
		out, err := p.client.Whois(a)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return Result{Kind: TransientFailure, Cause: err}
	}

	res := p.parse(text)
	p.cache.Add(a, res)
	return res
}

func (p *WhoisProber) parse(text string) Result {
	value, found := extractExpiryValue(text)
	if !found {
		return Result{Kind: Unparseable, Cause: fmt.Errorf("no expiry field in whois response")}
	}
	expiry, ok := parseExpiryValue(value)
	if !ok {
		return Result{Kind: Unparseable, Cause: fmt.Errorf("unrecognized expiry value"), Raw: value}
	}
	return Succeeded(expiry, p.now())
}

// extractExpiryValue scans the response for the first recognized label and
// returns the text after the separating colon.
func extractExpiryValue(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for _, label := range expiryLabels {
		for _, line := range lines {
			idx := indexLabel(line, label)
			if idx < 0 {
				continue
			}
			rest := line[idx+len(label):]
			if i := strings.Index(rest, ":"); i >= 0 {
				if v := strings.TrimSpace(rest[i+1:]); v != "" {
					return v, true
				}
			}
		}
	}
	return "", false
}

func indexLabel(line, label string) int {
	return strings.Index(strings.ToLower(line), strings.ToLower(label))
}

func parseExpiryValue(value string) (time.Time, bool) {
	for _, layout := range expiryFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// apex maps a hostname to its registrable domain; WHOIS data only exists at
// that level.
func apex(host string) string {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if e, err := publicsuffix.EffectiveTLDPlusOne(h); err == nil {
		return e
	}
	return h
}
