package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/oversite/domainwatch/internal/config"
	"github.com/oversite/domainwatch/internal/logging"
	"github.com/oversite/domainwatch/internal/metrics"
	"github.com/oversite/domainwatch/internal/rate"
	"github.com/oversite/domainwatch/internal/retry"
)

const listDomainsPath = "/virtual-server/remote.cgi?program=list-domains&name-only"

// Aggregator gathers the working domain set from the configured remote
// servers, the on-disk cache file and the static additional list. One bad
// server never blocks the others; the merged set is written back to the
// cache file so later runs survive a total server outage.
type Aggregator struct {
	servers   []config.Server
	cachePath string
	static    []string
	hc        *http.Client
	limiter   *rate.PerHost
	breaker   *serverBreaker
	policy    retry.Policy
	log       *logging.Logger
}

func NewAggregator(cfg *config.Config, log *logging.Logger) *Aggregator {
	return &Aggregator{
		servers:   cfg.Servers,
		cachePath: cfg.DomainFile,
		static:    cfg.AdditionalDomains,
		hc: &http.Client{
			Timeout: cfg.ProbeTimeout,
			Transport: &http.Transport{
				MaxIdleConns:          16,
				IdleConnTimeout:       30 * time.Second,
				ResponseHeaderTimeout: cfg.ProbeTimeout,
			},
		},
		limiter: rate.New(cfg.ServerRate, 1),
		breaker: newServerBreaker(3, 10*time.Minute),
		policy:  retry.Exponential(cfg.RetryAttempts, cfg.RetryBase, 2.0, cfg.RetryCap),
		log:     log,
	}
}

// Gather queries every source, merges the results as a case-normalized set
// and rewrites the cache file. An empty result is a warning, not an error.
// Gather runs on the orchestrating goroutine only.
func (a *Aggregator) Gather(ctx context.Context) []string {
	set := make(map[string]struct{})

	for _, s := range a.servers {
		if !a.breaker.Allow(s.URL) {
			a.log.Warnw("server held out by breaker, skipping", "server", s.URL)
			continue
		}
		domains, err := a.fetchServer(ctx, s)
		if err != nil {
			a.breaker.Failure(s.URL)
			metrics.SourceErrors.WithLabelValues(s.URL).Inc()
			a.log.Errorw("fetching domains failed, skipping server", "server", s.URL, "err", err)
			continue
		}
		a.breaker.Success(s.URL)
		for _, d := range domains {
			addDomain(set, d)
		}
	}

	cached, err := ReadCache(a.cachePath)
	if err != nil {
		a.log.Errorw("domain cache unreadable", "path", a.cachePath, "err", err)
	}
	for _, d := range cached {
		addDomain(set, d)
	}
	for _, d := range a.static {
		addDomain(set, d)
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)

	if len(out) == 0 {
		a.log.Warnw("no domains found in any source")
		return out
	}
	if err := WriteCache(a.cachePath, out); err != nil {
		a.log.Errorw("persisting domain cache failed", "path", a.cachePath, "err", err)
	}
	return out
}

func addDomain(set map[string]struct{}, d string) {
	n := Normalize(d)
	if n != "" {
		set[n] = struct{}{}
	}
}

// fetchServer issues one authenticated list-domains request, retrying
// transient failures. Auth failures are fatal for this server and propagate
// without further attempts.
func (a *Aggregator) fetchServer(ctx context.Context, s config.Server) ([]string, error) {
	host := s.URL
	if u, err := url.Parse(s.URL); err == nil && u.Host != "" {
		host = u.Host
	}

	var body []byte
	err := retry.Do(ctx, a.policy, func() error {
		if err := a.limiter.Wait(ctx, host); err != nil {
			return retry.Fatal(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(s.URL, "/")+listDomainsPath, nil)
		if err != nil {
			return retry.Fatal(err)
		}
		if s.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.APIKey)
		} else {
			req.SetBasicAuth(s.User, s.Password)
		}
		resp, err := a.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Fatal(fmt.Errorf("authentication rejected: %s", resp.Status))
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: %s", resp.Status)
		case resp.StatusCode != http.StatusOK:
			return retry.Fatal(fmt.Errorf("unexpected status: %s", resp.Status))
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parseDomainList(body)
}

// parseDomainList accepts either newline-delimited names or a JSON object
// with a domains array of {name} objects.
func parseDomainList(body []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Domains []struct {
				Name string `json:"name"`
			} `json:"domains"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("parse domain list JSON: %w", err)
		}
		out := make([]string, 0, len(payload.Domains))
		for _, d := range payload.Domains {
			if d.Name != "" {
				out = append(out, d.Name)
			}
		}
		return out, nil
	}

	var out []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
