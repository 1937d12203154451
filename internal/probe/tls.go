package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/oversite/domainwatch/internal/retry"
)

// TLSProber extracts certificate expiry by completing a TLS handshake
// against domain:443 with SNI set to the domain.
type TLSProber struct {
	port    string
	timeout time.Duration
	policy  retry.Policy
	now     func() time.Time
}

func NewTLS(timeout time.Duration, policy retry.Policy) *TLSProber {
	return &TLSProber{port: "443", timeout: timeout, policy: policy, now: time.Now}
}

var errNoPeerCertificate = errors.New("peer presented no certificate")

// Check connects to the domain and classifies the outcome. Chain
// verification is skipped on purpose: an already-expired certificate must
// still yield its notAfter so the alert can report how long ago it lapsed.
func (p *TLSProber) Check(ctx context.Context, domain string) Result {
	var notAfter time.Time
	err := retry.Do(ctx, p.policy, func() error {
		t, err := p.fetchNotAfter(ctx, domain)
		if err != nil {
			return err
		}
		notAfter = t
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoPeerCertificate) {
			return Result{Kind: Unparseable, Cause: err}
		}
		return Result{Kind: TransientFailure, Cause: err}
	}
	return Succeeded(notAfter, p.now())
}

func (p *TLSProber) fetchNotAfter(ctx context.Context, domain string) (time.Time, error) {
	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.timeout},
		Config: &tls.Config{
			ServerName:         domain,
			InsecureSkipVerify: true,
		},
	}
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(domain, p.port))
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Close()
	cs := conn.(*tls.Conn).ConnectionState()
	if len(cs.PeerCertificates) == 0 {
		return time.Time{}, retry.Fatal(errNoPeerCertificate)
	}
	return cs.PeerCertificates[0].NotAfter, nil
}
