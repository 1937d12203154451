package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTLSCheck_Success(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	p := NewTLS(2*time.Second, testPolicy())
	p.port = port
	res := p.Check(context.Background(), host)
	if res.Kind != Success {
		t.Fatalf("expected Success, got %s (%v)", res.Kind, res.Cause)
	}
	if res.Expiry.IsZero() {
		t.Error("expected a certificate expiry")
	}
	if res.DaysRemaining <= 0 {
		t.Errorf("test server cert should not be expired, got %d days", res.DaysRemaining)
	}
}

func TestTLSCheck_ConnectionRefusedIsTransient(t *testing.T) {
	// Grab a port that is guaranteed closed.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, port, _ := net.SplitHostPort(l.Addr().String())
	l.Close()

	p := NewTLS(time.Second, testPolicy())
	p.port = port
	res := p.Check(context.Background(), host)
	if res.Kind != TransientFailure {
		t.Fatalf("expected TransientFailure, got %s", res.Kind)
	}
	if res.Cause == nil {
		t.Error("expected a cause on failure")
	}
}
