package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oversite/domainwatch/internal/health"
	"github.com/oversite/domainwatch/internal/logging"
)

var (
	ProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domainwatch_probes_total", Help: "probes executed, by check and outcome",
	}, []string{"check", "status"})
	AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domainwatch_alerts_total", Help: "alert events produced, by kind",
	}, []string{"kind"})
	SendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "domainwatch_send_failures_total", Help: "notification dispatch failures",
	})
	SourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domainwatch_source_errors_total", Help: "domain source fetch failures, by server",
	}, []string{"server"})
	DomainsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "domainwatch_domains", Help: "domains in the current working set",
	})
	CycleSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "domainwatch_cycle_duration_seconds",
		Help:    "wall time of a full check cycle",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(ProbesTotal, AlertsTotal, SendFailures, SourceErrors, DomainsGauge, CycleSeconds)
}

func Serve(addr string, log *logging.Logger) {
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}

func ServeWithHealth(addr string, healthHandler *health.Handler, log *logging.Logger) {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthHandler.HealthHandler)
	http.HandleFunc("/ready", healthHandler.ReadinessHandler)
	http.HandleFunc("/live", healthHandler.LivenessHandler)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}
