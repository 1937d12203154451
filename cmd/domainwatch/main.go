package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oversite/domainwatch/internal/config"
	"github.com/oversite/domainwatch/internal/dedup"
	"github.com/oversite/domainwatch/internal/health"
	"github.com/oversite/domainwatch/internal/logging"
	"github.com/oversite/domainwatch/internal/metrics"
	"github.com/oversite/domainwatch/internal/monitor"
	"github.com/oversite/domainwatch/internal/notify"
	"github.com/oversite/domainwatch/internal/policy"
	"github.com/oversite/domainwatch/internal/probe"
	"github.com/oversite/domainwatch/internal/retry"
	"github.com/oversite/domainwatch/internal/sources"
	"github.com/oversite/domainwatch/internal/telemetry"
)

const version = "1.0.0"

func main() {
	var configFile string
	var envFile string
	var domainFile string
	var once bool
	var concurrency int
	var checkInterval time.Duration
	var metricsAddr string
	var templateDir string
	var logFile string
	var logLevel string
	var otelEndpoint string
	var otelInsecure bool
	var otelService string
	var showVersion bool

	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.StringVar(&envFile, "env", "", "path to .env file (default: .env in working dir)")
	flag.StringVar(&domainFile, "domains", "", "path to the domain cache file")
	flag.BoolVar(&once, "once", false, "run a single check cycle and exit")
	flag.IntVar(&concurrency, "concurrency", 0, "concurrent probes per batch")
	flag.DurationVar(&checkInterval, "interval", 0, "time between check cycles")
	flag.StringVar(&metricsAddr, "metrics_addr", "", "metrics listen addr (empty to disable)")
	flag.StringVar(&templateDir, "template_dir", "", "directory holding alert templates")
	flag.StringVar(&logFile, "log_file", "", "rotating log file path")
	flag.StringVar(&logLevel, "log_level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&otelEndpoint, "otel_endpoint", "", "OTLP HTTP endpoint (host:port)")
	flag.BoolVar(&otelInsecure, "otel_insecure", true, "OTLP insecure (no TLS)")
	flag.StringVar(&otelService, "otel_service", "", "OTEL service.name")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "domainwatch - SSL and domain registration expiry monitor\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -config=config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -env=/etc/domainwatch.env -once\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  WEBMIN_SERVERS/USERS/PASSWORDS  parallel server credential lists\n")
		fmt.Fprintf(os.Stderr, "  WEBMIN_API_KEYS                 bearer keys (alternative to user/password)\n")
		fmt.Fprintf(os.Stderr, "  EMAIL_HOST/PORT/USER/PASSWORD   SMTP transport\n")
		fmt.Fprintf(os.Stderr, "  EMAIL_RECIPIENTS                comma-separated alert recipients\n")
		fmt.Fprintf(os.Stderr, "  SSL_ALERT_DAYS                  SSL expiry threshold (default 15)\n")
		fmt.Fprintf(os.Stderr, "  DOMAIN_EXPIRATION_ALERT_DAYS    registration threshold (default 45)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Println("domainwatch v" + version)
		fmt.Println("Built with Go", strings.TrimPrefix(runtime.Version(), "go"))
		os.Exit(0)
	}

	// .env is optional; an explicit -env path is not.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config file: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	cfg.LoadFromEnv()

	flags := make(map[string]interface{})
	if domainFile != "" {
		flags["domain_file"] = domainFile
	}
	if concurrency > 0 {
		flags["concurrency"] = concurrency
	}
	if checkInterval > 0 {
		flags["check_interval"] = checkInterval
	}
	if metricsAddr != "" {
		flags["metrics_addr"] = metricsAddr
	}
	if templateDir != "" {
		flags["template_dir"] = templateDir
	}
	if logFile != "" {
		flags["log_file"] = logFile
	}
	if logLevel != "" {
		flags["log_level"] = logLevel
	}
	if otelEndpoint != "" {
		flags["otel_endpoint"] = otelEndpoint
	}
	if otelService != "" {
		flags["otel_service"] = otelService
	}
	flags["otel_insecure"] = otelInsecure
	cfg.MergeWithFlags(flags)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogFile, cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELService, cfg.OTELInsecure)
	if err != nil {
		log.Warnw("otel init failed", "err", err)
	} else {
		defer shutdown(context.Background())
	}

	healthHandler := health.NewHandler()
	healthHandler.SetMetadata("version", version)
	if cfg.MetricsAddr != "" {
		go metrics.ServeWithHealth(cfg.MetricsAddr, healthHandler, log)
		log.Infow("metrics and health server started", "addr", cfg.MetricsAddr)
	}

	probePolicy := retry.Exponential(cfg.RetryAttempts, cfg.RetryBase, 2.0, cfg.RetryCap)
	engine := policy.NewEngine(
		policy.Thresholds{SSLDays: cfg.SSLAlertDays, DomainDays: cfg.DomainAlertDays},
		cfg.ErrorAlertThreshold,
		cfg.ErrorAlertInterval,
	)
	if cfg.AlertResendInterval > 0 {
		var store dedup.Store
		if cfg.RedisAddr != "" {
			rd, err := dedup.NewRedis(cfg.RedisAddr, cfg.AlertResendInterval, log)
			if err != nil {
				log.Fatalw("redis init failed", "addr", cfg.RedisAddr, "err", err)
			}
			healthHandler.RegisterChecker("redis", health.NewPingChecker("redis", rd.Ping))
			store = rd
			log.Infow("redis alert suppression enabled", "addr", cfg.RedisAddr, "ttl", cfg.AlertResendInterval)
		} else {
			store = dedup.NewMemory(cfg.AlertResendInterval)
			log.Infow("memory alert suppression enabled", "ttl", cfg.AlertResendInterval)
		}
		engine.WithSuppression(store)
	}

	renderer, err := notify.NewRenderer(cfg.TemplateDir, notify.Branding{
		ProductName: cfg.ProductName,
		LogoURL:     cfg.LogoURL,
		SupportURL:  cfg.SupportURL,
	})
	if err != nil {
		// No renderable content at all is startup-fatal.
		log.Fatalw("template load failed", "dir", cfg.TemplateDir, "err", err)
	}

	m := monitor.New(
		cfg,
		log,
		sources.NewAggregator(cfg, log),
		probe.NewTLS(cfg.ProbeTimeout, probePolicy),
		probe.NewWhois(cfg.ProbeTimeout, probePolicy),
		engine,
		renderer,
		notify.NewMailer(cfg.Email),
		healthHandler,
	)

	log.Infow("starting domainwatch",
		"servers", len(cfg.Servers),
		"interval", cfg.CheckInterval,
		"concurrency", cfg.Concurrency,
		"ssl_alert_days", cfg.SSLAlertDays,
		"domain_alert_days", cfg.DomainAlertDays,
		"once", once,
	)

	if once {
		m.RunCycle(ctx)
	} else {
		m.Run(ctx)
	}
	log.Infow("shutdown complete")
}
