package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Server is one remote management server that can list its hosted domains.
// Authentication is either user/password (HTTP basic) or a bearer API key.
type Server struct {
	URL      string `yaml:"url" json:"url"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}

// Email holds the SMTP transport settings.
type Email struct {
	Host       string   `yaml:"host" json:"host"`
	Port       int      `yaml:"port" json:"port"`
	User       string   `yaml:"user" json:"user"`
	Password   string   `yaml:"password" json:"password"`
	From       string   `yaml:"from" json:"from"`
	Recipients []string `yaml:"recipients" json:"recipients"`
}

// Config represents the complete configuration for domainwatch.
type Config struct {
	// Domain sources
	Servers           []Server `yaml:"servers" json:"servers"`
	DomainFile        string   `yaml:"domain_file" json:"domain_file"`
	AdditionalDomains []string `yaml:"additional_domains" json:"additional_domains"`

	// Alert thresholds
	SSLAlertDays    int `yaml:"ssl_alert_days" json:"ssl_alert_days"`
	DomainAlertDays int `yaml:"domain_alert_days" json:"domain_alert_days"`

	// Persistent-error alerting
	ErrorAlertThreshold int           `yaml:"error_alert_threshold" json:"error_alert_threshold"`
	ErrorAlertInterval  time.Duration `yaml:"error_alert_interval" json:"error_alert_interval"`
	AlertResendInterval time.Duration `yaml:"alert_resend_interval" json:"alert_resend_interval"`

	// Scheduling
	CheckInterval time.Duration `yaml:"check_interval" json:"check_interval"`
	Concurrency   int           `yaml:"concurrency" json:"concurrency"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	MaxBatchSize  int           `yaml:"max_batch_size" json:"max_batch_size"`
	BatchDelay    time.Duration `yaml:"batch_delay" json:"batch_delay"`

	// Probing
	ProbeTimeout  time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryBase     time.Duration `yaml:"retry_base" json:"retry_base"`
	RetryCap      time.Duration `yaml:"retry_cap" json:"retry_cap"`
	ServerRate    float64       `yaml:"server_rate" json:"server_rate"`

	// Notifications
	Email       Email  `yaml:"email" json:"email"`
	TemplateDir string `yaml:"template_dir" json:"template_dir"`
	ProductName string `yaml:"product_name" json:"product_name"`
	LogoURL     string `yaml:"logo_url" json:"logo_url"`
	SupportURL  string `yaml:"support_url" json:"support_url"`

	// Logging
	LogFile  string `yaml:"log_file" json:"log_file"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Observability
	MetricsAddr  string `yaml:"metrics_addr" json:"metrics_addr"`
	OTELEndpoint string `yaml:"otel_endpoint" json:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure" json:"otel_insecure"`
	OTELService  string `yaml:"otel_service" json:"otel_service"`

	// Redis (optional cross-restart alert dedup)
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.DomainFile == "" {
		c.DomainFile = "domains.txt"
	}
	if c.SSLAlertDays == 0 {
		c.SSLAlertDays = 15
	}
	if c.DomainAlertDays == 0 {
		c.DomainAlertDays = 45
	}
	if c.ErrorAlertThreshold == 0 {
		c.ErrorAlertThreshold = 3
	}
	if c.ErrorAlertInterval == 0 {
		c.ErrorAlertInterval = time.Hour
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = 24 * time.Hour
	}
	if c.Concurrency == 0 {
		// I/O bound work, so twice the core count
		c.Concurrency = runtime.NumCPU() * 2
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 64
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = 2 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBase == 0 {
		c.RetryBase = time.Second
	}
	if c.RetryCap == 0 {
		c.RetryCap = 30 * time.Second
	}
	if c.ServerRate == 0 {
		c.ServerRate = 2.0
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.TemplateDir == "" {
		c.TemplateDir = "templates"
	}
	if c.ProductName == "" {
		c.ProductName = "domainwatch"
	}
	if c.LogFile == "" {
		c.LogFile = "domainwatch.log"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.OTELService == "" {
		c.OTELService = "domainwatch"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Servers) == 0 && c.DomainFile == "" && len(c.AdditionalDomains) == 0 {
		return fmt.Errorf("no domain sources configured: need servers, domain_file or additional_domains")
	}
	for i, s := range c.Servers {
		if s.URL == "" {
			return fmt.Errorf("server %d: url is required", i)
		}
		if s.APIKey == "" && (s.User == "" || s.Password == "") {
			return fmt.Errorf("server %d (%s): either api_key or user+password is required", i, s.URL)
		}
	}
	if c.Email.Host == "" {
		return fmt.Errorf("email host is required")
	}
	if c.Email.Port < 1 || c.Email.Port > 65535 {
		return fmt.Errorf("email port %d out of range", c.Email.Port)
	}
	if c.Email.User == "" || c.Email.Password == "" {
		return fmt.Errorf("email user and password are required")
	}
	if len(c.Email.Recipients) == 0 {
		return fmt.Errorf("at least one email recipient is required")
	}
	if c.SSLAlertDays < 0 || c.DomainAlertDays < 0 {
		return fmt.Errorf("alert thresholds must not be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if c.ErrorAlertThreshold < 1 {
		return fmt.Errorf("error_alert_threshold must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	config.SetDefaults()
	return &config, nil
}

// LoadFromEnv loads configuration from environment variables. The variable
// names follow the legacy monitor: WEBMIN_SERVERS/WEBMIN_USERS/WEBMIN_PASSWORDS
// are parallel comma-separated lists, WEBMIN_API_KEYS is the bearer-key
// alternative.
func (c *Config) LoadFromEnv() {
	if servers := splitList(os.Getenv("WEBMIN_SERVERS")); len(servers) > 0 {
		users := splitList(os.Getenv("WEBMIN_USERS"))
		passwords := splitList(os.Getenv("WEBMIN_PASSWORDS"))
		keys := splitList(os.Getenv("WEBMIN_API_KEYS"))
		c.Servers = c.Servers[:0]
		for i, u := range servers {
			s := Server{URL: u}
			if i < len(users) {
				s.User = users[i]
			}
			if i < len(passwords) {
				s.Password = passwords[i]
			}
			if i < len(keys) {
				s.APIKey = keys[i]
			}
			c.Servers = append(c.Servers, s)
		}
	}
	if v := os.Getenv("DOMAIN_FILE"); v != "" {
		c.DomainFile = v
	}
	if v := splitList(os.Getenv("ADDITIONAL_DOMAINS")); len(v) > 0 {
		c.AdditionalDomains = v
	}
	if v, ok := envInt("SSL_ALERT_DAYS"); ok {
		c.SSLAlertDays = v
	}
	if v, ok := envInt("DOMAIN_EXPIRATION_ALERT_DAYS"); ok {
		c.DomainAlertDays = v
	}
	if v, ok := envInt("ERROR_ALERT_THRESHOLD"); ok {
		c.ErrorAlertThreshold = v
	}
	if v, ok := envSeconds("ERROR_ALERT_INTERVAL"); ok {
		c.ErrorAlertInterval = v
	}
	if v, ok := envSeconds("ALERT_RESEND_INTERVAL"); ok {
		c.AlertResendInterval = v
	}
	if v, ok := envSeconds("CHECK_INTERVAL"); ok {
		c.CheckInterval = v
	}
	if v, ok := envInt("CONCURRENCY"); ok {
		c.Concurrency = v
	}
	if v, ok := envInt("BATCH_SIZE"); ok {
		c.BatchSize = v
	}
	if v, ok := envInt("MAX_BATCH_SIZE"); ok {
		c.MaxBatchSize = v
	}
	if v, ok := envSeconds("BATCH_DELAY"); ok {
		c.BatchDelay = v
	}
	if v, ok := envSeconds("PROBE_TIMEOUT"); ok {
		c.ProbeTimeout = v
	}
	if v, ok := envInt("RETRY_ATTEMPTS"); ok {
		c.RetryAttempts = v
	}
	if v, ok := envSeconds("RETRY_BASE_DELAY"); ok {
		c.RetryBase = v
	}
	if v, ok := envSeconds("RETRY_MAX_DELAY"); ok {
		c.RetryCap = v
	}
	if v := os.Getenv("EMAIL_HOST"); v != "" {
		c.Email.Host = v
	}
	if v, ok := envInt("EMAIL_PORT"); ok {
		c.Email.Port = v
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		c.Email.User = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.Email.From = v
	}
	if v := splitList(os.Getenv("EMAIL_RECIPIENTS")); len(v) > 0 {
		c.Email.Recipients = v
	}
	if v := os.Getenv("TEMPLATE_DIR"); v != "" {
		c.TemplateDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("OTEL_ENDPOINT"); v != "" {
		c.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE"); v != "" {
		c.OTELService = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}

// MergeWithFlags merges command-line flags with file configuration
// Command-line flags take precedence over file configuration
func (c *Config) MergeWithFlags(flags map[string]interface{}) {
	if v, ok := flags["domain_file"].(string); ok && v != "" {
		c.DomainFile = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Concurrency = v
	}
	if v, ok := flags["batch_size"].(int); ok && v > 0 {
		c.BatchSize = v
	}
	if v, ok := flags["check_interval"].(time.Duration); ok && v > 0 {
		c.CheckInterval = v
	}
	if v, ok := flags["metrics_addr"].(string); ok && v != "" {
		c.MetricsAddr = v
	}
	if v, ok := flags["template_dir"].(string); ok && v != "" {
		c.TemplateDir = v
	}
	if v, ok := flags["log_file"].(string); ok && v != "" {
		c.LogFile = v
	}
	if v, ok := flags["log_level"].(string); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := flags["otel_endpoint"].(string); ok && v != "" {
		c.OTELEndpoint = v
	}
	if v, ok := flags["otel_insecure"].(bool); ok {
		c.OTELInsecure = v
	}
	if v, ok := flags["otel_service"].(string); ok && v != "" {
		c.OTELService = v
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envSeconds reads a duration variable. Bare integers are interpreted as
// seconds, matching the legacy configuration; Go duration strings also work.
func envSeconds(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	return 0, false
}
