// Package config implements the ambient configuration surface (spec.md §6):
// store endpoint, seed/remote list paths, scoring thresholds, provider
// names, SMTP flags, environment, and the background-enrichment toggle.
// Scoring weights are always scoring.DefaultWeights(); no environment
// variable overrides them. Grounded on the teacher's cmd/api/main.go
// env-var loading style (os.Getenv with a hardcoded fallback, strconv for
// numeric fields) generalized into a single typed Config struct instead of
// scattered package-level reads, so validation happens once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"signupguard/internal/models"
	"signupguard/internal/scoring"
)

// Environment selects fail-open vs fail-closed behavior for config errors.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// Config is the complete, fully-resolved configuration surface.
type Config struct {
	Environment Environment

	// C1 store
	StoreEndpoint string // postgres://... for Postgres, otherwise a Redis host:port; empty selects the in-memory store (dev only)

	// C2 disposable registry
	DisposableSeedPath string // unused: seed is go:embed'd; kept for operators supplying an override file
	RemoteDisposableURL string

	// C7 entropy
	EntropyThreshold float64

	// C13 scoring weights
	Weights scoring.Weights

	// C4 whois
	NewDomainThresholdDays int

	// C9 velocity
	IPVelocityThreshold     int64
	DomainVelocityThreshold int64
	VelocityBucketWidth     time.Duration
	DomainVelocityAllowlist []string

	// C6 SMTP
	SMTPEnabled  bool
	SMTPSender   string
	SMTPProxyAddr string // SOCKS5 proxy "host:port"; empty means dial direct

	// C5 IP intel
	IPIntelProviders []string // provider names in fallback order; credentials read per-provider by the caller

	// Admin / transport (consumed by the out-of-scope HTTP layer, carried
	// here only so one Config covers spec.md's full surface)
	AdminAPIKey string

	// C11 background enrichment
	BackgroundEnrichmentEnabled bool
	ResultTTLSeconds            int64

	WebhookURLs  []string
	TLSVerify    bool
}

// Load reads Config from the environment, applying spec.md defaults for
// everything except StoreEndpoint, which is required outside dev. Returns a
// *models.ConfigError (fail-closed in non-dev) when a required or
// malformed field is found.
func Load() (Config, error) {
	cfg := Config{
		Environment:             Environment(getenv("SIGNUPGUARD_ENV", "dev")),
		StoreEndpoint:           os.Getenv("SIGNUPGUARD_STORE_ENDPOINT"),
		DisposableSeedPath:      os.Getenv("SIGNUPGUARD_DISPOSABLE_SEED_PATH"),
		RemoteDisposableURL:     os.Getenv("SIGNUPGUARD_REMOTE_DISPOSABLE_URL"),
		EntropyThreshold:        4.5,
		Weights:                 scoring.DefaultWeights(),
		NewDomainThresholdDays:  30,
		IPVelocityThreshold:     10,
		DomainVelocityThreshold: 1000,
		VelocityBucketWidth:     time.Hour,
		SMTPSender:              "",
		AdminAPIKey:             os.Getenv("SIGNUPGUARD_ADMIN_API_KEY"),
		ResultTTLSeconds:        24 * 3600,
		TLSVerify:               true,
	}

	if v := os.Getenv("SIGNUPGUARD_ENTROPY_THRESHOLD"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, &models.ConfigError{Field: "SIGNUPGUARD_ENTROPY_THRESHOLD", Reason: err.Error()}
		}
		cfg.EntropyThreshold = parsed
	}

	if v := os.Getenv("SIGNUPGUARD_NEW_DOMAIN_THRESHOLD_DAYS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, &models.ConfigError{Field: "SIGNUPGUARD_NEW_DOMAIN_THRESHOLD_DAYS", Reason: err.Error()}
		}
		cfg.NewDomainThresholdDays = parsed
	}

	if v := os.Getenv("SIGNUPGUARD_IP_VELOCITY_THRESHOLD"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, &models.ConfigError{Field: "SIGNUPGUARD_IP_VELOCITY_THRESHOLD", Reason: err.Error()}
		}
		cfg.IPVelocityThreshold = parsed
	}

	if v := os.Getenv("SIGNUPGUARD_DOMAIN_VELOCITY_THRESHOLD"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, &models.ConfigError{Field: "SIGNUPGUARD_DOMAIN_VELOCITY_THRESHOLD", Reason: err.Error()}
		}
		cfg.DomainVelocityThreshold = parsed
	}

	if v := os.Getenv("SIGNUPGUARD_DOMAIN_VELOCITY_ALLOWLIST"); v != "" {
		cfg.DomainVelocityAllowlist = splitCSV(v)
	}

	cfg.SMTPEnabled = getenvBool("SIGNUPGUARD_SMTP_ENABLED", false)
	if v := os.Getenv("SIGNUPGUARD_SMTP_SENDER"); v != "" {
		cfg.SMTPSender = v
	}
	cfg.SMTPProxyAddr = os.Getenv("SIGNUPGUARD_SMTP_PROXY_ADDR")

	if v := os.Getenv("SIGNUPGUARD_IPINTEL_PROVIDERS"); v != "" {
		cfg.IPIntelProviders = splitCSV(v)
	}

	cfg.BackgroundEnrichmentEnabled = getenvBool("SIGNUPGUARD_BACKGROUND_ENRICHMENT", false)

	if v := os.Getenv("SIGNUPGUARD_RESULT_TTL_SECONDS"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, &models.ConfigError{Field: "SIGNUPGUARD_RESULT_TTL_SECONDS", Reason: err.Error()}
		}
		cfg.ResultTTLSeconds = parsed
	}

	if v := os.Getenv("SIGNUPGUARD_WEBHOOK_URLS"); v != "" {
		cfg.WebhookURLs = splitCSV(v)
	}

	cfg.TLSVerify = getenvBool("SIGNUPGUARD_TLS_VERIFY", true)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate enforces spec.md §7's fail-closed rule: in non-dev environments
// a missing store endpoint or admin key is an error that should prevent
// startup. In dev, the same gaps are tolerated (callers default to an
// in-memory store and a disabled admin surface).
func (c Config) validate() error {
	if c.StoreEndpoint == "" && c.Environment != EnvDev {
		return &models.ConfigError{Field: "SIGNUPGUARD_STORE_ENDPOINT", Reason: fmt.Sprintf("required outside dev (environment=%s)", c.Environment)}
	}
	if c.AdminAPIKey == "" && c.Environment != EnvDev {
		return &models.ConfigError{Field: "SIGNUPGUARD_ADMIN_API_KEY", Reason: fmt.Sprintf("required outside dev (environment=%s)", c.Environment)}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
