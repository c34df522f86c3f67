// Command worker runs the background-enrichment consumer (C11): it
// connects to the configured store, pops jobs off jobs:enrich, re-runs the
// slow probes (whois, IP intel, and optionally SMTP), re-scores, and
// writes the completed envelope back to result:{job_id}.
//
// Grounded on the teacher's cmd/worker/main.go startup sequence (env-driven
// store/queue connection, signal-based graceful shutdown) generalized from
// a fixed Redis+Postgres+proxy wiring to the store.Store abstraction and
// the generic probes.Probe slow-probe list.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"signupguard/internal/config"
	"signupguard/internal/jobqueue"
	"signupguard/internal/probes"
	"signupguard/internal/probes/ipintel"
	"signupguard/internal/probes/smtp"
	"signupguard/internal/probes/whois"
	"signupguard/internal/ratelimit"
	"signupguard/internal/scoring"
	"signupguard/internal/store"
	"signupguard/internal/worker"
)

func main() {
	log.Println("signupguard worker: starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("signupguard worker: config: %v", err)
	}

	backingStore, closer := mustStore(cfg)
	if closer != nil {
		defer closer.Close()
	}

	limiter := ratelimit.NewRegistry(5, 10)
	httpClient := &http.Client{}

	slowProbes := []probes.Probe{
		whois.New(backingStore, limiter, httpClient),
		ipintel.New(backingStore, limiter, ipIntelProviders(cfg, httpClient)...),
	}
	if cfg.SMTPEnabled {
		slowProbes = append(slowProbes, smtp.New(smtpDialer(cfg), limiter, cfg.SMTPSender))
	}

	queue := jobqueue.New(backingStore, cfg.ResultTTLSeconds)
	scorer := scoring.New(cfg.Weights)
	pool := worker.New(backingStore, queue, slowProbes, scorer, workerConcurrency())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("signupguard worker: shutdown signal received, draining in-flight jobs")
		cancel()
	}()

	log.Printf("signupguard worker: ready (store=%s smtp_enabled=%v)", cfg.StoreEndpoint, cfg.SMTPEnabled)
	pool.Run(ctx)
}

// smtpDialer returns nil (dial direct) unless a SOCKS5 proxy is
// configured, in which case port-25 connections route through it.
func smtpDialer(cfg config.Config) smtp.Dialer {
	if cfg.SMTPProxyAddr == "" {
		return nil
	}
	dialer, err := smtp.NewSOCKS5Dialer(cfg.SMTPProxyAddr, nil)
	if err != nil {
		log.Printf("signupguard worker: smtp proxy %s unavailable, dialing direct: %v", cfg.SMTPProxyAddr, err)
		return nil
	}
	return dialer
}

func mustStore(cfg config.Config) (store.Store, store.Closer) {
	switch {
	case cfg.StoreEndpoint == "":
		log.Println("signupguard worker: no store endpoint configured, using in-memory store (dev only)")
		return store.NewMemoryStore(), nil
	case hasPrefix(cfg.StoreEndpoint, "postgres://"), hasPrefix(cfg.StoreEndpoint, "postgresql://"):
		s, err := store.NewPostgresStore(context.Background(), cfg.StoreEndpoint)
		if err != nil {
			log.Fatalf("signupguard worker: postgres store: %v", err)
		}
		return s, s
	default:
		s, err := store.NewRedisStore(cfg.StoreEndpoint, "", 0)
		if err != nil {
			log.Fatalf("signupguard worker: redis store: %v", err)
		}
		return s, s
	}
}

// ipIntelProviders wires one HTTP provider per configured name. Every one
// of them queries ipapi.co's endpoint and shares its response parser; the
// name only labels the provider in the chain and its rate limiter. Using a
// vendor with richer is_vpn/is_proxy fields takes a different URL func and
// parse func, not a different Provider implementation.
func ipIntelProviders(cfg config.Config, client *http.Client) []ipintel.Provider {
	providers := make([]ipintel.Provider, 0, len(cfg.IPIntelProviders))
	for _, name := range cfg.IPIntelProviders {
		providers = append(providers, ipintel.NewHTTPProvider(name, client, func(ip string) string {
			return "https://ipapi.co/" + ip + "/json/"
		}, parseIPAPIResponse))
	}
	return providers
}

type ipapiResponse struct {
	CountryCode string `json:"country_code"`
	Org         string `json:"org"`
}

func parseIPAPIResponse(body []byte) (ipintel.Result, error) {
	var r ipapiResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return ipintel.Result{}, err
	}
	return ipintel.Result{Country: r.CountryCode, Organization: r.Org}, nil
}

func workerConcurrency() int {
	v := os.Getenv("SIGNUPGUARD_WORKER_CONCURRENCY")
	if v == "" {
		return 10
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 10
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 10
	}
	return n
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
