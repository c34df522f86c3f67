// Package whois implements the domain-age prober (C4): age_days(domain) via
// RDAP, grounded on the teacher's internal/lookup.CheckDomainAge — same
// rdap.org bootstrap endpoint, same registration/creation event parsing —
// generalized to return a cached, typed result instead of a bare int that
// collapses "0 days old" and "lookup failed" onto the same value.
package whois

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"signupguard/internal/models"
	"signupguard/internal/ratelimit"
	"signupguard/internal/store"
)

var errNoCreationEvent = errors.New("whois: rdap response had no registration/creation event")

func errStatus(code int) error {
	return fmt.Errorf("whois: rdap returned status %d", code)
}

const (
	cacheKeyPrefix = "whois:"
	defaultTimeout = 5 * time.Second
	cacheTTL       = 7 * 24 * time.Hour
	rdapEndpoint   = "https://rdap.org/domain/"
	providerName   = "whois"
)

// Prober implements probes.Probe for C4.
type Prober struct {
	store   store.Store
	limiter *ratelimit.Registry
	client  *http.Client
	timeout time.Duration
}

func New(s store.Store, limiter *ratelimit.Registry, client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Prober{store: s, limiter: limiter, client: client, timeout: defaultTimeout}
}

func (p *Prober) Name() string           { return "whois" }
func (p *Prober) Timeout() time.Duration { return p.timeout }

func (p *Prober) Run(ctx context.Context, _ models.EmailInput, parsed models.ParsedEmail, signals *models.Signals) {
	if age, ok := p.cached(ctx, parsed.Domain); ok {
		signals.DomainAgeDays = &age
		return
	}

	if p.limiter != nil && !p.limiter.Allow(providerName) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	age, err := p.lookupAge(ctx, parsed.Domain)
	if err != nil {
		return
	}

	signals.DomainAgeDays = &age
	p.store.Set(ctx, cacheKeyPrefix+parsed.Domain, encodeAge(age), cacheTTL)
}

type rdapResponse struct {
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
}

func (p *Prober) lookupAge(ctx context.Context, domain string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rdapEndpoint+domain, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &models.ProbeFailure{Probe: p.Name(), Err: errStatus(resp.StatusCode)}
	}

	var rdap rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&rdap); err != nil {
		return 0, err
	}

	var created time.Time
	for _, event := range rdap.Events {
		if event.Action != "registration" && event.Action != "creation" {
			continue
		}
		t, err := time.Parse(time.RFC3339, event.Date)
		if err != nil {
			continue
		}
		if created.IsZero() || t.Before(created) {
			created = t
		}
	}
	if created.IsZero() {
		return 0, errNoCreationEvent
	}

	return int(time.Since(created).Hours() / 24), nil
}

func (p *Prober) cached(ctx context.Context, domain string) (int, bool) {
	raw, found, err := p.store.Get(ctx, cacheKeyPrefix+domain)
	if err != nil || !found {
		return 0, false
	}
	return decodeAge(raw), true
}

func encodeAge(days int) []byte {
	return []byte(strconv.Itoa(days))
}

func decodeAge(raw []byte) int {
	n, _ := strconv.Atoi(string(raw))
	return n
}
