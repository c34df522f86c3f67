// Package dnsmx implements the MX prober (C3): has_mx(domain) with a cache
// and timeout. Grounded on the teacher's internal/lookup.CheckDNS, which
// already uses a context-aware *net.Resolver with a direct (non-proxied)
// dialer — DNS over SOCKS5 does not carry UDP, a constraint this package
// keeps.
package dnsmx

import (
	"context"
	"net"
	"strings"
	"time"

	"signupguard/internal/models"
	"signupguard/internal/store"
)

const (
	cacheKeyPrefix  = "mx:"
	defaultTimeout  = 3 * time.Second
	negativeTTL     = 2 * time.Second
	positiveTTL     = 24 * time.Hour
)

// Prober implements probes.Probe for C3.
type Prober struct {
	store    store.Store
	resolver *net.Resolver
	timeout  time.Duration
}

// New builds a DNS/MX prober. resolver may be nil, in which case a resolver
// forced onto a direct UDP dialer (matching the teacher's CheckDNS) is used.
func New(s store.Store, resolver *net.Resolver) *Prober {
	if resolver == nil {
		resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: defaultTimeout}
				return d.DialContext(ctx, network, address)
			},
		}
	}
	return &Prober{store: s, resolver: resolver, timeout: defaultTimeout}
}

func (p *Prober) Name() string          { return "dns_mx" }
func (p *Prober) Timeout() time.Duration { return p.timeout }

func (p *Prober) Run(ctx context.Context, _ models.EmailInput, parsed models.ParsedEmail, signals *models.Signals) {
	found, ok := p.cached(ctx, parsed.Domain)
	if ok {
		signals.MXFound = &found
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	found, err := p.lookup(ctx, parsed.Domain)
	if err != nil {
		// One retry on resolver error, per §4.3; a second failure yields
		// null (signals.MXFound left nil), which callers treat as
		// "unknown" rather than "no MX".
		found, err = p.lookup(ctx, parsed.Domain)
		if err != nil {
			return
		}
	}

	signals.MXFound = &found
	p.store.Set(ctx, cacheKeyPrefix+parsed.Domain, encodeBool(found), ttlFor(found))
}

func (p *Prober) lookup(ctx context.Context, domain string) (bool, error) {
	mxRecords, err := p.resolver.LookupMX(ctx, domain)
	if err != nil {
		return false, err
	}
	return len(mxRecords) > 0, nil
}

func (p *Prober) cached(ctx context.Context, domain string) (bool, bool) {
	raw, found, err := p.store.Get(ctx, cacheKeyPrefix+domain)
	if err != nil || !found {
		return false, false
	}
	return decodeBool(raw), true
}

func ttlFor(found bool) time.Duration {
	if found {
		return positiveTTL
	}
	return negativeTTL
}

func encodeBool(b bool) []byte {
	if b {
		return []byte("1")
	}
	return []byte("0")
}

func decodeBool(raw []byte) bool {
	return len(raw) > 0 && raw[0] == '1'
}

// stripTrailingDot mirrors the teacher's FQDN cleanup in CheckDNS (kept
// here for any caller that surfaces raw MX hostnames, e.g. to hand the
// primary MX host to the SMTP/WHOIS probes).
func stripTrailingDot(host string) string {
	return strings.TrimSuffix(host, ".")
}
