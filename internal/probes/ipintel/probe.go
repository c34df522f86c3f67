// Package ipintel implements the IP-intelligence prober (C5):
// lookup(ip) -> {country, is_vpn, is_proxy, is_datacenter} | null, with a
// primary + ordered fallback provider chain. Grounded on the teacher's
// internal/proxy.Manager.Next round-robin chain-walking shape, and on
// internal/lookup/security.go's IdentifyProvider keyword-match heuristic —
// here applied to an organisation/ASN string instead of an MX hostname.
package ipintel

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"signupguard/internal/models"
	"signupguard/internal/ratelimit"
	"signupguard/internal/store"
)

const (
	cacheKeyPrefix = "ipintel:"
	cacheTTL       = time.Hour
	perProviderBudget = 2 * time.Second
)

// Provider is one IP-reputation data source in the fallback chain. Real
// deployments wire one HTTP-backed implementation per vendor (ipqualityscore,
// ipinfo, ipapi, ...); NewHTTPProvider below is the shared skeleton they all
// build on, parameterised by URL template and response shape.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (Result, error)
}

// Result is a provider's classification of an IP, before the
// keyword-fallback heuristic is applied.
type Result struct {
	Country      string
	IsVPN        *bool
	IsProxy      *bool
	IsDatacenter *bool
	Organization string
}

var vpnKeywords = []string{
	"vpn", "nordvpn", "expressvpn", "surfshark", "protonvpn", "mullvad",
	"privateinternetaccess", "tunnelbear", "ipvanish", "windscribe",
}

var proxyKeywords = []string{
	"proxy", "anonymizer", "anonymous", "tor exit",
}

var datacenterKeywords = []string{
	"amazon", "aws", "google cloud", "gcp", "microsoft azure", "azure",
	"digitalocean", "linode", "akamai", "ovh", "hetzner", "vultr",
	"cloudflare", "rackspace", "hosting", "datacenter", "data center",
}

// resolveFlags fills any nil provider-supplied boolean with a keyword match
// against the organisation string, the same "trust the structured field,
// fall back to string matching" shape IdentifyProvider uses for MX hosts.
func resolveFlags(r Result) (isVPN, isProxy, isDatacenter bool) {
	org := strings.ToLower(r.Organization)

	if r.IsVPN != nil {
		isVPN = *r.IsVPN
	} else {
		isVPN = containsAny(org, vpnKeywords)
	}
	if r.IsProxy != nil {
		isProxy = *r.IsProxy
	} else {
		isProxy = containsAny(org, proxyKeywords)
	}
	if r.IsDatacenter != nil {
		isDatacenter = *r.IsDatacenter
	} else {
		isDatacenter = containsAny(org, datacenterKeywords)
	}
	return
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Prober implements probes.Probe for C5.
type Prober struct {
	store     store.Store
	limiter   *ratelimit.Registry
	providers []Provider
}

// New builds a Prober with providers tried in order; the first to return
// successfully within its own 2s budget wins, matching the teacher's
// Manager.Next rotation but as an ordered fallback rather than round robin,
// since spec.md calls for "primary + ordered fallbacks", not load balancing.
func New(s store.Store, limiter *ratelimit.Registry, providers ...Provider) *Prober {
	return &Prober{store: s, limiter: limiter, providers: providers}
}

func (p *Prober) Name() string           { return "ip_intel" }
func (p *Prober) Timeout() time.Duration { return perProviderBudget * time.Duration(len(p.providers)+1) }

func (p *Prober) Run(ctx context.Context, input models.EmailInput, _ models.ParsedEmail, signals *models.Signals) {
	ip := input.IP
	if ip == "" {
		return
	}

	if isPrivateOrReserved(ip) {
		falseVal := false
		signals.IPIntelPrivate = true
		signals.Country = strPtr("")
		signals.IsVPN = &falseVal
		signals.IsProxy = &falseVal
		signals.IsDatacenter = &falseVal
		return
	}

	if res, ok := p.cached(ctx, ip); ok {
		p.applyResult(signals, res)
		return
	}

	for _, provider := range p.providers {
		if p.limiter != nil && !p.limiter.Allow(provider.Name()) {
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, perProviderBudget)
		res, err := provider.Lookup(pctx, ip)
		cancel()
		if err != nil {
			continue
		}

		p.applyResult(signals, res)
		p.store.Set(ctx, cacheKeyPrefix+ip, encodeResult(res), cacheTTL)
		return
	}
}

func (p *Prober) applyResult(signals *models.Signals, res Result) {
	isVPN, isProxy, isDatacenter := resolveFlags(res)
	signals.Country = strPtr(res.Country)
	signals.IsVPN = &isVPN
	signals.IsProxy = &isProxy
	signals.IsDatacenter = &isDatacenter
}

func (p *Prober) cached(ctx context.Context, ip string) (Result, bool) {
	raw, found, err := p.store.Get(ctx, cacheKeyPrefix+ip)
	if err != nil || !found {
		return Result{}, false
	}
	res, ok := decodeResult(raw)
	return res, ok
}

func strPtr(s string) *string { return &s }

func isPrivateOrReserved(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() || parsed.IsUnspecified()
}

type wireResult struct {
	Country      string `json:"country"`
	IsVPN        bool   `json:"is_vpn"`
	IsProxy      bool   `json:"is_proxy"`
	IsDatacenter bool   `json:"is_datacenter"`
}

func encodeResult(r Result) []byte {
	isVPN, isProxy, isDatacenter := resolveFlags(r)
	raw, _ := json.Marshal(wireResult{
		Country:      r.Country,
		IsVPN:        isVPN,
		IsProxy:      isProxy,
		IsDatacenter: isDatacenter,
	})
	return raw
}

func decodeResult(raw []byte) (Result, bool) {
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return Result{}, false
	}
	return Result{
		Country:      w.Country,
		IsVPN:        &w.IsVPN,
		IsProxy:      &w.IsProxy,
		IsDatacenter: &w.IsDatacenter,
	}, true
}

// NewHTTPProvider returns a Provider backed by a simple GET-and-decode HTTP
// lookup; parse adapts the vendor's JSON shape into a Result. Every
// concrete provider (ipqualityscore, ipinfo, ipapi) is one call to this
// with a different urlFn/parse pair.
func NewHTTPProvider(name string, client *http.Client, urlFn func(ip string) string, parse func([]byte) (Result, error)) Provider {
	if client == nil {
		client = &http.Client{Timeout: perProviderBudget}
	}
	return &httpProvider{name: name, client: client, urlFn: urlFn, parse: parse}
}

type httpProvider struct {
	name   string
	client *http.Client
	urlFn  func(ip string) string
	parse  func([]byte) (Result, error)
}

func (h *httpProvider) Name() string { return h.name }

func (h *httpProvider) Lookup(ctx context.Context, ip string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.urlFn(ip), nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, &models.ProbeFailure{Probe: h.name, Err: errBadStatus(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	return h.parse(body)
}

type errBadStatus int

func (e errBadStatus) Error() string {
	return "ipintel: provider returned non-200 status"
}
