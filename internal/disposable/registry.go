// Package disposable implements C2: an immutable, process-wide registry of
// disposable-email domains. It is seeded once at startup from a packaged
// JSON list (grounded on optimode-emailkit's go:embed seed pattern) and
// optionally unioned with a remote list; after NewRegistry returns, the set
// is never mutated, so reads need no lock.
package disposable

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

//go:embed seed.json
var embeddedSeed []byte

// Registry is an O(1) disposable-domain membership set. It is safe for
// concurrent reads because it is never written to after construction.
type Registry struct {
	domains map[string]struct{}
}

// Option configures Registry construction.
type Option func(*buildConfig)

type buildConfig struct {
	remoteURL     string
	remoteTimeout time.Duration
	httpClient    *http.Client
}

// WithRemoteURL configures an additional JSON list to union in at startup.
// A fetch failure (timeout, non-200, malformed body) is non-fatal: the
// registry falls back to the packaged seed alone, per §4.2.
func WithRemoteURL(url string, timeout time.Duration) Option {
	return func(c *buildConfig) {
		c.remoteURL = url
		c.remoteTimeout = timeout
	}
}

// WithHTTPClient overrides the client used to fetch the remote list
// (defaults to a client scoped to the remote timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(c *buildConfig) { c.httpClient = client }
}

// NewRegistry loads the packaged seed and, if configured, unions in a
// remote list. It never returns an error — a bad remote source degrades to
// "seed only", matching the fail-open policy for non-essential enrichment.
func NewRegistry(opts ...Option) *Registry {
	cfg := buildConfig{remoteTimeout: 3 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	domains := map[string]struct{}{}
	loadListInto(domains, embeddedSeed)

	if cfg.remoteURL != "" {
		client := cfg.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.remoteTimeout}
		}
		if body, err := fetchRemoteList(client, cfg.remoteURL); err == nil {
			loadListInto(domains, body)
		}
	}

	return &Registry{domains: domains}
}

// NewRegistryFromDomains builds a registry directly from a slice, bypassing
// the embedded seed entirely. Used by tests and by callers that load a
// custom list from elsewhere.
func NewRegistryFromDomains(domains []string) *Registry {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &Registry{domains: set}
}

// IsDisposable reports whether domain is a known ephemeral-mailbox
// provider. O(1), lock-free.
func (r *Registry) IsDisposable(domain string) bool {
	_, ok := r.domains[strings.ToLower(domain)]
	return ok
}

// Len returns how many domains are currently registered.
func (r *Registry) Len() int {
	return len(r.domains)
}

func loadListInto(set map[string]struct{}, raw []byte) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return
	}
	for _, d := range list {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = struct{}{}
		}
	}
}

func fetchRemoteList(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch remote disposable list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote disposable list returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read remote disposable list: %w", err)
	}
	return body, nil
}
