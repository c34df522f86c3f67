// Package smtp implements the optional mailbox-level prober (C6):
// probe(email, mx_host) -> {valid, deliverable, catch_all} | null. Disabled
// by default; only wired into the engine when SMTP probing is globally
// enabled. Grounded on the teacher's internal/lookup.CheckSMTP connection
// and command sequence, and on internal/validator/logic.go's runSmtpProbes
// ghost-email technique for catch-all detection — simplified to a single
// attempt per RCPT per spec.md §4.6 ("Any 4xx/5xx is recorded without
// retry"), dropping the teacher's adaptive enterprise-gateway delay and
// 2-attempt transient retry.
package smtp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"signupguard/internal/models"
	"signupguard/internal/ratelimit"
)

var errNoMX = errors.New("smtp: domain has no MX records")

const (
	heloHost       = "probe.signupguard.local"
	defaultTimeout = 10 * time.Second
	providerName   = "smtp"
)

// Dialer abstracts the transport so tests can substitute an in-process
// connection and production can route through a proxy dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type directDialer struct{ timeout time.Duration }

func (d directDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.timeout}
	return dialer.DialContext(ctx, network, addr)
}

// socksDialer routes port-25 connections through a SOCKS5 proxy, for
// operators whose outbound IP is burned on residential mail providers.
// golang.org/x/net/proxy's Dialer has no context-aware variant, so
// DialContext runs the blocking Dial on a goroutine and races it against
// ctx — the same "wrap a non-context API in a select" shape the teacher
// uses for its proxied HTTP calls.
type socksDialer struct {
	inner proxy.Dialer
}

// NewSOCKS5Dialer builds a Dialer that connects through the SOCKS5 proxy at
// addr. auth may be nil for unauthenticated proxies.
func NewSOCKS5Dialer(addr string, auth *proxy.Auth) (Dialer, error) {
	d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
	if err != nil {
		return nil, err
	}
	return socksDialer{inner: d}, nil
}

func (s socksDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := s.inner.Dial(network, addr)
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

// Prober implements probes.Probe for C6. Callers must not register it in
// the engine's probe list unless SMTP probing is globally enabled.
type Prober struct {
	dialer  Dialer
	limiter *ratelimit.Registry
	sender  string
	timeout time.Duration
}

// New builds an SMTP prober. sender is the MAIL FROM address (empty string
// is valid and matches the teacher's default).
func New(dialer Dialer, limiter *ratelimit.Registry, sender string) *Prober {
	if dialer == nil {
		dialer = directDialer{timeout: defaultTimeout}
	}
	return &Prober{dialer: dialer, limiter: limiter, sender: sender, timeout: defaultTimeout}
}

func (p *Prober) Name() string           { return "smtp" }
func (p *Prober) Timeout() time.Duration { return p.timeout }

// Run needs the MX host itself rather than just "has MX", so it resolves
// the host via the exported LookupMXHost helper; it does not read the dnsmx
// probe's result and can run concurrently with it. A transport failure
// (dial error, timeout, dropped connection) or a 4xx reply leaves every
// SMTP field nil.
func (p *Prober) Run(ctx context.Context, input models.EmailInput, parsed models.ParsedEmail, signals *models.Signals) {
	if p.limiter != nil && !p.limiter.Allow(providerName) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	mxHost, err := LookupMXHost(ctx, parsed.Domain)
	if err != nil {
		return
	}

	var reply *textproto.Error
	targetOK, targetErr := p.rcpt(ctx, mxHost, parsed.Normalized)
	if targetErr != nil && (!asTextprotoError(targetErr, &reply) || isTransient(targetErr)) {
		return
	}

	valid := targetOK
	signals.SMTPValid = &valid

	if !targetOK && isNoSuchUser(targetErr) {
		deliverable := false
		signals.SMTPDeliverable = &deliverable
		return
	}

	ghostEmail := randomLocalPart() + "@" + parsed.Domain
	ghostOK, ghostErr := p.rcpt(ctx, mxHost, ghostEmail)
	if ghostErr != nil && (!asTextprotoError(ghostErr, &reply) || isTransient(ghostErr)) {
		return
	}

	catchAll := ghostOK
	signals.SMTPCatchAll = &catchAll

	// catch_all is deliberately independent of deliverable: accepting the
	// ghost RCPT neither confirms nor denies whether the real target is
	// deliverable, per §9's Open Question resolution.
	deliverable := targetOK
	signals.SMTPDeliverable = &deliverable
}

// rcpt opens one SMTP session and issues HELO/MAIL FROM/RCPT TO for a single
// recipient, returning whether the server accepted it.
func (p *Prober) rcpt(ctx context.Context, mxHost, recipient string) (bool, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(mxHost, "25"))
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, mxHost)
	if err != nil {
		return false, err
	}
	defer client.Close()

	if err := client.Hello(heloHost); err != nil {
		return false, err
	}
	if err := client.Mail(p.sender); err != nil {
		return false, err
	}
	if err := client.Rcpt(recipient); err != nil {
		return false, err
	}

	_ = client.Quit()
	return true, nil
}

func randomLocalPart() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return "chk-" + hex.EncodeToString(buf)
}

// isNoSuchUser reports whether err is a definitive "mailbox does not exist"
// response (SMTP 550/551, or RFC 3463 enhanced status 5.1.0/5.1.1), as
// opposed to a transient/policy failure. Grounded on the teacher's
// lookup.IsNoSuchUserError keyword classification, narrowed to status-code
// matching since net/smtp surfaces a *textproto.Error here.
func isNoSuchUser(err error) bool {
	if err == nil {
		return false
	}
	var textErr *textproto.Error
	if asTextprotoError(err, &textErr) {
		return textErr.Code == 550 || textErr.Code == 551
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "5.1.1") || strings.Contains(msg, "5.1.0") ||
		strings.Contains(msg, "does not exist") || strings.Contains(msg, "no such user") ||
		strings.Contains(msg, "user unknown") || strings.Contains(msg, "mailbox unavailable")
}

// isTransient reports whether err is a 4xx greylist/rate-limit response, in
// which case spec.md calls for a null signal rather than treating it as a
// hard bounce.
func isTransient(err error) bool {
	var textErr *textproto.Error
	if asTextprotoError(err, &textErr) {
		return textErr.Code >= 400 && textErr.Code < 500
	}
	return false
}

func asTextprotoError(err error, target **textproto.Error) bool {
	if te, ok := err.(*textproto.Error); ok {
		*target = te
		return true
	}
	return false
}

// LookupMXHost resolves the single highest-priority MX host for domain, for
// callers (this probe) that need the concrete hostname rather than just
// has_mx.
func LookupMXHost(ctx context.Context, domain string) (string, error) {
	records, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errNoMX
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.Pref < best.Pref {
			best = r
		}
	}
	return strings.TrimSuffix(best.Host, "."), nil
}
