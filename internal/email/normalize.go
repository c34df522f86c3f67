// Package email implements the syntactic validator and canonicalizer (C12).
// It is the only place that turns a raw string into a models.ParsedEmail; a
// syntactically invalid input never produces one — the engine short-circuits
// with a models.HardReject instead of scoring it.
package email

import (
	"strings"

	"signupguard/internal/models"
)

const (
	maxLocalPartLen = 64
	maxDomainLabel  = 63
)

// AliasCapableDomains is the configured set of domains where '+' in the
// local-part is treated as an alias separator for canonicalization purposes
// (open question in spec.md §9: this package resolves it as "alias
// stripping is per-domain, not universal" — see DESIGN.md).
type AliasCapableDomains map[string]struct{}

// DefaultAliasCapableDomains covers the providers that document '+'
// addressing (Gmail, Outlook/Live, FastMail, ProtonMail).
func DefaultAliasCapableDomains() AliasCapableDomains {
	return AliasCapableDomains{
		"gmail.com":      {},
		"googlemail.com": {},
		"outlook.com":    {},
		"hotmail.com":    {},
		"live.com":       {},
		"fastmail.com":   {},
		"protonmail.com": {},
		"proton.me":      {},
	}
}

// Parser holds the alias-capable domain configuration. It has no other
// state and is safe for concurrent use.
type Parser struct {
	aliasCapable AliasCapableDomains
}

func NewParser(aliasCapable AliasCapableDomains) *Parser {
	if aliasCapable == nil {
		aliasCapable = AliasCapableDomains{}
	}
	return &Parser{aliasCapable: aliasCapable}
}

// Parse validates raw syntactically and, on success, returns its canonical
// ParsedEmail. On any syntax violation it returns a *models.HardReject and a
// zero ParsedEmail — callers must check the error before touching the
// result.
func (p *Parser) Parse(raw string) (models.ParsedEmail, error) {
	at := strings.LastIndexByte(raw, '@')
	if at <= 0 || at == len(raw)-1 {
		return models.ParsedEmail{}, models.NewInvalidSyntaxReject("exactly one '@' required, with non-empty local and domain parts")
	}
	if strings.Count(raw, "@") != 1 {
		return models.ParsedEmail{}, models.NewInvalidSyntaxReject("exactly one '@' required")
	}

	localPart := raw[:at]
	domain := raw[at+1:]

	if len(localPart) == 0 || len(localPart) > maxLocalPartLen {
		return models.ParsedEmail{}, models.NewInvalidSyntaxReject("local-part must be 1-64 characters")
	}
	if !validDomain(domain) {
		return models.ParsedEmail{}, models.NewInvalidSyntaxReject("domain must have at least one dot and valid labels")
	}

	lowerDomain := strings.ToLower(domain)
	lowerLocal := strings.ToLower(localPart)
	isAlias := strings.Contains(lowerLocal, "+")

	canonicalLocal := lowerLocal
	if isAlias {
		if _, aliasCapable := p.aliasCapable[lowerDomain]; aliasCapable {
			if plus := strings.IndexByte(canonicalLocal, '+'); plus >= 0 {
				canonicalLocal = canonicalLocal[:plus]
			}
		}
	}
	if canonicalLocal == "" {
		return models.ParsedEmail{}, models.NewInvalidSyntaxReject("local-part empty after alias stripping")
	}

	normalized := canonicalLocal + "@" + lowerDomain

	return models.ParsedEmail{
		Raw:        raw,
		Normalized: normalized,
		LocalPart:  canonicalLocal,
		Domain:     lowerDomain,
		IsAlias:    isAlias,
	}, nil
}

// validDomain checks the structural rules from §4.1: at least one dot, no
// leading/trailing dot or hyphen in any label, each label 1-63 characters.
func validDomain(domain string) bool {
	if domain == "" || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > maxDomainLabel {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

// Normalize is a convenience wrapper used by callers (and tests) that only
// need the canonical string, discarding the rest of the ParsedEmail.
func (p *Parser) Normalize(raw string) (string, error) {
	parsed, err := p.Parse(raw)
	if err != nil {
		return "", err
	}
	return parsed.Normalized, nil
}
