// Package scoring implements the additive weighted scorer (C13), grounded
// on the teacher's internal/validator.CalculateRobustScore: named weight
// constants, a breakdown map built alongside the running score, and a
// final clamp-and-classify step. Unlike the teacher's domain-specific
// booster/penalty cascade, this scorer is a single deterministic pass over
// the fixed reason-code ordering from spec.md §4.10 — every signal either
// fires or doesn't, with no cross-signal corrections.
package scoring

import (
	"fmt"

	"signupguard/internal/models"
)

// Weights holds the per-reason-code point values. All are configurable;
// these defaults match spec.md's table verbatim.
type Weights struct {
	DisposableDomain    int
	NoMX                int
	SMTPUndeliverable   int
	NewDomain           int
	VPNOrProxy          int
	PatternSequential   int
	VelocityBreach      int
	PatternSimilar      int
	HighEntropy         int
	DatacenterIP        int
	PatternNumberSuffix int
	SMTPCatchAll        int
}

// DefaultWeights returns spec.md §4.11's default weight table.
func DefaultWeights() Weights {
	return Weights{
		DisposableDomain:    90,
		NoMX:                100,
		SMTPUndeliverable:   70,
		NewDomain:           60,
		VPNOrProxy:          50,
		PatternSequential:   40,
		VelocityBreach:      40,
		PatternSimilar:      35,
		HighEntropy:         30,
		DatacenterIP:        30,
		PatternNumberSuffix: 25,
		SMTPCatchAll:        20,
	}
}

const (
	scoreCap      = 100
	lowMax        = 30
	mediumMax     = 70
)

// Scorer applies Weights to a Signals record and produces the score/level/
// action triple plus the ordered reasons list. It holds no state beyond its
// configured weights, so it is safe for concurrent use.
type Scorer struct {
	weights Weights
}

func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score is a pure function over signals: same signals in, same
// RiskSummary/reasons out, regardless of which probes produced them or in
// what order they completed.
func (s *Scorer) Score(signals models.Signals) (models.RiskSummary, []models.ReasonContribution) {
	var reasons []models.ReasonContribution
	total := 0

	add := func(code models.ReasonCode, points int, message string) {
		total += points
		reasons = append(reasons, models.ReasonContribution{Code: code, Points: points, Message: message})
	}

	for _, code := range models.OrderedReasonCodes() {
		switch code {
		case models.ReasonDisposableDomain:
			if signals.IsDisposable {
				add(code, s.weights.DisposableDomain, "signup domain is a known disposable-email provider")
			}
		case models.ReasonNoMX:
			if signals.MXFound != nil && !*signals.MXFound {
				add(code, s.weights.NoMX, "domain has no MX records")
			}
		case models.ReasonSMTPUndeliverable:
			if signals.SMTPDeliverable != nil && !*signals.SMTPDeliverable {
				add(code, s.weights.SMTPUndeliverable, "SMTP probe reported the mailbox as undeliverable")
			}
		case models.ReasonNewDomain:
			if signals.IsNewDomain != nil && *signals.IsNewDomain {
				add(code, s.weights.NewDomain, "registered domain age is below the new-domain threshold")
			}
		case models.ReasonVPNOrProxy:
			if isTrue(signals.IsVPN) || isTrue(signals.IsProxy) {
				add(code, s.weights.VPNOrProxy, "client IP is a known VPN or proxy exit")
			}
		case models.ReasonPatternSequential:
			if signals.IsSequential {
				add(code, s.weights.PatternSequential, "local-part belongs to a sequential signup family")
			}
		case models.ReasonVelocityBreach:
			if signals.VelocityBreach {
				add(code, s.weights.VelocityBreach, "signup velocity exceeded the configured threshold")
			}
		case models.ReasonPatternSimilar:
			if signals.IsSimilarToRecent {
				add(code, s.weights.PatternSimilar, "email is highly similar to a recently seen signup on this domain")
			}
		case models.ReasonHighEntropy:
			if signals.HighEntropy {
				add(code, s.weights.HighEntropy, fmt.Sprintf("local-part entropy %.2f exceeds threshold", signals.Entropy))
			}
		case models.ReasonDatacenterIP:
			// Mutually exclusive with VPN_OR_PROXY: spec.md §9 resolves the
			// "can both fire" open question by letting VPN/Proxy take
			// precedence.
			if isTrue(signals.IsDatacenter) && !isTrue(signals.IsVPN) && !isTrue(signals.IsProxy) {
				add(code, s.weights.DatacenterIP, "client IP belongs to a known datacenter range")
			}
		case models.ReasonPatternNumberSuffix:
			if signals.HasNumberSuffix && !signals.IsSequential {
				add(code, s.weights.PatternNumberSuffix, "local-part ends in a numeric suffix")
			}
		case models.ReasonSMTPCatchAll:
			if isTrue(signals.SMTPCatchAll) {
				add(code, s.weights.SMTPCatchAll, "domain MX accepts mail for any local-part")
			}
		}
	}

	if signals.Incomplete {
		reasons = append(reasons, models.ReasonContribution{Code: models.ReasonIncomplete, Points: 0, Message: "one or more probes did not complete within budget"})
	}

	if total > scoreCap {
		total = scoreCap
	}

	return models.RiskSummary{Score: total, Level: levelFor(total), Action: actionFor(total)}, reasons
}

func levelFor(score int) models.Level {
	switch {
	case score <= lowMax:
		return models.LevelLow
	case score <= mediumMax:
		return models.LevelMedium
	default:
		return models.LevelHigh
	}
}

func actionFor(score int) models.Action {
	switch {
	case score <= lowMax:
		return models.ActionAllow
	case score <= mediumMax:
		return models.ActionChallenge
	default:
		return models.ActionBlock
	}
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
