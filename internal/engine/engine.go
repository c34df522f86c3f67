// Package engine implements the Risk Engine (C10): the orchestrator that
// dispatches C2-C9 with per-probe deadlines, merges partial results under a
// fail-open policy, runs the scorer once, and produces the decision
// envelope. Grounded on the teacher's internal/validator.VerifyEmail
// goroutine fan-out — a sync.WaitGroup plus a mutex-guarded shared struct —
// generalized from validator-specific fields to the generic Signals record
// and from a single SMTP-centric flow to an ordered []probes.Probe list.
package engine

import (
	"context"
	"sync"
	"time"

	"signupguard/internal/disposable"
	"signupguard/internal/email"
	"signupguard/internal/jobqueue"
	"signupguard/internal/models"
	"signupguard/internal/pattern"
	"signupguard/internal/probes"
	"signupguard/internal/scoring"
)

// fastModeProbeNames names the cheap probes spec.md §4.10 allows in FAST
// mode: "disposable, MX, entropy, alias, velocity, pattern". Disposable and
// alias are handled inline by the engine (not as probes.Probe); the
// remaining four are listed here by Name(). Analyse does not filter by this
// set: FAST mode runs the cheapProbes list passed to New as given, and
// IsFastModeProbe is offered for callers to check that list.
var fastModeProbeNames = map[string]bool{
	"dns_mx":   true,
	"entropy":  true,
	"pattern":  true,
	"velocity": true,
}

const defaultOverallBudget = 8 * time.Second

// Config controls engine behavior, read once at construction per spec.md
// §4.11 ("Thresholds and weights are read once at engine construction").
type Config struct {
	OverallBudget          time.Duration
	NewDomainThresholdDays int
	BackgroundEnrichment   bool
	ResultTTLSeconds       int64
}

// Engine is the Risk Engine. All dependencies are injected so the same
// Engine type serves tests (in-memory store, no real network) and
// production (Redis/Postgres store, real probes).
type Engine struct {
	parser     *email.Parser
	disposable *disposable.Registry
	cheap      []probes.Probe // disposable-exempt cheap probes: dnsmx, entropy, pattern, velocity
	slow       []probes.Probe // whois, ipintel, and (if enabled) smtp
	patternRec *pattern.Detector
	scorer     *scoring.Scorer
	queue      *jobqueue.Queue
	cfg        Config
}

// New builds an Engine. cheapProbes and slowProbes are dispatched
// concurrently and independently; patternRec is also used post-scoring to
// record accepted emails into the recent window. queue may be nil when
// background enrichment is disabled.
func New(parser *email.Parser, registry *disposable.Registry, cheapProbes, slowProbes []probes.Probe, patternRec *pattern.Detector, scorer *scoring.Scorer, queue *jobqueue.Queue, cfg Config) *Engine {
	if cfg.OverallBudget <= 0 {
		cfg.OverallBudget = defaultOverallBudget
	}
	if cfg.NewDomainThresholdDays <= 0 {
		cfg.NewDomainThresholdDays = 30
	}
	return &Engine{
		parser:     parser,
		disposable: registry,
		cheap:      cheapProbes,
		slow:       slowProbes,
		patternRec: patternRec,
		scorer:     scorer,
		queue:      queue,
		cfg:        cfg,
	}
}

// Analyse is the engine's public contract: analyse(input, mode) -> Envelope.
// A syntactically invalid input returns a HardReject error and no envelope.
func (e *Engine) Analyse(ctx context.Context, input models.EmailInput, mode models.Mode, nowUnix int64) (models.Envelope, error) {
	parsed, err := e.parser.Parse(input.RawEmail)
	if err != nil {
		return models.Envelope{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.OverallBudget)
	defer cancel()

	signals := models.Signals{
		IsDisposable: e.disposable.IsDisposable(parsed.Domain),
	}

	probeSet := e.probesForMode(mode)
	e.runProbes(ctx, input, parsed, &signals, probeSet)

	if signals.DomainAgeDays != nil {
		isNew := *signals.DomainAgeDays <= e.cfg.NewDomainThresholdDays
		signals.IsNewDomain = &isNew
	}

	signals.Incomplete = ctx.Err() != nil

	riskSummary, reasons := e.scorer.Score(signals)

	envelope := models.Envelope{
		Email:           parsed.Raw,
		NormalizedEmail: parsed.Normalized,
		Reasons:         reasons,
		RiskSummary:     riskSummary,
		Signals:         signals,
		Enrichment:      models.Enrichment{Status: models.EnrichmentDisabled},
	}

	// §4.8: the recent window is written after scoring, not before, so a
	// rejected/undesirable signup never pollutes future similarity checks.
	// This engine has no HARD_REJECT decision distinct from a HardReject
	// parse error (which already returned above), so every scored envelope
	// qualifies.
	if e.patternRec != nil {
		_ = e.patternRec.RecordAccepted(ctx, parsed.Domain, parsed.Normalized)
	}

	if mode == models.ModeFast && e.cfg.BackgroundEnrichment && e.queue != nil {
		jobID, err := e.queue.Enqueue(ctx, input, envelope, nowUnix)
		if err == nil {
			envelope.Enrichment = models.Enrichment{Status: models.EnrichmentPending, JobID: jobID}
		}
	}

	return envelope, nil
}

func (e *Engine) probesForMode(mode models.Mode) []probes.Probe {
	if mode == models.ModeFull {
		all := make([]probes.Probe, 0, len(e.cheap)+len(e.slow))
		all = append(all, e.cheap...)
		all = append(all, e.slow...)
		return all
	}
	return e.cheap
}

// runProbes fans each probe out into its own goroutine, applying the
// probe's own Timeout in addition to ctx's overall deadline, and merges
// results into signals under a mutex. One probe's failure never cancels
// another — the only shared cancellation is ctx itself (caller cancellation
// or overall-budget exhaustion).
func (e *Engine) runProbes(ctx context.Context, input models.EmailInput, parsed models.ParsedEmail, signals *models.Signals, probeList []probes.Probe) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range probeList {
		wg.Add(1)
		go func(p probes.Probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, p.Timeout())
			defer cancel()

			var local models.Signals
			p.Run(probeCtx, input, parsed, &local)

			mu.Lock()
			mergeSignals(signals, local)
			mu.Unlock()
		}(p)
	}

	wg.Wait()
}

// mergeSignals copies every field src set into dst. Each probe only ever
// writes the fields it owns, so this is a straightforward "overwrite if the
// source touched it" merge rather than a conflict resolution.
func mergeSignals(dst *models.Signals, src models.Signals) {
	if src.MXFound != nil {
		dst.MXFound = src.MXFound
	}
	if src.DomainAgeDays != nil {
		dst.DomainAgeDays = src.DomainAgeDays
	}
	if src.Country != nil {
		dst.Country = src.Country
	}
	if src.IsVPN != nil {
		dst.IsVPN = src.IsVPN
	}
	if src.IsProxy != nil {
		dst.IsProxy = src.IsProxy
	}
	if src.IsDatacenter != nil {
		dst.IsDatacenter = src.IsDatacenter
	}
	if src.IPIntelPrivate {
		dst.IPIntelPrivate = true
	}
	if src.SMTPValid != nil {
		dst.SMTPValid = src.SMTPValid
	}
	if src.SMTPDeliverable != nil {
		dst.SMTPDeliverable = src.SMTPDeliverable
	}
	if src.SMTPCatchAll != nil {
		dst.SMTPCatchAll = src.SMTPCatchAll
	}
	if src.EntropyComputed {
		dst.Entropy = src.Entropy
		dst.EntropyComputed = true
		dst.HighEntropy = src.HighEntropy
	}
	if src.PatternDetected != "" || src.HasNumberSuffix || src.IsSequential || src.IsSimilarToRecent {
		dst.HasNumberSuffix = src.HasNumberSuffix
		dst.IsSequential = src.IsSequential
		dst.IsSimilarToRecent = src.IsSimilarToRecent
		dst.SimilarityScore = src.SimilarityScore
		dst.PatternDetected = src.PatternDetected
	}
	if src.IPVelocityCount != nil {
		dst.IPVelocityCount = src.IPVelocityCount
	}
	if src.DomainVelocityCount != nil {
		dst.DomainVelocityCount = src.DomainVelocityCount
	}
	if src.VelocityBreach {
		dst.VelocityBreach = true
	}
}

// IsFastModeProbe reports whether a probe's Name() belongs in the FAST-mode
// cheap set — exposed so callers constructing an Engine can validate their
// cheap-probe list against spec.md §4.10 instead of hardcoding it twice.
func IsFastModeProbe(name string) bool {
	return fastModeProbeNames[name]
}
