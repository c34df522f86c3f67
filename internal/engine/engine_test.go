package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupguard/internal/disposable"
	"signupguard/internal/email"
	"signupguard/internal/models"
	"signupguard/internal/pattern"
	"signupguard/internal/probes"
	"signupguard/internal/probes/entropy"
	"signupguard/internal/scoring"
	"signupguard/internal/store"
	"signupguard/internal/velocity"
)

func buildTestEngine(t *testing.T) *Engine {
	t.Helper()

	s := store.NewMemoryStore()
	parser := email.NewParser(email.DefaultAliasCapableDomains())
	registry := disposable.NewRegistryFromDomains([]string{"mailinator.com", "10minutemail.com"})

	patternDetector := pattern.New(s)
	velocityCounter := velocity.New(s, 10, 1000, nil)
	entropyProbe := entropy.New(4.5)

	cheap := []probes.Probe{entropyProbe, patternDetector, velocityCounter}
	scorer := scoring.New(scoring.DefaultWeights())

	return New(parser, registry, cheap, nil, patternDetector, scorer, nil, Config{OverallBudget: time.Second})
}

func TestEngine_AnalyseCleanEmailIsLow(t *testing.T) {
	e := buildTestEngine(t)
	ctx := context.Background()

	envelope, err := e.Analyse(ctx, models.EmailInput{RawEmail: "alice@example.com", IP: "203.0.113.1"}, models.ModeFast, 1000)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", envelope.NormalizedEmail)
	assert.Equal(t, models.LevelLow, envelope.RiskSummary.Level)
	assert.Equal(t, models.ActionAllow, envelope.RiskSummary.Action)
	assert.Equal(t, models.EnrichmentDisabled, envelope.Enrichment.Status)
}

func TestEngine_AnalyseDisposableDomainIsHigh(t *testing.T) {
	e := buildTestEngine(t)
	ctx := context.Background()

	envelope, err := e.Analyse(ctx, models.EmailInput{RawEmail: "bob@mailinator.com", IP: "203.0.113.2"}, models.ModeFast, 1000)
	require.NoError(t, err)

	assert.True(t, envelope.Signals.IsDisposable)
	assert.Equal(t, models.LevelHigh, envelope.RiskSummary.Level)
	assert.Equal(t, models.ActionBlock, envelope.RiskSummary.Action)
}

func TestEngine_AnalyseInvalidSyntaxIsHardReject(t *testing.T) {
	e := buildTestEngine(t)
	ctx := context.Background()

	_, err := e.Analyse(ctx, models.EmailInput{RawEmail: "not-an-email"}, models.ModeFast, 1000)
	require.Error(t, err)

	var reject *models.HardReject
	assert.ErrorAs(t, err, &reject)
}

func TestEngine_VelocityBreachAccumulatesAcrossCalls(t *testing.T) {
	e := buildTestEngine(t)
	ctx := context.Background()

	var envelope models.Envelope
	var err error
	for i := 0; i < 12; i++ {
		envelope, err = e.Analyse(ctx, models.EmailInput{RawEmail: "user@example.com", IP: "203.0.113.9"}, models.ModeFast, 1000)
		require.NoError(t, err)
	}

	assert.True(t, envelope.Signals.VelocityBreach)
}
