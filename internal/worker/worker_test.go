package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupguard/internal/jobqueue"
	"signupguard/internal/models"
	"signupguard/internal/probes"
	"signupguard/internal/scoring"
	"signupguard/internal/store"
)

// stubProbe lets tests control exactly what a "slow" probe contributes
// without touching the network.
type stubProbe struct {
	name string
	run  func(signals *models.Signals)
}

func (s stubProbe) Name() string           { return s.name }
func (s stubProbe) Timeout() time.Duration { return time.Second }
func (s stubProbe) Run(_ context.Context, _ models.EmailInput, _ models.ParsedEmail, signals *models.Signals) {
	s.run(signals)
}

func TestPool_ProcessesJobAndWritesCompletedResult(t *testing.T) {
	s := store.NewMemoryStore()
	queue := jobqueue.New(s, 3600)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ageDays := 2
	slowProbes := []probes.Probe{
		stubProbe{name: "whois", run: func(sig *models.Signals) { sig.DomainAgeDays = &ageDays }},
	}
	scorer := scoring.New(scoring.DefaultWeights())
	pool := New(s, queue, slowProbes, scorer, 1)

	partial := models.Envelope{
		NormalizedEmail: "alice@example.com",
		Enrichment:      models.Enrichment{Status: models.EnrichmentPending},
	}
	jobID, err := queue.Enqueue(ctx, models.EmailInput{RawEmail: "alice@example.com"}, partial, 100)
	require.NoError(t, err)

	raw, ok, err := s.QueuePop(ctx, jobqueue.QueueKey, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	var job models.EnrichmentJob
	require.NoError(t, json.Unmarshal(raw, &job))
	pool.process(ctx, 1, job)

	envelope, found, err := queue.Result(ctx, jobID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.EnrichmentComplete, envelope.Enrichment.Status)
	require.NotNil(t, envelope.Signals.DomainAgeDays)
	assert.Equal(t, 2, *envelope.Signals.DomainAgeDays)
}
