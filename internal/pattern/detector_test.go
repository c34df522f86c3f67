package pattern

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupguard/internal/models"
	"signupguard/internal/store"
)

func TestDetector_NumberSuffix(t *testing.T) {
	d := New(store.NewMemoryStore())
	ctx := context.Background()
	parsed := models.ParsedEmail{LocalPart: "testuser123", Domain: "example.com", Normalized: "testuser123@example.com"}

	var signals models.Signals
	d.Run(ctx, models.EmailInput{}, parsed, &signals)

	assert.True(t, signals.HasNumberSuffix)
	assert.Equal(t, "NUMBER_SUFFIX", signals.PatternDetected)
}

func TestDetector_SequentialFamily(t *testing.T) {
	s := store.NewMemoryStore()
	d := New(s)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, d.RecordAccepted(ctx, "example.com", "user"+strconv.Itoa(i)+"@example.com"))
	}

	var signals models.Signals
	parsed := models.ParsedEmail{LocalPart: "user5", Domain: "example.com", Normalized: "user5@example.com"}
	d.Run(ctx, models.EmailInput{}, parsed, &signals)

	assert.True(t, signals.IsSequential)
	assert.Equal(t, "SEQUENTIAL", signals.PatternDetected)
}

func TestDetector_SimilarToRecent(t *testing.T) {
	s := store.NewMemoryStore()
	d := New(s)
	ctx := context.Background()

	require.NoError(t, d.RecordAccepted(ctx, "example.com", "johnsmith@example.com"))

	var signals models.Signals
	parsed := models.ParsedEmail{LocalPart: "johnsmyth", Domain: "example.com", Normalized: "johnsmyth@example.com"}
	d.Run(ctx, models.EmailInput{}, parsed, &signals)

	assert.True(t, signals.IsSimilarToRecent)
	assert.GreaterOrEqual(t, signals.SimilarityScore, 0.85)
}

func TestDetector_NoRecentWindowYieldsNoFalsePositives(t *testing.T) {
	d := New(store.NewMemoryStore())
	ctx := context.Background()
	parsed := models.ParsedEmail{LocalPart: "alice", Domain: "example.com", Normalized: "alice@example.com"}

	var signals models.Signals
	d.Run(ctx, models.EmailInput{}, parsed, &signals)

	assert.False(t, signals.IsSequential)
	assert.False(t, signals.IsSimilarToRecent)
	assert.Equal(t, "", signals.PatternDetected)
}
