package velocity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupguard/internal/models"
	"signupguard/internal/store"
)

func TestCounter_BreachesAfterThreshold(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, 3, 1000, nil)
	ctx := context.Background()

	input := models.EmailInput{IP: "203.0.113.7"}
	parsed := models.ParsedEmail{Domain: "example.com"}

	var signals models.Signals
	for i := 0; i < 3; i++ {
		signals = models.Signals{}
		c.Run(ctx, input, parsed, &signals)
	}
	require.NotNil(t, signals.IPVelocityCount)
	assert.Equal(t, int64(3), *signals.IPVelocityCount)
	assert.False(t, signals.VelocityBreach)

	signals = models.Signals{}
	c.Run(ctx, input, parsed, &signals)
	assert.Equal(t, int64(4), *signals.IPVelocityCount)
	assert.True(t, signals.VelocityBreach)
}

func TestCounter_SkipsPrivateIPs(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, 1, 1000, nil)
	ctx := context.Background()

	input := models.EmailInput{IP: "10.0.0.5"}
	parsed := models.ParsedEmail{Domain: "example.com"}

	var signals models.Signals
	c.Run(ctx, input, parsed, &signals)
	assert.Nil(t, signals.IPVelocityCount)
}

func TestCounter_AllowlistedDomainNeverBreaches(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, 1000, 2, []string{"gmail.com"})
	ctx := context.Background()

	parsed := models.ParsedEmail{Domain: "gmail.com"}
	var signals models.Signals
	for i := 0; i < 5; i++ {
		signals = models.Signals{}
		c.Run(ctx, models.EmailInput{}, parsed, &signals)
	}
	assert.Nil(t, signals.DomainVelocityCount)
	assert.False(t, signals.VelocityBreach)
}
