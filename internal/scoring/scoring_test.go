package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"signupguard/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestScorer_Score(t *testing.T) {
	tests := []struct {
		name          string
		signals       models.Signals
		expectedScore int
		expectedLevel models.Level
	}{
		{
			name:          "clean signup has zero score",
			signals:       models.Signals{},
			expectedScore: 0,
			expectedLevel: models.LevelLow,
		},
		{
			name: "disposable domain alone blocks",
			signals: models.Signals{
				IsDisposable: true,
			},
			expectedScore: 90,
			expectedLevel: models.LevelHigh,
		},
		{
			name: "no mx caps at 100",
			signals: models.Signals{
				MXFound: ptr(false),
			},
			expectedScore: 100,
			expectedLevel: models.LevelHigh,
		},
		{
			name: "new domain plus vpn plus high entropy caps at 100",
			signals: models.Signals{
				IsNewDomain: ptr(true),
				IsVPN:       ptr(true),
				HighEntropy: true,
			},
			expectedScore: 100, // 60 + 50 + 30 = 140, capped
			expectedLevel: models.LevelHigh,
		},
		{
			name: "number suffix plus datacenter ip is medium",
			signals: models.Signals{
				HasNumberSuffix: true,
				IsDatacenter:    ptr(true),
			},
			expectedScore: 55,
			expectedLevel: models.LevelMedium,
		},
		{
			name: "sequential suppresses the number-suffix reason",
			signals: models.Signals{
				HasNumberSuffix: true,
				IsSequential:    true,
			},
			expectedScore: 40,
			expectedLevel: models.LevelMedium,
		},
		{
			name: "datacenter ip is suppressed when vpn also fires",
			signals: models.Signals{
				IsDatacenter: ptr(true),
				IsVPN:        ptr(true),
			},
			expectedScore: 50,
			expectedLevel: models.LevelMedium,
		},
	}

	scorer := New(DefaultWeights())

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			summary, _ := scorer.Score(tc.signals)
			assert.Equal(t, tc.expectedScore, summary.Score)
			assert.Equal(t, tc.expectedLevel, summary.Level)
		})
	}
}

func TestScorer_ReasonsFollowFixedOrder(t *testing.T) {
	scorer := New(DefaultWeights())
	signals := models.Signals{
		HighEntropy:     true,
		HasNumberSuffix: true,
		IsDisposable:    true,
	}

	_, reasons := scorer.Score(signals)

	assert.Len(t, reasons, 3)
	assert.Equal(t, models.ReasonDisposableDomain, reasons[0].Code)
	assert.Equal(t, models.ReasonHighEntropy, reasons[1].Code)
	assert.Equal(t, models.ReasonPatternNumberSuffix, reasons[2].Code)
}

func TestScorer_IncompleteAppendsReasonWithZeroPoints(t *testing.T) {
	scorer := New(DefaultWeights())
	signals := models.Signals{Incomplete: true}

	summary, reasons := scorer.Score(signals)

	assert.Equal(t, 0, summary.Score)
	if assert.Len(t, reasons, 1) {
		assert.Equal(t, models.ReasonIncomplete, reasons[0].Code)
		assert.Equal(t, 0, reasons[0].Points)
	}
}
