package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupguard/internal/models"
)

func TestParse_ValidAndCanonical(t *testing.T) {
	p := NewParser(DefaultAliasCapableDomains())

	parsed, err := p.Parse("User+Tag@Gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "user@gmail.com", parsed.Normalized)
	assert.True(t, parsed.IsAlias)
	assert.Equal(t, "gmail.com", parsed.Domain)
}

func TestParse_AliasOnNonAliasCapableDomainKeepsPlus(t *testing.T) {
	p := NewParser(DefaultAliasCapableDomains())

	parsed, err := p.Parse("user+tag@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user+tag@example.com", parsed.Normalized)
	assert.True(t, parsed.IsAlias)
}

func TestParse_RejectsBadSyntax(t *testing.T) {
	p := NewParser(nil)

	cases := []string{
		"",
		"no-at-sign.com",
		"two@at@signs.com",
		"@missing-local.com",
		"missing-domain@",
		"user@no-dot",
		"user@.leadingdot.com",
		"user@trailingdot.com.",
		"user@-leadinghyphen.com",
	}
	for _, c := range cases {
		_, err := p.Parse(c)
		assert.Error(t, err, "expected rejection for %q", c)
		var reject *models.HardReject
		assert.ErrorAs(t, err, &reject)
		assert.Equal(t, "INVALID_SYNTAX", reject.Code)
	}
}

func TestParse_IdempotentNormalization(t *testing.T) {
	p := NewParser(DefaultAliasCapableDomains())

	first, err := p.Parse("User+promo@GMAIL.com")
	require.NoError(t, err)

	second, err := p.Parse(first.Normalized)
	require.NoError(t, err)

	assert.Equal(t, first.Normalized, second.Normalized)
}

func TestParse_LongLocalPartRejected(t *testing.T) {
	p := NewParser(nil)
	local := ""
	for i := 0; i < 65; i++ {
		local += "a"
	}
	_, err := p.Parse(local + "@example.com")
	assert.Error(t, err)
}
