package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupguard/internal/models"
)

func TestLoad_DevDefaultsWithoutStoreEndpoint(t *testing.T) {
	t.Setenv("SIGNUPGUARD_ENV", "dev")
	t.Setenv("SIGNUPGUARD_STORE_ENDPOINT", "")
	t.Setenv("SIGNUPGUARD_ADMIN_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDev, cfg.Environment)
	assert.Equal(t, 4.5, cfg.EntropyThreshold)
	assert.Equal(t, int64(10), cfg.IPVelocityThreshold)
}

func TestLoad_ProdRequiresStoreEndpointAndAdminKey(t *testing.T) {
	t.Setenv("SIGNUPGUARD_ENV", "prod")
	t.Setenv("SIGNUPGUARD_STORE_ENDPOINT", "")
	t.Setenv("SIGNUPGUARD_ADMIN_API_KEY", "")

	_, err := Load()
	require.Error(t, err)

	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoad_ProdWithAllRequiredFieldsSucceeds(t *testing.T) {
	t.Setenv("SIGNUPGUARD_ENV", "prod")
	t.Setenv("SIGNUPGUARD_STORE_ENDPOINT", "redis://localhost:6379")
	t.Setenv("SIGNUPGUARD_ADMIN_API_KEY", "super-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379", cfg.StoreEndpoint)
}

func TestLoad_MalformedNumericFieldIsConfigError(t *testing.T) {
	t.Setenv("SIGNUPGUARD_ENV", "dev")
	t.Setenv("SIGNUPGUARD_ENTROPY_THRESHOLD", "not-a-number")

	_, err := Load()
	require.Error(t, err)

	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SIGNUPGUARD_ENTROPY_THRESHOLD", cfgErr.Field)
}
