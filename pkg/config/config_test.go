package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPlatformEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SUPABASE_URL", "SUPABASE_ANON_KEY", "USE_LOCAL_DB", "STORAGE_DRIVER", "ENVIRONMENT", "SUPABASE_JWT_SECRET", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
}

func TestValidateEnumeratesMissingSupabaseVars(t *testing.T) {
	clearPlatformEnv(t)

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Equal(t, "missing Supabase configuration: SUPABASE_URL, SUPABASE_ANON_KEY", err.Error())

	t.Setenv("SUPABASE_URL", "https://demo.supabase.co")
	err = LoadConfig().Validate()
	require.Error(t, err)
	assert.Equal(t, "missing Supabase configuration: SUPABASE_ANON_KEY", err.Error())

	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	err = LoadConfig().Validate()
	require.Error(t, err)
	assert.Equal(t, "missing Supabase configuration: SUPABASE_URL", err.Error())
}

func TestValidateRejectsRelativeSupabaseURL(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("SUPABASE_URL", "demo.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute http(s) URL")
}

func TestValidateAcceptsCompleteSupabaseConfig(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("SUPABASE_URL", " https://demo.supabase.co/ ")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://demo.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "supabase", cfg.StorageDriver)
}

func TestLocalModeSkipsSupabaseVars(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("USE_LOCAL_DB", "true")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "local", cfg.StorageDriver)
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("USE_LOCAL_DB", "true")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET")

	t.Setenv("SUPABASE_JWT_SECRET", "s3cret")
	assert.NoError(t, LoadConfig().Validate())
}
