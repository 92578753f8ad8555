package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, time.Minute, cfg.Cache.LocalTTL)
	assert.Equal(t, 15*time.Minute, cfg.Cache.SharedTTL)
	assert.Equal(t, 15*time.Minute, cfg.Refresh.Interval)
	assert.True(t, cfg.Recommend.ExcludePassedBy)
	assert.Contains(t, cfg.DB.DSN, "/pupmatch?parseTime=true")
	require.NoError(t, cfg.Validate())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("CACHE_LOCAL_TTL", "30s")
	t.Setenv("CACHE_SHARED_TTL", "10m")
	t.Setenv("RECOMMEND_EXCLUDE_PASSED_BY", "no")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MYSQL_DSN", "u:p@tcp(db:3306)/x")

	cfg := New()

	assert.Equal(t, 30*time.Second, cfg.Cache.LocalTTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.SharedTTL)
	assert.False(t, cfg.Recommend.ExcludePassedBy)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "u:p@tcp(db:3306)/x", cfg.DB.DSN)
}

func TestNew_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_LOCAL_TTL", "soon")
	t.Setenv("RECOMMEND_LIMIT", "many")

	cfg := New()

	assert.Equal(t, time.Minute, cfg.Cache.LocalTTL)
	assert.Equal(t, 20, cfg.Recommend.Limit)
}

func TestValidate_LocalTTLMustBeShorter(t *testing.T) {
	cfg := New()
	cfg.Cache.LocalTTL = 15 * time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be shorter")
}
