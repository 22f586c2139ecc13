package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 1200, cfg.DefaultRating)
	assert.Equal(t, 400, cfg.MaxRatingChange)
	assert.Equal(t, 72*time.Hour, cfg.JWTExp)
	assert.Equal(t, time.Hour, cfg.ReadyWindow())
	assert.Contains(t, cfg.DBConnStr, "dbname=tle_zone_contests")
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DEFAULT_RATING", "1500")
	t.Setenv("LOCK_TTL_SECONDS", "5")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 1500, cfg.DefaultRating)
	assert.Equal(t, 5*time.Second, cfg.LockTTL())
	assert.Equal(t, []byte("s3cret"), cfg.JWTKey)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown driver", key: "STORAGE_DRIVER", val: "mongo"},
		{name: "zero rating cap", key: "MAX_RATING_CHANGE", val: "0"},
		{name: "negative default rating", key: "DEFAULT_RATING", val: "-1"},
		{name: "non numeric", key: "REDIS_DB", val: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
