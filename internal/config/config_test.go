package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ourdates")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "auto", cfg.RealtimeSource)
	assert.Equal(t, 800*time.Millisecond, cfg.WorkerPollInterval)
	assert.Equal(t, "date-photos", cfg.S3.Bucket)
	assert.Equal(t, cfg.S3.Endpoint, cfg.S3.PublicBaseURL)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_CORSOriginsTrimmed(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ourdates")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidRealtimeSource(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ourdates")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REALTIME_SOURCE", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadWatch(t *testing.T) {
	t.Setenv("OURDATES_TOKEN", "tok")

	cfg, err := LoadWatch()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.ResyncInterval)
}
