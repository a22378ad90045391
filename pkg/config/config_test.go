package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Cache.Size)
	assert.Equal(t, 300, cfg.Cache.ValiditySeconds)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Validity())
	assert.Positive(t, cfg.Server.Workers)
	assert.True(t, cfg.HTTP.CircuitBreakerEnabled)
}

func TestValidateFailures(t *testing.T) {
	cases := map[string]func(*Config){
		"zero workers":           func(c *Config) { c.Server.Workers = 0 },
		"negative cache size":    func(c *Config) { c.Cache.Size = -1 },
		"zero request timeout":   func(c *Config) { c.HTTP.RequestTimeout = 0 },
		"zero failure threshold": func(c *Config) { c.HTTP.FailureThreshold = 0 },
		"zero success threshold": func(c *Config) { c.HTTP.SuccessThreshold = 0 },
		"sampling rate too high": func(c *Config) { c.Observability.SamplingRate = 1.5 },
		"negative sampling rate": func(c *Config) { c.Observability.SamplingRate = -0.1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBreakerThresholdsIgnoredWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.HTTP.CircuitBreakerEnabled = false
	cfg.HTTP.FailureThreshold = 0
	cfg.HTTP.SuccessThreshold = 0

	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	doc := `
server:
  workers: 4
cache:
  size: 50
  validity: 120
books:
  tms_directory: /etc/tileserv/tms
  inspire: true
`
	path := filepath.Join(t.TempDir(), "tileserv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, 50, cfg.Cache.Size)
	assert.Equal(t, 2*time.Minute, cfg.Cache.Validity())
	assert.Equal(t, "/etc/tileserv/tms", cfg.Books.TMSDirectory)
	assert.True(t, cfg.Books.Inspire)

	// Unset sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
}

func TestLoadFileEnvSubstitution(t *testing.T) {
	t.Setenv("TILESERV_TEST_REGION", "eu-west-3")

	doc := `
storage:
  s3_region: ${TILESERV_TEST_REGION}
`
	path := filepath.Join(t.TempDir(), "tileserv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-3", cfg.Storage.S3Region)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tileserv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  workers: 0\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Cache.Size = 7

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Cache.Size)
}
