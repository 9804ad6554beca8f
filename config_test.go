package corun

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseProcessorConfig(t *testing.T) {
	r := require.New(t)

	cfg, err := ParseProcessorConfig([]byte(`
name: db-pool
workers: 8
blocking_limit: 32
queue_warn_size: 1000
shutdown_timeout: 5s
`))
	r.NoError(err)
	r.Equal("db-pool", cfg.Name)
	r.Equal(8, cfg.Workers)
	r.Equal(32, cfg.BlockingLimit)
	r.Equal(1000, cfg.QueueWarnSize)
	r.Equal(5*time.Second, cfg.ShutdownTimeout.Duration)
}

func TestParseProcessorConfigDefaults(t *testing.T) {
	r := require.New(t)

	cfg, err := ParseProcessorConfig([]byte(``))
	r.NoError(err)

	cfg = cfg.withDefaults()
	r.Equal("main", cfg.Name)
	r.Equal(runtime.GOMAXPROCS(0), cfg.Workers)
	r.Equal(64, cfg.BlockingLimit)
	r.Zero(cfg.ShutdownTimeout.Duration)
}

func TestParseProcessorConfigRejectsUnknownFields(t *testing.T) {
	_, err := ParseProcessorConfig([]byte(`wrokers: 8`))
	require.Error(t, err)
}

func TestParseProcessorConfigRejectsBadDuration(t *testing.T) {
	r := require.New(t)

	_, err := ParseProcessorConfig([]byte(`shutdown_timeout: soon`))
	r.Error(err)

	_, err = ParseProcessorConfig([]byte(`shutdown_timeout: -5s`))
	r.Error(err)
}

func TestParseProcessorConfigRejectsNegativeWorkers(t *testing.T) {
	_, err := ParseProcessorConfig([]byte(`workers: -2`))
	require.Error(t, err)
}

func TestLoadProcessorConfig(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "processor.yaml")
	r.NoError(os.WriteFile(path, []byte("name: loaded\nworkers: 2\n"), 0o644))

	cfg, err := LoadProcessorConfig(path)
	r.NoError(err)
	r.Equal("loaded", cfg.Name)
	r.Equal(2, cfg.Workers)

	_, err = LoadProcessorConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	r.Error(err)
}

func TestDurationMarshalYAML(t *testing.T) {
	r := require.New(t)

	d := Duration{Duration: 1500 * time.Millisecond}
	v, err := d.MarshalYAML()
	r.NoError(err)
	r.Equal("1.5s", v)
}
