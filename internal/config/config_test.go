package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "HTTP_ADDR", "WORKER_PATH", "WORKER_ARGS", "WORKER_TIMEOUT", "ARTIFACT_KIND", "SCRAPE_MODE", "QUEUE_WAIT", "TASK_CONCURRENCY", "SUPABASE_STORAGE_BUCKET"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, 300*time.Second, cfg.WorkerTimeout)
	assert.Empty(t, cfg.WorkerArgs)
	assert.Equal(t, "delimited-file", cfg.ArtifactKind)
	assert.Equal(t, "sync", cfg.ScrapeMode)
	assert.Equal(t, 30*time.Minute, cfg.QueueWait)
	assert.Equal(t, 4, cfg.TaskConcurrency)
	assert.Empty(t, cfg.SupabaseBucket)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_PATH", "/usr/bin/python3")
	t.Setenv("WORKER_ARGS", "  ig.py   --headless ")
	t.Setenv("WORKER_TIMEOUT", "90s")
	t.Setenv("TASK_CONCURRENCY", "2")
	t.Setenv("SCRAPE_MODE", "async")
	t.Setenv("QUEUE_WAIT", "45m")

	cfg := Load()
	assert.Equal(t, "/usr/bin/python3", cfg.WorkerPath)
	assert.Equal(t, []string{"ig.py", "--headless"}, cfg.WorkerArgs)
	assert.Equal(t, 90*time.Second, cfg.WorkerTimeout)
	assert.Equal(t, 2, cfg.TaskConcurrency)
	assert.Equal(t, "async", cfg.ScrapeMode)
	assert.Equal(t, 45*time.Minute, cfg.QueueWait)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("X_TIMEOUT", "120")
	assert.Equal(t, 2*time.Minute, getenvDuration("X_TIMEOUT", time.Second))
	t.Setenv("X_TIMEOUT", "soon")
	assert.Equal(t, time.Second, getenvDuration("X_TIMEOUT", time.Second))
	t.Setenv("X_INT", "many")
	assert.Equal(t, 3, getenvInt("X_INT", 3))
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(f, []byte("SCRAPECTL_DOTENV_PROBE=from-file\nSCRAPECTL_DOTENV_KEEP=from-file\n"), 0o600))
	t.Setenv("SCRAPECTL_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("SCRAPECTL_DOTENV_PROBE") })

	require.NoError(t, LoadDotenv(f))
	assert.Equal(t, "from-file", os.Getenv("SCRAPECTL_DOTENV_PROBE"))
	assert.Equal(t, "from-env", os.Getenv("SCRAPECTL_DOTENV_KEEP"))

	require.NoError(t, LoadDotenv(filepath.Join(dir, "missing.env")))
}
