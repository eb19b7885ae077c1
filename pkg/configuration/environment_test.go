package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_LoadsExistingFilesOnly(t *testing.T) {
	tmp := t.TempDir()
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "ROSTER_SYNC_TEST_ENV_LOAD=ok\n")
	chdir(t, tmp)

	_ = os.Unsetenv("ROSTER_SYNC_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("ROSTER_SYNC_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("ROSTER_SYNC_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	chdir(t, t.TempDir())

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestLoad_ParsesImportOptions(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ROSTER_IMPORT_CONCURRENCY", "4")
	t.Setenv("ROSTER_IMPORT_CALL_TIMEOUT", "3s")
	t.Setenv("ROSTER_IMPORT_STRICT_LEVELS", "true")
	t.Setenv("ROSTER_STORE_URL", "http://store.internal:9000")
	t.Setenv("PORT", "4100")

	c, err := Load([]string{".env"})
	require.NoError(t, err)
	t.Cleanup(c.Unload)

	require.Equal(t, 4, c.Import.Concurrency)
	require.Equal(t, 3*time.Second, c.Import.CallTimeout)
	require.True(t, c.Import.StrictLevels)
	require.Equal(t, "http://store.internal:9000", c.Store.BaseURL)
	require.Equal(t, "localhost:4100", c.SocketAddress)
	require.NotNil(t, c.Logger())
}

func TestLoad_RejectsInvalidConcurrency(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ROSTER_IMPORT_CONCURRENCY", "0")

	_, err := Load([]string{".env"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ROSTER_IMPORT_CONCURRENCY")
}

func TestStoreOptions_Validate(t *testing.T) {
	opts := StoreOptions{BaseURL: "http://x", PageSize: 0, Timeout: time.Second}
	require.Error(t, opts.Validate())

	opts.PageSize = 100
	require.NoError(t, opts.Validate())

	opts.BaseURL = " "
	require.Error(t, opts.Validate())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestLoad_RateLimitAndCors(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	c, err := Load([]string{".env"})
	require.NoError(t, err)
	t.Cleanup(c.Unload)
	require.True(t, c.RateLimit.Enabled)
	require.Equal(t, int64(12), c.RateLimit.PerMinute)
	require.Equal(t, "memory", c.RateLimit.Storage)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.CorsOrigins)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = Load([]string{".env"})
	require.Error(t, err)
}
