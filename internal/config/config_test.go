package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, "Textpile", cfg.InstanceName)
	require.Equal(t, "the community", cfg.CommunityName)
	require.Equal(t, "1month", cfg.DefaultRetention)
	require.Equal(t, "badger", cfg.Store.Backend)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("INSTANCE_NAME", "Pile o' Text")
	t.Setenv("ADD_POST_PASSWORD", "letmein")
	t.Setenv("ADMIN_TOKEN", "root")
	t.Setenv("DEFAULT_RETENTION", "1week")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "Pile o' Text", cfg.InstanceName)
	require.Equal(t, "letmein", cfg.SubmitToken)
	require.Equal(t, "root", cfg.AdminToken)
	require.Equal(t, "memory", cfg.Store.Backend)

	d, err := cfg.RetentionDuration()
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, d)
}

func TestLoadYAMLFileWithEnvOnTop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textpile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instance_name: "From File"
community_name: "file people"
store:
  backend: sqlite
  sqlite_path: /tmp/test.db
`), 0o644))

	t.Setenv("TEXTPILE_CONFIG", path)
	t.Setenv("COMMUNITY_NAME", "env people")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "From File", cfg.InstanceName)
	// Env wins over the file.
	require.Equal(t, "env people", cfg.CommunityName)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "/tmp/test.db", cfg.Store.SQLitePath)
}

func TestLoadRejectsBadRetention(t *testing.T) {
	t.Setenv("DEFAULT_RETENTION", "fortnight")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")
	_, err := Load()
	require.Error(t, err)
}

func TestRetentionDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1week":   7 * 24 * time.Hour,
		"1month":  30 * 24 * time.Hour,
		"3months": 90 * 24 * time.Hour,
		"6months": 180 * 24 * time.Hour,
		"1year":   365 * 24 * time.Hour,
		"forever": 0,
		"":        0,
	}
	for in, want := range cases {
		cfg := &Config{DefaultRetention: in}
		d, err := cfg.RetentionDuration()
		require.NoError(t, err, in)
		require.Equal(t, want, d, in)
	}
}
