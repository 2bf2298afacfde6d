package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, 4096, cfg.Pager.PageSize)
	require.Equal(t, 16, cfg.Pager.CacheSize)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yarrd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/yarrd\npager:\n  cache_size: 32\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/yarrd", cfg.DataDir)
	require.Equal(t, 32, cfg.Pager.CacheSize)
	require.Equal(t, 4096, cfg.Pager.PageSize)
}
