package config

import (
	"os"
	"path/filepath"
	"testing"

	"volfs/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
fsname: vm-disk
allow_other: true
multithread: true
log_level: debug
max_readahead: 131072
alignment: 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "vm-disk", cfg.FSName)
	assert.Equal(t, "volfs", cfg.Subtype, "unset fields keep their defaults")
	assert.True(t, cfg.AllowOther)
	assert.True(t, cfg.Multithread)
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, uint32(131072), cfg.MaxReadahead)
	assert.Equal(t, 512, cfg.Alignment)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, level)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "fs_name: typo\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"VOLFS_FSNAME":            "from-env",
		"VOLFS_READ_ONLY":         "true",
		"VOLFS_BUFFERED_FALLBACK": "1",
		"VOLFS_MAX_READAHEAD":     "65536",
		"VOLFS_ALIGNMENT":         "4096",
		"VOLFS_LOG_LEVEL":         "trace",
		"UNRELATED":               "ignored",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.FSName)
	assert.True(t, cfg.ReadOnly)
	assert.True(t, cfg.BufferedFallback)
	assert.False(t, cfg.AllowOther)
	assert.Equal(t, uint32(65536), cfg.MaxReadahead)
	assert.Equal(t, 4096, cfg.Alignment)
	assert.Equal(t, "trace", cfg.LogLevel)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"bool":      {"VOLFS_ALLOW_OTHER": "maybe"},
		"readahead": {"VOLFS_MAX_READAHEAD": "-1"},
		"alignment": {"VOLFS_ALIGNMENT": "big"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Default().ApplyEnv(envMap(vars)))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "explicit alignment", mutate: func(c *Config) { c.Alignment = 4096 }},
		{name: "empty fsname", mutate: func(c *Config) { c.FSName = " " }, wantErr: true},
		{name: "odd alignment", mutate: func(c *Config) { c.Alignment = 1000 }, wantErr: true},
		{name: "negative alignment", mutate: func(c *Config) { c.Alignment = -512 }, wantErr: true},
		{name: "unknown level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
