package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "decapod", cfg.Name)
	require.Equal(t, 60, cfg.Validate.TimeoutSeconds)
	require.Contains(t, cfg.Session.ProtectedBranches, "main")
	require.True(t, cfg.Workunit.RequireManifestForPublish)
}

func TestConfigSaveLoad(t *testing.T) {
	t.Setenv("DECAPOD_VALIDATE_TIMEOUT_SECS", "")
	t.Setenv("DECAPOD_VALIDATE_SKIP_GIT_GATES", "")
	t.Setenv("DECAPOD_COMMIT_OFTEN_MAX_DIRTY_FILES", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Validate.CommitOftenMaxDirty = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, loaded.Validate.CommitOftenMaxDirty)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "decapod", cfg.Name)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DECAPOD_VALIDATE_TIMEOUT_SECS", "120")
	t.Setenv("DECAPOD_VALIDATE_SKIP_GIT_GATES", "1")
	t.Setenv("DECAPOD_COMMIT_OFTEN_MAX_DIRTY_FILES", "7")

	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, 120, cfg.Validate.TimeoutSeconds)
	require.True(t, cfg.Validate.SkipGitGates)
	require.Equal(t, 7, cfg.Validate.CommitOftenMaxDirty)
}

func TestValidateCatchesInvertedTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.BusyTimeout = "90s"
	cfg.Validate.TimeoutSeconds = 60
	require.Error(t, cfg.Check())
}

func TestProtectedBranchSet(t *testing.T) {
	cfg := DefaultConfig()
	set := cfg.ProtectedBranchSet()
	require.True(t, set["main"])
	require.True(t, set["master"])
	require.False(t, set["feature/x"])
}

func TestGetBusyTimeoutFallsBackOnBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.BusyTimeout = "not-a-duration"
	require.Equal(t, cfg.GetBusyTimeout().String(), "5s")
}

