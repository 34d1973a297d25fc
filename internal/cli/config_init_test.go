package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/uploadwiz/internal/cli"
	"github.com/rshade/uploadwiz/internal/config"
)

func TestConfigInit_InsideProject(t *testing.T) {
	isolate(t)
	projectRoot := t.TempDir()
	t.Setenv(config.EnvProjectDir, projectRoot)

	out := mustExecute(t, "config", "init", "--bucket", "media")
	assert.Contains(t, out, "Configuration initialized at")
	assert.Contains(t, out, "Created .gitignore")

	configPath := filepath.Join(projectRoot, ".uploadwiz", "config.yaml")
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "media", cfg.Stash.Bucket)

	data, err := os.ReadFile(filepath.Join(projectRoot, ".uploadwiz", ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, config.GitignoreContent(), string(data))
}

func TestConfigInit_ExistingGitignorePreserved(t *testing.T) {
	isolate(t)
	projectRoot := t.TempDir()
	projectDir := filepath.Join(projectRoot, ".uploadwiz")
	require.NoError(t, os.MkdirAll(projectDir, 0o750))

	custom := "# mine\n*.secret\n"
	gitignorePath := filepath.Join(projectDir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte(custom), 0o644))
	t.Setenv(config.EnvProjectDir, projectRoot)

	mustExecute(t, "config", "init", "--force")

	data, err := os.ReadFile(gitignorePath)
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestConfigInit_GlobalFlag(t *testing.T) {
	home := isolate(t)
	projectRoot := t.TempDir()
	t.Setenv(config.EnvProjectDir, projectRoot)

	out := mustExecute(t, "config", "init", "--global", "--backend", "minio")
	assert.Contains(t, out, "Configuration initialized successfully")

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "minio", cfg.Stash.Backend)

	_, statErr := os.Stat(filepath.Join(projectRoot, ".uploadwiz", "config.yaml"))
	assert.True(t, os.IsNotExist(statErr), "no project config with --global")
}

func TestConfigInit_OutsideProject(t *testing.T) {
	home := isolate(t)

	// Run the subcommand alone so project discovery does not walk up from the
	// test's working directory.
	var buf bytes.Buffer
	cmd := cli.NewConfigInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Configuration initialized successfully")

	_, err := os.Stat(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	isolate(t)
	projectRoot := t.TempDir()
	projectDir := filepath.Join(projectRoot, ".uploadwiz")
	require.NoError(t, os.MkdirAll(projectDir, 0o750))
	configPath := filepath.Join(projectDir, "config.yaml")
	original := "upload:\n  max_concurrent: 9\n"
	require.NoError(t, os.WriteFile(configPath, []byte(original), 0o600))
	t.Setenv(config.EnvProjectDir, projectRoot)

	_, err := execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	mustExecute(t, "config", "init", "--force")
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotEqual(t, original, string(data))
	assert.Contains(t, string(data), "max_concurrent: 3")
}
