package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/uploadwiz/internal/cli"
)

func TestNewRootCmd(t *testing.T) {
	root := cli.NewRootCmd("1.2.3")
	assert.Equal(t, "uploadwiz", root.Use)
	assert.Equal(t, "1.2.3", root.Version)

	for _, path := range [][]string{
		{"upload"},
		{"stash", "list"},
		{"stash", "show"},
		{"stash", "prune"},
		{"config", "init"},
		{"config", "validate"},
		{"config", "show"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
	assert.NotNil(t, root.PersistentFlags().Lookup("project-dir"))
}

func TestRootCmd_Version(t *testing.T) {
	isolate(t)
	out := mustExecute(t, "--version")
	assert.Contains(t, out, "1.2.3")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	isolate(t)
	_, err := execute(t, "download")
	require.Error(t, err)
}

func TestRootCmd_UploadRequiresSource(t *testing.T) {
	isolate(t)
	_, err := execute(t, "upload")
	require.Error(t, err)
}
