package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root := GetRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, GetVersion())
}

func TestRootHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["tools"])
	assert.True(t, names["version"])
}

func TestToolsCommand_ListsBuiltins(t *testing.T) {
	dir := t.TempDir()
	manifestDir := filepath.Join(dir, "tools.d")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))

	cfgPath := filepath.Join(dir, "webtools.json")
	raw, err := json.Marshal(map[string]any{
		"tools": map[string]any{"manifest_dir": manifestDir, "watch": false},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfgPath, raw, 0o644))

	out, err := execute(t, "tools", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "password_generator")
	assert.Contains(t, out, "token_generator")
	assert.Contains(t, out, "wallet_generator")
	assert.Contains(t, out, "octra_client")
	assert.NotContains(t, out, "Rejected")
}

func TestToolsCommand_ReportsManifestRejections(t *testing.T) {
	dir := t.TempDir()
	manifestDir := filepath.Join(dir, "tools.d")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(manifestDir, "ghost.json"), []byte(`{
	  "name": "ghost_tool",
	  "entrypoint": "no_such_entrypoint"
	}`), 0o644))

	cfgPath := filepath.Join(dir, "webtools.json")
	raw, err := json.Marshal(map[string]any{
		"tools": map[string]any{"manifest_dir": manifestDir, "watch": false},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfgPath, raw, 0o644))

	out, err := execute(t, "tools", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Rejected (1)")
	assert.Contains(t, out, "ghost_tool")
}
