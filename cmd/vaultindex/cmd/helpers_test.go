package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateHome points user config and default logs at a temp directory.
func isolateHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

// newTestVault writes a small vault configured for offline embeddings
// and returns its root.
func newTestVault(t *testing.T) string {
	t.Helper()
	isolateHome(t)

	root := t.TempDir()
	notes := map[string]string{
		"infra/kubernetes.md":   "# Kubernetes Networking\n\nPods talk to services through kube-proxy and cluster DNS.",
		"cooking/bread.md":      "# Sourdough Bread\n\nFeed the starter, then fold the dough every thirty minutes.",
		"journal/2026-03-01.md": "# Journal\n\nWalked to the market and bought flour for the bread.",
	}
	for key, content := range notes {
		path := filepath.Join(root, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	writeVaultConfig(t, root, "")
	return root
}

// writeVaultConfig writes the vault config, with extra appended under the
// embeddings section.
func writeVaultConfig(t *testing.T, root, extraEmbeddings string) {
	t.Helper()
	cfg := "embeddings:\n  provider: static\n" + extraEmbeddings +
		"persistence:\n  backend: file\n  save_interval: -1s\n" +
		"logging:\n  file: " + filepath.Join(t.TempDir(), "test.log") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".vaultindex.yaml"), []byte(cfg), 0o644))
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
