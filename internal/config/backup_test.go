package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup_MissingFile_ReturnsEmpty(t *testing.T) {
	// Given: no config file
	path := filepath.Join(t.TempDir(), "config.yaml")

	// When: backing up
	backupPath, err := Backup(path)

	// Then: nothing to do
	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

func TestBackup_CopiesContent(t *testing.T) {
	// Given: an existing config
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\nembeddings:\n  provider: ollama\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	// When: backing up
	backupPath, err := Backup(path)

	// Then: the backup holds the same bytes
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)
	got, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestBackup_KeepsNewestMaxBackups(t *testing.T) {
	// Given: a config backed up more times than MaxBackups
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0644))

	var newest string
	for i := 0; i < MaxBackups+2; i++ {
		p, err := Backup(path)
		require.NoError(t, err)
		newest = p
	}

	// Then: only MaxBackups remain, newest first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
	assert.Equal(t, newest, backups[0])
}

func TestListBackups_MissingDir_ReturnsNil(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Nil(t, backups)
}

func TestWriteWithBackup_RoundTrips(t *testing.T) {
	// Given: an existing config in a fresh directory
	path := filepath.Join(t.TempDir(), "vaultindex", "config.yaml")
	first := NewConfig()
	_, err := first.WriteWithBackup(path)
	require.NoError(t, err)

	// When: a changed config is written over it
	second := NewConfig()
	second.Queue.Concurrency = 7
	backupPath, err := second.WriteWithBackup(path)

	// Then: the previous file was backed up and the new one is readable
	require.NoError(t, err)
	assert.NotEmpty(t, backupPath)

	var parsed Config
	require.NoError(t, readYAML(path, &parsed))
	assert.Equal(t, 7, parsed.Queue.Concurrency)
	assert.Equal(t, second.Watch.Debounce, parsed.Watch.Debounce)
}
