package mcp

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// Vault types reported by VaultDetector.
const (
	VaultObsidian = "obsidian"
	VaultLogseq   = "logseq"
	VaultMarkdown = "markdown"
)

// VaultDetector detects vault metadata from the tool directories note
// apps leave behind.
type VaultDetector struct {
	rootPath string
	logger   *slog.Logger
}

// NewVaultDetector creates a new vault detector.
func NewVaultDetector(rootPath string, logger *slog.Logger) *VaultDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &VaultDetector{rootPath: rootPath, logger: logger}
}

// Detect returns vault information detected from the vault directory.
// Detection order: .obsidian -> logseq/config.edn -> plain markdown.
func (d *VaultDetector) Detect() *VaultInfo {
	info := &VaultInfo{
		RootPath: d.rootPath,
		Name:     filepath.Base(d.rootPath),
		Type:     VaultMarkdown,
	}

	if d.isDir(".obsidian") {
		info.Type = VaultObsidian
		if theme := d.obsidianTheme(); theme != "" {
			d.logger.Debug("obsidian_vault_detected", slog.String("theme", theme))
		}
		return info
	}
	if d.isFile(filepath.Join("logseq", "config.edn")) {
		info.Type = VaultLogseq
	}
	return info
}

// obsidianTheme reads the configured theme from .obsidian/appearance.json.
func (d *VaultDetector) obsidianTheme() string {
	data, err := os.ReadFile(filepath.Join(d.rootPath, ".obsidian", "appearance.json"))
	if err != nil {
		return ""
	}
	var appearance struct {
		Theme string `json:"cssTheme"`
	}
	if err := json.Unmarshal(data, &appearance); err != nil {
		return ""
	}
	return appearance.Theme
}

func (d *VaultDetector) isDir(rel string) bool {
	info, err := os.Stat(filepath.Join(d.rootPath, rel))
	return err == nil && info.IsDir()
}

func (d *VaultDetector) isFile(rel string) bool {
	info, err := os.Stat(filepath.Join(d.rootPath, rel))
	return err == nil && !info.IsDir()
}
