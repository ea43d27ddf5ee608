package scanner

import (
	"path"
	"strings"
)

// DefaultExtensions are the document extensions indexed when none are
// configured.
var DefaultExtensions = []string{".md", ".markdown"}

// defaultExcludeDirs are never descended into.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.obsidian/**",
	"**/.trash/**",
	"**/.vaultindex/**",
}

// Filter decides which vault paths are documents. Paths are slash
// separated and relative to the vault root.
type Filter struct {
	extensions map[string]bool
	exclude    []string
}

// NewFilter creates a Filter. Extensions are matched case-insensitively;
// exclude patterns accept "dir/**", "**/name/**", "*.ext" and path.Match
// globs.
func NewFilter(extensions, exclude []string) *Filter {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	f := &Filter{
		extensions: make(map[string]bool, len(extensions)),
		exclude:    append([]string(nil), exclude...),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = true
	}
	return f
}

// SkipDir reports whether a directory should not be walked.
func (f *Filter) SkipDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	if strings.HasPrefix(path.Base(rel), ".") {
		return true
	}
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	for _, pattern := range f.exclude {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	return false
}

// Match reports whether rel names an indexable document.
func (f *Filter) Match(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	base := path.Base(rel)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !f.extensions[strings.ToLower(path.Ext(base))] {
		return false
	}

	// Any hidden or excluded ancestor excludes the file.
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if f.SkipDir(dir) {
			return false
		}
	}

	for _, pattern := range f.exclude {
		if matchFilePattern(base, rel, pattern) {
			return false
		}
	}
	return true
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(rel, pattern string) bool {
	// **/name/** matches any path segment
	if strings.HasPrefix(pattern, "**/") {
		name := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(rel, "/") {
			if part == name {
				return true
			}
		}
		return false
	}

	// dir/** matches the directory itself and everything under it
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return rel == prefix || strings.HasPrefix(rel, prefix+"/")
	}

	return rel == pattern || strings.HasPrefix(rel, pattern+"/")
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(base, rel, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		return strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/**")+"/")
	}

	if strings.HasPrefix(pattern, "**/") {
		return matchFilePattern(base, base, strings.TrimPrefix(pattern, "**/"))
	}

	if strings.Contains(pattern, "/") {
		ok, err := path.Match(pattern, rel)
		return err == nil && ok
	}

	ok, err := path.Match(pattern, base)
	return err == nil && ok
}
