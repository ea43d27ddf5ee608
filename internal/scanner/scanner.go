// Package scanner discovers and reads the markdown documents of a vault.
// It is the content collaborator of the indexing pipeline: documents are
// addressed by slash-separated keys relative to the vault root.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
)

// DefaultMaxFileSize is the default maximum document size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// Options configures a Scanner.
type Options struct {
	// Root is the vault directory.
	Root string

	// Extensions lists indexable extensions (default: .md, .markdown).
	Extensions []string

	// ExcludePatterns are additional exclusions relative to Root.
	ExcludePatterns []string

	// MaxFileSize skips larger documents (0 = 10MB default).
	MaxFileSize int64
}

// Scanner lists, stats and reads vault documents.
type Scanner struct {
	root        string
	filter      *Filter
	maxFileSize int64
}

// New creates a Scanner for opts.Root.
func New(opts Options) (*Scanner, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat vault directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	return &Scanner{
		root:        absRoot,
		filter:      NewFilter(opts.Extensions, opts.ExcludePatterns),
		maxFileSize: maxFileSize,
	}, nil
}

// Root returns the absolute vault directory.
func (s *Scanner) Root() string {
	return s.root
}

// Filter returns the document filter shared with the watcher.
func (s *Scanner) Filter() *Filter {
	return s.filter
}

// KeyFor converts an absolute path under the vault to a document key.
func (s *Scanner) KeyFor(absPath string) (string, bool) {
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// pathFor resolves key to an absolute path, refusing keys that escape Root.
func (s *Scanner) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", verrors.New(verrors.ErrCodeInvalidInput, fmt.Sprintf("invalid document key %q", key), nil)
	}
	return filepath.Join(s.root, clean), nil
}

// List walks the vault and returns every indexable document, sorted by key.
func (s *Scanner) List(ctx context.Context) ([]fingerprint.Doc, error) {
	var docs []fingerprint.Doc

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // Skip entries we can't access
		}

		rel, ok := s.KeyFor(path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if s.filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !s.filter.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > s.maxFileSize {
			return nil
		}

		docs = append(docs, fingerprint.Doc{Key: rel, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// Stat returns the fingerprint inputs of a document.
func (s *Scanner) Stat(_ context.Context, key string) (fingerprint.Doc, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return fingerprint.Doc{}, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return fingerprint.Doc{}, s.classifyFSError(key, err)
	}
	if info.IsDir() {
		return fingerprint.Doc{}, verrors.New(verrors.ErrCodeDocumentNotFound, fmt.Sprintf("%s is a directory", key), nil)
	}

	return fingerprint.Doc{Key: key, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Read returns the raw content of a document.
func (s *Scanner) Read(ctx context.Context, key string) ([]byte, error) {
	doc, err := s.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if doc.Size > s.maxFileSize {
		return nil, verrors.New(verrors.ErrCodeInvalidInput,
			fmt.Sprintf("%s exceeds max size (%d > %d bytes)", key, doc.Size, s.maxFileSize), nil)
	}

	p, _ := s.pathFor(key)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, s.classifyFSError(key, err)
	}
	return data, nil
}

// classifyFSError maps missing documents to a terminal error and every
// other read failure to a retryable one.
func (s *Scanner) classifyFSError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return verrors.New(verrors.ErrCodeDocumentNotFound, fmt.Sprintf("document %s not found", key), err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return verrors.Terminal(verrors.ErrCodeReadFailed, fmt.Sprintf("read %s: permission denied", key), err)
	}
	return verrors.New(verrors.ErrCodeReadFailed, fmt.Sprintf("read %s", key), err)
}
