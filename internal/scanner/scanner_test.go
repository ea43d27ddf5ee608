package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestScanner_List_FindsMarkdownOnly(t *testing.T) {
	// Given: a vault with notes, hidden dirs and other files
	root := t.TempDir()
	writeFile(t, root, "b.md", "# B")
	writeFile(t, root, "a.md", "# A")
	writeFile(t, root, "projects/plan.markdown", "plan")
	writeFile(t, root, "image.png", "png")
	writeFile(t, root, ".obsidian/workspace.md", "hidden")
	writeFile(t, root, ".hidden.md", "hidden")
	writeFile(t, root, "archive/old.md", "old")

	s, err := New(Options{Root: root, ExcludePatterns: []string{"archive/**"}})
	require.NoError(t, err)

	// When: listing documents
	docs, err := s.List(context.Background())
	require.NoError(t, err)

	// Then: only indexable notes come back, sorted by key
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"a.md", "b.md", "projects/plan.markdown"}, keys)
	assert.Equal(t, int64(3), docs[0].Size)
}

func TestScanner_StatAndRead(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes/budget.md", "# Budget\n\nQ3 report")

	s, err := New(Options{Root: root})
	require.NoError(t, err)

	doc, err := s.Stat(context.Background(), "notes/budget.md")
	require.NoError(t, err)
	assert.Equal(t, "notes/budget.md", doc.Key)

	data, err := s.Read(context.Background(), "notes/budget.md")
	require.NoError(t, err)
	assert.Equal(t, "# Budget\n\nQ3 report", string(data))
}

func TestScanner_Read_MissingDocumentIsTerminal(t *testing.T) {
	s, err := New(Options{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "gone.md")

	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeDocumentNotFound, verrors.GetCode(err))
	assert.Equal(t, verrors.ClassTerminal, verrors.Classify(err))
}

func TestScanner_Read_RejectsEscapingKeys(t *testing.T) {
	s, err := New(Options{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "../etc/passwd")

	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeInvalidInput, verrors.GetCode(err))
}

func TestScanner_Read_TooLarge(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.md", "0123456789")

	s, err := New(Options{Root: root, MaxFileSize: 4})
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "big.md")
	assert.Equal(t, verrors.ClassTerminal, verrors.Classify(err))

	docs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestScanner_KeyFor(t *testing.T) {
	root := t.TempDir()
	s, err := New(Options{Root: root})
	require.NoError(t, err)

	key, ok := s.KeyFor(filepath.Join(s.Root(), "a", "b.md"))
	assert.True(t, ok)
	assert.Equal(t, "a/b.md", key)

	_, ok = s.KeyFor(filepath.Dir(s.Root()))
	assert.False(t, ok)
}

func TestNew_RejectsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.md", "x")

	_, err := New(Options{Root: filepath.Join(root, "file.md")})
	assert.Error(t, err)
}

func TestFilter_Match(t *testing.T) {
	f := NewFilter([]string{"md"}, []string{"templates/**", "*.draft.md", "**/private/**"})

	tests := []struct {
		rel  string
		want bool
	}{
		{"note.md", true},
		{"Note.MD", true},
		{"dir/note.md", true},
		{"note.txt", false},
		{".hidden.md", false},
		{".obsidian/config.md", false},
		{"templates/daily.md", false},
		{"ideas.draft.md", false},
		{"work/private/salary.md", false},
		{"node_modules/pkg/readme.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(tt.rel))
		})
	}
}
