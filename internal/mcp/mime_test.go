package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes/today.md", "text/markdown"},
		{"notes/TODAY.MD", "text/markdown"},
		{"archive/old.markdown", "text/markdown"},
		{"boards/plan.canvas", "application/json"},
		{"agenda.org", "text/x-org"},
		{"data/people.csv", "text/csv"},
		{"README", "text/plain"},
		{"image.png", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeTypeForPath(tt.path))
		})
	}
}
