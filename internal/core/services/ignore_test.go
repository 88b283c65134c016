package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
)

func TestPathFilter_Ignored(t *testing.T) {
	f, err := NewPathFilter(domain.DefaultIgnorePatterns)
	require.NoError(t, err)

	tests := []struct {
		path    string
		ignored bool
	}{
		{"a.md", false},
		{"notes/a.md", false},
		{".obsidian/workspace.json", true},
		{".git/HEAD", true},
		{"notes/.hidden", true},
		{".DS_Store", true},
		{"notes/a.md~", true},
		{"notes/.a.md.swp", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignored, f.Ignored(tt.path))
		})
	}
}

func TestPathFilter_Invalid(t *testing.T) {
	_, err := NewPathFilter([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestPathFilter_Nil(t *testing.T) {
	var f *PathFilter
	assert.False(t, f.Ignored(".git/HEAD"))
}

func TestPathFilter_IgnoredDir(t *testing.T) {
	f, err := NewPathFilter([]string{".obsidian/**", "archive/*/**", "**/*.swp"})
	require.NoError(t, err)

	assert.True(t, f.IgnoredDir(".obsidian"))
	assert.True(t, f.IgnoredDir("archive/2024"))
	assert.False(t, f.IgnoredDir("archive"))
	assert.False(t, f.IgnoredDir("notes"))
	assert.False(t, f.IgnoredDir(""))

	var none *PathFilter
	assert.False(t, none.IgnoredDir(".obsidian"))
}
