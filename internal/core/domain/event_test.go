package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeKind_IsValid(t *testing.T) {
	tests := []struct {
		kind  ChangeKind
		valid bool
	}{
		{ChangeCreated, true},
		{ChangeModified, true},
		{ChangeRemoved, true},
		{ChangeKind("renamed"), false},
		{ChangeKind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.kind.IsValid())
		})
	}
}

func TestNormalisePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.md", "a.md"},
		{"./a.md", "a.md"},
		{"/notes/a.md", "notes/a.md"},
		{`notes\sub\a.md`, "notes/sub/a.md"},
		{"notes//sub/../a.md", "notes/a.md"},
		{"../../a.md", "a.md"},
		{"", ""},
		{".", ""},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalisePath(tt.in))
		})
	}
}
