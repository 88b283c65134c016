package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name string
		set  string
		want string
	}{
		{"default", "", "weaver version dev"},
		{"stamped", "1.4.0", "weaver version 1.4.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := version
			t.Cleanup(func() { version = prev })
			version = "dev"
			SetVersion(tt.set)

			// A nil runtime would fail the bootstrap, so this also proves
			// version skips it.
			out, err := execute(t, nil, "version")
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, runtime.Version())
		})
	}
}
