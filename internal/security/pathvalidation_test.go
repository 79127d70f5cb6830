package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	safe := filepath.Join(tmp, "plots")
	outside := filepath.Join(tmp, "elsewhere")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(safe, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safe, "run.png"), false},
		{"nested new dir", filepath.Join(safe, "a", "b", "run.png"), false},
		{"dir itself", safe, false},
		{"dot dot", filepath.Join(safe, "..", "run.png"), true},
		{"sibling", filepath.Join(outside, "run.png"), true},
		{"through symlink", filepath.Join(safe, "link", "run.png"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePathWithinDirectory(tt.path, safe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	t.Parallel()

	a, b := t.TempDir(), t.TempDir()
	assert.NoError(t, ValidatePathWithinAllowedDirs(filepath.Join(b, "x.png"), []string{a, b}))
	assert.ErrorIs(t, ValidatePathWithinAllowedDirs("/etc/x.png", []string{a, b}), ErrPathEscape)
	assert.Error(t, ValidatePathWithinAllowedDirs(filepath.Join(a, "x.png"), nil))
}

func TestValidateOutputPath(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateOutputPath("trajectory.png"))
	assert.NoError(t, ValidateOutputPath(filepath.Join(os.TempDir(), "swervesim", "run.png")))
	assert.Error(t, ValidateOutputPath("/etc/swervesim.png"))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		in, want string
	}{
		{"circle-run.1", "circle-run.1"},
		{"bench run #3", "bench_run_3"},
		{"../../etc/passwd", "etc_passwd"},
		{"a__b", "a_b"},
		{"", "unknown"},
		{"///", "unknown"},
		{string(long), string(long[:128])},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}
