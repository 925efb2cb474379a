package scanner

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"imagematcher/collection"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ collection.Observer = (*ProgressTracker)(nil)

func newFs(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0o644))
	}
	return fs
}

func TestExpandPatternSorted(t *testing.T) {
	fs := newFs(t, "/thumbs/c.png", "/thumbs/a.png", "/thumbs/b.jpg", "/full/a.png")

	got, err := ExpandPattern(fs, "/thumbs/*.png")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.FromSlash("/thumbs/a.png"), filepath.FromSlash("/thumbs/c.png")}, got)
}

func TestExpandPatternNoMatch(t *testing.T) {
	fs := newFs(t, "/thumbs/a.png")

	got, err := ExpandPattern(fs, "/missing/*.png")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpandPatternBadPattern(t *testing.T) {
	_, err := ExpandPattern(newFs(t, "/thumbs/a.png"), "/thumbs/[.png")
	assert.ErrorIs(t, err, filepath.ErrBadPattern)
}

func TestExpandPatterns(t *testing.T) {
	fs := newFs(t, "/a/1.png", "/a/2.png", "/b/1.png")

	got, err := ExpandPatterns(fs, "/a/*.png", "/b/*.png", "/c/*")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 2)
	assert.Len(t, got[1], 1)
	assert.Empty(t, got[2])
}

func TestProgressTrackerCounts(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker("references", &out, true)

	tracker.Start(3)
	tracker.Loaded("a.png", nil)
	tracker.Loaded("b.png", errors.New("corrupt"))
	tracker.Loaded("c.nef", nil)
	tracker.Finish()

	s := tracker.Summary()
	assert.Equal(t, "references", s.Label)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Raw)
	assert.Empty(t, out.String(), "no bar outside a terminal")
}

func TestProgressTrackerDrawsBar(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker("candidates", &out, true)
	tracker.interactive = true

	tracker.Start(2)
	tracker.Loaded("a.png", nil)
	tracker.Loaded("b.png", nil)
	tracker.Finish()

	assert.Contains(t, out.String(), "candidates")
	assert.Equal(t, 2, tracker.Summary().Processed)
}
