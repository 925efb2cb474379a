package imageprocessor

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// solidMat returns a rows x cols BGR image filled with value.
func solidMat(rows, cols int, value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), rows, cols, gocv.MatTypeCV8UC3)
}

// halfWhiteMat returns a black image whose left half is white.
func halfWhiteMat(rows, cols int) gocv.Mat {
	m := solidMat(rows, cols, 0)
	roi := m.Region(image.Rect(0, 0, cols/2, rows))
	roi.SetTo(gocv.NewScalar(255, 255, 255, 0))
	roi.Close()
	return m
}

// writeSolid writes a solid image to dir/name and returns its path.
func writeSolid(t *testing.T, dir, name string, rows, cols int, value float64) string {
	t.Helper()
	m := solidMat(rows, cols, value)
	defer m.Close()
	path := filepath.Join(dir, name)
	require.True(t, gocv.IMWrite(path, m), "writing %s", path)
	return path
}

func normalizeSolid(t *testing.T, rows, cols int, value float64, opts Options) *NormalizedImage {
	t.Helper()
	raw := solidMat(rows, cols, value)
	defer raw.Close()
	img, err := Normalize(raw, opts)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img
}

// pixel returns the BGR triple at (row, col).
func pixel(img *NormalizedImage, row, col int) [3]byte {
	data := img.Bytes()
	i := (row*img.Width() + col) * 3
	return [3]byte{data[i], data[i+1], data[i+2]}
}
