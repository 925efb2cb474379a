package imageprocessor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestSizeModeValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mode    SizeMode
		wantErr bool
	}{
		{name: "exact", mode: Exact(32, 24)},
		{name: "fit", mode: AspectFit(64)},
		{name: "zero width", mode: Exact(0, 24), wantErr: true},
		{name: "negative height", mode: Exact(32, -1), wantErr: true},
		{name: "zero side", mode: AspectFit(0), wantErr: true},
		{name: "unset", mode: SizeMode{}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mode.Validate()
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var sizeErr *InvalidSizeError
			assert.True(t, errors.As(err, &sizeErr))
			assert.ErrorIs(t, err, ErrInvalidSize)
		})
	}
}

func TestFitDimensions(t *testing.T) {
	testCases := []struct {
		w, h, side   int
		wantW, wantH int
	}{
		{w: 100, h: 50, side: 10, wantW: 10, wantH: 5},
		{w: 50, h: 100, side: 10, wantW: 5, wantH: 10},
		{w: 3, h: 2, side: 5, wantW: 5, wantH: 3},
		{w: 1000, h: 1, side: 10, wantW: 10, wantH: 1},
		{w: 8, h: 8, side: 8, wantW: 8, wantH: 8},
	}

	for _, tc := range testCases {
		w, h := FitDimensions(tc.w, tc.h, tc.side)
		assert.Equal(t, tc.wantW, w, "width for %dx%d -> %d", tc.w, tc.h, tc.side)
		assert.Equal(t, tc.wantH, h, "height for %dx%d -> %d", tc.w, tc.h, tc.side)
	}
}

func TestParseInterpolation(t *testing.T) {
	interp, err := ParseInterpolation("")
	require.NoError(t, err)
	assert.Equal(t, DefaultInterpolation, interp)

	interp, err = ParseInterpolation(" Cubic ")
	require.NoError(t, err)
	assert.Equal(t, InterpolationCubic, interp)

	_, err = ParseInterpolation("bogus")
	assert.Error(t, err)
}

func TestNormalizeExact(t *testing.T) {
	img := normalizeSolid(t, 40, 60, 200, Options{Size: Exact(8, 6)})

	assert.Equal(t, 8, img.Width())
	assert.Equal(t, 6, img.Height())
	assert.Equal(t, 3, img.Channels())
	assert.Equal(t, [3]byte{200, 200, 200}, pixel(img, 5, 7))
}

func TestNormalizeAspectFitPadsCanvas(t *testing.T) {
	img := normalizeSolid(t, 5, 10, 255, Options{Size: AspectFit(4)})

	require.Equal(t, 4, img.Width())
	require.Equal(t, 4, img.Height())
	assert.Equal(t, [3]byte{255, 255, 255}, pixel(img, 0, 0))
	assert.Equal(t, [3]byte{255, 255, 255}, pixel(img, 1, 3))
	assert.Equal(t, [3]byte{0, 0, 0}, pixel(img, 2, 0))
	assert.Equal(t, [3]byte{0, 0, 0}, pixel(img, 3, 3))
}

func TestNormalizeExpandsGray(t *testing.T) {
	raw := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 0, 0, 0), 3, 3, gocv.MatTypeCV8UC1)
	defer raw.Close()

	img, err := Normalize(raw, Options{Size: Exact(3, 3)})
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 3, img.Channels())
	assert.Equal(t, [3]byte{100, 100, 100}, pixel(img, 1, 1))
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := halfWhiteMat(17, 23)
	defer raw.Close()
	opts := Options{Size: Exact(7, 5), Interpolation: InterpolationCubic}

	a, err := Normalize(raw, opts)
	require.NoError(t, err)
	defer a.Close()
	b, err := Normalize(raw, opts)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestNormalizeRejects(t *testing.T) {
	raw := solidMat(2, 2, 0)
	defer raw.Close()

	_, err := Normalize(raw, Options{Size: Exact(0, 2)})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = Normalize(raw, Options{Size: Exact(2, 2), Interpolation: "bogus"})
	assert.Error(t, err)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = Normalize(empty, Options{Size: Exact(2, 2)})
	assert.ErrorIs(t, err, ErrDecode)

	// The kernel is checked before the pixels.
	_, err = Normalize(empty, Options{Size: Exact(2, 2), Interpolation: "bogus"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "bogus")
}

func TestNormalizeVariants(t *testing.T) {
	raw := halfWhiteMat(2, 4)
	defer raw.Close()

	single, err := NormalizeVariants(raw, Options{Size: Exact(2, 4)})
	require.NoError(t, err)
	defer CloseVariants(single)
	require.Len(t, single, 1)
	assert.Equal(t, 0, single[0].Rotation)

	variants, err := NormalizeVariants(raw, Options{Size: Exact(2, 4), Rotate: true, Interpolation: InterpolationNearest})
	require.NoError(t, err)
	defer CloseVariants(variants)
	require.Len(t, variants, 4)

	for i, v := range variants {
		assert.Equal(t, Rotations[i], v.Rotation)
		assert.Equal(t, 2, v.Image.Width())
		assert.Equal(t, 4, v.Image.Height())
	}

	// A clockwise quarter turn moves the white left half to the top.
	quarter := variants[1].Image
	assert.Equal(t, [3]byte{255, 255, 255}, pixel(quarter, 0, 0))
	assert.Equal(t, [3]byte{255, 255, 255}, pixel(quarter, 1, 1))
	assert.Equal(t, [3]byte{0, 0, 0}, pixel(quarter, 2, 0))
	assert.Equal(t, [3]byte{0, 0, 0}, pixel(quarter, 3, 1))
}

func TestRotateImageExpandsCanvas(t *testing.T) {
	raw := solidMat(3, 5, 10)
	defer raw.Close()

	for _, deg := range []int{90, 270} {
		rotated := RotateImage(raw, deg)
		assert.Equal(t, 5, rotated.Rows(), "rows after %d", deg)
		assert.Equal(t, 3, rotated.Cols(), "cols after %d", deg)
		rotated.Close()
	}

	half := RotateImage(raw, 180)
	defer half.Close()
	assert.Equal(t, 3, half.Rows())
	assert.Equal(t, 5, half.Cols())
}

func TestNormalizedFromBytesRoundTrip(t *testing.T) {
	raw := halfWhiteMat(4, 6)
	defer raw.Close()
	img, err := Normalize(raw, Options{Size: Exact(6, 4)})
	require.NoError(t, err)
	defer img.Close()

	copied, err := NormalizedFromBytes(img.Width(), img.Height(), img.Bytes())
	require.NoError(t, err)
	defer copied.Close()

	assert.Equal(t, img.Bytes(), copied.Bytes())
	assert.Equal(t, 0.0, Score(img, copied))

	_, err = NormalizedFromBytes(6, 4, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	raw := solidMat(2, 2, 0)
	defer raw.Close()
	img, err := Normalize(raw, Options{Size: Exact(2, 2)})
	require.NoError(t, err)

	assert.NoError(t, img.Close())
	assert.NoError(t, img.Close())
}
