package imageprocessor

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"

	"gocv.io/x/gocv"
)

// SizeKind selects how a raw image is brought onto the run's canvas.
type SizeKind int

const (
	// SizeExact resamples to exactly Width x Height, ignoring aspect ratio.
	SizeExact SizeKind = iota + 1
	// SizeAspectFit scales the longer side to MaxSide and pads the rest of a
	// MaxSide x MaxSide canvas with black.
	SizeAspectFit
)

// SizeMode is the tagged sizing policy of a run. Build one with Exact or
// AspectFit.
type SizeMode struct {
	Kind    SizeKind
	Width   int
	Height  int
	MaxSide int
}

// Exact returns the exact-size policy.
func Exact(width, height int) SizeMode {
	return SizeMode{Kind: SizeExact, Width: width, Height: height}
}

// AspectFit returns the aspect-preserving policy bounded by maxSide.
func AspectFit(maxSide int) SizeMode {
	return SizeMode{Kind: SizeAspectFit, MaxSide: maxSide}
}

// Validate returns an *InvalidSizeError when the policy resolves to a
// non-positive side or has no kind.
func (m SizeMode) Validate() error {
	canvas := m.Canvas()
	if m.Kind != SizeExact && m.Kind != SizeAspectFit {
		return &InvalidSizeError{Width: canvas.X, Height: canvas.Y}
	}
	if canvas.X <= 0 || canvas.Y <= 0 {
		return &InvalidSizeError{Width: canvas.X, Height: canvas.Y}
	}
	return nil
}

// Canvas is the width and height of every normalized image under m.
func (m SizeMode) Canvas() image.Point {
	if m.Kind == SizeAspectFit {
		return image.Pt(m.MaxSide, m.MaxSide)
	}
	return image.Pt(m.Width, m.Height)
}

func (m SizeMode) String() string {
	switch m.Kind {
	case SizeExact:
		return fmt.Sprintf("exact %dx%d", m.Width, m.Height)
	case SizeAspectFit:
		return fmt.Sprintf("fit %d", m.MaxSide)
	}
	return "unset"
}

// Interpolation names the resampling kernel used for a whole run.
type Interpolation string

const (
	InterpolationNearest Interpolation = "nearest"
	InterpolationLinear  Interpolation = "linear"
	InterpolationCubic   Interpolation = "cubic"
	InterpolationArea    Interpolation = "area"
	InterpolationLanczos Interpolation = "lanczos"
)

// DefaultInterpolation is used when Options leaves the kernel empty.
const DefaultInterpolation = InterpolationArea

// ParseInterpolation accepts a kernel name, case-insensitively.
func ParseInterpolation(name string) (Interpolation, error) {
	interp := Interpolation(strings.ToLower(strings.TrimSpace(name)))
	if interp == "" {
		return DefaultInterpolation, nil
	}
	if _, err := interp.flag(); err != nil {
		return "", err
	}
	return interp, nil
}

func (i Interpolation) flag() (gocv.InterpolationFlags, error) {
	switch i {
	case InterpolationNearest:
		return gocv.InterpolationNearestNeighbor, nil
	case InterpolationLinear:
		return gocv.InterpolationLinear, nil
	case InterpolationCubic:
		return gocv.InterpolationCubic, nil
	case InterpolationArea, "":
		return gocv.InterpolationArea, nil
	case InterpolationLanczos:
		return gocv.InterpolationLanczos4, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", string(i))
}

// Options configures normalization for one collection.
type Options struct {
	Size          SizeMode
	Rotate        bool
	Interpolation Interpolation
}

// Validate checks the size policy and the kernel name.
func (o Options) Validate() error {
	if err := o.Size.Validate(); err != nil {
		return err
	}
	_, err := o.Interpolation.flag()
	return err
}

// Fingerprint identifies the pixel output of o for cache keys. Rotate is not
// part of it because each variant is keyed by its own rotation.
func (o Options) Fingerprint() string {
	interp := o.Interpolation
	if interp == "" {
		interp = DefaultInterpolation
	}
	return fmt.Sprintf("%s/%s", o.Size, interp)
}

// Rotations lists the quarter turns generated for rotation-invariant matching.
var Rotations = []int{0, 90, 180, 270}

// NormalizedImage is an 8-bit BGR image on the run canvas. It owns its pixel
// memory until Close.
type NormalizedImage struct {
	mat    gocv.Mat
	closed bool
}

// Width of the canvas in pixels.
func (n *NormalizedImage) Width() int { return n.mat.Cols() }

// Height of the canvas in pixels.
func (n *NormalizedImage) Height() int { return n.mat.Rows() }

// Channels is always 3 for images built by this package.
func (n *NormalizedImage) Channels() int { return n.mat.Channels() }

// Bytes returns a copy of the pixel data, row-major BGR.
func (n *NormalizedImage) Bytes() []byte { return n.mat.ToBytes() }

// Close releases the pixel memory. Safe to call more than once.
func (n *NormalizedImage) Close() error {
	if n == nil || n.closed {
		return nil
	}
	n.closed = true
	return n.mat.Close()
}

// NormalizedFromBytes rebuilds an image previously exported with Bytes.
func NormalizedFromBytes(width, height int, data []byte) (*NormalizedImage, error) {
	if width <= 0 || height <= 0 {
		return nil, &InvalidSizeError{Width: width, Height: height}
	}
	if len(data) != width*height*3 {
		return nil, fmt.Errorf("pixel data is %d bytes, want %d", len(data), width*height*3)
	}
	view, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return nil, err
	}
	defer view.Close()
	// view may borrow data; the clone owns its own copy.
	owned := view.Clone()
	runtime.KeepAlive(data)
	return &NormalizedImage{mat: owned}, nil
}

// Variant is one orientation of a normalized source image.
type Variant struct {
	Image    *NormalizedImage
	Rotation int
}

// FitDimensions scales (width, height) so the longer side equals maxSide,
// rounding half away from zero and never going below 1.
func FitDimensions(width, height, maxSide int) (int, int) {
	longer := width
	if height > longer {
		longer = height
	}
	scale := float64(maxSide) / float64(longer)
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return max(1, min(w, maxSide)), max(1, min(h, maxSide))
}

// Normalize brings raw onto the canvas described by opts.Size. raw is not
// modified or closed.
func Normalize(raw gocv.Mat, opts Options) (*NormalizedImage, error) {
	if err := opts.Size.Validate(); err != nil {
		return nil, err
	}
	interp, err := opts.Interpolation.flag()
	if err != nil {
		return nil, err
	}
	if raw.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	bgr, err := toBGR(raw)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	switch opts.Size.Kind {
	case SizeExact:
		dst := gocv.NewMat()
		gocv.Resize(bgr, &dst, opts.Size.Canvas(), 0, 0, interp)
		return &NormalizedImage{mat: dst}, nil

	default:
		side := opts.Size.MaxSide
		w, h := FitDimensions(bgr.Cols(), bgr.Rows(), side)

		fitted := gocv.NewMat()
		defer fitted.Close()
		gocv.Resize(bgr, &fitted, image.Pt(w, h), 0, 0, interp)

		canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), side, side, gocv.MatTypeCV8UC3)
		roi := canvas.Region(image.Rect(0, 0, w, h))
		fitted.CopyTo(&roi)
		roi.Close()
		return &NormalizedImage{mat: canvas}, nil
	}
}

// NormalizeVariants normalizes raw once, or four times (0, 90, 180 and 270
// degrees clockwise) when opts.Rotate is set. Each turn rotates the raw image
// with an expanded canvas before normalizing, so nothing is cropped and every
// variant lands on the same canvas.
func NormalizeVariants(raw gocv.Mat, opts Options) ([]Variant, error) {
	rotations := Rotations[:1]
	if opts.Rotate {
		rotations = Rotations
	}

	variants := make([]Variant, 0, len(rotations))
	for _, deg := range rotations {
		src := raw
		if deg != 0 {
			src = RotateImage(raw, deg)
		}
		img, err := Normalize(src, opts)
		if deg != 0 {
			src.Close()
		}
		if err != nil {
			CloseVariants(variants)
			return nil, err
		}
		variants = append(variants, Variant{Image: img, Rotation: deg})
	}
	return variants, nil
}

// CloseVariants releases every variant image.
func CloseVariants(variants []Variant) {
	for _, v := range variants {
		v.Image.Close()
	}
}

// RotateImage rotates img clockwise by 90, 180 or 270 degrees into a new Mat.
// Quarter turns swap width and height. Other angles return a clone.
func RotateImage(img gocv.Mat, degrees int) gocv.Mat {
	dst := gocv.NewMat()

	switch degrees {
	case 90:
		gocv.Rotate(img, &dst, gocv.Rotate90Clockwise)
	case 180:
		gocv.Rotate(img, &dst, gocv.Rotate180Clockwise)
	case 270:
		gocv.Rotate(img, &dst, gocv.Rotate90CounterClockwise)
	default:
		dst.Close()
		dst = img.Clone()
	}

	return dst
}

// toBGR returns an 8-bit three-channel copy of img. Gray is expanded, alpha
// dropped.
func toBGR(img gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	switch img.Type() {
	case gocv.MatTypeCV8UC3:
		img.CopyTo(&dst)
	case gocv.MatTypeCV8UC1:
		gocv.CvtColor(img, &dst, gocv.ColorGrayToBGR)
	case gocv.MatTypeCV8UC4:
		gocv.CvtColor(img, &dst, gocv.ColorBGRAToBGR)
	default:
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("%w: unsupported pixel format %v", ErrDecode, img.Type())
	}
	return dst, nil
}
