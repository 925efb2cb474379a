package imageprocessor

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// BaseImageLoader matches files by format.
type BaseImageLoader struct {
	SupportedFormats []FormatType
}

// CanLoad reports whether path's format is in SupportedFormats.
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)
	for _, supported := range l.SupportedFormats {
		if format == supported {
			return true
		}
	}
	return false
}

// StandardImageLoader decodes common formats with OpenCV. Images come back as
// 8-bit BGR regardless of the source's color mode.
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates the OpenCV loader.
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatBMP,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// LoadImage reads path with gocv.IMRead.
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("opencv could not decode %s", path)
	}
	return img, nil
}

// GoImageLoader decodes with the Go image packages (gif, jpeg, png and the
// x/image bmp, tiff and webp decoders). It covers files OpenCV was built
// without support for, GIF in particular.
type GoImageLoader struct {
	BaseImageLoader
}

// NewGoImageLoader creates the pure-Go fallback loader.
func NewGoImageLoader() *GoImageLoader {
	return &GoImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// LoadImage decodes path and converts it to a BGR Mat.
func (l *GoImageLoader) LoadImage(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("go decoders could not decode %s: %w", path, err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("converting %s: %w", path, err)
	}
	return mat, nil
}
