// Package imageprocessor turns source files into comparable pixel grids.
//
// Loading goes through an ImageLoaderRegistry that picks loaders by file
// extension and falls back along a chain (OpenCV, Go decoders, embedded RAW
// previews). Normalize and NormalizeVariants resample a loaded image onto the
// fixed canvas shared by every image in a run, and Score measures the mean
// absolute difference between two such canvases.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader reads one source file into a raw image. The returned Mat is
// owned by the caller. Channel count and size are whatever the source has;
// the Normalizer converts them.
type ImageLoader interface {
	// CanLoad reports whether the loader handles files like path.
	CanLoad(path string) bool

	// LoadImage decodes path.
	LoadImage(path string) (gocv.Mat, error)
}
