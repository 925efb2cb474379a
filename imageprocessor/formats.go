package imageprocessor

import (
	"path/filepath"
	"sort"
	"strings"
)

// FormatType is the container format inferred from a file extension.
type FormatType string

const (
	FormatUnknown FormatType = "unknown"
	FormatJPEG    FormatType = "jpeg"
	FormatPNG     FormatType = "png"
	FormatGIF     FormatType = "gif"
	FormatTIFF    FormatType = "tiff"
	FormatBMP     FormatType = "bmp"
	FormatWEBP    FormatType = "webp"
	FormatRAW     FormatType = "raw"
	FormatCR2     FormatType = "cr2"
	FormatCR3     FormatType = "cr3"
	FormatNEF     FormatType = "nef"
	FormatARW     FormatType = "arw"
	FormatDNG     FormatType = "dng"
)

var formatExtensions = map[string]FormatType{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".webp": FormatWEBP,

	// RAW formats are read through their embedded previews.
	".raw": FormatRAW,
	".raf": FormatRAW,
	".nrw": FormatRAW,
	".srf": FormatRAW,
	".orf": FormatRAW,
	".rw2": FormatRAW,
	".pef": FormatRAW,
	".cr2": FormatCR2,
	".cr3": FormatCR3,
	".nef": FormatNEF,
	".arw": FormatARW,
	".dng": FormatDNG,
}

// GetFileFormat returns the format for path's extension, or FormatUnknown.
func GetFileFormat(path string) FormatType {
	format, ok := formatExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return FormatUnknown
	}
	return format
}

// IsImageFile reports whether path has a known image extension.
func IsImageFile(path string) bool {
	return GetFileFormat(path) != FormatUnknown
}

// IsRawFormat reports whether path is a camera RAW file.
func IsRawFormat(path string) bool {
	switch GetFileFormat(path) {
	case FormatRAW, FormatCR2, FormatCR3, FormatNEF, FormatARW, FormatDNG:
		return true
	}
	return false
}

// GetSupportedExtensions returns every known extension, sorted.
func GetSupportedExtensions() []string {
	extensions := make([]string, 0, len(formatExtensions))
	for ext := range formatExtensions {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
