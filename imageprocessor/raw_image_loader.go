package imageprocessor

import (
	"encoding/base64"
	"fmt"
	"strings"

	"imagematcher/logging"

	"github.com/barasher/go-exiftool"
	"gocv.io/x/gocv"
)

// previewTags are tried in order; the first one holding a decodable image wins.
var previewTags = []string{
	"JpgFromRaw",
	"LargestImagePreview",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

const base64Prefix = "base64:"

// RawImageLoader reads camera RAW files through the largest JPEG preview the
// file embeds. It needs the exiftool binary on PATH.
type RawImageLoader struct {
	BaseImageLoader
}

// NewRawImageLoader creates a loader for every RAW format.
func NewRawImageLoader() *RawImageLoader {
	return &RawImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatRAW,
				FormatCR2,
				FormatCR3,
				FormatNEF,
				FormatARW,
				FormatDNG,
			},
		},
	}
}

// LoadImage extracts and decodes the embedded preview of path.
func (l *RawImageLoader) LoadImage(path string) (gocv.Mat, error) {
	et, err := exiftool.NewExiftool(exiftool.ExtractAllBinaryMetadata())
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("exiftool unavailable: %w", err)
	}
	defer et.Close()

	infos := et.ExtractMetadata(path)
	if len(infos) == 0 {
		return gocv.NewMat(), fmt.Errorf("no metadata extracted from %s", path)
	}
	if infos[0].Err != nil {
		return gocv.NewMat(), infos[0].Err
	}

	for _, tag := range previewTags {
		data, ok := previewBytes(infos[0], tag)
		if !ok {
			continue
		}
		img, err := gocv.IMDecode(data, gocv.IMReadColor)
		if err != nil {
			logging.DebugLog("raw preview not decodable", "path", path, "tag", tag, "error", err)
			continue
		}
		if img.Empty() {
			img.Close()
			continue
		}
		logging.DebugLog("loaded raw preview", "path", path, "tag", tag)
		return img, nil
	}
	return gocv.NewMat(), fmt.Errorf("no decodable preview in %s", path)
}

// previewBytes returns the binary payload of tag. exiftool reports binary
// fields as "base64:<data>" when run with -b.
func previewBytes(info exiftool.FileMetadata, tag string) ([]byte, bool) {
	raw, err := info.GetString(tag)
	if err != nil || !strings.HasPrefix(raw, base64Prefix) {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, base64Prefix))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
