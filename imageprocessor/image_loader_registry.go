package imageprocessor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imagematcher/logging"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maps file extensions to an ordered chain of loaders.
// Loading tries the chain in order and returns the first success.
type ImageLoaderRegistry struct {
	loaders map[string][]ImageLoader
	mutex   sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with the standard chains:
// OpenCV then Go decoders for common formats, embedded previews for RAW.
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string][]ImageLoader),
	}

	standard := NewStandardImageLoader()
	goLoader := NewGoImageLoader()
	raw := NewRawImageLoader()

	for ext, format := range formatExtensions {
		switch {
		case raw.CanLoad("x" + ext):
			registry.RegisterLoader(ext, raw)
		case format == FormatGIF:
			registry.RegisterLoader(ext, goLoader)
		default:
			registry.RegisterLoader(ext, standard)
			registry.RegisterLoader(ext, goLoader)
		}
	}

	return registry
}

// RegisterLoader appends loader to the chain for ext.
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ext = strings.ToLower(ext)
	r.loaders[ext] = append(r.loaders[ext], loader)
}

// GetLoaders returns the chain for path's extension.
func (r *ImageLoaderRegistry) GetLoaders(path string) []ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	chain := r.loaders[strings.ToLower(filepath.Ext(path))]
	out := make([]ImageLoader, len(chain))
	copy(out, chain)
	return out
}

// LoadImage loads path with the first loader in its chain that succeeds.
// Every failure is reported as a *DecodeError.
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), &DecodeError{Path: path, Err: err}
	}

	chain := r.GetLoaders(path)
	if len(chain) == 0 {
		// Unknown extension: let OpenCV sniff the content.
		chain = []ImageLoader{NewStandardImageLoader()}
	}

	var errs []error
	for _, loader := range chain {
		img, err := loader.LoadImage(path)
		if err == nil {
			return img, nil
		}
		img.Close()
		logging.DebugLog("loader failed", "path", path, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, ErrNoLoader)
	}
	return gocv.NewMat(), &DecodeError{Path: path, Err: errors.Join(errs...)}
}
