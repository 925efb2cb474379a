// Package scanner turns the command line's glob patterns into ordered source
// lists and reports loading progress.
package scanner

import (
	"sort"

	"imagematcher/imageprocessor"
	"imagematcher/logging"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ExpandPattern returns the paths in fs matching pattern, sorted. A pattern
// that matches nothing yields an empty list, not an error.
func ExpandPattern(fs afero.Fs, pattern string) ([]string, error) {
	matches, err := afero.Glob(fs, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "expand pattern %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// ExpandPatterns expands each pattern in turn, one result list per pattern.
func ExpandPatterns(fs afero.Fs, patterns ...string) ([][]string, error) {
	out := make([][]string, 0, len(patterns))
	for _, pattern := range patterns {
		matches, err := ExpandPattern(fs, pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			logging.LogWarning("pattern matched no files", "pattern", pattern)
		} else {
			logging.LogInfo("pattern expanded", "pattern", pattern, "files", len(matches))
		}
		for _, m := range matches {
			if !imageprocessor.IsImageFile(m) {
				logging.LogWarning("unrecognized image extension, decoding anyway", "path", m)
			}
		}
		out = append(out, matches)
	}
	return out, nil
}
