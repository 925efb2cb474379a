// Package utils writes run results and renders the run summary.
package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"imagematcher/types"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// WriteResult writes result as indented JSON to path. The data goes to a
// temporary file in the same directory which is then renamed over path, so a
// failed write never leaves a truncated result behind.
func WriteResult(fs afero.Fs, path string, result *types.MatchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temporary file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}

// GetDefaultCachePath returns the cache location used when caching is asked
// for without a path: imagematcher/normalized.db in the user cache directory,
// or the working directory when that is unknown.
func GetDefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "normalized.db"
	}
	return filepath.Join(dir, "imagematcher", "normalized.db")
}

// CollectionStats is one row of the run summary.
type CollectionStats struct {
	Name    string
	Sources int
	Pairs   int
	Elapsed time.Duration
}

// RunSummary describes a finished run.
type RunSummary struct {
	Collections []CollectionStats
	Threshold   float64
	Matched     int // reference keys with at least one candidate
	References  int
	Pairs       int // candidate identifiers listed in total
	Elapsed     time.Duration
	Cache       *CacheStats // nil when no cache was used
}

// CacheStats is the content of the normalization cache after a run.
type CacheStats struct {
	Entries int
	Sources int
}

// Summarize counts the matched keys of result.
func Summarize(result *types.MatchResult) (matched, pairs int) {
	for _, key := range result.Keys() {
		list, _ := result.Get(key)
		if len(list) > 0 {
			matched++
		}
		pairs += len(list)
	}
	return matched, pairs
}

// RenderSummary formats s as a table.
func RenderSummary(s RunSummary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Collection", "Sources", "Variants", "Load time"})
	for _, c := range s.Collections {
		tw.AppendRow(table.Row{c.Name, c.Sources, c.Pairs, c.Elapsed.Round(time.Millisecond)})
	}
	tw.AppendFooter(table.Row{
		"Matched",
		fmt.Sprintf("%d/%d", s.Matched, s.References),
		fmt.Sprintf("%d pairs", s.Pairs),
		fmt.Sprintf("< %g in %v", s.Threshold, s.Elapsed.Round(time.Millisecond)),
	})
	if s.Cache != nil {
		tw.AppendFooter(table.Row{
			"Cache",
			fmt.Sprintf("%d sources", s.Cache.Sources),
			fmt.Sprintf("%d variants", s.Cache.Entries),
			"",
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}
