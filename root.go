package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"imagematcher/collection"
	"imagematcher/config"
	"imagematcher/database"
	"imagematcher/exitcodes"
	"imagematcher/imageprocessor"
	"imagematcher/logging"
	"imagematcher/matcher"
	"imagematcher/scanner"
	"imagematcher/types"
	"imagematcher/utils"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// AppFs is the filesystem patterns are expanded on and the result is written
// to. Images themselves are read by OpenCV from the real filesystem.
var AppFs = afero.NewOsFs()

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "imagematcher PATTERN1 PATTERN2 OUTPATH",
		Short: "Pair up images that look the same",
		Long: `imagematcher compares every image matching PATTERN1 (the references) with
every image matching PATTERN2 (the candidates) and writes a JSON object to
OUTPATH mapping each reference to the candidates whose mean pixel difference is
below --threshold.

Images are first normalized to one size, either exactly (--width/--height) or
keeping their aspect ratio (--size). Quote the patterns so the shell does not
expand them.

Supported extensions: ` + strings.Join(imageprocessor.GetSupportedExtensions(), " ") + `

Exit codes:
` + exitcodes.Describe(),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 3 {
				_ = cmd.Usage()
				return exitcodes.Wrap(exitcodes.ExitMissingArguments,
					fmt.Errorf("expected PATTERN1 PATTERN2 OUTPATH, got %d argument(s)", len(args)))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), cfgFile)
			if err != nil {
				return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
			}
			if err := setupLogging(cfg); err != nil {
				return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
			}
			return run(cmd.Context(), cfg, args[0], args[1], args[2], cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "read settings from this file (yaml, toml or json)")
	config.DefineFlags(cmd.Flags())
	cmd.Flags().Lookup(config.KeyCache).NoOptDefVal = utils.GetDefaultCachePath()
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
	})
	return cmd
}

func setupLogging(cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Verbose && level > slog.LevelInfo {
		level = slog.LevelInfo
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logging.SetLevel(level)

	if cfg.LogFile != "" {
		if err := logging.SetupLogger(cfg.LogFile); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, refPattern, candPattern, outPath string, stderr io.Writer) error {
	start := time.Now()

	refOpts, err := cfg.ReferenceOptions()
	if err != nil {
		return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
	}
	candOpts, err := cfg.CandidateOptions()
	if err != nil {
		return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
	}

	lists, err := scanner.ExpandPatterns(AppFs, refPattern, candPattern)
	if err != nil {
		return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
	}

	var cache *database.Cache
	if cfg.Cache != "" {
		cache, err = database.OpenCache(cfg.Cache)
		if err != nil {
			return exitcodes.Wrap(exitcodes.ExitIOError, err)
		}
		defer cache.Close()
	}

	refTracker := scanner.NewProgressTracker("reference", stderr, cfg.Verbose)
	reference, err := collection.New(ctx, lists[0], refOpts, collectionOptions(cfg, cache, refTracker)...)
	if err != nil {
		return classify(err)
	}
	defer reference.Close()

	candTracker := scanner.NewProgressTracker("candidates", stderr, cfg.Verbose)
	candidates, err := collection.New(ctx, lists[1], candOpts, collectionOptions(cfg, cache, candTracker)...)
	if err != nil {
		return classify(err)
	}
	defer candidates.Close()

	lookupOpts := []matcher.Option{matcher.WithWorkers(cfg.Workers)}
	if logging.CurrentLevel() <= slog.LevelDebug {
		lookupOpts = append(lookupOpts, matcher.WithScoreObserver(func(m types.ImageMatch) {
			logging.DebugLog("score", "reference", m.Reference, "reference_rotation", m.ReferenceRotation,
				"candidate", m.Candidate, "rotation", m.Rotation, "score", m.Score)
		}))
	}

	result, err := matcher.Lookup(ctx, reference, candidates, cfg.Threshold, lookupOpts...)
	if err != nil {
		return classify(err)
	}

	if err := utils.WriteResult(AppFs, outPath, result); err != nil {
		return exitcodes.Wrap(exitcodes.ExitIOError, err)
	}

	matched, pairs := utils.Summarize(result)
	logging.LogInfo("result written", "path", outPath, "references", result.Len(), "matched", matched, "pairs", pairs)

	if cfg.Verbose {
		summary := utils.RunSummary{
			Threshold:  cfg.Threshold,
			Matched:    matched,
			References: result.Len(),
			Pairs:      pairs,
			Elapsed:    time.Since(start),
		}
		if cache != nil {
			stats, err := cache.GetStats()
			if err != nil {
				logging.LogWarning("cache stats unavailable", "error", err)
			} else {
				summary.Cache = &utils.CacheStats{Entries: stats.Entries, Sources: stats.Sources}
			}
		}
		for _, c := range []struct {
			tracker *scanner.ProgressTracker
			coll    *collection.Collection
		}{{refTracker, reference}, {candTracker, candidates}} {
			s := c.tracker.Summary()
			summary.Collections = append(summary.Collections, utils.CollectionStats{
				Name: s.Label, Sources: c.coll.Sources(), Pairs: c.coll.Len(), Elapsed: s.Elapsed,
			})
		}
		fmt.Fprintln(stderr, utils.RenderSummary(summary))
	}
	return nil
}

func collectionOptions(cfg *config.Config, cache *database.Cache, observer collection.Observer) []collection.Option {
	opts := []collection.Option{
		collection.WithWorkers(cfg.Workers),
		collection.WithObserver(observer),
	}
	if cache != nil {
		opts = append(opts, collection.WithCache(cache))
	}
	return opts
}

// classify attaches the exit code matching err's kind.
func classify(err error) error {
	var decodeErr *imageprocessor.DecodeError
	var sizeErr *imageprocessor.InvalidSizeError

	switch {
	case errors.Is(err, context.Canceled):
		return exitcodes.Wrap(exitcodes.ExitInterrupted, err)
	case errors.As(err, &decodeErr):
		return exitcodes.Wrap(exitcodes.ExitDecodeError, err)
	case errors.As(err, &sizeErr):
		return exitcodes.Wrap(exitcodes.ExitInputConfigurationError, err)
	case errors.Is(err, matcher.ErrShapeMismatch):
		return exitcodes.Wrap(exitcodes.ExitInternalError, err)
	}
	return exitcodes.Wrap(exitcodes.ExitGeneralRuntimeError, err)
}

// execute runs the command line args and returns the error main reports.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
