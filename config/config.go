// Package config gathers the settings of a run from flags, IMAGEMATCHER_*
// environment variables and an optional config file. Flags win over the
// environment, which wins over the file.
package config

import (
	"math"
	"strings"

	"imagematcher/imageprocessor"
	"imagematcher/logging"
	"imagematcher/signalhandler"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// IMAGEMATCHER_THRESHOLD or IMAGEMATCHER_ROTATE_REFERENCE.
const EnvPrefix = "IMAGEMATCHER"

// DefaultThreshold is the mean absolute difference below which two images
// match.
const DefaultThreshold = 25.0

// Keys shared by flags, config files and the environment.
const (
	KeyWidth           = "width"
	KeyHeight          = "height"
	KeySize            = "size"
	KeyRotate          = "rotate"
	KeyRotateReference = "rotate-reference"
	KeyThreshold       = "threshold"
	KeyInterpolation   = "interpolation"
	KeyWorkers         = "workers"
	KeyCache           = "cache"
	KeyVerbose         = "verbose"
	KeyDebug           = "debug"
	KeyLogLevel        = "log-level"
	KeyLogFile         = "log-file"
)

// ErrInvalidThreshold is returned for negative or NaN thresholds.
var ErrInvalidThreshold = errors.New("threshold must be a non-negative number")

// Config is the resolved configuration of one run.
type Config struct {
	Width           int
	Height          int
	Size            int
	Rotate          bool
	RotateReference bool
	Threshold       float64
	Interpolation   string
	Workers         int
	Cache           string
	Verbose         bool
	Debug           bool
	LogLevel        string
	LogFile         string
}

// DefineFlags registers every setting on flags with its default.
func DefineFlags(flags *pflag.FlagSet) {
	flags.Int(KeyWidth, 0, "normalize to exactly this width (requires --height)")
	flags.Int(KeyHeight, 0, "normalize to exactly this height (requires --width)")
	flags.Int(KeySize, 0, "fit the longer side to this size, keeping aspect ratio")
	flags.Bool(KeyRotate, false, "also compare candidates rotated by 90, 180 and 270 degrees")
	flags.Bool(KeyRotateReference, false, "also use rotated variants of the reference images")
	flags.Float64(KeyThreshold, DefaultThreshold, "match when the mean difference is below this value (0-255)")
	flags.String(KeyInterpolation, string(imageprocessor.DefaultInterpolation), "resampling kernel: nearest, linear, cubic, area or lanczos")
	flags.Int(KeyWorkers, signalhandler.GetOptimalProcs(), "number of parallel workers")
	flags.String(KeyCache, "", "path of a SQLite cache of normalized images")
	flags.Bool(KeyVerbose, false, "show progress and a summary")
	flags.Bool(KeyDebug, false, "enable debug logging")
	flags.String(KeyLogLevel, "warn", "log level: debug, info, warn or error")
	flags.String(KeyLogFile, "", "also write logs to this file")
}

// NewViper returns a viper instance bound to flags and the environment. A
// non-empty configFile is read as well; its format follows the extension.
func NewViper(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
		logging.DebugLog("config file loaded", "path", v.ConfigFileUsed())
	}
	return v, nil
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Width:           v.GetInt(KeyWidth),
		Height:          v.GetInt(KeyHeight),
		Size:            v.GetInt(KeySize),
		Rotate:          v.GetBool(KeyRotate),
		RotateReference: v.GetBool(KeyRotateReference),
		Threshold:       v.GetFloat64(KeyThreshold),
		Interpolation:   v.GetString(KeyInterpolation),
		Workers:         v.GetInt(KeyWorkers),
		Cache:           v.GetString(KeyCache),
		Verbose:         v.GetBool(KeyVerbose),
		Debug:           v.GetBool(KeyDebug),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFile:         v.GetString(KeyLogFile),
	}
}

// Load combines flags, environment and configFile into a validated Config.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v, err := NewViper(flags, configFile)
	if err != nil {
		return nil, err
	}
	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SizeMode resolves the size flags. Exactly one of --size or the
// --width/--height pair must be given; anything else is an
// *imageprocessor.InvalidSizeError.
func (c *Config) SizeMode() (imageprocessor.SizeMode, error) {
	exact := c.Width != 0 || c.Height != 0
	fit := c.Size != 0

	var mode imageprocessor.SizeMode
	switch {
	case exact && fit:
		return mode, errors.Wrap(&imageprocessor.InvalidSizeError{Width: c.Width, Height: c.Height},
			"--size cannot be combined with --width/--height")
	case exact:
		mode = imageprocessor.Exact(c.Width, c.Height)
	case fit:
		mode = imageprocessor.AspectFit(c.Size)
	default:
		return mode, errors.Wrap(&imageprocessor.InvalidSizeError{},
			"either --size or --width and --height is required")
	}
	if err := mode.Validate(); err != nil {
		return imageprocessor.SizeMode{}, err
	}
	return mode, nil
}

func (c *Config) options(rotate bool) (imageprocessor.Options, error) {
	size, err := c.SizeMode()
	if err != nil {
		return imageprocessor.Options{}, err
	}
	interp, err := imageprocessor.ParseInterpolation(c.Interpolation)
	if err != nil {
		return imageprocessor.Options{}, err
	}
	return imageprocessor.Options{Size: size, Rotate: rotate, Interpolation: interp}, nil
}

// ReferenceOptions is the normalization policy of the reference collection.
func (c *Config) ReferenceOptions() (imageprocessor.Options, error) {
	return c.options(c.RotateReference)
}

// CandidateOptions is the normalization policy of the candidate collection.
func (c *Config) CandidateOptions() (imageprocessor.Options, error) {
	return c.options(c.Rotate)
}

// Validate checks every setting without touching any file.
func (c *Config) Validate() error {
	if _, err := c.ReferenceOptions(); err != nil {
		return err
	}
	if c.Threshold < 0 || math.IsNaN(c.Threshold) {
		return errors.Wrapf(ErrInvalidThreshold, "got %v", c.Threshold)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}
