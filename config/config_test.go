package config

import (
	"os"
	"path/filepath"
	"testing"

	"imagematcher/imageprocessor"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DefineFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(parse(t, "--size", "64"), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, "area", cfg.Interpolation)
	assert.False(t, cfg.Rotate)
	assert.GreaterOrEqual(t, cfg.Workers, 1)

	opts, err := cfg.CandidateOptions()
	require.NoError(t, err)
	assert.Equal(t, imageprocessor.AspectFit(64), opts.Size)
	assert.Equal(t, imageprocessor.InterpolationArea, opts.Interpolation)
}

func TestSizeMode(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		want    imageprocessor.SizeMode
		wantErr bool
	}{
		{name: "exact", args: []string{"--width", "8", "--height", "6"}, want: imageprocessor.Exact(8, 6)},
		{name: "fit", args: []string{"--size", "32"}, want: imageprocessor.AspectFit(32)},
		{name: "none", args: nil, wantErr: true},
		{name: "both", args: []string{"--size", "32", "--width", "8", "--height", "8"}, wantErr: true},
		{name: "width only", args: []string{"--width", "8"}, wantErr: true},
		{name: "negative fit", args: []string{"--size", "-4"}, wantErr: true},
		{name: "zero height", args: []string{"--width", "4", "--height", "0"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewViper(parse(t, tc.args...), "")
			require.NoError(t, err)

			got, err := FromViper(v).SizeMode()
			if tc.wantErr {
				var sizeErr *imageprocessor.InvalidSizeError
				assert.ErrorAs(t, err, &sizeErr)
				assert.ErrorIs(t, err, imageprocessor.ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRotateFlagsAreIndependent(t *testing.T) {
	cfg, err := Load(parse(t, "--size", "16", "--rotate"), "")
	require.NoError(t, err)

	ref, err := cfg.ReferenceOptions()
	require.NoError(t, err)
	cand, err := cfg.CandidateOptions()
	require.NoError(t, err)

	assert.False(t, ref.Rotate)
	assert.True(t, cand.Rotate)
	assert.Equal(t, ref.Fingerprint(), cand.Fingerprint())
}

func TestValidateRejects(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "negative threshold", args: []string{"--size", "8", "--threshold", "-1"}},
		{name: "unknown interpolation", args: []string{"--size", "8", "--interpolation", "sinc"}},
		{name: "unknown log level", args: []string{"--size", "8", "--log-level", "loud"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(parse(t, tc.args...), "")
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "imagematcher.yaml")
	require.NoError(t, os.WriteFile(file, []byte("size: 48\nthreshold: 12.5\nrotate-reference: true\n"), 0o644))

	t.Setenv("IMAGEMATCHER_THRESHOLD", "7")

	cfg, err := Load(parse(t), file)
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Size)
	assert.True(t, cfg.RotateReference)
	assert.Equal(t, 7.0, cfg.Threshold)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("IMAGEMATCHER_SIZE", "100")
	t.Setenv("IMAGEMATCHER_ROTATE_REFERENCE", "true")

	cfg, err := Load(parse(t, "--size", "20"), "")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Size)
	assert.True(t, cfg.RotateReference)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(parse(t, "--size", "8"), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
