// Package collection loads an ordered set of source images and normalizes
// them under one policy. A Collection owns every normalized image it holds
// until Close.
package collection

import (
	"context"
	"image"

	"imagematcher/database"
	"imagematcher/imageprocessor"
	"imagematcher/logging"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Loader decodes a source path into a raw image owned by the caller.
type Loader interface {
	LoadImage(path string) (gocv.Mat, error)
}

// Observer receives loading progress. Calls may come from several
// goroutines when loading runs in parallel.
type Observer interface {
	Start(total int)
	Loaded(path string, err error)
	Finish()
}

// Entry is one source and its normalized variants.
type Entry struct {
	ID       string
	Variants []imageprocessor.Variant
}

// Pair is one (identifier, variant) item of a collection's iteration.
type Pair struct {
	ID      string
	Entry   int
	Variant imageprocessor.Variant
}

// Collection is an ordered, normalized set of source images.
type Collection struct {
	entries []Entry
	pairs   []Pair
	opts    imageprocessor.Options
}

type settings struct {
	loader   Loader
	observer Observer
	cache    *database.Cache
	workers  int
}

// Option customizes New.
type Option func(*settings)

// WithLoader replaces the default loader registry.
func WithLoader(l Loader) Option {
	return func(s *settings) { s.loader = l }
}

// WithObserver reports progress to o.
func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

// WithCache reuses and stores normalized pixels in c.
func WithCache(c *database.Cache) Option {
	return func(s *settings) { s.cache = c }
}

// WithWorkers loads up to n sources at once. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// New loads and normalizes every id in order. The options are validated
// before anything is read. If any source cannot be decoded, everything
// loaded so far is released and the *imageprocessor.DecodeError of the
// earliest failing id is returned.
func New(ctx context.Context, ids []string, opts imageprocessor.Options, options ...Option) (*Collection, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := settings{workers: 1}
	for _, o := range options {
		o(&s)
	}
	if s.loader == nil {
		s.loader = imageprocessor.NewImageLoaderRegistry()
	}
	if s.workers < 1 {
		s.workers = 1
	}

	if s.observer != nil {
		s.observer.Start(len(ids))
		defer s.observer.Finish()
	}

	entries := make([]Entry, len(ids))
	errs := make([]error, len(ids))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, id := range ids {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			variants, err := loadEntry(id, opts, &s)
			if s.observer != nil {
				s.observer.Loaded(id, err)
			}
			logging.LogImageProcessed(id, err == nil, err)
			entries[i] = Entry{ID: id, Variants: variants}
			errs[i] = err
			return nil
		})
	}
	waitErr := group.Wait()

	c := &Collection{entries: entries, opts: opts}
	if waitErr != nil {
		c.Close()
		return nil, waitErr
	}
	for _, err := range errs {
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	for i, e := range entries {
		for _, v := range e.Variants {
			c.pairs = append(c.pairs, Pair{ID: e.ID, Entry: i, Variant: v})
		}
	}
	logging.DebugLog("collection loaded", "sources", len(entries), "pairs", len(c.pairs), "size", opts.Size.String(), "rotate", opts.Rotate)
	return c, nil
}

// loadEntry produces the variants of one source, from the cache when every
// variant is present there.
func loadEntry(id string, opts imageprocessor.Options, s *settings) ([]imageprocessor.Variant, error) {
	var stamp database.FileStamp
	if s.cache != nil {
		var err error
		stamp, err = database.StampFile(id)
		if err != nil {
			return nil, &imageprocessor.DecodeError{Path: id, Err: err}
		}
		if variants, ok := cachedVariants(id, stamp, opts, s.cache); ok {
			return variants, nil
		}
	}

	raw, err := s.loader.LoadImage(id)
	if err != nil {
		return nil, asDecodeError(id, err)
	}
	defer raw.Close()

	variants, err := imageprocessor.NormalizeVariants(raw, opts)
	if err != nil {
		return nil, asDecodeError(id, err)
	}

	if s.cache != nil {
		for _, v := range variants {
			if err := s.cache.Store(id, stamp, opts.Fingerprint(), v.Rotation, v.Image); err != nil {
				logging.LogWarning("cache store failed", "path", id, "error", err)
				break
			}
		}
	}
	return variants, nil
}

func cachedVariants(id string, stamp database.FileStamp, opts imageprocessor.Options, cache *database.Cache) ([]imageprocessor.Variant, bool) {
	rotations := imageprocessor.Rotations[:1]
	if opts.Rotate {
		rotations = imageprocessor.Rotations
	}

	variants := make([]imageprocessor.Variant, 0, len(rotations))
	for _, deg := range rotations {
		img, ok, err := cache.Lookup(id, stamp, opts.Fingerprint(), deg)
		if err != nil {
			logging.LogWarning("cache lookup failed", "path", id, "error", err)
		}
		if !ok {
			imageprocessor.CloseVariants(variants)
			return nil, false
		}
		variants = append(variants, imageprocessor.Variant{Image: img, Rotation: deg})
	}
	logging.DebugLog("cache hit", "path", id, "variants", len(variants))
	return variants, true
}

func asDecodeError(id string, err error) error {
	var decodeErr *imageprocessor.DecodeError
	if errors.As(err, &decodeErr) {
		return err
	}
	return &imageprocessor.DecodeError{Path: id, Err: err}
}

// Len is the number of (identifier, variant) pairs, counting every rotation.
func (c *Collection) Len() int {
	return len(c.pairs)
}

// Sources is the number of source entries.
func (c *Collection) Sources() int {
	return len(c.entries)
}

// Entries returns the entries in load order. The images stay owned by c.
func (c *Collection) Entries() []Entry {
	return c.entries
}

// Pairs returns one item per variant, entries in load order and variants in
// rotation order. The images stay owned by c.
func (c *Collection) Pairs() []Pair {
	return c.pairs
}

// Each calls fn for every pair in order.
func (c *Collection) Each(fn func(id string, v imageprocessor.Variant)) {
	for _, p := range c.pairs {
		fn(p.ID, p.Variant)
	}
}

// Options is the normalization policy the collection was built with.
func (c *Collection) Options() imageprocessor.Options {
	return c.opts
}

// Canvas is the shape shared by every image of the collection.
func (c *Collection) Canvas() image.Point {
	return c.opts.Size.Canvas()
}

// Close releases every image. The collection must not be used afterwards.
func (c *Collection) Close() {
	for _, e := range c.entries {
		imageprocessor.CloseVariants(e.Variants)
	}
	c.entries = nil
	c.pairs = nil
}
