// Package matcher finds, for every reference image, the candidate images whose
// normalized pixels differ from it by less than a threshold.
package matcher

import (
	"context"

	"imagematcher/collection"
	"imagematcher/imageprocessor"
	"imagematcher/logging"
	"imagematcher/types"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrShapeMismatch is returned when the two collections were normalized onto
// different canvases and cannot be scored against each other.
var ErrShapeMismatch = errors.New("normalized image shapes differ")

type settings struct {
	workers  int
	observer func(types.ImageMatch)
}

// Option customizes Lookup.
type Option func(*settings)

// WithWorkers spreads reference entries over n goroutines. Values below 1
// mean 1. The result does not depend on n.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithScoreObserver passes every computed score to fn. fn may be called from
// several goroutines at once. Setting an observer disables the early exit
// taken once a candidate entry has matched, so every pair is scored.
func WithScoreObserver(fn func(types.ImageMatch)) Option {
	return func(s *settings) { s.observer = fn }
}

// Lookup scores every reference pair against every candidate pair. A
// candidate matches when its score is strictly below threshold.
//
// The result has one key per distinct reference identifier, in reference
// order, each listing the matching candidate identifiers in candidate order.
// A candidate entry is listed at most once per key however many of its
// variants (or of the reference's variants) match. Duplicate candidate
// entries are listed once each; duplicate reference identifiers share a key
// holding the union of their matches.
func Lookup(ctx context.Context, reference, candidates *collection.Collection, threshold float64, options ...Option) (*types.MatchResult, error) {
	s := settings{workers: 1}
	for _, o := range options {
		o(&s)
	}
	if s.workers < 1 {
		s.workers = 1
	}

	if err := checkShapes(reference, candidates); err != nil {
		return nil, err
	}

	refs := reference.Entries()
	cands := candidates.Entries()
	hits := make([][]bool, len(refs))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i := range refs {
		group.Go(func() error {
			matched, err := matchEntry(gctx, refs[i], cands, threshold, s.observer)
			if err != nil {
				return err
			}
			hits[i] = matched
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return merge(refs, cands, hits), nil
}

// matchEntry reports, per candidate entry, whether any variant pair of ref
// and that entry scores below threshold.
func matchEntry(ctx context.Context, ref collection.Entry, cands []collection.Entry, threshold float64, observer func(types.ImageMatch)) ([]bool, error) {
	matched := make([]bool, len(cands))
	for _, rv := range ref.Variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j, cand := range cands {
			if matched[j] && observer == nil {
				continue
			}
			for _, cv := range cand.Variants {
				score := imageprocessor.Score(rv.Image, cv.Image)
				if observer != nil {
					observer(types.ImageMatch{
						Reference:         ref.ID,
						ReferenceRotation: rv.Rotation,
						Candidate:         cand.ID,
						Rotation:          cv.Rotation,
						Score:             score,
					})
				}
				if score < threshold {
					matched[j] = true
					if observer == nil {
						break
					}
				}
			}
		}
	}
	return matched, nil
}

// merge folds per-entry hits into the result, in reference order.
func merge(refs, cands []collection.Entry, hits [][]bool) *types.MatchResult {
	union := make(map[string][]bool, len(refs))
	var order []string
	for i, ref := range refs {
		acc, ok := union[ref.ID]
		if !ok {
			acc = make([]bool, len(cands))
			union[ref.ID] = acc
			order = append(order, ref.ID)
		}
		for j, hit := range hits[i] {
			acc[j] = acc[j] || hit
		}
	}

	result := types.NewMatchResult()
	for _, id := range order {
		list := []string{}
		for j, hit := range union[id] {
			if hit {
				list = append(list, cands[j].ID)
			}
		}
		result.Set(id, list)
	}
	logging.DebugLog("lookup finished", "references", result.Len(), "matches", result.MatchCount())
	return result
}

func checkShapes(reference, candidates *collection.Collection) error {
	if reference.Len() == 0 || candidates.Len() == 0 {
		return nil
	}
	a := reference.Pairs()[0].Variant.Image
	b := candidates.Pairs()[0].Variant.Image
	if !imageprocessor.SameShape(a, b) {
		return errors.Wrapf(ErrShapeMismatch, "reference %dx%d, candidates %dx%d",
			a.Width(), a.Height(), b.Width(), b.Height())
	}
	return nil
}
