package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"
)

// SameShape reports whether a and b can be scored against each other.
func SameShape(a, b *NormalizedImage) bool {
	return a.Width() == b.Width() && a.Height() == b.Height() && a.Channels() == b.Channels()
}

// Score is the mean absolute difference of a and b: the per-channel mean of
// |a-b| over all pixels, averaged over the channels. It is 0 for identical
// images and at most 255. a and b must share a shape; normalization
// guarantees that, so a mismatch panics.
func Score(a, b *NormalizedImage) float64 {
	if !SameShape(a, b) {
		panic(fmt.Sprintf("imageprocessor: scoring %dx%dx%d against %dx%dx%d",
			a.Width(), a.Height(), a.Channels(), b.Width(), b.Height(), b.Channels()))
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a.mat, b.mat, &diff)

	mean := diff.Mean()
	perChannel := [4]float64{mean.Val1, mean.Val2, mean.Val3, mean.Val4}

	channels := a.Channels()
	var sum float64
	for c := 0; c < channels; c++ {
		sum += perChannel[c]
	}
	return sum / float64(channels)
}
