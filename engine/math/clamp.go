package math

import "golang.org/x/exp/constraints"

// Clamp bounds v to [low, high]. low wins when the range is inverted.
func Clamp[T constraints.Ordered](v, low, high T) T {
	if v > high {
		v = high
	}
	if v < low {
		v = low
	}
	return v
}
