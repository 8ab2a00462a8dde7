package types

import (
	"errors"
	"fmt"
)

// Validation errors returned by the kernel. Callers match them with errors.Is.
var (
	// ErrDimensionMismatch is returned when a buffer length disagrees with m*n
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidParameter is returned for out-of-range quantiles, sizes or tunables
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Corner is a detected corner in frame coordinates.
// Row indexes the first axis of the frame (height), Col the second (width).
type Corner struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Scale maps a corner found on a frame subsampled by stride back to the
// source image pixel grid, returned as (x, y).
func (c Corner) Scale(stride int) (int, int) {
	if stride < 1 {
		stride = 1
	}
	return c.Col * stride, c.Row * stride
}

// Less reports whether c precedes o in raster (row-major) order
func (c Corner) Less(o Corner) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

func (c Corner) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// CornerSet is an ordered sequence of corners in ascending raster order
type CornerSet []Corner

// Flatten packs the set as alternating row, column values.
func (s CornerSet) Flatten() []int {
	out := make([]int, 0, 2*len(s))
	for _, c := range s {
		out = append(out, c.Row, c.Col)
	}
	return out
}

// Unflatten is the inverse of Flatten. An odd-length input is a dimension mismatch.
func Unflatten(flat []int) (CornerSet, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("flat corner list has odd length %d: %w", len(flat), ErrDimensionMismatch)
	}
	out := make(CornerSet, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		out = append(out, Corner{Row: flat[i], Col: flat[i+1]})
	}
	return out, nil
}

// Summary describes the score distribution of one frame
type Summary struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Scored   int     `json:"scored"`
	Excluded int     `json:"excluded"`
}
