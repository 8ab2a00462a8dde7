// Package frame turns raw intensity sources into normalised greyscale frames.
//
// Coordinate convention: row indexes the image y axis and column the x axis.
// When a source is subsampled by an integer stride, frame cell (row, col)
// corresponds to source pixel (x, y) = (col*stride, row*stride).
package frame

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/corner-detector/pkg/types"
)

const (
	// normOffset and normScale map the signed 8-bit range [-128, 127] onto [0, 1]
	normOffset = 128.0
	normScale  = 255.0
)

// Frame is an immutable row-major grid of intensities in [0, 1]
type Frame struct {
	rows int
	cols int
	data []float64
}

// New validates dimensions and sample range and copies data into a Frame.
func New(data []float64, m, n int) (*Frame, error) {
	if err := checkDims(m, n); err != nil {
		return nil, err
	}
	if len(data) != m*n {
		return nil, fmt.Errorf("frame: got %d samples for %dx%d: %w", len(data), m, n, types.ErrDimensionMismatch)
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("frame: sample %d is not finite: %w", i, types.ErrInvalidParameter)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("frame: sample %d = %g outside [0, 1]: %w", i, v, types.ErrInvalidParameter)
		}
	}

	buf := make([]float64, len(data))
	copy(buf, data)
	return &Frame{rows: m, cols: n, data: buf}, nil
}

// Normalize maps a signed 8-bit intensity to [0, 1]. Both extremes are exact.
func Normalize(raw int8) float64 {
	return (float64(raw) + normOffset) / normScale
}

// Denormalize inverts Normalize, rounding to the nearest representable sample.
func Denormalize(v float64) int8 {
	r := math.Round(v*normScale - normOffset)
	if r < math.MinInt8 {
		r = math.MinInt8
	}
	if r > math.MaxInt8 {
		r = math.MaxInt8
	}
	return int8(r)
}

// FromSigned normalises a signed 8-bit buffer of m*n samples
func FromSigned(raw []int8, m, n int) (*Frame, error) {
	if err := checkDims(m, n); err != nil {
		return nil, err
	}
	if len(raw) != m*n {
		return nil, fmt.Errorf("frame: got %d samples for %dx%d: %w", len(raw), m, n, types.ErrDimensionMismatch)
	}

	data := make([]float64, len(raw))
	for i, v := range raw {
		data[i] = Normalize(v)
	}
	return &Frame{rows: m, cols: n, data: data}, nil
}

// FromLuma builds a frame from a camera Y plane. Bytes are read as signed
// samples, matching how the capture side exposes the plane. Only pixels whose
// row and column are both multiples of stride are kept, so the result is
// (height/stride) x (width/stride). rowStride is the plane's bytes per row and
// may exceed width for padded buffers; 0 means width.
func FromLuma(plane []byte, width, height, rowStride, stride int) (*Frame, error) {
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	if stride < 1 {
		return nil, fmt.Errorf("frame: stride %d must be positive: %w", stride, types.ErrInvalidParameter)
	}
	if rowStride == 0 {
		rowStride = width
	}
	if rowStride < width {
		return nil, fmt.Errorf("frame: row stride %d shorter than width %d: %w", rowStride, width, types.ErrInvalidParameter)
	}
	if need := (height-1)*rowStride + width; len(plane) < need {
		return nil, fmt.Errorf("frame: luma plane has %d bytes, need %d: %w", len(plane), need, types.ErrDimensionMismatch)
	}

	m, n := height/stride, width/stride
	if m == 0 || n == 0 {
		return nil, fmt.Errorf("frame: stride %d leaves no samples of %dx%d: %w", stride, width, height, types.ErrInvalidParameter)
	}

	data := make([]float64, 0, m*n)
	for r := 0; r < m; r++ {
		row := plane[r*stride*rowStride:]
		for c := 0; c < n; c++ {
			data = append(data, Normalize(int8(row[c*stride])))
		}
	}
	return &Frame{rows: m, cols: n, data: data}, nil
}

// FromImage converts img to greyscale and subsamples it by stride.
func FromImage(img image.Image, stride int) (*Frame, error) {
	if stride < 1 {
		return nil, fmt.Errorf("frame: stride %d must be positive: %w", stride, types.ErrInvalidParameter)
	}
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	m, n := b.Dy()/stride, b.Dx()/stride
	if err := checkDims(m, n); err != nil {
		return nil, err
	}

	data := make([]float64, 0, m*n)
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			i := gray.PixOffset(b.Min.X+c*stride, b.Min.Y+r*stride)
			data = append(data, float64(gray.Pix[i])/normScale)
		}
	}
	return &Frame{rows: m, cols: n, data: data}, nil
}

// Rows returns the frame height
func (f *Frame) Rows() int { return f.rows }

// Cols returns the frame width
func (f *Frame) Cols() int { return f.cols }

// Len returns rows*cols
func (f *Frame) Len() int { return len(f.data) }

// At returns the intensity at (r, c). It panics when out of range.
func (f *Frame) At(r, c int) float64 {
	return f.data[r*f.cols+c]
}

// Row returns a read-only view of row r
func (f *Frame) Row(r int) []float64 {
	return f.data[r*f.cols : (r+1)*f.cols]
}

// Empty reports whether the frame has no samples
func (f *Frame) Empty() bool {
	return f == nil || len(f.data) == 0
}

func checkDims(m, n int) error {
	if m <= 0 || n <= 0 {
		return fmt.Errorf("frame: dimensions %dx%d must be positive: %w", m, n, types.ErrInvalidParameter)
	}
	return nil
}
