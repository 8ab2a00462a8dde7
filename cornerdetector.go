// Package cornerdetector finds salient corners in greyscale video frames.
//
// The kernel is a stateless four stage pipeline:
//
//  1. Preprocessing (pkg/frame): raw intensities become a Frame in [0, 1],
//     optionally subsampled by an integer stride.
//  2. Response (pkg/response): Sobel gradients are folded into a 3x3 structure
//     tensor and reduced to a cornerness score per pixel.
//  3. Thresholding (pkg/threshold): the requested quantile becomes an absolute
//     score cutoff computed from the current frame, so sensitivity adapts to
//     the content and lighting of each frame.
//  4. Suppression (pkg/suppress): only local maxima above the cutoff survive,
//     emitted in ascending raster order.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		cornerdetector "github.com/menta2k/corner-detector"
//	)
//
//	func main() {
//		// 8x8 frame, row-major, intensities in [0, 1]
//		pixels := make([]float64, 64)
//		for r := 3; r < 8; r++ {
//			for c := 4; c < 8; c++ {
//				pixels[r*8+c] = 1
//			}
//		}
//
//		flat, err := cornerdetector.FindCorners(pixels, 8, 8, 0.02)
//		if err != nil {
//			log.Fatal(err)
//		}
//		for i := 0; i < len(flat); i += 2 {
//			fmt.Printf("corner at row %d, col %d\n", flat[i], flat[i+1])
//		}
//	}
//
// Output coordinates are (row, column) of the frame handed to the kernel. A
// caller that subsampled its source by a stride maps them back with
// types.Corner.Scale; drawing them is the caller's job (see pkg/processing for
// a debug overlay).
//
// The kernel never keeps state between calls and is safe to invoke from many
// goroutines on different frames. Late frames are dropped by not calling it.
package cornerdetector

import (
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/corner-detector/pkg/analyzer"
	"github.com/menta2k/corner-detector/pkg/frame"
	"github.com/menta2k/corner-detector/pkg/response"
	"github.com/menta2k/corner-detector/pkg/suppress"
	"github.com/menta2k/corner-detector/pkg/threshold"
	"github.com/menta2k/corner-detector/pkg/types"
)

// Version of the corner detector library
const Version = "1.0.0"

const (
	// DefaultQuantile keeps the top 0.5% of scores before suppression
	DefaultQuantile = 0.005
	// DefaultStride halves each image axis before detection
	DefaultStride = 2
)

// Config holds the detector configuration
type Config struct {
	Quantile float64
	Stride   int
	Response response.Config
	Analyzer analyzer.Config
}

// DefaultConfig returns the configuration used by New
func DefaultConfig() Config {
	return Config{
		Quantile: DefaultQuantile,
		Stride:   DefaultStride,
		Response: response.DefaultConfig(),
		Analyzer: analyzer.DefaultConfig(),
	}
}

// Detector runs the corner pipeline. It holds configuration only and may be
// shared between goroutines.
type Detector struct {
	config    Config
	estimator *response.Estimator
	analyzer  *analyzer.ImageAnalyzer
	log       logrus.FieldLogger
}

// Result is the outcome of one detection
type Result struct {
	Corners    types.CornerSet `json:"corners"`
	Threshold  float64         `json:"threshold"`
	Candidates int             `json:"candidates"`
	Rows       int             `json:"rows"`
	Cols       int             `json:"cols"`
	Stride     int             `json:"stride"`
	Quantile   float64         `json:"quantile"`
	Summary    types.Summary   `json:"summary"`
	Elapsed    time.Duration   `json:"elapsed_ns"`

	// Scores is the intermediate score map, kept for diagnostics
	Scores *response.ScoreMap `json:"-"`
}

// New creates a Detector with default configuration
func New() *Detector {
	d, err := NewWithConfig(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return d
}

// NewWithConfig creates a Detector with custom configuration
func NewWithConfig(config Config) (*Detector, error) {
	if err := threshold.ValidateQuantile(config.Quantile); err != nil {
		return nil, err
	}
	if config.Stride < 1 {
		return nil, fmt.Errorf("stride %d must be positive: %w", config.Stride, types.ErrInvalidParameter)
	}
	estimator, err := response.NewWithConfig(config.Response)
	if err != nil {
		return nil, err
	}

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	return &Detector{
		config:    config,
		estimator: estimator,
		analyzer:  analyzer.NewWithConfig(config.Analyzer),
		log:       quiet,
	}, nil
}

// WithLogger sets the logger used for per-frame debug output
func (d *Detector) WithLogger(logger logrus.FieldLogger) *Detector {
	if logger != nil {
		d.log = logger
	}
	return d
}

// Config returns the detector configuration
func (d *Detector) Config() Config {
	return d.config
}

// FindCorners runs the default detector on a row-major m x n frame and
// returns the corners flattened as [row0, col0, row1, col1, ...].
func FindCorners(image []float64, m, n int, quantile float64) ([]int, error) {
	corners, err := defaultDetector.DetectFrame(image, m, n, quantile)
	if err != nil {
		return nil, err
	}
	return corners.Flatten(), nil
}

var defaultDetector = New()

// DetectFrame validates a raw buffer and returns its corners
func (d *Detector) DetectFrame(data []float64, m, n int, quantile float64) (types.CornerSet, error) {
	if err := threshold.ValidateQuantile(quantile); err != nil {
		return nil, err
	}
	f, err := frame.New(data, m, n)
	if err != nil {
		return nil, err
	}
	res, err := d.Detect(f, quantile)
	if err != nil {
		return nil, err
	}
	return res.Corners, nil
}

// Detect runs estimator, thresholder and suppressor on f
func (d *Detector) Detect(f *frame.Frame, quantile float64) (Result, error) {
	if err := threshold.ValidateQuantile(quantile); err != nil {
		return Result{}, err
	}
	start := time.Now()

	res := Result{
		Corners:  types.CornerSet{},
		Stride:   1,
		Quantile: quantile,
	}
	if f.Empty() {
		return res, nil
	}
	res.Rows, res.Cols = f.Rows(), f.Cols()

	scores := d.estimator.Compute(f)
	res.Scores = scores
	res.Summary = scores.Summary()

	t, ok, err := threshold.Compute(scores.Finite(), f.Len(), quantile)
	if err != nil {
		return Result{}, err
	}
	if ok {
		res.Threshold = t
		res.Candidates = suppress.Candidates(scores, t)
		res.Corners = suppress.Collect(scores, t)
	}
	res.Elapsed = time.Since(start)

	d.log.WithFields(logrus.Fields{
		"rows":       res.Rows,
		"cols":       res.Cols,
		"quantile":   quantile,
		"threshold":  res.Threshold,
		"candidates": res.Candidates,
		"corners":    len(res.Corners),
		"elapsed":    res.Elapsed,
	}).Debug("frame analysed")

	return res, nil
}

// DetectImage converts img to a frame using the configured stride and
// quantile. Corners are in frame coordinates; Result.Stride maps them back.
func (d *Detector) DetectImage(img image.Image) (Result, error) {
	if err := d.analyzer.ValidateImage(img); err != nil {
		return Result{}, fmt.Errorf("image validation failed: %w", err)
	}
	f, err := frame.FromImage(img, d.config.Stride)
	if err != nil {
		return Result{}, fmt.Errorf("frame conversion failed: %w", err)
	}
	res, err := d.Detect(f, d.config.Quantile)
	if err != nil {
		return Result{}, err
	}
	res.Stride = d.config.Stride
	return res, nil
}

// DetectLuma runs the detector on a camera Y plane
func (d *Detector) DetectLuma(plane []byte, width, height, rowStride int) (Result, error) {
	f, err := frame.FromLuma(plane, width, height, rowStride, d.config.Stride)
	if err != nil {
		return Result{}, err
	}
	res, err := d.Detect(f, d.config.Quantile)
	if err != nil {
		return Result{}, err
	}
	res.Stride = d.config.Stride
	return res, nil
}

// LoadImage loads an image from file
func (d *Detector) LoadImage(filepath string) (image.Image, error) {
	return d.analyzer.LoadImage(filepath)
}

// LoadImageFromReader loads an image from an io.Reader
func (d *Detector) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	return d.analyzer.LoadImageFromReader(reader)
}

// GetImageInfo returns basic information about an image
func (d *Detector) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return d.analyzer.GetImageInfo(img, d.config.Stride)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
