package analyzer

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	// decoders for image.Decode
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageAnalyzer gates images before they are turned into frames
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	// MinImageSize is the smallest accepted width and height, in source pixels
	MinImageSize int
}

// DefaultConfig accepts jpeg, png and webp images of at least 16 pixels per side
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpg", "jpeg", "png", "webp"},
		MinImageSize:     16,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// LoadImage loads an image from file
func (a *ImageAnalyzer) LoadImage(filepath string) (image.Image, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	return a.LoadImageFromReader(file)
}

// LoadImageFromReader loads an image from an io.Reader
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if !a.isFormatSupported(format) {
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}

	return img, nil
}

// ImageInfo contains basic image metadata and the frame size it yields
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	FrameRows   int     `json:"frame_rows"`
	FrameCols   int     `json:"frame_cols"`
}

// GetImageInfo returns basic information about an image subsampled by stride
func (a *ImageAnalyzer) GetImageInfo(img image.Image, stride int) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if stride < 1 {
		stride = 1
	}

	info := ImageInfo{
		Width:     width,
		Height:    height,
		Area:      width * height,
		FrameRows: height / stride,
		FrameCols: width / stride,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}
