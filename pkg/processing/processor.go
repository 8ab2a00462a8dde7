package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/corner-detector/pkg/types"
)

// MaxDownloadSize caps the bytes read from an image URL
const MaxDownloadSize = 32 << 20

// Processor handles image input/output around the corner kernel
type Processor struct {
	client      *http.Client
	maxDownload int64
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		client:      &http.Client{Timeout: 30 * time.Second},
		maxDownload: MaxDownloadSize,
	}
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	// Validate URL
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Corner-Detector/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, p.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imageData)) > p.maxDownload {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxDownload)
	}

	return p.decodeImageFromBytes(imageData)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if IsURL(source) {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// IsURL reports whether source should be fetched over http(s)
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// libwebp handles a few encodings the pure Go decoder rejects
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// OverlayOptions controls CreateCornerOverlay
type OverlayOptions struct {
	// Wash blends a translucent grey layer over the source so markers stand out
	Wash bool
	// MarkerSize is the half-length of each cross arm in source pixels; 0 picks
	// one from the stride and image size
	MarkerSize int
	Color      color.NRGBA
}

// DefaultOverlayOptions matches the live preview: grey wash, green markers
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		Wash:  true,
		Color: color.NRGBA{0, 255, 0, 255},
	}
}

var washColor = color.NRGBA{180, 180, 180, 255}

const washOpacity = 60.0 / 255.0

// CreateCornerOverlay draws corners found on a frame subsampled by stride onto
// a copy of img. Frame (row, col) is drawn at source pixel (col*stride, row*stride).
func (p *Processor) CreateCornerOverlay(img image.Image, corners types.CornerSet, stride int, opts OverlayOptions) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	if opts.Wash {
		wash := imaging.New(w, h, washColor)
		nrgba = imaging.Overlay(nrgba, wash, image.Pt(0, 0), washOpacity)
	}

	arm := opts.MarkerSize
	if arm <= 0 {
		arm = int(math.Max(float64(stride), 0.005*float64(minInt(w, h))))
	}

	for _, c := range corners {
		x, y := c.Scale(stride)
		nrgba.SetNRGBA(x, y, opts.Color)
		drawHLine(nrgba, y, x-arm, x+arm+1, opts.Color)
		drawVLine(nrgba, x, y-arm, y+arm+1, opts.Color)
	}

	return nrgba
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
