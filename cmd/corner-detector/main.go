package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cornerdetector "github.com/menta2k/corner-detector"
	"github.com/menta2k/corner-detector/internal/config"
	"github.com/menta2k/corner-detector/internal/logging"
	"github.com/menta2k/corner-detector/internal/utils"
	"github.com/menta2k/corner-detector/pkg/analyzer"
	"github.com/menta2k/corner-detector/pkg/processing"
)

// report is the JSON document written per input
type report struct {
	Source string                `json:"source"`
	Image  analyzer.ImageInfo    `json:"image"`
	Result cornerdetector.Result `json:"result"`
	// Flat is the row/col packed corner list in frame coordinates
	Flat []int `json:"flat"`
}

func main() {
	var in, cfgPath, outDir, response, overlayExt, logLevel, logFile string
	var quantile, harrisK float64
	var stride, workers, jobs, quality int
	var overlay, heatmap, lossless bool

	flag.StringVar(&in, "in", "", "input image path, directory or URL (jpg/png/webp)")
	flag.StringVar(&cfgPath, "config", "", "config file (.json or .yaml)")
	flag.StringVar(&outDir, "out", "", "output directory")
	flag.Float64Var(&quantile, "quantile", 0, "fraction of pixels kept before suppression, in (0, 1)")
	flag.StringVar(&response, "response", "", "score: min-eigenvalue|harris|harmonic-mean")
	flag.Float64Var(&harrisK, "harris-k", 0, "harris sensitivity, in (0, 0.25)")
	flag.IntVar(&stride, "stride", 0, "nearest-neighbour downsampling stride")
	flag.IntVar(&workers, "workers", 0, "goroutines scoring rows of one frame")
	flag.IntVar(&jobs, "jobs", runtime.NumCPU(), "images processed concurrently")
	flag.BoolVar(&overlay, "overlay", false, "write a corner overlay image")
	flag.StringVar(&overlayExt, "overlay-ext", "", "overlay format: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP overlay quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP overlay lossless mode")
	flag.BoolVar(&heatmap, "heatmap", false, "write a score heatmap")
	flag.StringVar(&logLevel, "log-level", "", "trace|debug|info|warn|error")
	flag.StringVar(&logFile, "log-file", "", "also write logs to this rotated file")
	flag.Parse()

	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in image.jpg|dir|URL [-quantile 0.005] [-response min-eigenvalue] [-stride 2] [-overlay] [-heatmap] [-out dir]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.OutputDir = outDir
		case "quantile":
			cfg.Detector.Quantile = quantile
		case "response":
			cfg.Detector.Response = response
		case "harris-k":
			cfg.Detector.HarrisK = harrisK
		case "stride":
			cfg.Preprocess.Stride = stride
		case "workers":
			cfg.Detector.Workers = workers
		case "overlay":
			cfg.Output.Overlay = overlay
		case "overlay-ext":
			cfg.Output.OverlayFormat = strings.ToLower(overlayExt)
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "heatmap":
			cfg.Output.Heatmap = heatmap
		case "log-level":
			cfg.Logging.Level = logLevel
		case "log-file":
			cfg.Logging.File = logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	detector, err := cornerdetector.NewWithConfig(cfg.Kernel())
	if err != nil {
		log.WithError(err).Fatal("invalid detector configuration")
	}
	detector.WithLogger(log)

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		log.WithError(err).Fatal("cannot create output directory")
	}

	sources, err := collectSources(in, cfg.Preprocess.SupportedFormats)
	if err != nil {
		log.WithError(err).Fatal("cannot list inputs")
	}
	if len(sources) == 0 {
		log.WithField("in", in).Fatal("no images found")
	}

	log.WithFields(logging.Fields{
		"inputs":   len(sources),
		"quantile": cfg.Detector.Quantile,
		"response": cfg.Detector.Response,
		"stride":   cfg.Preprocess.Stride,
		"jobs":     jobs,
	}).Info("starting corner detection")

	processor := processing.NewProcessor()
	var failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(max(1, jobs))
	for _, src := range sources {
		g.Go(func() error {
			if err := processSource(src, in, detector, processor, cfg, log); err != nil {
				failed.Add(1)
				log.WithError(err).WithField("source", src).Error("detection failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		log.WithField("failed", n).Error("finished with failures")
		os.Exit(1)
	}
	log.WithField("inputs", len(sources)).Info("done")
}

// collectSources expands a directory into its images; files and URLs pass through
func collectSources(in string, formats []string) ([]string, error) {
	if processing.IsURL(in) || !utils.DirExists(in) {
		return []string{in}, nil
	}
	return utils.ListImageFiles(in, formats)
}

// outputLocation picks the file name stem and output directory for src.
// Inputs found under a directory keep their relative layout below outDir so
// equal base names from different subdirectories do not overwrite each other.
func outputLocation(src, in, outDir string) (name, dir string) {
	if processing.IsURL(src) {
		return filepath.Base(strings.SplitN(src, "?", 2)[0]), outDir
	}
	if utils.DirExists(in) {
		if rel, err := filepath.Rel(in, src); err == nil {
			return filepath.Base(rel), filepath.Join(outDir, filepath.Dir(rel))
		}
	}
	return filepath.Base(src), outDir
}

func processSource(src, in string, detector *cornerdetector.Detector, processor *processing.Processor, cfg *config.Config, log logrus.FieldLogger) error {
	img, err := processor.LoadImageSmart(src)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	res, err := detector.DetectImage(img)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	out := cfg.Output
	name, dir := outputLocation(src, in, out.OutputDir)
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	rep := report{
		Source: src,
		Image:  detector.GetImageInfo(img),
		Result: res,
		Flat:   res.Corners.Flatten(),
	}
	js, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	jsonPath := utils.GenerateOutputFilename(name, dir, out.Suffix, "json")
	if err := os.WriteFile(jsonPath, js, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	entry := log.WithFields(logging.Fields{
		"source":    src,
		"frame":     fmt.Sprintf("%dx%d", res.Rows, res.Cols),
		"threshold": res.Threshold,
		"corners":   len(res.Corners),
	})

	if out.Overlay {
		ov := processor.CreateCornerOverlay(img, res.Corners, res.Stride, processing.DefaultOverlayOptions())
		ovPath := utils.GenerateOutputFilename(name, dir, out.Suffix+"_overlay", out.OverlayFormat)
		if err := processor.SaveImage(ov, ovPath, out.OverlayFormat, out.Quality, out.Lossless); err != nil {
			return fmt.Errorf("save overlay: %w", err)
		}
		entry = entry.WithField("overlay", ovPath)
	}

	if out.Heatmap && res.Scores != nil {
		hmPath := utils.GenerateOutputFilename(name, dir, out.Suffix+"_heatmap", "png")
		title := fmt.Sprintf("%s scores (q=%g)", filepath.Base(name), res.Quantile)
		if err := processor.WriteHeatmap(res.Scores, res.Corners, title, hmPath); err != nil {
			// a flat frame has nothing to plot; keep the report
			entry.WithError(err).Warn("heatmap skipped")
		} else {
			entry = entry.WithField("heatmap", hmPath)
		}
	}

	entry.WithField("report", jsonPath).Info("wrote results")
	return nil
}
