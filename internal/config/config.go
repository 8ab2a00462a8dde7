package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	cornerdetector "github.com/menta2k/corner-detector"
	"github.com/menta2k/corner-detector/pkg/analyzer"
	"github.com/menta2k/corner-detector/pkg/response"
	"github.com/menta2k/corner-detector/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Detector   DetectorConfig   `json:"detector" yaml:"detector"`
	Preprocess PreprocessConfig `json:"preprocess" yaml:"preprocess"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DetectorConfig holds the kernel tunables
type DetectorConfig struct {
	Quantile float64 `json:"quantile" yaml:"quantile" validate:"gt=0,lt=1"`
	Response string  `json:"response" yaml:"response" validate:"oneof=min-eigenvalue harris harmonic-mean"`
	HarrisK  float64 `json:"harris_k" yaml:"harris_k" validate:"gt=0,lt=0.25"`
	Workers  int     `json:"workers" yaml:"workers" validate:"gte=0,lte=256"`
}

// PreprocessConfig holds frame conversion settings
type PreprocessConfig struct {
	Stride           int      `json:"stride" yaml:"stride" validate:"gte=1,lte=64"`
	SupportedFormats []string `json:"supported_formats" yaml:"supported_formats" validate:"min=1,dive,required"`
	MinImageSize     int      `json:"min_image_size" yaml:"min_image_size" validate:"gte=1"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir     string `json:"output_dir" yaml:"output_dir" validate:"required"`
	Suffix        string `json:"suffix" yaml:"suffix"`
	Overlay       bool   `json:"overlay" yaml:"overlay"`
	OverlayFormat string `json:"overlay_format" yaml:"overlay_format" validate:"oneof=png jpg jpeg webp"`
	Quality       int    `json:"quality" yaml:"quality" validate:"gte=1,lte=100"`
	Lossless      bool   `json:"lossless" yaml:"lossless"`
	Heatmap       bool   `json:"heatmap" yaml:"heatmap"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	File  string `json:"file" yaml:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Quantile: 0.005,
			Response: "min-eigenvalue",
			HarrisK:  0.04,
			Workers:  1,
		},
		Preprocess: PreprocessConfig{
			Stride:           2,
			SupportedFormats: []string{"jpg", "jpeg", "png", "webp"},
			MinImageSize:     16,
		},
		Output: OutputConfig{
			OutputDir:     "./output",
			Suffix:        "_corners",
			Overlay:       true,
			OverlayFormat: "png",
			Quality:       92,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file. Missing fields
// keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid. Failures wrap
// types.ErrInvalidParameter.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (value %v): %w",
				strings.ToLower(fe.Namespace()), fe.Tag(), fe.Value(), types.ErrInvalidParameter)
		}
		return fmt.Errorf("invalid config: %v: %w", err, types.ErrInvalidParameter)
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "corner-detector", "config.json")
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// Kernel maps the file configuration onto the detector configuration
func (c *Config) Kernel() cornerdetector.Config {
	return cornerdetector.Config{
		Quantile: c.Detector.Quantile,
		Stride:   c.Preprocess.Stride,
		Response: response.Config{
			Kind:    response.Kind(c.Detector.Response),
			HarrisK: c.Detector.HarrisK,
			Workers: c.Detector.Workers,
		},
		Analyzer: analyzer.Config{
			SupportedFormats: c.Preprocess.SupportedFormats,
			MinImageSize:     c.Preprocess.MinImageSize,
		},
	}
}
