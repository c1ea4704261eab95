// Package config loads and validates engine configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// Default numeric conventions.
const (
	DefaultClosureTolerance   = 0.0001
	DefaultPrecision          = 4
	DefaultAdjustmentTrigger  = 0.001
	DefaultDuplicateTolerance = 0.01
	DefaultCollinearTolerance = 0.001
	DefaultAreaDriftTolerance = 0.1
	DefaultMaxFloorSpan       = 50
	DefaultMaxFileBytes       = 10 << 20
	DefaultCanonicalCRS       = "+proj=utm +zone=35 +south +datum=WGS84 +units=m +no_defs"
)

// Bounds is a projected-coordinate bounding envelope.
type Bounds struct {
	MinX float64 `json:"min_x" yaml:"min_x" toml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y" toml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x" toml:"max_x" validate:"gtfield=MinX"`
	MaxY float64 `json:"max_y" yaml:"max_y" toml:"max_y" validate:"gtfield=MinY"`
}

// Contains reports whether (x, y) lies inside the envelope, edges included.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// IsZero reports whether the envelope was left unset.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// ComputationConfig carries every jurisdiction-dependent constant used by the
// computation stages. It is passed explicitly into each entry point.
type ComputationConfig struct {
	// ClosureTolerance is the largest acceptable fractional closure error (1:10,000 = 0.0001).
	ClosureTolerance float64 `json:"closure_tolerance" yaml:"closure_tolerance" toml:"closure_tolerance" validate:"gt=0,lt=1"`
	// Precision is the number of decimal places for quotas; unset selects 4.
	Precision int `json:"precision" yaml:"precision" toml:"precision" validate:"gte=1,lte=10"`
	// AdjustmentTrigger is the closure error in metres above which an adjustment is attempted.
	AdjustmentTrigger  float64 `json:"adjustment_trigger" yaml:"adjustment_trigger" toml:"adjustment_trigger" validate:"gte=0"`
	DuplicateTolerance float64 `json:"duplicate_tolerance" yaml:"duplicate_tolerance" toml:"duplicate_tolerance" validate:"gte=0"`
	CollinearTolerance float64 `json:"collinear_tolerance" yaml:"collinear_tolerance" toml:"collinear_tolerance" validate:"gte=0"`
	AreaDriftTolerance float64 `json:"area_drift_tolerance" yaml:"area_drift_tolerance" toml:"area_drift_tolerance" validate:"gte=0"`
	MaxFloorSpan       int     `json:"max_floor_span" yaml:"max_floor_span" toml:"max_floor_span" validate:"gt=0"`
	JurisdictionBounds Bounds  `json:"jurisdiction_bounds" yaml:"jurisdiction_bounds" toml:"jurisdiction_bounds"`
	CanonicalCRS       string  `json:"canonical_crs" yaml:"canonical_crs" toml:"canonical_crs" validate:"required"`
	MaxFileBytes       int64   `json:"max_file_bytes" yaml:"max_file_bytes" toml:"max_file_bytes" validate:"gt=0"`
	// Workers bounds per-unit parallelism in geometry generation.
	Workers int `json:"workers" yaml:"workers" toml:"workers" validate:"gte=1,lte=256"`
}

// DefaultComputation returns the regulatory defaults.
func DefaultComputation() ComputationConfig {
	c := ComputationConfig{}
	c.applyDefaults()
	return c
}

func (c *ComputationConfig) applyDefaults() {
	if c.ClosureTolerance == 0 {
		c.ClosureTolerance = DefaultClosureTolerance
	}
	if c.Precision == 0 {
		c.Precision = DefaultPrecision
	}
	if c.AdjustmentTrigger == 0 {
		c.AdjustmentTrigger = DefaultAdjustmentTrigger
	}
	if c.DuplicateTolerance == 0 {
		c.DuplicateTolerance = DefaultDuplicateTolerance
	}
	if c.CollinearTolerance == 0 {
		c.CollinearTolerance = DefaultCollinearTolerance
	}
	if c.AreaDriftTolerance == 0 {
		c.AreaDriftTolerance = DefaultAreaDriftTolerance
	}
	if c.MaxFloorSpan == 0 {
		c.MaxFloorSpan = DefaultMaxFloorSpan
	}
	if c.JurisdictionBounds.IsZero() {
		c.JurisdictionBounds = Bounds{MinX: 100000, MinY: 0, MaxX: 900000, MaxY: 10000000}
	}
	if c.CanonicalCRS == "" {
		c.CanonicalCRS = DefaultCanonicalCRS
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" toml:"format" validate:"omitempty,oneof=text json"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	// DBPath enables the SQLite store when non-empty.
	DBPath      string            `json:"db_path" yaml:"db_path" toml:"db_path"`
	Computation ComputationConfig `json:"computation" yaml:"computation" toml:"computation"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging" toml:"logging"`
	// MetricsEnabled registers prometheus collectors for the pipeline.
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled" toml:"metrics_enabled"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON, YAML or TOML config file (chosen by extension),
// applies defaults, and validates. An explicit precision below 1 is rejected
// rather than replaced by the default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var cfg Config
	if err := decode(ext, data, &cfg); err != nil {
		return nil, err
	}
	var explicit struct {
		Computation struct {
			Precision *int `json:"precision" yaml:"precision" toml:"precision"`
		} `json:"computation" yaml:"computation" toml:"computation"`
	}
	if err := decode(ext, data, &explicit); err != nil {
		return nil, err
	}
	if p := explicit.Computation.Precision; p != nil && *p < 1 {
		return nil, &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: computation.precision must be between 1 and 10, got %d", domain.ErrConfigInvalid.Message, *p),
		}
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func decode(ext string, data []byte, v any) error {
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse config YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), v); err != nil {
			return fmt.Errorf("parse config TOML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse config JSON: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Computation.applyDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

var validate = validator.New()

func (c *Config) validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var problems []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	} else {
		problems = append(problems, err.Error())
	}

	return &domain.EngineError{
		Code:    domain.ErrConfigInvalid.Code,
		Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
	}
}

// Validate checks a computation config supplied without going through Load.
func (c ComputationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return domain.WrapEngineError(domain.ErrConfigInvalid.Code, domain.ErrConfigInvalid.Message, err)
	}
	return nil
}
