package coords

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/logging"
)

// FormatParser parses the content of one file format.
type FormatParser interface {
	Parse(ctx context.Context, data []byte) (ParseResult, error)
}

// FormatParserFunc adapts a function to FormatParser.
type FormatParserFunc func(ctx context.Context, data []byte) (ParseResult, error)

// Parse calls f.
func (f FormatParserFunc) Parse(ctx context.Context, data []byte) (ParseResult, error) {
	return f(ctx, data)
}

// Router validates a file and dispatches it to the parser registered for its
// format. Shapefiles have no built-in parser; register one to accept them.
type Router struct {
	cfg     config.ComputationConfig
	parsers map[Format]FormatParser
	logger  *slog.Logger
}

// NewRouter creates a router with the delimited, GeoJSON and KML parsers registered.
func NewRouter(cfg config.ComputationConfig, opts ParseOptions, logger *slog.Logger) *Router {
	r := &Router{
		cfg:     cfg,
		parsers: make(map[Format]FormatParser),
		logger:  logging.OrDiscard(logger),
	}
	r.Register(FormatDelimited, FormatParserFunc(func(_ context.Context, data []byte) (ParseResult, error) {
		return ParseDelimited(string(data), opts, cfg), nil
	}))
	r.Register(FormatGeoJSON, &GeoJSONParser{Config: cfg})
	r.Register(FormatKML, &KMLParser{Config: cfg})
	return r
}

// Register sets the parser for a format, replacing any existing one.
func (r *Router) Register(f Format, p FormatParser) {
	r.parsers[f] = p
}

// Parse validates name and data, parses the content, and reprojects the
// coordinates into the canonical reference when the parser reports another.
func (r *Router) Parse(ctx context.Context, name string, data []byte) (ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return ParseResult{}, err
	}
	format, err := ValidateFile(name, int64(len(data)), r.cfg.MaxFileBytes)
	if err != nil {
		return ParseResult{}, err
	}
	p, ok := r.parsers[format]
	if !ok {
		return ParseResult{}, domain.NewEngineError(domain.ErrFormatUnsupported.Code,
			fmt.Sprintf("%s: %s", domain.ErrFormatUnsupported.Message, format))
	}

	res, err := p.Parse(ctx, data)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", name, err)
	}
	res.Format = format

	if res.CRS != "" && !sameCRS(res.CRS, r.cfg.CanonicalCRS) && len(res.Coordinates) > 0 {
		projected, err := Reproject(res.Coordinates, res.CRS, r.cfg.CanonicalCRS)
		if err != nil {
			return res, err
		}
		res.Coordinates = projected
		res.CRS = ""
		if res.Closure != nil {
			res.rediagnose(r.cfg)
		}
	}

	r.logger.Debug("coordinate file parsed",
		"file", name,
		"format", format,
		"coordinates", len(res.Coordinates),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
	)
	return res, nil
}
