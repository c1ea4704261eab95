package coords

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/parcelgrid/survey-engine/internal/cogo"
	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
)

var headerAliases = map[string][]string{
	"x":           {"x", "easting", "east", "e", "lon", "longitude", "lng"},
	"y":           {"y", "northing", "north", "n", "lat", "latitude"},
	"z":           {"z", "elevation", "height", "elev", "h"},
	"id":          {"id", "point", "point_id", "name", "label", "pt"},
	"description": {"description", "desc", "code", "remarks"},
	"zone":        {"zone", "utm_zone"},
}

type columns struct {
	x, y, z, id, desc, zone int
}

// ParseDelimited parses delimited coordinate text. Bad rows are reported as
// line errors and skipped; parsing never stops early on a row failure.
// With 3 or more coordinates a closure diagnostic is attached and any
// misclosure is reported as a warning.
func ParseDelimited(content string, opts ParseOptions, cfg config.ComputationConfig) ParseResult {
	res := ParseResult{Format: FormatDelimited}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Notation == "" {
		opts.Notation = NotationDecimal
	}

	r := csv.NewReader(strings.NewReader(content))
	r.Comma = opts.Delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var (
		cols     columns
		resolved bool
		skipped  int
		zones    = map[string]bool{}
	)

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Errors = append(res.Errors, LineError{Line: perr.Line, Message: perr.Err.Error()})
				continue
			}
			res.Errors = append(res.Errors, LineError{Message: err.Error()})
			break
		}
		line, _ := r.FieldPos(0)

		if skipped < opts.SkipRows {
			skipped++
			continue
		}

		if !resolved {
			var header []string
			if opts.HasHeader {
				header = record
			}
			cols, err = resolveColumns(opts, header)
			if err != nil {
				res.Errors = append(res.Errors, LineError{Line: line, Message: err.Error()})
				res.Success = false
				return res
			}
			resolved = true
			if opts.HasHeader {
				continue
			}
		}

		coord, err := parseRow(record, cols, opts)
		if err != nil {
			res.Errors = append(res.Errors, LineError{Line: line, Message: err.Error()})
			continue
		}
		coord.Line = line
		if coord.Zone != "" {
			zones[coord.Zone] = true
		}
		res.Coordinates = append(res.Coordinates, coord)
	}

	if len(zones) > 1 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("coordinates span %d UTM zones; reproject before computing", len(zones)))
	}
	if len(res.Coordinates) == 0 && len(res.Errors) == 0 {
		res.Errors = append(res.Errors, LineError{Message: "no coordinates found"})
	}

	if opts.Notation != NotationDecimal || opts.SourceCRS != "" {
		crs, err := SourceCRS(opts, res.Coordinates, "")
		if err != nil {
			res.Errors = append(res.Errors, LineError{Message: err.Error()})
		}
		res.CRS = crs
	}

	res.Warnings = append(res.Warnings, closureDiagnostic(&res, cfg)...)
	res.Success = len(res.Errors) == 0
	return res
}

// closureDiagnostic measures the closure of the parsed ring, attaches it to
// res and returns the resulting warnings.
func closureDiagnostic(res *ParseResult, cfg config.ComputationConfig) []string {
	res.closureNotes = nil
	if len(res.Coordinates) < 3 {
		return nil
	}
	pts := domain.Points(res.Coordinates)
	closure := cogo.ComputeClosure(pts, cfg.ClosureTolerance)
	res.Closure = &closure

	var warnings []string
	if !geometry.IsClosed(pts) {
		first, last := pts[0], pts[len(pts)-1]
		warnings = append(warnings, fmt.Sprintf("ring is not closed: last point is %.4f m from the first",
			math.Hypot(last.X-first.X, last.Y-first.Y)))
	}
	if !closure.IsWithinTolerance {
		warnings = append(warnings, fmt.Sprintf("closure %s exceeds tolerance %s",
			cogo.FormatRatio(closure.FractionalError), cogo.FormatRatio(cfg.ClosureTolerance)))
	}
	res.closureNotes = warnings
	return warnings
}

// rediagnose replaces the closure and its warnings once the coordinates have
// changed, e.g. after reprojection.
func (res *ParseResult) rediagnose(cfg config.ComputationConfig) {
	if len(res.closureNotes) > 0 {
		kept := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			if !slices.Contains(res.closureNotes, w) {
				kept = append(kept, w)
			}
		}
		res.Warnings = kept
	}
	res.Closure = nil
	res.Warnings = append(res.Warnings, closureDiagnostic(res, cfg)...)
}

func resolveColumns(opts ParseOptions, header []string) (columns, error) {
	find := func(ref ColumnRef, alias string, required bool) (int, error) {
		if ref.Position > 0 {
			return ref.Position - 1, nil
		}
		names := []string{ref.Name}
		if ref.Name == "" {
			if header == nil || alias == "" {
				if required {
					return -1, fmt.Errorf("%s: %s column must be selected by position when there is no header",
						domain.ErrColumnNotFound.Message, alias)
				}
				return -1, nil
			}
			names = headerAliases[alias]
		}
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
			for _, n := range names {
				if h == strings.ToLower(n) {
					return i, nil
				}
			}
		}
		if required || ref.Name != "" {
			return -1, fmt.Errorf("%s: %s", domain.ErrColumnNotFound.Message, names[0])
		}
		return -1, nil
	}

	var c columns
	var err error
	if c.x, err = find(opts.X, "x", true); err != nil {
		return c, err
	}
	if c.y, err = find(opts.Y, "y", true); err != nil {
		return c, err
	}
	if c.z, err = find(opts.Z, "z", false); err != nil {
		return c, err
	}
	if c.id, err = find(opts.ID, "id", false); err != nil {
		return c, err
	}
	if c.desc, err = find(opts.Description, "description", false); err != nil {
		return c, err
	}
	if c.zone, err = find(opts.Zone, "zone", false); err != nil {
		return c, err
	}
	return c, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseRow(record []string, cols columns, opts ParseOptions) (domain.ParsedCoordinate, error) {
	var c domain.ParsedCoordinate
	xs, ys := field(record, cols.x), field(record, cols.y)
	if xs == "" || ys == "" {
		return c, fmt.Errorf("missing X or Y value")
	}

	switch opts.Notation {
	case NotationDecimal:
		x, err := parseFloat(xs)
		if err != nil {
			return c, fmt.Errorf("invalid X %q: %w", xs, err)
		}
		y, err := parseFloat(ys)
		if err != nil {
			return c, fmt.Errorf("invalid Y %q: %w", ys, err)
		}
		c.X, c.Y = x, y
	case NotationUTM:
		x, err := parseFloat(xs)
		if err != nil {
			return c, fmt.Errorf("invalid easting %q: %w", xs, err)
		}
		y, err := parseFloat(ys)
		if err != nil {
			return c, fmt.Errorf("invalid northing %q: %w", ys, err)
		}
		zone := field(record, cols.zone)
		if zone == "" {
			zone = opts.DefaultZone
		}
		z, err := ParseUTMZone(zone)
		if err != nil {
			return c, err
		}
		if x < 100000 || x > 900000 || y < 0 || y > 10000000 {
			return c, fmt.Errorf("UTM coordinate (%g, %g) outside valid easting/northing range", x, y)
		}
		c.X, c.Y, c.Zone = x, y, z.String()
	case NotationDMS:
		lon, err := ParseDMS(xs)
		if err != nil {
			return c, fmt.Errorf("invalid longitude: %w", err)
		}
		lat, err := ParseDMS(ys)
		if err != nil {
			return c, fmt.Errorf("invalid latitude: %w", err)
		}
		if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
			return c, fmt.Errorf("latitude/longitude (%g, %g) out of range", lat, lon)
		}
		c.X, c.Y = lon, lat
	default:
		return c, fmt.Errorf("%s: unknown notation %q", domain.ErrInvalidNotation.Message, opts.Notation)
	}

	if zs := field(record, cols.z); zs != "" {
		z, err := parseFloat(zs)
		if err != nil {
			return c, fmt.Errorf("invalid Z %q: %w", zs, err)
		}
		c.Z = &z
	}
	c.ID = field(record, cols.id)
	c.Label = c.ID
	c.Description = field(record, cols.desc)
	return c, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Unwrap(err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.ErrNonFiniteValue
	}
	return v, nil
}
