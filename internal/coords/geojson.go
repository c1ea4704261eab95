package coords

import (
	"context"
	"encoding/json"
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
)

// GeoJSONParser reads coordinates from a GeoJSON FeatureCollection, Feature
// or bare geometry. Point features become individual coordinates; the outer
// ring of the first polygon (or the first line) becomes a boundary.
// Coordinates are WGS84 longitude/latitude.
type GeoJSONParser struct {
	Config config.ComputationConfig
}

// Parse implements FormatParser.
func (p *GeoJSONParser) Parse(_ context.Context, data []byte) (ParseResult, error) {
	res := ParseResult{Format: FormatGeoJSON, CRS: LongLatWGS84}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return res, domain.WrapEngineError(domain.ErrInvalidGeometry.Code, "decode GeoJSON", err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return res, domain.WrapEngineError(domain.ErrInvalidGeometry.Code, "decode feature collection", err)
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return res, domain.WrapEngineError(domain.ErrInvalidGeometry.Code, "decode feature", err)
		}
		features = []*geojson.Feature{f}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return res, domain.WrapEngineError(domain.ErrInvalidGeometry.Code, "decode geometry", err)
		}
		features = []*geojson.Feature{geojson.NewFeature(g)}
	}

	var boundaryTaken bool
	for i, f := range features {
		if f == nil || f.Geometry == nil {
			res.Errors = append(res.Errors, LineError{Line: i + 1, Message: "feature has no geometry"})
			continue
		}
		g := f.Geometry
		switch {
		case g.IsPoint():
			c := coordinate(g.Point, featureLabel(f))
			c.Description, _ = f.PropertyString("description")
			c.Line = i + 1
			res.Coordinates = append(res.Coordinates, c)
		case g.IsPolygon() || g.IsLineString():
			if boundaryTaken {
				res.Warnings = append(res.Warnings, fmt.Sprintf("feature %d: additional boundary ignored", i+1))
				continue
			}
			boundaryTaken = true
			positions := g.LineString
			if g.IsPolygon() {
				if len(g.Polygon) == 0 {
					res.Errors = append(res.Errors, LineError{Line: i + 1, Message: "polygon has no rings"})
					continue
				}
				positions = g.Polygon[0]
				if len(g.Polygon) > 1 {
					res.Warnings = append(res.Warnings, fmt.Sprintf("feature %d: %d interior rings ignored", i+1, len(g.Polygon)-1))
				}
			}
			for j, pos := range positions {
				c := coordinate(pos, fmt.Sprintf("%s%d", featureLabel(f), j+1))
				c.Line = i + 1
				res.Coordinates = append(res.Coordinates, c)
			}
		default:
			res.Warnings = append(res.Warnings, fmt.Sprintf("feature %d: unsupported geometry type %s", i+1, g.Type))
		}
	}

	for i, c := range res.Coordinates {
		if len(c.ID) == 0 {
			res.Coordinates[i].ID = fmt.Sprintf("P%d", i+1)
			res.Coordinates[i].Label = res.Coordinates[i].ID
		}
	}

	res.Warnings = append(res.Warnings, closureDiagnostic(&res, p.Config)...)
	res.Success = len(res.Errors) == 0 && len(res.Coordinates) > 0
	return res, nil
}

func coordinate(pos []float64, label string) domain.ParsedCoordinate {
	c := domain.ParsedCoordinate{Label: label}
	c.ID = label
	if len(pos) >= 2 {
		c.X, c.Y = pos[0], pos[1]
	}
	if len(pos) >= 3 {
		z := pos[2]
		c.Z = &z
	}
	return c
}

func featureLabel(f *geojson.Feature) string {
	for _, key := range []string{"id", "name", "label"} {
		if s, err := f.PropertyString(key); err == nil && s != "" {
			return s
		}
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return ""
}
