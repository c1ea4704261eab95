package geometry

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// FromGeom converts a single-ring polygon into a Ring. Anything else
// (multi-polygons, polygons with holes, points, lines) is rejected with
// ErrParentNotPolygon.
func FromGeom(g geom.T) (Ring, error) {
	p, ok := g.(*geom.Polygon)
	if !ok || p == nil {
		return Ring{}, domain.NewEngineError(domain.ErrParentNotPolygon.Code,
			fmt.Sprintf("%s: got %T", domain.ErrParentNotPolygon.Message, g))
	}
	if p.NumLinearRings() != 1 {
		return Ring{}, domain.NewEngineError(domain.ErrParentNotPolygon.Code,
			fmt.Sprintf("%s: polygon has %d rings", domain.ErrParentNotPolygon.Message, p.NumLinearRings()))
	}

	coords := p.LinearRing(0).Coords()
	pts := make([]domain.Point, len(coords))
	for i, c := range coords {
		pts[i] = domain.Point{X: c.X(), Y: c.Y()}
	}
	return NewRing(pts)
}

// Geom returns r as a go-geom XY polygon.
func (r Ring) Geom() *geom.Polygon {
	coords := make([]geom.Coord, len(r.pts))
	for i, p := range r.pts {
		coords[i] = geom.Coord{p.X, p.Y}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
}

// PolygonGeom builds a go-geom polygon from raw points, closing the ring.
func PolygonGeom(points []domain.Point) (*geom.Polygon, error) {
	r, err := NewRing(points)
	if err != nil {
		return nil, err
	}
	return r.Geom(), nil
}

// DecodeWKT rehydrates a ring from a WKT POLYGON.
func DecodeWKT(s string) (Ring, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return Ring{}, domain.WrapEngineError(domain.ErrInvalidGeometry.Code, "decode WKT", err)
	}
	return FromGeom(g)
}

// WKT encodes r as a WKT POLYGON.
func (r Ring) WKT() (string, error) {
	return wkt.Marshal(r.Geom())
}

// DecodeGeoJSON rehydrates a ring from a GeoJSON Polygon geometry object.
func DecodeGeoJSON(data []byte) (Ring, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return Ring{}, domain.WrapEngineError(domain.ErrInvalidGeometry.Code, "decode GeoJSON", err)
	}
	return FromGeom(g)
}

// GeoJSON encodes r as a GeoJSON Polygon geometry object.
func (r Ring) GeoJSON() ([]byte, error) {
	return geojson.Marshal(r.Geom())
}
