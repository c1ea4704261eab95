package coords

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/config"
)

func TestGeoJSONParser_PointCollection(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type":"Feature","properties":{"id":"BM1","description":"beacon"},"geometry":{"type":"Point","coordinates":[27.1,-26.2,1500]}},
			{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[27.2,-26.3]}},
			{"type":"Feature","properties":{},"geometry":{"type":"MultiPoint","coordinates":[[1,2]]}}
		]
	}`)
	p := &GeoJSONParser{Config: config.DefaultComputation()}
	res, err := p.Parse(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, res.Coordinates, 2)
	assert.Equal(t, "BM1", res.Coordinates[0].ID)
	assert.Equal(t, "beacon", res.Coordinates[0].Description)
	require.NotNil(t, res.Coordinates[0].Z)
	assert.Equal(t, 1500.0, *res.Coordinates[0].Z)
	assert.Equal(t, "P2", res.Coordinates[1].ID)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, LongLatWGS84, res.CRS)
}

func TestGeoJSONParser_Invalid(t *testing.T) {
	p := &GeoJSONParser{Config: config.DefaultComputation()}
	_, err := p.Parse(context.Background(), []byte(`{not json`))
	assert.Error(t, err)
}

const parcelKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Scheme</name>
    <Placemark>
      <name>BM1</name>
      <Point><coordinates>27.5,-25.7,1400</coordinates></Point>
    </Placemark>
    <Placemark>
      <name>Erf</name>
      <Polygon>
        <outerBoundaryIs><LinearRing><coordinates>
          27,-26,0 27.001,-26,0 27.001,-25.999,0 27,-26,0
        </coordinates></LinearRing></outerBoundaryIs>
        <innerBoundaryIs><LinearRing><coordinates>
          27.0002,-25.9998 27.0003,-25.9998 27.0003,-25.9997 27.0002,-25.9998
        </coordinates></LinearRing></innerBoundaryIs>
      </Polygon>
    </Placemark>
  </Document>
</kml>`

func TestKMLParser(t *testing.T) {
	p := &KMLParser{Config: config.DefaultComputation()}
	res, err := p.Parse(context.Background(), []byte(parcelKML))
	require.NoError(t, err)
	require.True(t, res.Success, "errors: %v", res.Errors)

	require.Len(t, res.Coordinates, 5)
	assert.Equal(t, "BM1", res.Coordinates[0].ID)
	assert.Equal(t, 27.5, res.Coordinates[0].X)
	require.NotNil(t, res.Coordinates[0].Z)
	assert.Equal(t, "Erf-1", res.Coordinates[1].ID)
	assert.Equal(t, -26.0, res.Coordinates[1].Y)
}

func TestKMLParser_BadTuple(t *testing.T) {
	doc := `<kml><Placemark><LineString><coordinates>27,-26 garbage 28,x</coordinates></LineString></Placemark></kml>`
	p := &KMLParser{Config: config.DefaultComputation()}
	res, err := p.Parse(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 2)
	assert.Len(t, res.Coordinates, 1)
}

func TestKMLParser_Malformed(t *testing.T) {
	p := &KMLParser{Config: config.DefaultComputation()}
	_, err := p.Parse(context.Background(), []byte(`<kml><Placemark>`))
	assert.Error(t, err)
}
