package coords

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		size   int64
		format Format
		err    error
	}{
		{"csv", "points.CSV", 100, FormatDelimited, nil},
		{"zip shapefile", "parcel.zip", 100, FormatShapefile, nil},
		{"kml", "parcel.kml", 100, FormatKML, nil},
		{"geojson", "parcel.geojson", 100, FormatGeoJSON, nil},
		{"bad extension", "parcel.dwg", 100, "", domain.ErrFileExtension},
		{"empty", "points.csv", 0, "", domain.ErrFileEmpty},
		{"too large", "points.csv", 10<<20 + 1, "", domain.ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFile(tt.file, tt.size, 10<<20)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, got)
		})
	}
}

func TestRouter_Delimited(t *testing.T) {
	r := NewRouter(config.DefaultComputation(), DefaultParseOptions(), nil)
	res, err := r.Parse(context.Background(), "traverse.csv", []byte(closedTraverse))
	require.NoError(t, err)
	assert.Equal(t, FormatDelimited, res.Format)
	assert.Len(t, res.Coordinates, 5)
	assert.True(t, res.Success)
}

func TestRouter_ShapefileNeedsCollaborator(t *testing.T) {
	r := NewRouter(config.DefaultComputation(), DefaultParseOptions(), nil)
	_, err := r.Parse(context.Background(), "parcel.zip", []byte("PK"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFormatUnsupported))

	r.Register(FormatShapefile, FormatParserFunc(func(_ context.Context, _ []byte) (ParseResult, error) {
		return ParseResult{Success: true, Coordinates: []domain.ParsedCoordinate{{Point: domain.Point{X: 1, Y: 1}}}}, nil
	}))
	res, err := r.Parse(context.Background(), "parcel.zip", []byte("PK"))
	require.NoError(t, err)
	assert.Equal(t, FormatShapefile, res.Format)
	assert.Len(t, res.Coordinates, 1)
}

func TestRouter_CancelledContext(t *testing.T) {
	r := NewRouter(config.DefaultComputation(), DefaultParseOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Parse(ctx, "traverse.csv", []byte(closedTraverse))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouter_GeoJSONReprojected(t *testing.T) {
	data := []byte(`{"type":"Feature","properties":{"name":"ERF"},"geometry":{"type":"Polygon","coordinates":[[[27,-26],[27.001,-26],[27.001,-25.999],[27,-25.999],[27,-26]]]}}`)
	r := NewRouter(config.DefaultComputation(), DefaultParseOptions(), nil)

	res, err := r.Parse(context.Background(), "erf.geojson", data)
	require.NoError(t, err)
	require.True(t, res.Success, "errors: %v", res.Errors)
	require.Len(t, res.Coordinates, 5)
	assert.Empty(t, res.CRS)
	assert.InDelta(t, 500000, res.Coordinates[0].X, 1)
	assert.Equal(t, "ERF1", res.Coordinates[0].ID)
	require.NotNil(t, res.Closure)
	assert.True(t, res.Closure.IsWithinTolerance)
}

func TestRouter_DMSClosureMeasuredAfterReprojection(t *testing.T) {
	content := "name,lon,lat\n" +
		"A,27°00'00\"E,26°00'00\"S\n" +
		"B,27°00'36\"E,26°00'00\"S\n" +
		"C,27°00'36\"E,25°59'24\"S\n" +
		"D,27°00'00\"E,25°59'24\"S\n" +
		"A,27°00'00.01\"E,26°00'00\"S\n"
	opts := DefaultParseOptions()
	opts.Notation = NotationDMS
	r := NewRouter(config.DefaultComputation(), opts, nil)

	res, err := r.Parse(context.Background(), "erf.csv", []byte(content))
	require.NoError(t, err)
	require.True(t, res.Success, "errors: %v", res.Errors)
	require.NotNil(t, res.Closure)
	// 0.01" of longitude at 26°S is roughly 0.28 m.
	assert.InDelta(t, 0.278, res.Closure.ClosureError, 0.01)

	var notClosed []string
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, "ring is not closed") {
			notClosed = append(notClosed, w)
		}
	}
	require.Len(t, notClosed, 1)
	assert.Equal(t, fmt.Sprintf("ring is not closed: last point is %.4f m from the first", res.Closure.ClosureError), notClosed[0])
}
