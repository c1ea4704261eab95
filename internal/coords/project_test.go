package coords

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

func TestReproject_SameCRSPassThrough(t *testing.T) {
	in := []domain.ParsedCoordinate{{Point: domain.Point{X: 1, Y: 2, ID: "A"}}}
	out, err := Reproject(in, UTMProj4(35, true), "+proj=utm  +zone=35 +south +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out[0].X = 99
	assert.Equal(t, 1.0, in[0].X, "input must not be mutated")
}

func TestReproject_LongLatToUTM(t *testing.T) {
	// 27°E is the central meridian of zone 35.
	in := []domain.ParsedCoordinate{
		{Point: domain.Point{X: 27, Y: -26}},
		{Point: domain.Point{X: 27.01, Y: -26}},
	}
	out, err := Reproject(in, LongLatWGS84, UTMProj4(35, true))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.InDelta(t, 500000, out[0].X, 1)
	assert.Greater(t, out[0].Y, 7000000.0)
	assert.Less(t, out[0].Y, 7300000.0)
	assert.Greater(t, out[1].X, out[0].X, "eastward input must stay eastward")
}

func TestReproject_BadDefinition(t *testing.T) {
	in := []domain.ParsedCoordinate{{Point: domain.Point{X: 1, Y: 2}}}
	_, err := Reproject(in, "+proj=nonsense", LongLatWGS84)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProjection))
}

func TestSourceCRS(t *testing.T) {
	canonical := UTMProj4(35, true)
	crs, err := SourceCRS(ParseOptions{Notation: NotationDecimal}, nil, canonical)
	require.NoError(t, err)
	assert.Equal(t, canonical, crs)

	crs, err = SourceCRS(ParseOptions{Notation: NotationDMS}, nil, canonical)
	require.NoError(t, err)
	assert.Equal(t, LongLatWGS84, crs)

	coords := []domain.ParsedCoordinate{{Zone: "34H"}}
	crs, err = SourceCRS(ParseOptions{Notation: NotationUTM}, coords, canonical)
	require.NoError(t, err)
	assert.Equal(t, UTMProj4(34, true), crs)

	crs, err = SourceCRS(ParseOptions{SourceCRS: "+proj=custom"}, nil, canonical)
	require.NoError(t, err)
	assert.Equal(t, "+proj=custom", crs)
}
