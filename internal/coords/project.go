package coords

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom/proj"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// LongLatWGS84 is the geographic reference of decimal-degree and DMS input.
const LongLatWGS84 = "+proj=longlat +datum=WGS84 +no_defs"

// Reproject converts coordinates from sourceCRS to targetCRS, both proj4
// definitions. Identical definitions return an unmodified copy.
func Reproject(coords []domain.ParsedCoordinate, sourceCRS, targetCRS string) ([]domain.ParsedCoordinate, error) {
	out := make([]domain.ParsedCoordinate, len(coords))
	copy(out, coords)
	if sameCRS(sourceCRS, targetCRS) {
		return out, nil
	}

	src, err := proj.Parse(sourceCRS)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrProjection.Code, "parse source reference", err)
	}
	dst, err := proj.Parse(targetCRS)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrProjection.Code, "parse target reference", err)
	}
	transform, err := src.NewTransform(dst)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrProjection.Code, "build transform", err)
	}

	for i := range out {
		x, y, err := transform(out[i].X, out[i].Y)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrProjection.Code,
				fmt.Sprintf("point %d (%g, %g)", i+1, out[i].X, out[i].Y), err)
		}
		out[i].X, out[i].Y = x, y
		out[i].Zone = ""
	}
	return out, nil
}

// SourceCRS picks the reference system of parsed input: the explicit option if
// set, otherwise the one implied by the notation. UTM input uses the zone of
// its first coordinate; decimal input is assumed canonical.
func SourceCRS(opts ParseOptions, coords []domain.ParsedCoordinate, canonical string) (string, error) {
	if opts.SourceCRS != "" {
		return opts.SourceCRS, nil
	}
	switch opts.Notation {
	case NotationDMS:
		return LongLatWGS84, nil
	case NotationUTM:
		if len(coords) == 0 {
			return canonical, nil
		}
		z, err := ParseUTMZone(coords[0].Zone)
		if err != nil {
			return "", err
		}
		return UTMProj4(z.Number, z.South()), nil
	default:
		return canonical, nil
	}
}

func sameCRS(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}
