package coords

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
)

// KMLParser reads coordinates from KML placemarks. Point placemarks become
// labelled coordinates; polygon outer boundaries and line strings contribute
// their vertices in order. Inner boundaries are skipped.
type KMLParser struct {
	Config config.ComputationConfig
}

// Parse implements FormatParser.
func (p *KMLParser) Parse(ctx context.Context, data []byte) (ParseResult, error) {
	res := ParseResult{Format: FormatKML, CRS: LongLatWGS84}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack     []string
		name      string
		inCoords  bool
		coordText strings.Builder
	)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			return res, domain.WrapEngineError(domain.ErrInvalidGeometry.Code,
				fmt.Sprintf("decode KML at line %d", line), err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			switch t.Name.Local {
			case "Placemark":
				name = ""
			case "coordinates":
				inCoords = true
				coordText.Reset()
			}
		case xml.CharData:
			switch {
			case inCoords:
				coordText.Write(t)
			case len(stack) > 0 && stack[len(stack)-1] == "name" && within(stack, "Placemark"):
				name = strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			if t.Name.Local == "coordinates" && inCoords {
				inCoords = false
				line, _ := dec.InputPos()
				if !within(stack, "innerBoundaryIs") {
					p.addTuples(&res, coordText.String(), name, within(stack, "Point"), line)
				}
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(res.Coordinates) == 0 && len(res.Errors) == 0 {
		res.Errors = append(res.Errors, LineError{Message: "no coordinates found"})
	}
	res.Warnings = append(res.Warnings, closureDiagnostic(&res, p.Config)...)
	res.Success = len(res.Errors) == 0
	return res, nil
}

func (p *KMLParser) addTuples(res *ParseResult, text, name string, point bool, line int) {
	tuples := strings.Fields(text)
	for i, tuple := range tuples {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			res.Errors = append(res.Errors, LineError{Line: line, Message: fmt.Sprintf("coordinate tuple %q needs lon,lat", tuple)})
			continue
		}
		lon, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			res.Errors = append(res.Errors, LineError{Line: line, Message: fmt.Sprintf("invalid coordinate tuple %q", tuple)})
			continue
		}
		c := domain.ParsedCoordinate{Line: line}
		c.X, c.Y = lon, lat
		if len(parts) >= 3 {
			if z, err := strconv.ParseFloat(parts[2], 64); err == nil {
				c.Z = &z
			}
		}
		switch {
		case point && name != "":
			c.ID = name
		case name != "":
			c.ID = fmt.Sprintf("%s-%d", name, i+1)
		default:
			c.ID = fmt.Sprintf("P%d", len(res.Coordinates)+1)
		}
		c.Label = c.ID
		res.Coordinates = append(res.Coordinates, c)
	}
}

func within(stack []string, element string) bool {
	for _, s := range stack {
		if s == element {
			return true
		}
	}
	return false
}
