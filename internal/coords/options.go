// Package coords turns raw survey files into coordinate lists: delimited
// text with configurable column mapping, decimal, UTM and DMS notations,
// reprojection into the canonical reference, and format routing.
package coords

import (
	"fmt"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// Notation is the coordinate notation of the X/Y columns.
type Notation string

const (
	NotationDecimal Notation = "decimal"
	NotationUTM     Notation = "utm"
	NotationDMS     Notation = "dms"
)

// ColumnRef selects a column either by header name (case-insensitive) or by
// 1-based position. The zero ColumnRef selects nothing.
type ColumnRef struct {
	Name     string `json:"name,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Named selects a column by header name.
func Named(name string) ColumnRef { return ColumnRef{Name: name} }

// At selects a column by 1-based position.
func At(pos int) ColumnRef { return ColumnRef{Position: pos} }

// IsSet reports whether the reference selects a column.
func (c ColumnRef) IsSet() bool { return c.Name != "" || c.Position > 0 }

func (c ColumnRef) String() string {
	if c.Name != "" {
		return fmt.Sprintf("%q", c.Name)
	}
	return fmt.Sprintf("#%d", c.Position)
}

// ParseOptions controls delimited parsing.
type ParseOptions struct {
	HasHeader   bool      `json:"has_header"`
	X           ColumnRef `json:"x"`
	Y           ColumnRef `json:"y"`
	Z           ColumnRef `json:"z"`
	ID          ColumnRef `json:"id"`
	Description ColumnRef `json:"description"`
	// Zone holds the UTM zone designator ("35J") per row.
	Zone     ColumnRef `json:"zone"`
	Notation Notation  `json:"notation"`
	// Delimiter defaults to a comma.
	Delimiter rune `json:"delimiter"`
	// SkipRows are discarded before the header.
	SkipRows int `json:"skip_rows"`
	// DefaultZone applies to UTM rows without a zone column value.
	DefaultZone string `json:"default_zone"`
	// SourceCRS is the proj4 definition of the input, when known.
	SourceCRS string `json:"source_crs,omitempty"`
}

// DefaultParseOptions expects a headed comma-separated file in decimal notation.
// Unset X/Y columns are resolved from common header aliases.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		HasHeader: true,
		Notation:  NotationDecimal,
		Delimiter: ',',
	}
}

// LineError is a parse failure tied to a source line.
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseResult is the output of a coordinate parse. Coordinates holds every row
// that parsed, even when Errors is non-empty.
type ParseResult struct {
	Success     bool                      `json:"success"`
	Format      Format                    `json:"format"`
	Coordinates []domain.ParsedCoordinate `json:"coordinates"`
	Errors      []LineError               `json:"errors"`
	Warnings    []string                  `json:"warnings"`
	Closure     *domain.TraverseClosure   `json:"closure,omitempty"`
	// CRS is the proj4 definition the coordinates are expressed in, empty when
	// they are already canonical.
	CRS string `json:"crs,omitempty"`

	// closureNotes are the Warnings produced by the last closure diagnostic.
	closureNotes []string
}
