package coords

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// Format identifies a coordinate file format.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatShapefile Format = "shapefile"
	FormatKML       Format = "kml"
	FormatGeoJSON   Format = "geojson"
)

var extensionFormats = map[string]Format{
	".csv":     FormatDelimited,
	".txt":     FormatDelimited,
	".shp":     FormatShapefile,
	".zip":     FormatShapefile,
	".kml":     FormatKML,
	".geojson": FormatGeoJSON,
	".json":    FormatGeoJSON,
}

// ValidateFile is the fast-fail gate run before any content parsing: it
// checks the extension allow-list and the size ceiling.
func ValidateFile(name string, size, maxBytes int64) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	format, ok := extensionFormats[ext]
	if !ok {
		return "", domain.NewEngineError(domain.ErrFileExtension.Code,
			fmt.Sprintf("%s: %q (allowed: csv, txt, shp, zip, kml, geojson, json)", domain.ErrFileExtension.Message, ext))
	}
	if size <= 0 {
		return "", domain.ErrFileEmpty
	}
	if maxBytes > 0 && size > maxBytes {
		return "", domain.NewEngineError(domain.ErrFileTooLarge.Code,
			fmt.Sprintf("%s: %d bytes > %d", domain.ErrFileTooLarge.Message, size, maxBytes))
	}
	return format, nil
}
