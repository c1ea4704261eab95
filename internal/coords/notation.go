package coords

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// UTMZone is a UTM zone number with its latitude band letter.
type UTMZone struct {
	Number int
	Band   byte
}

// South reports whether the band lies in the southern hemisphere (C to M).
func (z UTMZone) South() bool { return z.Band < 'N' }

func (z UTMZone) String() string { return fmt.Sprintf("%d%c", z.Number, z.Band) }

var utmZonePattern = regexp.MustCompile(`^(\d{1,2})\s*([C-HJ-NP-Xc-hj-np-x])$`)

// ParseUTMZone parses a zone designator such as "35J" or "34 H".
func ParseUTMZone(s string) (UTMZone, error) {
	m := utmZonePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return UTMZone{}, domain.NewEngineError(domain.ErrInvalidNotation.Code,
			fmt.Sprintf("%s: UTM zone %q must be a zone number and latitude band, e.g. 35J", domain.ErrInvalidNotation.Message, s))
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 || n > 60 {
		return UTMZone{}, domain.NewEngineError(domain.ErrInvalidNotation.Code,
			fmt.Sprintf("%s: UTM zone number %d out of range 1-60", domain.ErrInvalidNotation.Message, n))
	}
	return UTMZone{Number: n, Band: strings.ToUpper(m[2])[0]}, nil
}

// UTMProj4 returns the proj4 definition of a WGS84 UTM zone.
func UTMProj4(zone int, south bool) string {
	def := fmt.Sprintf("+proj=utm +zone=%d", zone)
	if south {
		def += " +south"
	}
	return def + " +datum=WGS84 +units=m +no_defs"
}

var dmsSeparators = strings.NewReplacer(
	"°", " ", "º", " ", "d", " ", "D", " ",
	"′", " ", "'", " ", "m", " ",
	"″", " ", `"`, " ", "s", " ", ":", " ",
)

// ParseDMS converts a degrees-minutes-seconds string to signed decimal degrees.
// Accepted forms include 14°35'45.2"S, 14 35 45.2 S, S14 35 45, -14d35m45s and
// 14:35:45.2E. Hemisphere letters must be upper case; lower-case d, m and s
// are unit markers.
func ParseDMS(s string) (float64, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, invalidDMS(s, "empty value")
	}

	sign := 1.0
	if h := in[len(in)-1]; strings.IndexByte("NSEW", h) >= 0 {
		if h == 'S' || h == 'W' {
			sign = -1
		}
		in = strings.TrimSpace(in[:len(in)-1])
	} else if h := in[0]; strings.IndexByte("NSEW", h) >= 0 {
		if h == 'S' || h == 'W' {
			sign = -1
		}
		in = strings.TrimSpace(in[1:])
	}
	if strings.HasPrefix(in, "-") {
		if sign < 0 {
			return 0, invalidDMS(s, "both a minus sign and a S/W hemisphere")
		}
		sign = -1
		in = in[1:]
	}

	parts := strings.Fields(dmsSeparators.Replace(in))
	if len(parts) == 0 || len(parts) > 3 {
		return 0, invalidDMS(s, "expected degrees, minutes and seconds")
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, invalidDMS(s, fmt.Sprintf("bad component %q", p))
		}
		vals[i] = v
	}
	if vals[1] >= 60 || vals[2] >= 60 {
		return 0, invalidDMS(s, "minutes and seconds must be below 60")
	}
	return sign * (vals[0] + vals[1]/60 + vals[2]/3600), nil
}

func invalidDMS(s, reason string) error {
	return domain.NewEngineError(domain.ErrInvalidNotation.Code,
		fmt.Sprintf("%s: DMS %q: %s", domain.ErrInvalidNotation.Message, s, reason))
}
