package compute

import (
	"fmt"
	"math"
	"strings"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
)

// stations drops the repeated closing point of a closed traverse.
func stations(pts []domain.Point) []domain.Point {
	if geometry.IsClosed(pts) {
		return pts[:len(pts)-1]
	}
	return pts
}

func label(p domain.Point, idx int) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("#%d", idx+1)
}

func duplicateCheck(pts []domain.Point, tol float64) domain.QCCheck {
	st := stations(pts)
	var pairs []string
	for i := 0; i < len(st); i++ {
		for j := i + 1; j < len(st); j++ {
			if math.Hypot(st[i].X-st[j].X, st[i].Y-st[j].Y) <= tol {
				pairs = append(pairs, label(st[i], i)+"/"+label(st[j], j))
			}
		}
	}
	check := domain.QCCheck{Name: CheckDuplicates, Passed: len(pairs) == 0, Severity: domain.SeverityWarning}
	if check.Passed {
		check.Message = "no coincident points"
	} else {
		check.Message = fmt.Sprintf("%d coincident point pair(s) within %.3f m: %s", len(pairs), tol, strings.Join(pairs, ", "))
	}
	return check
}

// collinearCheck flags vertices whose adjacent legs are parallel within tol
// (sine of the turning angle).
func collinearCheck(pts []domain.Point, tol float64) domain.QCCheck {
	st := stations(pts)
	var hits []string
	n := len(st)
	if n >= 3 {
		for i := 0; i < n; i++ {
			prev, cur, next := st[(i+n-1)%n], st[i], st[(i+1)%n]
			v1x, v1y := cur.X-prev.X, cur.Y-prev.Y
			v2x, v2y := next.X-cur.X, next.Y-cur.Y
			l1, l2 := math.Hypot(v1x, v1y), math.Hypot(v2x, v2y)
			if l1 == 0 || l2 == 0 {
				continue
			}
			if math.Abs(v1x*v2y-v1y*v2x)/(l1*l2) < tol {
				hits = append(hits, label(cur, i))
			}
		}
	}
	check := domain.QCCheck{Name: CheckCollinear, Passed: len(hits) == 0, Severity: domain.SeverityWarning}
	if check.Passed {
		check.Message = "no collinear vertices"
	} else {
		check.Message = fmt.Sprintf("%d vertex(es) collinear with their neighbours: %s", len(hits), strings.Join(hits, ", "))
	}
	return check
}

func boundsCheck(pts []domain.Point, b config.Bounds) domain.QCCheck {
	var out []string
	for i, p := range pts {
		if !b.Contains(p.X, p.Y) {
			out = append(out, label(p, i))
		}
	}
	check := domain.QCCheck{Name: CheckBounds, Passed: len(out) == 0, Severity: domain.SeverityWarning}
	if check.Passed {
		check.Message = "all coordinates inside the jurisdiction envelope"
	} else {
		check.Message = fmt.Sprintf("%d coordinate(s) outside the jurisdiction envelope [%g,%g]-[%g,%g]: %s",
			len(out), b.MinX, b.MinY, b.MaxX, b.MaxY, strings.Join(out, ", "))
	}
	return check
}

// controlPointCheck compares control points to same-ID traverse stations.
func controlPointCheck(pts, control []domain.Point, tol float64) domain.QCCheck {
	byID := make(map[string]domain.Point, len(pts))
	for _, p := range pts {
		if p.ID != "" {
			byID[p.ID] = p
		}
	}
	var off, unmatched []string
	for _, c := range control {
		p, ok := byID[c.ID]
		if c.ID == "" || !ok {
			unmatched = append(unmatched, c.ID)
			continue
		}
		if d := math.Hypot(p.X-c.X, p.Y-c.Y); d > tol {
			off = append(off, fmt.Sprintf("%s (%.3f m)", c.ID, d))
		}
	}
	check := domain.QCCheck{Name: CheckControlPoint, Passed: len(off) == 0, Severity: domain.SeverityWarning}
	switch {
	case !check.Passed:
		check.Message = fmt.Sprintf("%d control point(s) disagree with the traverse: %s", len(off), strings.Join(off, ", "))
	case len(unmatched) > 0:
		check.Message = fmt.Sprintf("%d control point(s) matched no traverse station", len(unmatched))
	default:
		check.Message = "control points agree with the traverse"
	}
	return check
}
