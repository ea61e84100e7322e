package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type segment [2]orb.Point

// parts is a geometry flattened into what the intersection test needs.
type parts struct {
	points   []orb.Point
	segments []segment
	polygons []orb.Polygon
}

// Intersects reports whether two geometries in the same planar CRS share at
// least one point. Polygon holes are honoured for containment.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	pa, pb := flatten(a), flatten(b)

	for _, pt := range pa.points {
		if containedBy(pt, pb.polygons) {
			return true
		}
	}
	for _, pt := range pb.points {
		if containedBy(pt, pa.polygons) {
			return true
		}
	}
	for _, sa := range pa.segments {
		for _, sb := range pb.segments {
			if segmentsIntersect(sa, sb) {
				return true
			}
		}
	}
	return false
}

func containedBy(pt orb.Point, polygons []orb.Polygon) bool {
	for _, poly := range polygons {
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return false
}

func flatten(g orb.Geometry) parts {
	var p parts
	p.add(g)
	return p
}

func (p *parts) add(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		p.points = append(p.points, g)
		p.segments = append(p.segments, segment{g, g})
	case orb.MultiPoint:
		for _, pt := range g {
			p.add(pt)
		}
	case orb.LineString:
		p.addPath(g)
	case orb.MultiLineString:
		for _, ls := range g {
			p.addPath(ls)
		}
	case orb.Ring:
		p.add(orb.Polygon{g})
	case orb.Polygon:
		p.polygons = append(p.polygons, g)
		for _, ring := range g {
			p.addPath(ring)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			p.add(poly)
		}
	case orb.Bound:
		p.add(g.ToPolygon())
	case orb.Collection:
		for _, sub := range g {
			p.add(sub)
		}
	}
}

func (p *parts) addPath(path []orb.Point) {
	if len(path) == 0 {
		return
	}
	p.points = append(p.points, path...)
	if len(path) == 1 {
		p.segments = append(p.segments, segment{path[0], path[0]})
		return
	}
	for i := 1; i < len(path); i++ {
		p.segments = append(p.segments, segment{path[i-1], path[i]})
	}
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment assumes c is collinear with s.
func onSegment(s segment, c orb.Point) bool {
	return min(s[0][0], s[1][0]) <= c[0] && c[0] <= max(s[0][0], s[1][0]) &&
		min(s[0][1], s[1][1]) <= c[1] && c[1] <= max(s[0][1], s[1][1])
}

func segmentsIntersect(s1, s2 segment) bool {
	d1 := sign(orientation(s2[0], s2[1], s1[0]))
	d2 := sign(orientation(s2[0], s2[1], s1[1]))
	d3 := sign(orientation(s1[0], s1[1], s2[0]))
	d4 := sign(orientation(s1[0], s1[1], s2[1]))

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	switch {
	case d1 == 0 && onSegment(s2, s1[0]):
		return true
	case d2 == 0 && onSegment(s2, s1[1]):
		return true
	case d3 == 0 && onSegment(s1, s2[0]):
		return true
	case d4 == 0 && onSegment(s1, s2[1]):
		return true
	}
	return false
}
