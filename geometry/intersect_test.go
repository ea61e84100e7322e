package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestIntersects(t *testing.T) {
	square := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}.ToPolygon()
	withHole := orb.Polygon{
		square[0],
		orb.Ring{{2, 2}, {8, 2}, {8, 8}, {2, 8}, {2, 2}},
	}

	tests := []struct {
		name string
		a, b orb.Geometry
		want bool
	}{
		{"point inside", square, orb.Point{5, 5}, true},
		{"point outside", square, orb.Point{15, 5}, false},
		{"point in hole", withHole, orb.Point{5, 5}, false},
		{"point on edge", square, orb.Point{10, 5}, true},
		{"overlapping squares", square, orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{15, 15}}.ToPolygon(), true},
		{"contained square", square, orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}.ToPolygon(), true},
		{"containing square", orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}.ToPolygon(), square, true},
		{"disjoint squares", square, orb.Bound{Min: orb.Point{11, 11}, Max: orb.Point{12, 12}}.ToPolygon(), false},
		{"bounds overlap only", orb.Polygon{{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}, orb.Bound{Min: orb.Point{8, 8}, Max: orb.Point{9, 9}}.ToPolygon(), false},
		{"line crossing", square, orb.LineString{{-5, 5}, {15, 5}}, true},
		{"line in hole", withHole, orb.LineString{{3, 3}, {7, 7}}, false},
		{"line outside", square, orb.LineString{{-5, -5}, {-1, 20}}, false},
		{"touching corners", square, orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}}.ToPolygon(), true},
		{"multipolygon part", orb.MultiPolygon{orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{101, 101}}.ToPolygon(), square}, orb.Point{1, 1}, true},
		{"nil", square, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersects(tt.a, tt.b))
			if tt.b != nil {
				assert.Equal(t, tt.want, Intersects(tt.b, tt.a), "symmetry")
			}
		})
	}
}
