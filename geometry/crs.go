package geometry

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// EPSG codes understood by Transform.
const (
	WGS84 = 4326
	NZTM  = 2193
)

var ErrUnsupportedCRS = errors.New("unsupported CRS")

// GRS80 ellipsoid and the NZTM2000 transverse mercator parameters.
const (
	grs80A         = 6378137.0
	grs80F         = 1 / 298.257222101
	nztmLon0       = 173.0
	nztmScale      = 0.9996
	nztmFalseEast  = 1600000.0
	nztmFalseNorth = 10000000.0
)

var epsgRegex = regexp.MustCompile(`(?i)EPSG:+(\d+)$`)

// ParseEPSG accepts "EPSG:2193", "urn:ogc:def:crs:EPSG::2193" or a bare code.
func ParseEPSG(s string) (int, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil && code > 0 {
		return code, nil
	}
	m := epsgRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: cannot parse EPSG code from %q", ErrUnsupportedCRS, s)
	}
	return strconv.Atoi(m[1])
}

// Transform returns a copy of g reprojected between two supported CRS. The
// input geometry is not modified.
func Transform(g orb.Geometry, from, to int) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	if err := checkSupported(from); err != nil {
		return nil, err
	}
	if err := checkSupported(to); err != nil {
		return nil, err
	}
	if from == to {
		return orb.Clone(g), nil
	}

	var proj orb.Projection
	switch {
	case from == WGS84 && to == NZTM:
		proj = lonLatToNZTM
	case from == NZTM && to == WGS84:
		proj = nztmToLonLat
	}
	return project.Geometry(orb.Clone(g), proj), nil
}

func checkSupported(epsg int) error {
	switch epsg {
	case WGS84, NZTM:
		return nil
	default:
		return fmt.Errorf("%w: EPSG:%d", ErrUnsupportedCRS, epsg)
	}
}

func ellipsoid() (e2, ep2 float64) {
	e2 = grs80F * (2 - grs80F)
	ep2 = e2 / (1 - e2)
	return e2, ep2
}

func meridianArc(phi, e2 float64) float64 {
	e4 := e2 * e2
	e6 := e4 * e2
	return grs80A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func lonLatToNZTM(p orb.Point) orb.Point {
	e2, ep2 := ellipsoid()
	phi := p[1] * math.Pi / 180
	dLambda := (p[0] - nztmLon0) * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	tanPhi := math.Tan(phi)
	n := grs80A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := dLambda * cosPhi
	m := meridianArc(phi, e2)

	x := nztmFalseEast + nztmScale*n*(a+
		(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)
	y := nztmFalseNorth + nztmScale*(m+n*tanPhi*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	return orb.Point{x, y}
}

func nztmToLonLat(p orb.Point) orb.Point {
	e2, ep2 := ellipsoid()
	e4 := e2 * e2
	e6 := e4 * e2

	m := (p[1] - nztmFalseNorth) / nztmScale
	mu := m / (grs80A * (1 - e2/4 - 3*e4/64 - 5*e6/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sin(phi1), math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)
	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := grs80A / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := grs80A * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (p[0] - nztmFalseEast) / (n1 * nztmScale)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lambda := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi1

	return orb.Point{nztmLon0 + lambda*180/math.Pi, phi * 180 / math.Pi}
}

// crsFromWKT maps the content of a shapefile .prj to an EPSG code.
func crsFromWKT(wkt string) (int, error) {
	wkt = strings.TrimSpace(wkt)
	upper := strings.ToUpper(wkt)
	switch {
	case strings.HasPrefix(upper, "PROJCS"):
		normalised := strings.NewReplacer("_", " ", "\"", "").Replace(upper)
		if strings.Contains(normalised, "NEW ZEALAND TRANSVERSE MERCATOR") ||
			strings.Contains(normalised, "NZGD2000 / NZTM") ||
			strings.Contains(upper, `AUTHORITY["EPSG","2193"]`) {
			return NZTM, nil
		}
	case strings.HasPrefix(upper, "GEOGCS"):
		return WGS84, nil
	}
	head := wkt
	if len(head) > 60 {
		head = head[:60]
	}
	return 0, fmt.Errorf("%w: projection %q", ErrUnsupportedCRS, head)
}
