// Package geo holds the small amount of spherical geometry the map view
// needs: great-circle distances between WGS84 points.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p lies within the WGS84 range and is not the zero
// value, which the inventory uses for "no coordinates recorded".
func (p Point) Valid() bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PolylineLength returns the summed distance along the points in order.
// Fewer than two points have zero length.
func PolylineLength(points ...Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// Midpoint returns the great-circle midpoint of a and b, used to place link labels.
func Midpoint(a, b Point) Point {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	lng1 := radians(a.Lng)
	dLng := radians(b.Lng - a.Lng)

	bx := math.Cos(lat2) * math.Cos(dLng)
	by := math.Cos(lat2) * math.Sin(dLng)
	lat := math.Atan2(math.Sin(lat1)+math.Sin(lat2), math.Sqrt((math.Cos(lat1)+bx)*(math.Cos(lat1)+bx)+by*by))
	lng := lng1 + math.Atan2(by, math.Cos(lat1)+bx)

	return Point{Lat: degrees(lat), Lng: math.Mod(degrees(lng)+540, 360) - 180}
}

func radians(d float64) float64 { return d * math.Pi / 180 }

func degrees(r float64) float64 { return r * 180 / math.Pi }
