package geo

import "math"

// EarthRadiusKm 地球半径（公里）
const EarthRadiusKm = 6371

// Point 经纬度坐标
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance between two points in
// kilometers using the haversine formula.
func Distance(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// WithinRadius reports whether b lies within radiusKm of a.
func WithinRadius(a, b Point, radiusKm float64) bool {
	return Distance(a, b) <= radiusKm
}
