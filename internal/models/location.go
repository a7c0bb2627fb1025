package models

import "math"

// Location is a latitude/longitude pair.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// DistanceKm is the great-circle distance to o.
func (l Location) DistanceKm(o Location) float64 {
	const earthRadiusKm = 6371.0
	dLat := (o.Lat - l.Lat) * math.Pi / 180
	dLon := (o.Lon - l.Lon) * math.Pi / 180
	lat1 := l.Lat * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}
