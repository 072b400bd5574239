package tours

import (
	"math"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// DistanceUnit is mi or km
type DistanceUnit string

const (
	UnitMiles      DistanceUnit = "mi"
	UnitKilometers DistanceUnit = "km"
)

const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1
)

// ParseDistanceUnit accepts mi or km
func ParseDistanceUnit(raw string) (DistanceUnit, error) {
	switch DistanceUnit(strings.ToLower(strings.TrimSpace(raw))) {
	case UnitMiles:
		return UnitMiles, nil
	case UnitKilometers:
		return UnitKilometers, nil
	}
	return "", NewValidationError("Please provide the unit as mi or km")
}

// EarthRadius in the unit
func (u DistanceUnit) EarthRadius() float64 {
	if u == UnitMiles {
		return earthRadiusMi
	}
	return earthRadiusKm
}

// LatLng is a coordinate pair
type LatLng struct {
	Lat float64
	Lng float64
}

// ParseLatLng parses "lat,lng"
func ParseLatLng(raw string) (LatLng, error) {
	latRaw, lngRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return LatLng{}, NewValidationError("Please provide latitude and longitude in the format lat,lng")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return LatLng{}, NewValidationError("Please provide latitude and longitude in the format lat,lng")
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// ParseDistance parses a positive radius
func ParseDistance(raw string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0, goerrors.New("Please provide a positive distance", goerrors.CategoryValidation).WithCode(400)
	}
	return d, nil
}

// Haversine returns the great circle distance between a and b in unit
func Haversine(a, b LatLng, unit DistanceUnit) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * unit.EarthRadius() * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox returns the lat/lng bounds that contain every point within
// distance of center. Used as a coarse SQL prefilter.
func BoundingBox(center LatLng, distance float64, unit DistanceUnit) (minLat, maxLat, minLng, maxLng float64) {
	angular := distance / unit.EarthRadius()
	dLat := angular * 180 / math.Pi

	minLat = math.Max(center.Lat-dLat, -90)
	maxLat = math.Min(center.Lat+dLat, 90)

	cosLat := math.Cos(toRad(center.Lat))
	if cosLat < 1e-9 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLng := math.Asin(math.Min(1, math.Sin(angular)/cosLat)) * 180 / math.Pi
	minLng, maxLng = center.Lng-dLng, center.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLng, maxLng
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
