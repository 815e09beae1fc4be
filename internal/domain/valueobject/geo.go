package valueobject

import (
	"math"
	"math/rand"

	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// earthRadiusMeters is the mean earth radius of the spherical-earth
// approximation used by the haversine formula.
const earthRadiusMeters = 6371000.0

// GeoPoint is a captured device location.
type GeoPoint struct {
	Latitude       float64 `db:"latitude" json:"latitude"`
	Longitude      float64 `db:"longitude" json:"longitude"`
	AccuracyMeters float64 `db:"accuracy_meters" json:"accuracy_meters"`
}

func NewGeoPoint(lat, lon, accuracyMeters float64) (GeoPoint, error) {
	p := GeoPoint{Latitude: lat, Longitude: lon, AccuracyMeters: accuracyMeters}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

func (p GeoPoint) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return apperror.Newf(apperror.ErrCodeValidation, "latitude %f out of range", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return apperror.Newf(apperror.ErrCodeValidation, "longitude %f out of range", p.Longitude)
	}
	if p.AccuracyMeters < 0 {
		return apperror.New(apperror.ErrCodeValidation, "accuracy cannot be negative")
	}
	return nil
}

// DistanceMeters returns the great-circle distance to other using the
// haversine formula.
func (p GeoPoint) DistanceMeters(other GeoPoint) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - p.Latitude) * math.Pi / 180
	dLon := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Blur returns a copy of the point displaced by a random offset bounded by
// radiusMeters. Used when a location is shown to a counterparty who must
// not learn the exact address.
func (p GeoPoint) Blur(radiusMeters float64) GeoPoint {
	if radiusMeters <= 0 {
		return p
	}

	// Uniform over the disc: radius scaled by sqrt so points do not cluster
	// at the center.
	distance := radiusMeters * math.Sqrt(rand.Float64())
	bearing := rand.Float64() * 2 * math.Pi

	dLat := distance * math.Cos(bearing) / earthRadiusMeters
	dLon := distance * math.Sin(bearing) / (earthRadiusMeters * math.Cos(p.Latitude*math.Pi/180))

	return GeoPoint{
		Latitude:       p.Latitude + dLat*180/math.Pi,
		Longitude:      p.Longitude + dLon*180/math.Pi,
		AccuracyMeters: p.AccuracyMeters + radiusMeters,
	}
}
