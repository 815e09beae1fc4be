package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGeoPoint_Validates(t *testing.T) {
	_, err := NewGeoPoint(91, 0, 0)
	assert.Error(t, err)

	_, err = NewGeoPoint(-91, 0, 0)
	assert.Error(t, err)

	_, err = NewGeoPoint(0, 181, 0)
	assert.Error(t, err)

	_, err = NewGeoPoint(0, -181, 0)
	assert.Error(t, err)

	_, err = NewGeoPoint(0, 0, -1)
	assert.Error(t, err)

	_, err = NewGeoPoint(14.6928, -17.4467, 10)
	assert.NoError(t, err)
}

func TestGeoPoint_DistanceMeters_Zero(t *testing.T) {
	p, _ := NewGeoPoint(14.6928, -17.4467, 0)
	assert.InDelta(t, 0, p.DistanceMeters(p), 0.001)
}

func TestGeoPoint_DistanceMeters_KnownOffsets(t *testing.T) {
	// One degree of latitude is ~111195 m on the 6371 km sphere.
	a, _ := NewGeoPoint(0, 0, 0)
	b, _ := NewGeoPoint(1, 0, 0)
	assert.InDelta(t, 111195, a.DistanceMeters(b), 5)

	// Symmetry.
	assert.InDelta(t, a.DistanceMeters(b), b.DistanceMeters(a), 0.001)
}

func TestGeoPoint_DistanceMeters_ProximityFixtures(t *testing.T) {
	// Latitude offsets engineered to land just inside and just outside the
	// 100 m redemption bound.
	base, _ := NewGeoPoint(14.6928, -17.4467, 0)

	near, _ := NewGeoPoint(base.Latitude+99.0/111195.0, base.Longitude, 0)
	far, _ := NewGeoPoint(base.Latitude+101.0/111195.0, base.Longitude, 0)

	assert.InDelta(t, 99, base.DistanceMeters(near), 0.5)
	assert.InDelta(t, 101, base.DistanceMeters(far), 0.5)
}

func TestGeoPoint_Blur_StaysWithinRadius(t *testing.T) {
	p, _ := NewGeoPoint(14.6928, -17.4467, 5)

	for i := 0; i < 200; i++ {
		blurred := p.Blur(250)
		assert.LessOrEqual(t, p.DistanceMeters(blurred), 251.0)
		assert.NoError(t, blurred.Validate())
	}
}

func TestGeoPoint_Blur_ZeroRadiusIsIdentity(t *testing.T) {
	p, _ := NewGeoPoint(14.6928, -17.4467, 5)
	assert.Equal(t, p, p.Blur(0))
}
