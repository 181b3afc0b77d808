package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointRoundTrip(t *testing.T) {
	cases := []Position{
		{Lat: 54.1807, Lon: 12.0833},
		{Lat: -33.918861, Lon: 18.4233},
		{Lat: 0, Lon: 0},
		{Lat: 89.999999999, Lon: -179.123456789012},
	}
	for _, p := range cases {
		wkt := EncodePoint(p)
		got, err := ParsePoint(wkt)
		require.NoError(t, err, wkt)
		assert.InDelta(t, p.Lat, got.Lat, 1e-12)
		assert.InDelta(t, p.Lon, got.Lon, 1e-12)
	}
}

func TestEncodePointOrdersLonFirst(t *testing.T) {
	assert.Equal(t, "POINT(12.5 54.25)", EncodePoint(Position{Lat: 54.25, Lon: 12.5}))
}

func TestParsePointToleratesWhitespace(t *testing.T) {
	for _, wkt := range []string{
		"POINT(12.5 54.25)",
		"  point ( 12.5    54.25 )  ",
		"POINT(\t12.5\n54.25)",
		"POINT (12.50000000000000 54.2500)",
	} {
		p, err := ParsePoint(wkt)
		require.NoError(t, err, wkt)
		assert.Equal(t, Position{Lat: 54.25, Lon: 12.5}, p)
	}
}

func TestParsePointRejectsMalformed(t *testing.T) {
	for _, wkt := range []string{"", "POINT", "POINT(1)", "POINT(1 2 3)", "LINESTRING(1 2)", "POINT(a b)", "POINT(1 2"} {
		_, err := ParsePoint(wkt)
		assert.Error(t, err, wkt)
	}
}

func TestBoundingRing(t *testing.T) {
	ring, err := BoundingRing([]Position{
		{Lat: 54.1, Lon: 12.2},
		{Lat: 54.4, Lon: 12.0},
		{Lat: 54.2, Lon: 12.5},
	})
	require.NoError(t, err)
	require.Len(t, ring, 5)
	assert.Equal(t, Position{Lat: 54.1, Lon: 12.0}, ring[0])
	assert.Equal(t, Position{Lat: 54.4, Lon: 12.0}, ring[1])
	assert.Equal(t, Position{Lat: 54.4, Lon: 12.5}, ring[2])
	assert.Equal(t, Position{Lat: 54.1, Lon: 12.5}, ring[3])
	assert.Equal(t, ring[0], ring[4])

	_, err = BoundingRing(nil)
	assert.ErrorIs(t, err, ErrEmptyPositions)
}

func TestPolygonRoundTrip(t *testing.T) {
	ring, err := BoundingRing([]Position{{Lat: 1.5, Lon: 2.5}, {Lat: 3.25, Lon: 4.75}})
	require.NoError(t, err)

	wkt := EncodePolygon(ring)
	assert.Equal(t, "POLYGON((2.5 1.5, 2.5 3.25, 4.75 3.25, 4.75 1.5, 2.5 1.5))", wkt)

	got, err := ParsePolygon(wkt)
	require.NoError(t, err)
	assert.Equal(t, ring, got)
}
