// Package geo holds the position and bounding-ring types stored alongside
// measurements, plus their WKT encodings.
//
// Positions are (latitude, longitude) pairs in memory but WKT orders
// coordinates as "lon lat"; Encode/Parse functions are the only place that
// ordering swap happens.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Position is a latitude/longitude pair in decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// Valid reports whether both coordinates are finite numbers.
func (p Position) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) && !math.IsInf(p.Lat, 0) && !math.IsInf(p.Lon, 0)
}

// Ring is a closed polygon ring. The first and last vertices are equal.
type Ring []Position

// ErrEmptyPositions is returned when a bounding ring is requested for no positions.
var ErrEmptyPositions = errors.New("no positions")

// BoundingRing returns the closed 5-point ring around the min/max latitude and
// longitude of positions, ordered (latmin,lonmin), (latmax,lonmin),
// (latmax,lonmax), (latmin,lonmax), (latmin,lonmin).
func BoundingRing(positions []Position) (Ring, error) {
	if len(positions) == 0 {
		return nil, ErrEmptyPositions
	}
	latMin, latMax := positions[0].Lat, positions[0].Lat
	lonMin, lonMax := positions[0].Lon, positions[0].Lon
	for _, p := range positions[1:] {
		latMin = math.Min(latMin, p.Lat)
		latMax = math.Max(latMax, p.Lat)
		lonMin = math.Min(lonMin, p.Lon)
		lonMax = math.Max(lonMax, p.Lon)
	}
	return Ring{
		{Lat: latMin, Lon: lonMin},
		{Lat: latMax, Lon: lonMin},
		{Lat: latMax, Lon: lonMax},
		{Lat: latMin, Lon: lonMax},
		{Lat: latMin, Lon: lonMin},
	}, nil
}

// EncodePoint renders p as WKT "POINT(lon lat)".
func EncodePoint(p Position) string {
	return "POINT(" + formatPair(p) + ")"
}

// EncodePolygon renders r as WKT "POLYGON((lon1 lat1, lon2 lat2, ...))".
func EncodePolygon(r Ring) string {
	parts := make([]string, len(r))
	for i, p := range r {
		parts[i] = formatPair(p)
	}
	return "POLYGON((" + strings.Join(parts, ", ") + "))"
}

// ParsePoint decodes a WKT point into a Position. Whitespace anywhere around
// the keyword, parentheses, or coordinates is accepted.
func ParsePoint(wkt string) (Position, error) {
	body, err := unwrap(wkt, "POINT", 1)
	if err != nil {
		return Position{}, err
	}
	return parsePair(body)
}

// ParsePolygon decodes a single-ring WKT polygon.
func ParsePolygon(wkt string) (Ring, error) {
	body, err := unwrap(wkt, "POLYGON", 2)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(body, ",")
	ring := make(Ring, 0, len(fields))
	for _, field := range fields {
		p, err := parsePair(field)
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	return ring, nil
}

func formatPair(p Position) string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + " " + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

func parsePair(s string) (Position, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Position{}, fmt.Errorf("wkt coordinate %q: expected 2 values, got %d", strings.TrimSpace(s), len(fields))
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Position{}, fmt.Errorf("wkt longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Position{}, fmt.Errorf("wkt latitude: %w", err)
	}
	return Position{Lat: lat, Lon: lon}, nil
}

// unwrap strips the geometry keyword and depth levels of parentheses.
func unwrap(wkt, keyword string, depth int) (string, error) {
	s := strings.TrimSpace(wkt)
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return "", fmt.Errorf("wkt %q: expected %s", wkt, keyword)
	}
	s = strings.TrimSpace(s[len(keyword):])
	for i := 0; i < depth; i++ {
		if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
			return "", fmt.Errorf("wkt %q: unbalanced parentheses", wkt)
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s, nil
}
