package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/umahmood/haversine"
)

var (
	ErrBadNumber     = errors.New("malformed number")
	ErrBadCoordinate = errors.New("coordinate out of range")
)

// Parse a finite decimal number from feed text
func ParseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return f, nil
}

// --- Coordinate ---

// Represents a geographical coordinate with latitude and longitude.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Create a new Coordinate instance with the given latitude and longitude.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Latitude:  lat,
		Longitude: lon,
	}
}

// Create a new Coordinate from separate latitude and longitude text.
func ParseCoordinate(lat, lon string) (Coordinate, error) {
	latF, err := ParseFloat(lat)
	if err != nil {
		return Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lonF, err := ParseFloat(lon)
	if err != nil {
		return Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	c := NewCoordinate(latF, lonF)
	if !c.IsValid() {
		return Coordinate{}, fmt.Errorf("%w: %s,%s", ErrBadCoordinate, lat, lon)
	}
	return c, nil
}

// Check if the coordinate is valid (latitude between -90 and 90, longitude between -180 and 180).
func (c Coordinate) IsValid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Calculate the distance to another coordinate using the Haversine formula.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: c.Latitude, Lon: c.Longitude},
		haversine.Coord{Lat: other.Latitude, Lon: other.Longitude},
	)
	return km
}

type CoordinateArray []Coordinate

// Total length in kilometres of the polyline through every coordinate
func (ca CoordinateArray) Length() float64 {
	var km float64
	for i := 1; i < len(ca); i++ {
		km += ca[i-1].DistanceTo(ca[i])
	}
	return km
}
