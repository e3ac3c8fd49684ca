package models

import "strconv"

type LocationType uint8

const (
	StopLocationType LocationType = iota
	StationLocationType
	EntranceExitLocationType
	GenericNodeLocationType
	BoardingAreaLocationType
	UnknownLocationType
)

// Schema of stops.txt
type StopSchema struct{}

func (StopSchema) Name() string       { return "stops.txt" }
func (StopSchema) PrimaryKey() string { return "stop_id" }
func (StopSchema) Columns() []string {
	return []string{"stop_id", "location_type", "stop_name", "stop_lat", "stop_lon"}
}

// Returns the location type of a stop row. An empty value means a plain stop.
func StopLocation(row *Row) LocationType {
	v := row.Get("location_type")
	if v == "" {
		return StopLocationType
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n >= int(UnknownLocationType) {
		return UnknownLocationType
	}
	return LocationType(n)
}

// Returns the coordinate of a stop row
func StopCoordinate(row *Row) (Coordinate, error) {
	return ParseCoordinate(row.Get("stop_lat"), row.Get("stop_lon"))
}
