package models

// Schema of trips.txt
type TripSchema struct{}

func (TripSchema) Name() string       { return "trips.txt" }
func (TripSchema) PrimaryKey() string { return "trip_id" }
func (TripSchema) Columns() []string {
	return []string{"trip_id", "route_id", "block_id", "shape_id", "service_id", "trip_short_name", "trip_headsign"}
}

// Schema of stop_times.txt. Its rows are streamed, never kept in a table.
type StopTimeSchema struct{}

func (StopTimeSchema) Name() string       { return "stop_times.txt" }
func (StopTimeSchema) PrimaryKey() string { return "" }
func (StopTimeSchema) Columns() []string {
	return []string{"stop_id", "trip_id", "stop_sequence", "departure_time", "arrival_time"}
}

// Represents one row of stop_times.txt
type StopTimeEvent struct {
	StopID        string
	TripID        string
	Sequence      string
	DepartureTime string
	ArrivalTime   string
}

// Builds an event from a row laid out as StopTimeSchema.Columns
func NewStopTimeEvent(values []string) StopTimeEvent {
	return StopTimeEvent{
		StopID:        values[0],
		TripID:        values[1],
		Sequence:      values[2],
		DepartureTime: values[3],
		ArrivalTime:   values[4],
	}
}

// Returns the time string of the event, preferring the arrival time
func (e StopTimeEvent) Time() string {
	if e.ArrivalTime != "" {
		return e.ArrivalTime
	}
	return e.DepartureTime
}
