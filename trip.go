package gtfs

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
)

// A timed visit of a trip: its stop_sequence and seconds since midnight
type Timing struct {
	Seq  uint32
	Time uint32
}

// A visit of a trip to a stop row
type Location struct {
	Seq  uint32
	Stop int
}

// Represents a trip assembled from stop_times.txt. Row is the ordinal of the
// trip in the trips table.
type Trip struct {
	Row         int
	Timings     []Timing
	Locations   []Location
	ItineraryID int
}

// Returns the time of the first timed visit
func (t *Trip) StartTime() uint32 {
	return t.Timings[0].Time
}

// Returns the time of every timed visit relative to the first one
func (t *Trip) Offsets() []int {
	start := int(t.StartTime())
	offsets := make([]int, len(t.Timings))
	for i, timing := range t.Timings {
		offsets[i] = int(timing.Time) - start
	}
	return offsets
}

// Returns the stop rows visited, in path order
func (t *Trip) StopRows() []int {
	stops := make([]int, len(t.Locations))
	for i, location := range t.Locations {
		stops[i] = location.Stop
	}
	return stops
}

// Counters collected while assembling trips
type AssemblyStats struct {
	Events            int
	UnknownStop       int
	UnknownTrip       int
	DuplicateSequence int
}

// One accepted stop_times row
type stopVisit struct {
	seq   uint32
	stop  int
	time  uint32
	timed bool
}

// Accumulates stop_times events per trip row
type assembler struct {
	stops  *models.Table
	trips  *models.Table
	visits map[int][]stopVisit
	stats  AssemblyStats
}

func newAssembler(stops, trips *models.Table) *assembler {
	return &assembler{
		stops:  stops,
		trips:  trips,
		visits: make(map[int][]stopVisit),
	}
}

// Adds one event. Events naming an unknown stop or trip are dropped.
func (a *assembler) add(event models.StopTimeEvent) error {
	a.stats.Events++

	stop, ok := a.stops.Find(event.StopID)
	if !ok {
		a.stats.UnknownStop++
		return nil
	}
	trip, ok := a.trips.Find(event.TripID)
	if !ok {
		a.stats.UnknownTrip++
		return nil
	}

	seq, err := models.ParseSequence(event.Sequence)
	if err != nil {
		return err
	}

	visit := stopVisit{seq: seq, stop: stop.ID}
	if timeStr := event.Time(); timeStr != "" {
		t, err := models.ParseTime(timeStr)
		if err != nil {
			return err
		}
		visit.time = t
		visit.timed = true
	}

	a.visits[trip.ID] = append(a.visits[trip.ID], visit)
	return nil
}

// Orders every trip's visits by sequence and builds the assembled trips.
// The first event seen for a sequence number wins.
func (a *assembler) finish() map[int]*Trip {
	trips := make(map[int]*Trip, len(a.visits))
	for row, visits := range a.visits {
		sort.SliceStable(visits, func(i, j int) bool {
			return visits[i].seq < visits[j].seq
		})

		trip := &Trip{
			Row:         row,
			Timings:     make([]Timing, 0, len(visits)),
			Locations:   make([]Location, 0, len(visits)),
			ItineraryID: -1,
		}
		for i, visit := range visits {
			if i > 0 && visits[i-1].seq == visit.seq {
				a.stats.DuplicateSequence++
				log.Debugf("Trip %s: duplicate stop_sequence %d ignored", a.trips.At(row).Get("trip_id"), visit.seq)
				continue
			}
			trip.Locations = append(trip.Locations, Location{Seq: visit.seq, Stop: visit.stop})
			if visit.timed {
				trip.Timings = append(trip.Timings, Timing{Seq: visit.seq, Time: visit.time})
			}
		}
		trips[row] = trip
	}
	a.visits = nil
	return trips
}

// Streams stop_times.txt from dir and assembles the trips it describes,
// keyed by trip row
func AssembleTrips(dir string, stops, trips *models.Table) (map[int]*Trip, AssemblyStats, error) {
	schema := models.StopTimeSchema{}
	reader, err := csvtab.Open(dir, schema.Name(), schema.Columns())
	if err != nil {
		return nil, AssemblyStats{}, err
	}
	defer reader.Close()

	a := newAssembler(stops, trips)
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, a.stats, err
		}

		err = a.add(models.NewStopTimeEvent(record))
		if err != nil {
			return nil, a.stats, fmt.Errorf("%s line %d: %w", schema.Name(), reader.Line(), err)
		}
	}

	assembled := a.finish()
	log.Infof("Assembled %d trips from %d stop times", len(assembled), a.stats.Events)
	if dropped := a.stats.UnknownStop + a.stats.UnknownTrip; dropped > 0 {
		log.Infof("Skipped %d stop times with unknown stops or trips", dropped)
	}
	return assembled, a.stats, nil
}
