package gtfs

import (
	"encoding/binary"
	"maps"
	"slices"

	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
)

// Maximum number of sample trips kept per itinerary
const MaxSampleTrips = 3

// A distinct stop path on one route, shared by one or more trips
type Itinerary struct {
	ID          int
	Route       int
	Stops       []int
	SampleTrips []int
}

// Counters for trips dropped while resolving itineraries
type ResolveStats struct {
	UnknownRoute int
	NoTiming     int
}

// The result of one build: the loaded tables, the itineraries in id order and
// every trip that resolved to one. Never mutated once returned.
type Analysis struct {
	Stops  *models.Table
	Trips  *models.Table
	Routes *models.Table

	Itineraries []*Itinerary
	Assembly    AssemblyStats
	Resolve     ResolveStats

	trips map[int]*Trip
	order []int
}

// Returns the resolved trip for a trip row
func (a *Analysis) Trip(row int) (*Trip, bool) {
	trip, ok := a.trips[row]
	return trip, ok
}

// Returns the number of resolved trips
func (a *Analysis) TripCount() int {
	return len(a.order)
}

// Calls fn for every resolved trip in ascending row order
func (a *Analysis) EachTrip(fn func(trip *Trip)) {
	for _, row := range a.order {
		fn(a.trips[row])
	}
}

// Canonical key of an itinerary: the route row followed by the stop rows,
// each written as a uvarint
func itineraryKey(route int, locations []Location) string {
	buf := make([]byte, 0, (len(locations)+1)*binary.MaxVarintLen32)
	buf = binary.AppendUvarint(buf, uint64(route))
	for _, location := range locations {
		buf = binary.AppendUvarint(buf, uint64(location.Stop))
	}
	return string(buf)
}

// Groups assembled trips into itineraries. Trips are visited in ascending row
// order so itinerary ids are reproducible for a given feed.
func ResolveItineraries(stops, trips, routes *models.Table, assembled map[int]*Trip, sampleTrips int) *Analysis {
	if sampleTrips <= 0 || sampleTrips > MaxSampleTrips {
		sampleTrips = MaxSampleTrips
	}

	a := &Analysis{
		Stops:  stops,
		Trips:  trips,
		Routes: routes,
		trips:  make(map[int]*Trip, len(assembled)),
		order:  make([]int, 0, len(assembled)),
	}
	byKey := make(map[string]*Itinerary)

	for _, row := range slices.Sorted(maps.Keys(assembled)) {
		trip := assembled[row]
		tripRow := trips.At(row)

		// Resolve the route
		routeID := tripRow.Get("route_id")
		route, ok := routes.Find(routeID)
		if !ok {
			log.Warnf("Trip %s refers to unknown route %s, dropped", tripRow.Get("trip_id"), routeID)
			a.Resolve.UnknownRoute++
			continue
		}
		if len(trip.Timings) == 0 {
			log.Warnf("Trip %s has no arrival or departure times, dropped", tripRow.Get("trip_id"))
			a.Resolve.NoTiming++
			continue
		}

		// Find or create the itinerary for this stop path
		key := itineraryKey(route.ID, trip.Locations)
		itinerary, ok := byKey[key]
		if !ok {
			itinerary = &Itinerary{
				ID:    len(a.Itineraries),
				Route: route.ID,
				Stops: trip.StopRows(),
			}
			byKey[key] = itinerary
			a.Itineraries = append(a.Itineraries, itinerary)
		}

		trip.ItineraryID = itinerary.ID
		if len(itinerary.SampleTrips) < sampleTrips {
			itinerary.SampleTrips = append(itinerary.SampleTrips, row)
		}

		a.trips[row] = trip
		a.order = append(a.order, row)
	}

	log.Infof("Resolved %d trips into %d itineraries", len(a.order), len(a.Itineraries))
	return a
}
