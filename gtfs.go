package gtfs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaroncutress/gtfs-itineraries/internal"
	"github.com/aaroncutress/gtfs-itineraries/internal/sjson"
)

var (
	ErrNotBuilt    = errors.New("no GTFS snapshot has been built")
	ErrOutOfRange  = errors.New("ordinal out of range")
	ErrMissingFile = errors.New("missing required GTFS file")
)

// Answer to a trip id lookup that matches no trip
const NotFound = `"NOT_FOUND"`

// Delay before the indexes of a replaced snapshot are released
const DefaultRetireAfter = time.Minute

// Summary of one successful build
type BuildStats struct {
	Version     int
	Duration    time.Duration
	Stops       int
	Trips       int
	Routes      int
	Resolved    int
	Itineraries int
	RouteFiles  int
	Shapes      int
	Dates       int
	Assembly    AssemblyStats
	Resolve     ResolveStats
}

// Receives build outcomes
type Observer interface {
	BuildFailed(err error)
	SnapshotPublished(stats BuildStats)
}

// Every served view of one build. Published as a whole and never mutated.
type Snapshot struct {
	Version int
	Created time.Time
	Stats   BuildStats

	trips          []string
	itineraries    []string
	tripIndex      *internal.Index
	tripsByHour    *internal.Index
	servicesByDate map[string][]string
}

// Releases the indexes of the snapshot
func (s *Snapshot) close() {
	if s.tripIndex != nil {
		s.tripIndex.Close()
	}
	if s.tripsByHour != nil {
		s.tripsByHour.Close()
	}
}

// Returns the trip record with the given ordinal. Rows that did not resolve
// answer an empty string.
func (s *Snapshot) LookupTrip(id int) (string, error) {
	if id < 0 || id >= len(s.trips) {
		return "", fmt.Errorf("trip %d: %w", id, ErrOutOfRange)
	}
	return s.trips[id], nil
}

// Returns the itinerary summary with the given id
func (s *Snapshot) LookupItinerary(id int) (string, error) {
	if id < 0 || id >= len(s.itineraries) {
		return "", fmt.Errorf("itinerary %d: %w", id, ErrOutOfRange)
	}
	return s.itineraries[id], nil
}

// Returns the ordinal wrapper of a trip_id, or NotFound
func (s *Snapshot) LookupTripByExternalID(tripID string) string {
	if payload, ok := s.tripIndex.Get(tripID); ok {
		return payload
	}
	return NotFound
}

// Returns the hour map of a route key and service key pair, or "" when the
// pair has no trips
func (s *Snapshot) LookupTripsByHour(routeKey, serviceKey string) string {
	payload, _ := s.tripsByHour.Get(hourBucketKey(routeKey, serviceKey))
	return payload
}

// Returns the service keys active on a YYYYMMDD date
func (s *Snapshot) LookupServicesByDate(date string) string {
	return sjson.Marshal(sjson.Strings(s.servicesByDate[date]))
}

// Returns the hour maps of a route for every service active on a date
func (s *Snapshot) LookupTripsByDate(date, routeKey string) string {
	var results []string
	for _, serviceKey := range s.servicesByDate[date] {
		if payload := s.LookupTripsByHour(routeKey, serviceKey); payload != "" {
			results = append(results, payload)
		}
	}
	return joinList(results)
}

// Represents the process-wide registry of the current GTFS snapshot
type GTFS struct {
	// Sample trips kept per itinerary, at most MaxSampleTrips
	SampleTrips int
	// Delay before a replaced snapshot is released, DefaultRetireAfter when zero
	RetireAfter time.Duration

	current  atomic.Pointer[Snapshot]
	building sync.Mutex

	mu        sync.Mutex
	observers []Observer
}

// Handle used by the package-level functions
var Default = &GTFS{}

// Registers an observer of build outcomes
func (g *GTFS) Observe(o Observer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, o)
}

func (g *GTFS) notify(fn func(o Observer)) {
	g.mu.Lock()
	observers := append([]Observer(nil), g.observers...)
	g.mu.Unlock()

	for _, o := range observers {
		fn(o)
	}
}

// Returns the current snapshot
func (g *GTFS) Snapshot() (*Snapshot, error) {
	s := g.current.Load()
	if s == nil {
		return nil, ErrNotBuilt
	}
	return s, nil
}

// Replaces the current snapshot and schedules the release of the old one
func (g *GTFS) publish(s *Snapshot) {
	old := g.current.Swap(s)
	if old == nil {
		return
	}

	retireAfter := g.RetireAfter
	if retireAfter <= 0 {
		retireAfter = DefaultRetireAfter
	}
	time.AfterFunc(retireAfter, old.close)
}

// Releases the current snapshot
func (g *GTFS) Close() error {
	g.building.Lock()
	defer g.building.Unlock()

	if old := g.current.Swap(nil); old != nil {
		old.close()
	}
	return nil
}

// --- Lookups ---

// Returns the trip record with the given ordinal
func (g *GTFS) LookupTrip(id int) (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.LookupTrip(id)
}

// Returns the itinerary summary with the given id
func (g *GTFS) LookupItinerary(id int) (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.LookupItinerary(id)
}

// Returns the ordinal wrapper of a trip_id, or NotFound
func (g *GTFS) LookupTripByExternalID(tripID string) (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.LookupTripByExternalID(tripID), nil
}

// Returns the hour map of a route key and service key pair
func (g *GTFS) LookupTripsByHour(routeKey, serviceKey string) (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.LookupTripsByHour(routeKey, serviceKey), nil
}

// Returns the service keys active on a date
func (g *GTFS) LookupServicesByDate(date string) (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.LookupServicesByDate(date), nil
}

// Returns the hour maps of a route for every service active on a date
func (g *GTFS) LookupTripsByDate(date, routeKey string) (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.LookupTripsByDate(date, routeKey), nil
}

// --- Default handle ---

func Build(feedDir, outDir string) error { return Default.Build(feedDir, outDir) }

func LookupTrip(id int) (string, error) { return Default.LookupTrip(id) }

func LookupItinerary(id int) (string, error) { return Default.LookupItinerary(id) }

func LookupTripByExternalID(tripID string) (string, error) {
	return Default.LookupTripByExternalID(tripID)
}

func LookupTripsByHour(routeKey, serviceKey string) (string, error) {
	return Default.LookupTripsByHour(routeKey, serviceKey)
}
