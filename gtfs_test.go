package gtfs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaroncutress/gtfs-itineraries/models"
)

// Decodes a served JSON object
func decode(t *testing.T, payload string) map[string]any {
	t.Helper()

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &v), payload)
	return v
}

// Tests that trips sharing a route and stop path share an itinerary
func TestSharedItinerary(t *testing.T) {
	g, _ := buildFeed(t, baseFeed())

	t1, err := g.LookupTrip(0)
	require.NoError(t, err)
	t2, err := g.LookupTrip(1)
	require.NoError(t, err)

	first, second := decode(t, t1), decode(t, t2)
	assert.Equal(t, first["itinerary_id"], second["itinerary_id"])
	assert.EqualValues(t, 0, first["itinerary_id"])

	itinerary, err := g.LookupItinerary(0)
	require.NoError(t, err)
	summary := decode(t, itinerary)
	assert.Equal(t, "Alpha → Beta, 2 stops", summary["itinerary_name"])
	assert.Equal(t, Key("SH1"), summary["shape_jkey"])
	assert.Equal(t, []any{
		[]any{"S1", 45.5, -73.5},
		[]any{"S2", 45.6, -73.6},
	}, summary["stop_list"])
	assert.Greater(t, summary["length_km"], 10.0)
}

// Tests the layout of a trip record
func TestTripRecord(t *testing.T) {
	g, _ := buildFeed(t, baseFeed())

	record, err := g.LookupTrip(0)
	require.NoError(t, err)

	expected := "{\n" +
		`    "trip_id": "T1",` + "\n" +
		`    "route_id": "R1",` + "\n" +
		`    "block_id": "",` + "\n" +
		`    "shape_id": "SH1",` + "\n" +
		`    "service_id": "WK",` + "\n" +
		`    "trip_short_name": "",` + "\n" +
		`    "trip_headsign": "",` + "\n" +
		`    "departure_time": "08:00:00",` + "\n" +
		`    "timing_list": [0, 600],` + "\n" +
		`    "itinerary_id": 0,` + "\n" +
		`    "route_jkey": "` + Key("R1") + `",` + "\n" +
		`    "shape_jkey": "` + Key("SH1") + `",` + "\n" +
		`    "trip_jkey": "0"` + "\n" +
		"}"
	assert.Equal(t, expected, record)
}

// Tests that differing routes or stop paths never share an itinerary
func TestDistinctItineraries(t *testing.T) {
	files := baseFeed()
	files["trips.txt"] = tripsFixture +
		"R1,WK,T3,SH2\n" + // reversed path
		"R2,WK,T4,SH1\n" + // same path, other route
		"R1,WK,T5,SH1\n" // same path, other sequence numbers
	files["stop_times.txt"] = stopTimesFixture +
		"T3,10:00:00,10:00:00,S2,1\nT3,10:10:00,10:10:00,S1,2\n" +
		"T4,11:00:00,11:00:00,S1,1\nT4,11:10:00,11:10:00,S2,2\n" +
		"T5,12:00:00,12:00:00,S1,10\nT5,12:10:00,12:10:00,S2,20\n"
	g, _ := buildFeed(t, files)

	itineraryOf := func(row int) float64 {
		record, err := g.LookupTrip(row)
		require.NoError(t, err)
		return decode(t, record)["itinerary_id"].(float64)
	}

	assert.Equal(t, itineraryOf(0), itineraryOf(1))
	assert.Equal(t, itineraryOf(0), itineraryOf(4))
	assert.NotEqual(t, itineraryOf(0), itineraryOf(2))
	assert.NotEqual(t, itineraryOf(0), itineraryOf(3))
	assert.NotEqual(t, itineraryOf(2), itineraryOf(3))

	itinerary, err := g.LookupItinerary(int(itineraryOf(2)))
	require.NoError(t, err)
	assert.Equal(t, "Beta → Alpha, 2 stops", decode(t, itinerary)["itinerary_name"])
}

// Tests that events naming unknown trips or stops are dropped silently
func TestUnknownTripAndStop(t *testing.T) {
	files := baseFeed()
	files["stop_times.txt"] = stopTimesFixture +
		"ghost,08:00:00,08:00:00,S1,1\n" +
		"T1,08:20:00,08:20:00,NOWHERE,3\n"
	g, _ := buildFeed(t, files)

	answer, err := g.LookupTripByExternalID("ghost")
	require.NoError(t, err)
	assert.Equal(t, `"NOT_FOUND"`, answer)

	record, err := g.LookupTrip(0)
	require.NoError(t, err)
	assert.Equal(t, []any{0.0, 600.0}, decode(t, record)["timing_list"])

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats.Assembly.UnknownTrip)
	assert.Equal(t, 1, s.Stats.Assembly.UnknownStop)
	assert.Equal(t, 6, s.Stats.Assembly.Events)
}

// Tests that a trip on an unknown route leaves every view but the trip index
func TestUnknownRoute(t *testing.T) {
	files := baseFeed()
	files["trips.txt"] = tripsFixture + "RX,WK,T3,SH1\n"
	files["stop_times.txt"] = stopTimesFixture +
		"T3,10:00:00,10:00:00,S1,1\nT3,10:10:00,10:10:00,S2,2\n"
	g, _ := buildFeed(t, files)

	record, err := g.LookupTrip(2)
	require.NoError(t, err)
	assert.Empty(t, record)

	answer, err := g.LookupTripByExternalID("T3")
	require.NoError(t, err)
	assert.Equal(t, `"2"`, answer)

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats.Resolve.UnknownRoute)
	assert.Equal(t, 2, s.Stats.Resolved)
	assert.Equal(t, 1, s.Stats.Itineraries)

	buckets, err := g.LookupTripsByHour(Key("RX"), Key("WK"))
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

// Tests the hour buckets of a route and service
func TestTripsByHour(t *testing.T) {
	files := baseFeed()
	files["trips.txt"] = tripsFixture + "R1,WK,T3,SH1\nR1,SA,T4,SH1\n"
	files["stop_times.txt"] = `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:05:00,08:05:00,S1,1
T1,08:15:00,08:15:00,S2,2
T2,08:55:00,08:55:00,S1,1
T2,09:05:00,09:05:00,S2,2
T3,25:10:00,25:10:00,S1,1
T4,07:00:00,07:00:00,S1,1
`
	g, _ := buildFeed(t, files)

	buckets, err := g.LookupTripsByHour(Key("R1"), Key("WK"))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"8\": [\"0\", \"1\"],\n    \"25\": [\"2\"]\n}", buckets)

	buckets, err = g.LookupTripsByHour(Key("R1"), Key("SA"))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"7\": [\"3\"]\n}", buckets)

	buckets, err = g.LookupTripsByHour(Key("R2"), Key("WK"))
	require.NoError(t, err)
	assert.Equal(t, "", buckets)
}

// Tests that ordinals outside the built range are rejected
func TestLookupBounds(t *testing.T) {
	g, _ := buildFeed(t, baseFeed())

	for _, id := range []int{-1, 2, 1000} {
		_, err := g.LookupTrip(id)
		assert.ErrorIs(t, err, ErrOutOfRange, "trip %d", id)
	}
	for _, id := range []int{-1, 1} {
		_, err := g.LookupItinerary(id)
		assert.ErrorIs(t, err, ErrOutOfRange, "itinerary %d", id)
	}
}

// Tests lookups before any build
func TestLookupBeforeBuild(t *testing.T) {
	g := &GTFS{}

	_, err := g.LookupTrip(0)
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = g.LookupTripByExternalID("T1")
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = g.LookupTripsByDate("20250602", Key("R1"))
	assert.ErrorIs(t, err, ErrNotBuilt)
}

// Tests the route, stop and shape files
func TestFileArtifacts(t *testing.T) {
	files := baseFeed()
	files["trips.txt"] = tripsFixture + "R1,WK,T3,SH1\n"
	files["stop_times.txt"] = stopTimesFixture +
		"T3,10:00:00,10:00:00,S1,1\nT3,10:10:00,10:10:00,S3,2\n"
	files["shapes.txt"] = `shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence
SH1,45.6,-73.6,2
SH1,45.5,-73.5,1
`
	_, outDir := buildFeed(t, files)

	// Route file
	data, err := os.ReadFile(filepath.Join(outDir, "routes", Key("R1")+".json"))
	require.NoError(t, err)
	route := decode(t, string(data))
	assert.Equal(t, "R1", route["route_id"])
	assert.Equal(t, "One", route["route_long_name"])
	assert.Equal(t, []any{"0", "1", "2"}, route["sample_trip_jkeys"])
	assert.Equal(t, []any{0.0, 1.0}, route["itinerary_ids"])
	assert.EqualValues(t, 3, route["stop_count"])

	_, err = os.Stat(filepath.Join(outDir, "routes", Key("R2")+".json"))
	assert.True(t, os.IsNotExist(err))

	// Stops file, without the station
	data, err = os.ReadFile(filepath.Join(outDir, "stops", "stops.json"))
	require.NoError(t, err)
	stops := decode(t, string(data))
	assert.Len(t, stops, 3)
	assert.NotContains(t, stops, "ST")
	assert.Equal(t, map[string]any{"stop_lat": 45.5, "stop_lon": -73.5, "stop_name": "Alpha"}, stops["S1"])

	// Shape file, ordered by sequence
	data, err = os.ReadFile(filepath.Join(outDir, "shapes", Key("SH1")+".json"))
	require.NoError(t, err)
	shape := decode(t, string(data))
	assert.Equal(t, "Feature", shape["type"])
	geometry := shape["geometry"].(map[string]any)
	assert.Equal(t, "LineString", geometry["type"])
	assert.Equal(t, []any{[]any{-73.5, 45.5}, []any{-73.6, 45.6}}, geometry["coordinates"])
}

// Tests that a failed build keeps the previous snapshot and files
func TestFailedBuildKeepsSnapshot(t *testing.T) {
	g, outDir := buildFeed(t, baseFeed())
	routeFile := filepath.Join(outDir, "routes", Key("R1")+".json")
	before, err := os.ReadFile(routeFile)
	require.NoError(t, err)

	bad := baseFeed()
	bad["stops.txt"] = strings.Replace(stopsFixture, "S1,Alpha,45.5", "S1,Alpha,north", 1)
	err = g.Build(writeFeed(t, bad), outDir)
	require.Error(t, err)

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)

	after, err := os.ReadFile(routeFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Only the served build is left staged
	entries, err := os.ReadDir(filepath.Join(outDir, buildsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// Tests that non-finite or out of range coordinates abort the build
func TestBadCoordinates(t *testing.T) {
	for _, c := range []struct {
		name   string
		stop   string
		target error
	}{
		{"nan latitude", "S1,Alpha,NaN,-73.5", models.ErrBadNumber},
		{"infinite longitude", "S1,Alpha,45.5,Inf", models.ErrBadNumber},
		{"latitude out of range", "S1,Alpha,95.5,-73.5", models.ErrBadCoordinate},
	} {
		t.Run(c.name, func(t *testing.T) {
			files := baseFeed()
			files["stops.txt"] = strings.Replace(stopsFixture, "S1,Alpha,45.5,-73.5", c.stop, 1)

			g := &GTFS{}
			err := g.Build(writeFeed(t, files), t.TempDir())
			assert.ErrorIs(t, err, c.target)

			_, err = g.Snapshot()
			assert.ErrorIs(t, err, ErrNotBuilt)
		})
	}
}

// Tests that a build failing after its route files were written leaves the
// served route files untouched
func TestFailedBuildAfterRouteFiles(t *testing.T) {
	g, outDir := buildFeed(t, baseFeed())
	routeFile := filepath.Join(outDir, "routes", Key("R1")+".json")
	before, err := os.ReadFile(routeFile)
	require.NoError(t, err)

	// S3 is on no itinerary, so only stops.json fails
	files := baseFeed()
	files["trips.txt"] = tripsFixture + "R1,WK,T3,SH1\n"
	files["stop_times.txt"] = stopTimesFixture + "T3,10:00:00,10:00:00,S1,1\nT3,10:10:00,10:10:00,S2,2\n"
	files["stops.txt"] = strings.Replace(stopsFixture, "S3,Gamma,45.7", "S3,Gamma,NaN", 1)
	require.ErrorIs(t, g.Build(writeFeed(t, files), outDir), models.ErrBadNumber)

	after, err := os.ReadFile(routeFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)
}

// Tests that a failed switch of the current link keeps every served file
func TestPromoteFailureKeepsFiles(t *testing.T) {
	g, outDir := buildFeed(t, baseFeed())
	routeFile := filepath.Join(outDir, "routes", Key("R1")+".json")
	before, err := os.ReadFile(routeFile)
	require.NoError(t, err)

	// A non-empty directory where the next link goes cannot be replaced
	blocker := filepath.Join(outDir, currentLink+".next")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0755))

	files := baseFeed()
	files["trips.txt"] = tripsFixture + "R1,WK,T3,SH1\n"
	files["stop_times.txt"] = stopTimesFixture + "T3,10:00:00,10:00:00,S1,1\nT3,10:10:00,10:10:00,S2,2\n"
	feedDir := writeFeed(t, files)
	require.Error(t, g.Build(feedDir, outDir))

	after, err := os.ReadFile(routeFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)

	entries, err := os.ReadDir(filepath.Join(outDir, buildsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Once the path is clear the same feed publishes
	require.NoError(t, os.RemoveAll(blocker))
	require.NoError(t, g.Build(feedDir, outDir))
	after, err = os.ReadFile(routeFile)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

// Tests that malformed times abort the build
func TestMalformedTime(t *testing.T) {
	files := baseFeed()
	files["stop_times.txt"] = stopTimesFixture + "T1,8h30,8h30,S2,3\n"

	g := &GTFS{}
	err := g.Build(writeFeed(t, files), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_times.txt line 6")

	_, err = g.Snapshot()
	assert.ErrorIs(t, err, ErrNotBuilt)
}

// Tests that a missing table aborts the build
func TestMissingFile(t *testing.T) {
	files := baseFeed()
	delete(files, "routes.txt")

	g := &GTFS{}
	err := g.Build(writeFeed(t, files), t.TempDir())
	assert.ErrorIs(t, err, ErrMissingFile)
}

// Tests that rebuilding publishes a new version
func TestRebuild(t *testing.T) {
	g, outDir := buildFeed(t, baseFeed())

	files := baseFeed()
	files["trips.txt"] = tripsFixture + "R2,WK,T3,SH1\n"
	files["stop_times.txt"] = stopTimesFixture + "T3,10:00:00,10:00:00,S1,1\n"
	require.NoError(t, g.Build(writeFeed(t, files), outDir))

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version)
	assert.Equal(t, 2, s.Stats.Itineraries)

	answer, err := g.LookupTripByExternalID("T3")
	require.NoError(t, err)
	assert.Equal(t, `"2"`, answer)

	_, err = os.Stat(filepath.Join(outDir, "routes", Key("R2")+".json"))
	assert.NoError(t, err)
}

// Tests that lookups running during rebuilds always answer from one whole
// snapshot
func TestLookupsDuringRebuild(t *testing.T) {
	g := &GTFS{RetireAfter: time.Minute}
	defer g.Close()
	outDir := t.TempDir()

	// T1 is row 0 in the first feed and row 1 in the second
	first := writeFeed(t, baseFeed())
	shifted := baseFeed()
	shifted["trips.txt"] = strings.Replace(tripsFixture, "R1,WK,T1,SH1", "R1,WK,T0,SH1\nR1,WK,T1,SH1", 1)
	shifted["stop_times.txt"] = stopTimesFixture + "T0,07:00:00,07:00:00,S1,1\nT0,07:10:00,07:10:00,S2,2\n"
	second := writeFeed(t, shifted)
	require.NoError(t, g.Build(first, outDir))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				s, err := g.Snapshot()
				if !assert.NoError(t, err) {
					return
				}
				row, err := strconv.Unquote(s.LookupTripByExternalID("T1"))
				if !assert.NoError(t, err) {
					return
				}
				id, err := strconv.Atoi(row)
				if !assert.NoError(t, err) {
					return
				}
				record, err := s.LookupTrip(id)
				if !assert.NoError(t, err) {
					return
				}
				if !assert.Contains(t, record, `"trip_id": "T1"`, "version %d", s.Version) {
					return
				}

				answer, err := g.LookupTripByExternalID("T1")
				assert.NoError(t, err)
				assert.Contains(t, []string{`"0"`, `"1"`}, answer)
			}
		}()
	}

	for i := range 6 {
		feedDir := second
		if i%2 == 1 {
			feedDir = first
		}
		require.NoError(t, g.Build(feedDir, outDir))
	}
	close(done)
	wg.Wait()

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 7, s.Version)
}

type recordingObserver struct {
	published []BuildStats
	failed    []error
}

func (o *recordingObserver) BuildFailed(err error)           { o.failed = append(o.failed, err) }
func (o *recordingObserver) SnapshotPublished(s BuildStats) { o.published = append(o.published, s) }

// Tests that observers hear about every build
func TestObserver(t *testing.T) {
	g := &GTFS{RetireAfter: time.Millisecond}
	defer g.Close()
	observer := &recordingObserver{}
	g.Observe(observer)

	outDir := t.TempDir()
	require.NoError(t, g.Build(writeFeed(t, baseFeed()), outDir))
	require.Error(t, g.Build(t.TempDir(), outDir))

	require.Len(t, observer.published, 1)
	assert.Equal(t, 1, observer.published[0].Version)
	assert.Equal(t, 2, observer.published[0].Resolved)
	require.Len(t, observer.failed, 1)
	assert.ErrorIs(t, observer.failed[0], ErrMissingFile)
}
