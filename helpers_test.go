package gtfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Feed files by name
type feed map[string]string

const (
	stopsFixture = `stop_id,stop_name,stop_lat,stop_lon,location_type
S1,Alpha,45.5,-73.5,
S2,Beta,45.6,-73.6,0
S3,Gamma,45.7,-73.7,
ST,Central Station,45.55,-73.55,1
`
	routesFixture = `route_id,route_short_name,route_long_name,route_type
R1,1,One,3
R2,2,Two,3
`
	tripsFixture = `route_id,service_id,trip_id,shape_id
R1,WK,T1,SH1
R1,WK,T2,SH1
`
	stopTimesFixture = `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:00:00,08:00:00,S1,1
T1,08:10:00,08:10:00,S2,2
T2,09:00:00,09:00:00,S1,1
T2,09:10:00,09:10:00,S2,2
`
)

// Returns a minimal feed: two trips on R1 visiting Alpha then Beta
func baseFeed() feed {
	return feed{
		"stops.txt":      stopsFixture,
		"routes.txt":     routesFixture,
		"trips.txt":      tripsFixture,
		"stop_times.txt": stopTimesFixture,
	}
}

// Writes the feed files to a fresh directory
func writeFeed(t *testing.T, files feed) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

// Builds the feed into a new handle and returns it with its output directory
func buildFeed(t *testing.T, files feed) (*GTFS, string) {
	t.Helper()

	g := &GTFS{RetireAfter: time.Millisecond}
	t.Cleanup(func() { g.Close() })

	outDir := t.TempDir()
	require.NoError(t, g.Build(writeFeed(t, files), outDir))
	return g, outDir
}
