package gtfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	calendarFixture = `service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date
WK,1,1,1,1,1,0,0,20250602,20250608
`
	calendarDatesFixture = `service_id,date,exception_type
WK,20250603,2
SA,20250607,1
`
)

// Tests the service keys expanded from the calendar files
func TestServicesByDate(t *testing.T) {
	files := baseFeed()
	files["calendar.txt"] = calendarFixture
	files["calendar_dates.txt"] = calendarDatesFixture
	g, _ := buildFeed(t, files)

	cases := map[string]string{
		"20250602": `["` + Key("WK") + `"]`, // Monday
		"20250603": `[]`,                    // removed
		"20250606": `["` + Key("WK") + `"]`, // Friday
		"20250607": `["` + Key("SA") + `"]`, // added on a Saturday
		"20250608": `[]`,                    // Sunday
		"20250609": `[]`,                    // after the range
	}
	for date, expected := range cases {
		answer, err := g.LookupServicesByDate(date)
		require.NoError(t, err)
		assert.Equal(t, expected, answer, date)
	}

	s, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 7, s.Stats.Dates)
}

// Tests joining the hour buckets of every active service
func TestTripsByDate(t *testing.T) {
	files := baseFeed()
	files["calendar.txt"] = calendarFixture
	files["calendar_dates.txt"] = calendarDatesFixture
	g, _ := buildFeed(t, files)

	answer, err := g.LookupTripsByDate("20250602", Key("R1"))
	require.NoError(t, err)
	assert.Equal(t, "[{\n    \"8\": [\"0\"],\n    \"9\": [\"1\"]\n}]", answer)

	for _, date := range []string{"20250603", "20250607", "19990101"} {
		answer, err = g.LookupTripsByDate(date, Key("R1"))
		require.NoError(t, err)
		assert.Equal(t, "[]", answer, date)
	}
}

// Tests a feed without calendar files
func TestNoCalendar(t *testing.T) {
	g, _ := buildFeed(t, baseFeed())

	answer, err := g.LookupServicesByDate("20250602")
	require.NoError(t, err)
	assert.Equal(t, "[]", answer)
}

// Tests that malformed calendar dates abort the build
func TestMalformedCalendar(t *testing.T) {
	files := baseFeed()
	files["calendar.txt"] = `service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date
WK,1,1,1,1,1,0,0,2025-06-02,20250608
`
	g := &GTFS{}
	err := g.Build(writeFeed(t, files), t.TempDir())
	assert.Error(t, err)
}
