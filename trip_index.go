package gtfs

import (
	"maps"
	"slices"
	"strconv"

	"github.com/aaroncutress/gtfs-itineraries/internal"
	"github.com/aaroncutress/gtfs-itineraries/internal/jkey"
	"github.com/aaroncutress/gtfs-itineraries/internal/sjson"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
)

// Returns the short key served in place of a GTFS identifier
func Key(id string) string {
	return jkey.Of(id)
}

// Composite key of one hour-bucket group
func hourBucketKey(routeKey, serviceKey string) string {
	return routeKey + "/" + serviceKey
}

// Builds the trip table: one serialized record per trip row, left empty for
// rows that did not resolve
func buildTripTable(a *Analysis) []string {
	table := make([]string, a.Trips.Len())

	a.EachTrip(func(trip *Trip) {
		row := a.Trips.At(trip.Row)
		record := sjson.NewObject().
			Extend(row.Columns(), row.Values()).
			Add("departure_time", sjson.String(models.FormatTime(trip.StartTime()))).
			Add("timing_list", sjson.Ints(trip.Offsets())).
			Add("itinerary_id", sjson.Int(trip.ItineraryID)).
			AddKey("route_jkey", row.Get("route_id")).
			AddKey("shape_jkey", row.Get("shape_id")).
			Add("trip_jkey", sjson.String(strconv.Itoa(trip.Row)))
		table[trip.Row] = sjson.Marshal(record)
	})

	log.Infof("Ready to serve %d trips", a.TripCount())
	return table
}

// Builds the index from trip_id to trip row for every keyed row of the trips
// table, resolved or not
func buildTripIndex(trips *models.Table) (*internal.Index, error) {
	payloads := make(map[string]string, trips.KeyCount())
	trips.Each(func(key string, row *models.Row) {
		payloads[key] = sjson.Marshal(sjson.String(strconv.Itoa(row.ID)))
	})

	index := internal.NewIndex()
	if err := index.Populate(payloads); err != nil {
		index.Close()
		return nil, err
	}

	log.Infof("Ready to serve %d trip ids", index.Len())
	return index, nil
}

// Builds the hour buckets: for every (route key, service key) pair, the trip
// rows grouped by the hour of their first departure
func buildHourBuckets(a *Analysis) (*internal.Index, error) {
	groups := make(map[string]map[int][]int)

	a.EachTrip(func(trip *Trip) {
		row := a.Trips.At(trip.Row)
		key := hourBucketKey(jkey.Of(row.Get("route_id")), jkey.Of(row.Get("service_id")))
		hours, ok := groups[key]
		if !ok {
			hours = make(map[int][]int)
			groups[key] = hours
		}
		hour := int(trip.StartTime() / 3600)
		hours[hour] = append(hours[hour], trip.Row)
	})

	payloads := make(map[string]string, len(groups))
	for key, hours := range groups {
		object := sjson.NewObject()
		for _, hour := range slices.Sorted(maps.Keys(hours)) {
			object.Add(strconv.Itoa(hour), sjson.IntStrings(hours[hour]))
		}
		payloads[key] = sjson.Marshal(object)
	}

	index := internal.NewIndex()
	if err := index.Populate(payloads); err != nil {
		index.Close()
		return nil, err
	}

	log.Infof("Ready to serve %d route/service hour buckets", index.Len())
	return index, nil
}
