package gtfs

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/aaroncutress/gtfs-itineraries/internal/jkey"
	"github.com/aaroncutress/gtfs-itineraries/internal/sjson"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-set/v3"
)

// Temporary struct collecting the itineraries of one route
type routeItineraries struct {
	route        int
	itineraryIDs []int
	sampleTrips  []int
	stops        *set.Set[int]
}

// Groups itineraries by route, routes in first-seen itinerary order
func groupByRoute(a *Analysis) []*routeItineraries {
	var groups []*routeItineraries
	byRoute := make(map[int]*routeItineraries)

	for _, itinerary := range a.Itineraries {
		group, ok := byRoute[itinerary.Route]
		if !ok {
			group = &routeItineraries{
				route: itinerary.Route,
				stops: set.New[int](len(itinerary.Stops)),
			}
			byRoute[itinerary.Route] = group
			groups = append(groups, group)
		}
		group.itineraryIDs = append(group.itineraryIDs, itinerary.ID)
		group.sampleTrips = append(group.sampleTrips, itinerary.SampleTrips...)
		group.stops.InsertSlice(itinerary.Stops)
	}

	return groups
}

// Writes one file per route with at least one itinerary to dir/routes
func writeRoutes(dir string, a *Analysis) (int, error) {
	routesDir := filepath.Join(dir, "routes")
	if err := os.MkdirAll(routesDir, 0755); err != nil {
		return 0, err
	}

	groups := groupByRoute(a)
	for _, group := range groups {
		row := a.Routes.At(group.route)
		record := sjson.NewObject().
			Extend(row.Columns(), row.Values()).
			Add("sample_trip_jkeys", sjson.IntStrings(group.sampleTrips)).
			Add("itinerary_ids", sjson.Ints(group.itineraryIDs)).
			Add("stop_count", sjson.Int(group.stops.Size()))

		path := filepath.Join(routesDir, jkey.Of(row.Get("route_id"))+".json")
		if err := os.WriteFile(path, []byte(sjson.Marshal(record)), 0644); err != nil {
			return 0, err
		}
	}

	log.Infof("Wrote %d routes to %s", len(groups), routesDir)
	return len(groups), nil
}

// Builds the itinerary table: one summary per itinerary id
func buildItineraryTable(a *Analysis) ([]string, error) {
	table := make([]string, len(a.Itineraries))

	for _, itinerary := range a.Itineraries {
		first := a.Stops.At(itinerary.Stops[0])
		last := a.Stops.At(itinerary.Stops[len(itinerary.Stops)-1])
		label := fmt.Sprintf("%s → %s, %d stops", first.Get("stop_name"), last.Get("stop_name"), len(itinerary.Stops))

		// Coordinates of every stop on the path
		stopList := make(sjson.List, len(itinerary.Stops))
		path := make(models.CoordinateArray, len(itinerary.Stops))
		for i, stopRow := range itinerary.Stops {
			stop := a.Stops.At(stopRow)
			coordinate, err := models.StopCoordinate(stop)
			if err != nil {
				return nil, fmt.Errorf("stop %s: %w", stop.Get("stop_id"), err)
			}
			path[i] = coordinate
			stopList[i] = sjson.Tuple{
				sjson.String(stop.Get("stop_id")),
				sjson.Float(coordinate.Latitude),
				sjson.Float(coordinate.Longitude),
			}
		}

		sample := a.Trips.At(itinerary.SampleTrips[0])
		summary := sjson.NewObject().
			Add("itinerary_name", sjson.String(label)).
			AddKey("shape_jkey", sample.Get("shape_id")).
			Add("stop_list", stopList).
			Add("length_km", sjson.Float(math.Round(path.Length()*1000)/1000))
		table[itinerary.ID] = sjson.Marshal(summary)
	}

	log.Infof("Ready to serve %d itineraries", len(table))
	return table, nil
}
