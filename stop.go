package gtfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aaroncutress/gtfs-itineraries/internal/sjson"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
)

// Writes dir/stops/stops.json: every plain stop keyed by stop_id
func writeStops(dir string, stops *models.Table) (int, error) {
	stopsDir := filepath.Join(dir, "stops")
	if err := os.MkdirAll(stopsDir, 0755); err != nil {
		return 0, err
	}

	var err error
	document := sjson.NewObject()
	stops.Each(func(key string, row *models.Row) {
		if err != nil || models.StopLocation(row) != models.StopLocationType {
			return
		}

		coordinate, parseErr := models.StopCoordinate(row)
		if parseErr != nil {
			err = fmt.Errorf("stop %s: %w", key, parseErr)
			return
		}
		document.Add(key, sjson.NewObject().
			Add("stop_lat", sjson.Float(coordinate.Latitude)).
			Add("stop_lon", sjson.Float(coordinate.Longitude)).
			Add("stop_name", sjson.String(row.Get("stop_name"))))
	})
	if err != nil {
		return 0, err
	}

	path := filepath.Join(stopsDir, "stops.json")
	if err := os.WriteFile(path, []byte(sjson.Marshal(document)), 0644); err != nil {
		return 0, err
	}

	log.Infof("Wrote %d stops to %s", document.Len(), path)
	return document.Len(), nil
}
