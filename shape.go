package gtfs

import (
	"os"
	"path/filepath"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
	"github.com/aaroncutress/gtfs-itineraries/internal/jkey"
	"github.com/aaroncutress/gtfs-itineraries/internal/sjson"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
)

// Renders a shape as a GeoJSON line feature
func shapeFeature(shape *models.Shape) *sjson.Object {
	coordinates := make(sjson.List, len(shape.Coordinates))
	for i, c := range shape.Coordinates {
		coordinates[i] = sjson.Tuple{sjson.Float(c.Longitude), sjson.Float(c.Latitude)}
	}

	geometry := sjson.NewObject().
		Add("type", sjson.String("LineString")).
		Add("coordinates", coordinates)
	return sjson.NewObject().
		Add("type", sjson.String("Feature")).
		Add("geometry", geometry).
		Add("properties", sjson.NewObject())
}

// Writes one GeoJSON file per shape to dir/shapes. shapes.txt is optional.
func writeShapes(feedDir, dir string) (int, error) {
	shapesDir := filepath.Join(dir, "shapes")
	if err := os.MkdirAll(shapesDir, 0755); err != nil {
		return 0, err
	}

	if !csvtab.Exists(feedDir, models.ShapeSchema{}.Name()) {
		log.Warnf("No shapes.txt in %s, shapes will not be drawn", feedDir)
		return 0, nil
	}

	shapes, err := models.ParseShapes(feedDir)
	if err != nil {
		return 0, err
	}

	for _, shape := range shapes {
		path := filepath.Join(shapesDir, jkey.Of(shape.ID)+".json")
		if err := os.WriteFile(path, []byte(sjson.Marshal(shapeFeature(shape))), 0644); err != nil {
			return 0, err
		}
	}

	log.Infof("Wrote %d shapes to %s", len(shapes), shapesDir)
	return len(shapes), nil
}
