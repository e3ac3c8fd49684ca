package models

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
)

// Represents the shape of a transit route
type Shape struct {
	ID          string
	Coordinates CoordinateArray
}

// Schema of shapes.txt
type ShapeSchema struct{}

func (ShapeSchema) Name() string       { return "shapes.txt" }
func (ShapeSchema) PrimaryKey() string { return "shape_id" }
func (ShapeSchema) Columns() []string {
	return []string{"shape_id", "shape_pt_lat", "shape_pt_lon", "shape_pt_sequence"}
}

// Intermediate structure to order shape points
type shapePoint struct {
	coordinate Coordinate
	sequence   uint32
}

// Load shapes from the GTFS shapes.txt file, returned in order of first appearance
func ParseShapes(dir string) ([]*Shape, error) {
	schema := ShapeSchema{}
	reader, err := csvtab.Open(dir, schema.Name(), schema.Columns())
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var order []string
	points := make(map[string][]shapePoint)
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		coordinate, err := ParseCoordinate(record[1], record[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", schema.Name(), reader.Line(), err)
		}
		sequence, err := ParseSequence(record[3])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", schema.Name(), reader.Line(), err)
		}

		id := record[0]
		if _, ok := points[id]; !ok {
			order = append(order, id)
		}
		points[id] = append(points[id], shapePoint{coordinate: coordinate, sequence: sequence})
	}

	shapes := make([]*Shape, 0, len(order))
	for _, id := range order {
		pts := points[id]
		sort.SliceStable(pts, func(i, j int) bool {
			return pts[i].sequence < pts[j].sequence
		})

		coordinates := make(CoordinateArray, len(pts))
		for i, p := range pts {
			coordinates[i] = p.coordinate
		}
		shapes = append(shapes, &Shape{ID: id, Coordinates: coordinates})
	}

	return shapes, nil
}
