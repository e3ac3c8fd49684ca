package gtfs

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
	"resty.dev/v3"
)

var requiredFiles = []string{
	"stops.txt",
	"routes.txt",
	"trips.txt",
	"stop_times.txt",
}

// Directories written under the output directory by a build
var artifactDirs = []string{"routes", "shapes", "stops"}

const (
	// Directory under the output directory holding staged builds
	buildsDir = ".builds"
	// Link to the build whose files are served
	currentLink = ".current"
)

// Loads the stop, trip and route tables concurrently
func loadTables(feedDir string) (stops, trips, routes *models.Table, err error) {
	var wg sync.WaitGroup
	errChannel := make(chan error, 3)

	load := func(dst **models.Table, schema models.Schema) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, loadErr := models.LoadTable(feedDir, schema)
			if loadErr != nil {
				errChannel <- loadErr
				return
			}
			*dst = table
		}()
	}

	load(&stops, models.StopSchema{})
	load(&trips, models.TripSchema{})
	load(&routes, models.RouteSchema{})

	wg.Wait()
	close(errChannel)

	if err := <-errChannel; err != nil {
		return nil, nil, nil, err
	}
	return stops, trips, routes, nil
}

// Runs the whole pipeline and writes the file artifacts into staging
func (g *GTFS) build(feedDir, staging string) (*Snapshot, error) {
	// Check for required files
	for _, file := range requiredFiles {
		if !csvtab.Exists(feedDir, file) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, file)
		}
	}

	stops, trips, routes, err := loadTables(feedDir)
	if err != nil {
		return nil, err
	}

	// Assemble trips and resolve them into itineraries
	assembled, assembly, err := AssembleTrips(feedDir, stops, trips)
	if err != nil {
		return nil, err
	}
	analysis := ResolveItineraries(stops, trips, routes, assembled, g.SampleTrips)
	analysis.Assembly = assembly

	// Build the served views
	s := &Snapshot{
		trips: buildTripTable(analysis),
	}
	s.itineraries, err = buildItineraryTable(analysis)
	if err != nil {
		return nil, err
	}
	s.servicesByDate, err = loadServicesByDate(feedDir)
	if err != nil {
		return nil, err
	}
	s.tripIndex, err = buildTripIndex(trips)
	if err != nil {
		return nil, err
	}
	s.tripsByHour, err = buildHourBuckets(analysis)
	if err != nil {
		s.close()
		return nil, err
	}

	// Write the file artifacts
	routeFiles, err := writeRoutes(staging, analysis)
	if err != nil {
		s.close()
		return nil, err
	}
	shapes, err := writeShapes(feedDir, staging)
	if err != nil {
		s.close()
		return nil, err
	}
	if _, err := writeStops(staging, stops); err != nil {
		s.close()
		return nil, err
	}

	s.Stats = BuildStats{
		Stops:       stops.Len(),
		Trips:       trips.Len(),
		Routes:      routes.Len(),
		Resolved:    analysis.TripCount(),
		Itineraries: len(analysis.Itineraries),
		RouteFiles:  routeFiles,
		Shapes:      shapes,
		Dates:       len(s.servicesByDate),
		Assembly:    analysis.Assembly,
		Resolve:     analysis.Resolve,
	}
	return s, nil
}

// Makes outDir/name a link to the same directory of the current build
func linkArtifactDir(outDir, name string) error {
	path := filepath.Join(outDir, name)
	target := filepath.Join(currentLink, name)
	if dest, err := os.Readlink(path); err == nil && dest == target {
		return nil
	}

	// Replaces a plain directory left by an older output layout
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return os.Symlink(target, path)
}

// Switches the served files to the staged build. The current link is
// replaced by one rename, so readers see either every old file or every new one.
func promote(staging, outDir string) error {
	for _, name := range artifactDirs {
		if err := linkArtifactDir(outDir, name); err != nil {
			return err
		}
	}

	target, err := filepath.Rel(outDir, staging)
	if err != nil {
		return err
	}
	next := filepath.Join(outDir, currentLink+".next")
	if err := os.Remove(next); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Symlink(target, next); err != nil {
		return err
	}
	return os.Rename(next, filepath.Join(outDir, currentLink))
}

// Removes every staged build except the one named keep
func pruneBuilds(outDir, keep string) {
	dir := filepath.Join(outDir, buildsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("Failed to list builds in %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		if entry.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			log.Warnf("Failed to remove build %s: %v", entry.Name(), err)
		}
	}
}

// Build every served view from the feed in feedDir and publish them as one
// snapshot. Route, shape and stop files are served from outDir/routes,
// outDir/shapes and outDir/stops. A failed build leaves the current snapshot
// and its files in place.
func (g *GTFS) Build(feedDir, outDir string) error {
	g.building.Lock()
	defer g.building.Unlock()

	start := time.Now()
	log.Infof("Building GTFS views from %s", feedDir)

	err := g.buildAndPublish(feedDir, outDir, start)
	if err != nil {
		log.Errorf("Failed to build GTFS views from %s: %v", feedDir, err)
		g.notify(func(o Observer) { o.BuildFailed(err) })
		return err
	}
	return nil
}

func (g *GTFS) buildAndPublish(feedDir, outDir string, start time.Time) error {
	if err := os.MkdirAll(filepath.Join(outDir, buildsDir), 0755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(filepath.Join(outDir, buildsDir), "build-")
	if err != nil {
		return err
	}

	s, err := g.build(feedDir, staging)
	if err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := promote(staging, outDir); err != nil {
		s.close()
		os.RemoveAll(staging)
		return err
	}
	pruneBuilds(outDir, filepath.Base(staging))

	version := 1
	if current := g.current.Load(); current != nil {
		version = current.Version + 1
	}
	s.Version = version
	s.Created = time.Now()
	s.Stats.Version = version
	s.Stats.Duration = time.Since(start)

	g.publish(s)
	log.Infof("Published GTFS snapshot %d in %s", version, s.Stats.Duration.Round(time.Millisecond))

	stats := s.Stats
	g.notify(func(o Observer) { o.SnapshotPublished(stats) })
	return nil
}

// Extracts the .txt members of a feed zip into dir
func unzipFeed(zipBytes []byte, dir string) error {
	zipReader, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return err
	}

	for _, file := range zipReader.File {
		if file.FileInfo().IsDir() || !strings.HasSuffix(file.Name, ".txt") {
			continue
		}

		err := func() error {
			src, err := file.Open()
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := os.Create(filepath.Join(dir, filepath.Base(file.Name)))
			if err != nil {
				return err
			}
			defer dst.Close()

			_, err = io.Copy(dst, src)
			return err
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// Build the served views from a hosted GTFS zip
func (g *GTFS) FromURL(gtfsURL, outDir string) error {
	// Download the GTFS data from the URL
	log.Infof("Downloading GTFS data from %s", gtfsURL)

	client := resty.New()
	defer client.Close()

	resp, err := client.R().Get(gtfsURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.New("failed to download GTFS data: " + resp.Status())
	}

	zipBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Unpack the feed into a temporary directory
	feedDir, err := os.MkdirTemp("", "gtfs-feed-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(feedDir)

	log.Infof("Reading GTFS data from %s", gtfsURL)
	if err := unzipFeed(zipBytes, feedDir); err != nil {
		return err
	}

	return g.Build(feedDir, outDir)
}

func FromURL(gtfsURL, outDir string) error { return Default.FromURL(gtfsURL, outDir) }
