package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gtfs "github.com/aaroncutress/gtfs-itineraries"
	"github.com/aaroncutress/gtfs-itineraries/internal/config"
	"github.com/aaroncutress/gtfs-itineraries/internal/metrics"
	"github.com/aaroncutress/gtfs-itineraries/internal/publisher"
	"github.com/aaroncutress/gtfs-itineraries/internal/server"
	"github.com/charmbracelet/log"
)

const usage = `usage: gtfsvis <build|serve> [-config file]

  build   build the views once and write the route, shape and stop files
  serve   build the views and answer lookups over HTTP; SIGHUP rebuilds
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "", "YAML config file")
	flags.Parse(os.Args[2:])

	// Load configuration from file, .env and environment
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.SetLevel(level)

	gtfs.Default.SampleTrips = cfg.SampleTrips

	switch command {
	case "build":
		if err := build(cfg); err != nil {
			log.Fatalf("build failed: %v", err)
		}
	case "serve":
		if err := serve(cfg); err != nil {
			log.Fatalf("serve failed: %v", err)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// Builds from the configured URL or directory
func build(cfg *config.Config) error {
	if cfg.FeedURL != "" {
		return gtfs.FromURL(cfg.FeedURL, cfg.OutDir)
	}
	return gtfs.Build(cfg.FeedDir, cfg.OutDir)
}

func serve(cfg *config.Config) error {
	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		gtfs.Default.Observe(mcol)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdown(srv)
	}

	// Snapshot notifications
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, wrapPublisherMetrics(mcol))
		if err != nil {
			return err
		}
		defer pub.Close()
		gtfs.Default.Observe(pub)
	}

	if err := build(cfg); err != nil {
		return err
	}
	defer gtfs.Default.Close()

	// Rebuild on SIGHUP; a failed rebuild keeps serving the previous snapshot
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := build(cfg); err != nil {
					log.Errorf("Rebuild failed, still serving the previous snapshot: %v", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(gtfs.Default, cfg.OutDir).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdown(srv)
	}()

	log.Infof("Serving on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(srv *http.Server) {
	// Shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// Adapter so a nil collector yields a nil interface
func wrapPublisherMetrics(m *metrics.Collector) publisher.PublisherMetrics {
	if m == nil {
		return nil
	}
	return m
}
