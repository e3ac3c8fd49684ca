package metrics

import (
	"net/http"

	gtfs "github.com/aaroncutress/gtfs-itineraries"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Builds        *prometheus.CounterVec // result label: ok|error
	DroppedEvents *prometheus.CounterVec // reason label: unknown_stop|unknown_trip
	DroppedTrips  *prometheus.CounterVec // reason label: unknown_route|no_timing

	Trips           prometheus.Gauge
	Itineraries     prometheus.Gauge
	Routes          prometheus.Gauge
	SnapshotVersion prometheus.Gauge

	BuildDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsvis_builds_total",
			Help: "Number of builds by result.",
		}, []string{"result"}),
		DroppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsvis_dropped_stop_times_total",
			Help: "Stop times skipped because their stop or trip is unknown.",
		}, []string{"reason"}),
		DroppedTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsvis_dropped_trips_total",
			Help: "Trips left out of the published views.",
		}, []string{"reason"}),
		Trips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsvis_trips",
			Help: "Trips served by the current snapshot.",
		}),
		Itineraries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsvis_itineraries",
			Help: "Itineraries served by the current snapshot.",
		}),
		Routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsvis_routes",
			Help: "Route files written for the current snapshot.",
		}),
		SnapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsvis_snapshot_version",
			Help: "Version of the current snapshot.",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtfsvis_build_duration_seconds",
			Help:    "Duration of successful builds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfsvis_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfsvis_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsvis_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	// Register
	reg.MustRegister(
		c.Builds, c.DroppedEvents, c.DroppedTrips,
		c.Trips, c.Itineraries, c.Routes, c.SnapshotVersion,
		c.BuildDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
	)

	return c
}

// BuildFailed counts a failed build.
func (c *Collector) BuildFailed(error) {
	c.Builds.WithLabelValues("error").Inc()
}

// SnapshotPublished records the statistics of a published build.
func (c *Collector) SnapshotPublished(stats gtfs.BuildStats) {
	c.Builds.WithLabelValues("ok").Inc()
	c.DroppedEvents.WithLabelValues("unknown_stop").Add(float64(stats.Assembly.UnknownStop))
	c.DroppedEvents.WithLabelValues("unknown_trip").Add(float64(stats.Assembly.UnknownTrip))
	c.DroppedTrips.WithLabelValues("unknown_route").Add(float64(stats.Resolve.UnknownRoute))
	c.DroppedTrips.WithLabelValues("no_timing").Add(float64(stats.Resolve.NoTiming))

	c.Trips.Set(float64(stats.Resolved))
	c.Itineraries.Set(float64(stats.Itineraries))
	c.Routes.Set(float64(stats.RouteFiles))
	c.SnapshotVersion.Set(float64(stats.Version))
	c.BuildDuration.Observe(stats.Duration.Seconds())
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server error: %v", err)
		}
	}()
	log.Infof("Metrics listening on %s", addr)
	return srv
}
