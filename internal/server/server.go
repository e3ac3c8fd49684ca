// Package server exposes the lookup entrypoints over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	gtfs "github.com/aaroncutress/gtfs-itineraries"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// The lookups answered by the server
type Lookups interface {
	LookupTrip(id int) (string, error)
	LookupItinerary(id int) (string, error)
	LookupTripByExternalID(tripID string) (string, error)
	LookupTripsByHour(routeKey, serviceKey string) (string, error)
	LookupTripsByDate(date, routeKey string) (string, error)
	LookupServicesByDate(date string) (string, error)
}

type Server struct {
	lookups Lookups
	outDir  string
}

func New(lookups Lookups, outDir string) *Server {
	return &Server{lookups: lookups, outDir: outDir}
}

// Returns the router serving every lookup, with the build output directory
// served as static files
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/trips/{id:[0-9]+}.json", s.handleTrip).Methods("GET")
	r.HandleFunc("/itineraries/{ignore}/itin_{id:[0-9]+}.json", s.handleItinerary).Methods("GET")
	r.HandleFunc("/trip_index/{trip_id}.json", s.handleTripIndex).Methods("GET")
	r.HandleFunc("/trips_by_hour/{route_key}/{service_key}.json", s.handleTripsByHour).Methods("GET")
	r.HandleFunc("/trips_by_date/{date}/{route_key}.json", s.handleTripsByDate).Methods("GET")
	r.HandleFunc("/services_by_date/{date}.json", s.handleServicesByDate).Methods("GET")
	r.PathPrefix("/").Handler(s.staticFiles()).Methods("GET")

	return r
}

const cacheControl = "public, max-age=3600"

// Marks the response cacheable when its status is 200
type cacheOnOK struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *cacheOnOK) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if code == http.StatusOK {
			w.Header().Set("Cache-Control", cacheControl)
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheOnOK) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Serves the output directory. Dot-prefixed paths hold staged builds and
// are never served directly.
func (s *Server) staticFiles() http.Handler {
	files := http.FileServer(http.Dir(s.outDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, segment := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(segment, ".") {
				http.NotFound(w, r)
				return
			}
		}
		files.ServeHTTP(&cacheOnOK{ResponseWriter: w}, r)
	})
}

// Writes a lookup answer. An empty answer is a miss.
func writeAnswer(w http.ResponseWriter, answer string, err error) {
	switch {
	case errors.Is(err, gtfs.ErrNotBuilt):
		http.Error(w, "GTFS views are not built yet", http.StatusServiceUnavailable)
		return
	case errors.Is(err, gtfs.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("Lookup failed: %v", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if answer == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", cacheControl)
	w.Write([]byte(answer))
}

func ordinal(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil
}

func (s *Server) handleTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := ordinal(r)
	if !ok {
		http.Error(w, "bad trip id", http.StatusBadRequest)
		return
	}
	answer, err := s.lookups.LookupTrip(id)
	writeAnswer(w, answer, err)
}

func (s *Server) handleItinerary(w http.ResponseWriter, r *http.Request) {
	id, ok := ordinal(r)
	if !ok {
		http.Error(w, "bad itinerary id", http.StatusBadRequest)
		return
	}
	answer, err := s.lookups.LookupItinerary(id)
	writeAnswer(w, answer, err)
}

func (s *Server) handleTripIndex(w http.ResponseWriter, r *http.Request) {
	answer, err := s.lookups.LookupTripByExternalID(mux.Vars(r)["trip_id"])
	writeAnswer(w, answer, err)
}

func (s *Server) handleTripsByHour(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	answer, err := s.lookups.LookupTripsByHour(vars["route_key"], vars["service_key"])
	writeAnswer(w, answer, err)
}

func (s *Server) handleTripsByDate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	answer, err := s.lookups.LookupTripsByDate(vars["date"], vars["route_key"])
	writeAnswer(w, answer, err)
}

func (s *Server) handleServicesByDate(w http.ResponseWriter, r *http.Request) {
	answer, err := s.lookups.LookupServicesByDate(mux.Vars(r)["date"])
	writeAnswer(w, answer, err)
}
