package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"weather-monitor/collector"
	"weather-monitor/models"
)

// Forecaster is the part of the collector the API drives
type Forecaster interface {
	Assemble(ctx context.Context, city string, days int) collector.Display
	SearchLocations(ctx context.Context, query string) models.Result[[]models.LocationCandidate]
	SelectLocation(ctx context.Context, name string) (collector.Display, error)
}

// Options configures the API server
type Options struct {
	Port            int
	DefaultDays     int
	MinSearchLength int
	AllowedOrigins  []string
	Logger          *slog.Logger
}

// Server represents the API server
type Server struct {
	forecaster    Forecaster
	forecastStore *ForecastStore
	server        *http.Server
	defaultDays   int
	minSearch     int
	logger        *slog.Logger
}

// NewServer creates a new API server
func NewServer(forecaster Forecaster, forecastStore *ForecastStore, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = collector.DefaultDays
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		forecaster:    forecaster,
		forecastStore: forecastStore,
		defaultDays:   opts.DefaultDays,
		minSearch:     opts.MinSearchLength,
		logger:        opts.Logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/health", s.handleHealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/forecast/{city}", s.handleGetForecast).Methods(http.MethodGet)
	router.HandleFunc("/api/locations", s.handleSearchLocations).Methods(http.MethodGet)
	router.HandleFunc("/api/current", s.handleGetCurrent).Methods(http.MethodGet)
	router.HandleFunc("/api/location", s.handleSelectLocation).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, CORS included
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleGetForecast fetches, merges and evaluates a forecast on demand.
// The published display state is left alone.
func (s *Server) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(mux.Vars(r)["city"])
	if city == "" {
		writeError(w, http.StatusBadRequest, "Location not specified")
		return
	}

	// Extract days parameter from query string
	days := s.defaultDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid days %q", daysStr))
			return
		}
		days = d
	}

	writeJSON(w, http.StatusOK, s.forecaster.Assemble(r.Context(), city, days))
}

// handleSearchLocations returns candidates for a partial name. Short queries
// and upstream failures yield an empty list.
func (s *Server) handleSearchLocations(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	response := map[string]interface{}{
		"query":     query,
		"locations": []models.LocationCandidate{},
		"count":     0,
	}

	if utf8.RuneCountInString(query) < s.minSearch || query == "" {
		writeJSON(w, http.StatusOK, response)
		return
	}

	result := s.forecaster.SearchLocations(r.Context(), query)
	response["locations"] = result.Value
	response["count"] = len(result.Value)
	if !result.OK() {
		response["error"] = result.Reason()
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGetCurrent returns the display state of the latest cycle
func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	d, ok := s.forecastStore.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "No forecast has been published yet")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type selectLocationRequest struct {
	Name string `json:"name"`
}

// handleSelectLocation runs a cycle for the chosen city and remembers it
func (s *Server) handleSelectLocation(w http.ResponseWriter, r *http.Request) {
	var req selectLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := s.forecaster.SelectLocation(r.Context(), req.Name)
	switch {
	case errors.Is(err, models.ErrEmptyCity):
		writeError(w, http.StatusBadRequest, "name is required")
	case errors.Is(err, collector.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded by a newer selection")
	case err != nil:
		s.logger.Error("failed to select location", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
