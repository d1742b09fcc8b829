package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"weather-monitor/datasource"
	"weather-monitor/hazard"
	"weather-monitor/models"
	"weather-monitor/telemetry"
)

// ErrSuperseded is returned by RunCycle when a newer cycle started before this
// one finished. The superseded cycle does not publish.
var ErrSuperseded = errors.New("forecast cycle superseded by a newer request")

// ErrCycleInFlight is returned by Refresh when another cycle is still running.
// A background refresh never cancels a requested cycle.
var ErrCycleInFlight = errors.New("forecast cycle already in flight")

const (
	// PreferenceCity is the preference key holding the last selected city
	PreferenceCity = "city"

	DefaultCity = "Islamabad"
	DefaultDays = 7
)

// Preferences persists small user settings between runs
type Preferences interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Sink receives the display state of every cycle that was not superseded
type Sink interface {
	Publish(d Display)
}

// Display is the outcome of one forecast cycle, ready for rendering
type Display struct {
	CycleID         uuid.UUID                `json:"cycle_id"`
	Seq             uint64                   `json:"seq"`
	City            string                   `json:"city"`
	Days            int                      `json:"days"`
	OK              bool                     `json:"ok"`
	Error           string                   `json:"error,omitempty"`
	Forecast        *models.ForecastResponse `json:"forecast,omitempty"`
	TelemetryMerged bool                     `json:"telemetry_merged"`
	Hazards         *hazard.Assessment       `json:"hazards,omitempty"`
	Alerts          []hazard.Alert           `json:"alerts,omitempty"`
	FetchedAt       time.Time                `json:"fetched_at"`
}

// Options wires a Collector. Forecasts is required; everything else is optional.
type Options struct {
	Forecasts   datasource.ForecastSource
	Searcher    datasource.LocationSearcher
	Merger      *telemetry.Merger
	Notifier    hazard.Notifier
	Gate        *hazard.Gate
	Preferences Preferences
	Sink        Sink
	Logger      *slog.Logger

	FetchTimeout    time.Duration
	DefaultCity     string
	DefaultDays     int
	RefreshInterval time.Duration
}

// Collector runs forecast cycles: fetch, merge telemetry, evaluate hazards,
// publish and alert. Starting a cycle cancels the one in flight.
type Collector struct {
	forecasts    datasource.ForecastSource
	searcher     datasource.LocationSearcher
	merger       *telemetry.Merger
	notifier     hazard.Notifier
	gate         *hazard.Gate
	prefs        Preferences
	sink         Sink
	logger       *slog.Logger
	fetchTimeout time.Duration
	defaultCity  string
	defaultDays  int
	refresh      time.Duration
	now          func() time.Time

	searches singleflight.Group

	mu       sync.Mutex
	seq      uint64
	inflight uint64 // seq of the running cycle, 0 when idle
	cancel   context.CancelFunc
	city     string // last published
	days     int
	reqCity  string // last requested
	reqDays  int
}

// New creates a collector from opts
func New(opts Options) *Collector {
	c := &Collector{
		forecasts:    opts.Forecasts,
		searcher:     opts.Searcher,
		merger:       opts.Merger,
		notifier:     opts.Notifier,
		gate:         opts.Gate,
		prefs:        opts.Preferences,
		sink:         opts.Sink,
		logger:       opts.Logger,
		fetchTimeout: opts.FetchTimeout,
		defaultCity:  opts.DefaultCity,
		defaultDays:  opts.DefaultDays,
		refresh:      opts.RefreshInterval,
		now:          time.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = 30 * time.Second
	}
	if c.defaultCity == "" {
		c.defaultCity = DefaultCity
	}
	if c.defaultDays <= 0 {
		c.defaultDays = DefaultDays
	}
	if c.notifier == nil {
		c.notifier = hazard.LogNotifier{Logger: c.logger}
	}
	return c
}

// FetchForecast fetches the raw forecast for city. Failures are logged and
// returned as a Result, never as an error.
func (c *Collector) FetchForecast(ctx context.Context, city string, days int) models.Result[models.ForecastResponse] {
	// Create a context with timeout for this specific request
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	forecast, err := c.forecasts.FetchForecast(fetchCtx, city, days)
	if err != nil {
		c.logger.Error("failed to fetch forecast",
			"source", c.forecasts.Name(), "city", city, "days", days, "error", err)
		return models.Failure[models.ForecastResponse](err)
	}
	return models.Success(forecast)
}

// SearchLocations resolves a partial name into candidates. Identical
// concurrent queries share one upstream call. A failure yields an empty,
// non-nil slice alongside the reason.
func (c *Collector) SearchLocations(ctx context.Context, query string) models.Result[[]models.LocationCandidate] {
	query = strings.TrimSpace(query)
	if c.searcher == nil {
		return models.Result[[]models.LocationCandidate]{
			Value: []models.LocationCandidate{},
			Err:   errors.New("location search is not configured"),
		}
	}

	v, err, shared := c.searches.Do(strings.ToLower(query), func() (interface{}, error) {
		// The shared call must not die with whichever caller started it
		searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.searcher.SearchLocations(searchCtx, query)
	})
	if err != nil {
		c.logger.Error("failed to search locations",
			"source", c.searcher.Name(), "query", query, "error", err)
		return models.Result[[]models.LocationCandidate]{Value: []models.LocationCandidate{}, Err: err}
	}
	if shared {
		c.logger.Debug("location search shared", "query", query)
	}

	candidates, _ := v.([]models.LocationCandidate)
	if candidates == nil {
		return models.Success([]models.LocationCandidate{})
	}
	return models.Success(slices.Clone(candidates))
}

// Assemble fetches, merges and evaluates a forecast without touching the
// published display state
func (c *Collector) Assemble(ctx context.Context, city string, days int) Display {
	d := Display{
		CycleID:   uuid.New(),
		City:      city,
		Days:      days,
		FetchedAt: c.now(),
	}

	result := c.FetchForecast(ctx, city, days)
	if !result.OK() {
		d.Error = result.Reason()
		return d
	}

	forecast, merged := c.merger.Merge(ctx, result.Value)
	assessment := hazard.Evaluate(forecast.Current)

	location := forecast.Location.Name
	if location == "" {
		location = city
	}

	d.OK = true
	d.Forecast = &forecast
	d.TelemetryMerged = merged
	d.Hazards = &assessment
	d.Alerts = hazard.Alerts(assessment, location, d.FetchedAt)
	return d
}

// RunCycle runs a full forecast cycle for city. Any cycle still in flight is
// canceled, and if a newer cycle starts before this one finishes the result
// is discarded and ErrSuperseded returned.
func (c *Collector) RunCycle(ctx context.Context, city string, days int) (Display, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	c.seq++
	seq := c.seq
	c.cancel = cancel
	c.inflight = seq
	c.reqCity, c.reqDays = city, days
	c.mu.Unlock()
	defer cancel()

	d := c.Assemble(cycleCtx, city, days)
	d.Seq = seq

	c.mu.Lock()
	if c.inflight == seq {
		c.inflight = 0
	}
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Info("discarding superseded forecast cycle", "city", city, "seq", seq, "cycle_id", d.CycleID)
		return d, ErrSuperseded
	}
	c.city, c.days = city, days
	if c.sink != nil {
		c.sink.Publish(d)
	}
	c.mu.Unlock()

	c.logger.Info("forecast cycle complete",
		"city", city,
		"days", days,
		"seq", seq,
		"cycle_id", d.CycleID,
		"ok", d.OK,
		"telemetry_merged", d.TelemetryMerged)

	c.dispatch(ctx, d)
	return d, nil
}

// dispatch delivers the cycle's alerts through the gate and clears the gate
// for hazards that are no longer present
func (c *Collector) dispatch(ctx context.Context, d Display) {
	if d.Hazards == nil {
		return
	}
	location := d.City
	if d.Forecast != nil && d.Forecast.Location.Name != "" {
		location = d.Forecast.Location.Name
	}
	if !d.Hazards.FireHazard {
		c.gate.Reset(location, hazard.KindFire)
	}
	if !d.Hazards.SeismicHazard {
		c.gate.Reset(location, hazard.KindSeismic)
	}

	for _, alert := range d.Alerts {
		if !c.gate.Allow(alert) {
			c.logger.Debug("alert suppressed by cooldown", "kind", alert.Kind, "location", alert.Location)
			continue
		}
		if err := c.notifier.Notify(ctx, alert); err != nil {
			c.logger.Error("failed to deliver alert", "kind", alert.Kind, "location", alert.Location, "error", err)
		}
	}
}

// SelectLocation runs a cycle for the chosen city and then remembers it as
// the startup city. A superseded selection is not persisted.
func (c *Collector) SelectLocation(ctx context.Context, name string) (Display, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Display{}, models.ErrEmptyCity
	}

	d, err := c.RunCycle(ctx, name, c.defaultDays)
	if err != nil {
		return d, err
	}

	if c.prefs != nil {
		if err := c.prefs.Set(ctx, PreferenceCity, name); err != nil {
			c.logger.Error("failed to save city preference", "city", name, "error", err)
		}
	}
	return d, nil
}

// StartupCity returns the stored city preference, or the default city when
// none is stored or the store cannot be read
func (c *Collector) StartupCity(ctx context.Context) string {
	if c.prefs == nil {
		return c.defaultCity
	}
	city, ok, err := c.prefs.Get(ctx, PreferenceCity)
	if err != nil {
		c.logger.Warn("failed to read city preference, using default", "default", c.defaultCity, "error", err)
		return c.defaultCity
	}
	if !ok || strings.TrimSpace(city) == "" {
		return c.defaultCity
	}
	return city
}

// Current returns the city and days of the last published cycle
func (c *Collector) Current() (city string, days int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.city, c.days, c.city != ""
}

// Refresh re-runs the cycle for the last requested city, or the startup city
// if nothing has been requested yet. It returns ErrCycleInFlight instead of
// cancelling a cycle that is still running.
func (c *Collector) Refresh(ctx context.Context) (Display, error) {
	c.mu.Lock()
	busy := c.inflight != 0
	city, days := c.reqCity, c.reqDays
	c.mu.Unlock()

	if busy {
		return Display{}, ErrCycleInFlight
	}
	if city == "" {
		city, days = c.StartupCity(ctx), c.defaultDays
	}
	return c.RunCycle(ctx, city, days)
}

// Start runs the startup cycle and, if a refresh interval is configured,
// keeps refreshing the current city on that schedule.
// The returned function stops collection and waits for it to finish.
func (c *Collector) Start(ctx context.Context) func() {
	runCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		city := c.StartupCity(runCtx)
		if _, err := c.RunCycle(runCtx, city, c.defaultDays); err != nil && !errors.Is(err, ErrSuperseded) {
			c.logger.Error("startup cycle failed", "city", city, "error", err)
		}

		if c.refresh <= 0 {
			return
		}
		ticker := time.NewTicker(c.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, err := c.Refresh(runCtx)
				switch {
				case errors.Is(err, ErrCycleInFlight):
					c.logger.Debug("skipping refresh, a cycle is running")
				case err != nil && !errors.Is(err, ErrSuperseded):
					c.logger.Error("refresh cycle failed", "error", err)
				}
			case <-runCtx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// String describes the collector wiring for startup logs
func (c *Collector) String() string {
	return fmt.Sprintf("collector(source=%s, default=%s/%dd, refresh=%s)",
		c.forecasts.Name(), c.defaultCity, c.defaultDays, c.refresh)
}
