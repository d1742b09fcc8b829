package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"weather-monitor/collector"
	"weather-monitor/datasource"
	"weather-monitor/debounce"
	"weather-monitor/logging"
	"weather-monitor/telemetry"
)

func main() {
	configFile := flag.String("config", "config.json", "Path to configuration file")
	city := flag.String("city", "", "City to fetch (defaults to the configured default city)")
	days := flag.Int("days", 0, "Number of forecast days (defaults to the configured value)")
	search := flag.Bool("search", false, "Read search-box contents from stdin and print debounced results")
	verbose := flag.Bool("v", false, "Log to stderr")
	flag.Parse()

	config, err := datasource.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := logging.New(config.Logging.Level, "text", logOut)

	provider := datasource.NewWeatherAPIProvider(config.WeatherAPI.APIKey,
		datasource.WithBaseURL(config.WeatherAPI.BaseURL),
		datasource.WithTimeout(config.WeatherAPI.Timeout.Std()),
		datasource.WithRetryCount(config.WeatherAPI.RetryCount),
		datasource.WithLogger(logger),
	)

	// The CLI has no broker connection, so MQTT telemetry is not available here
	var store telemetry.Store
	switch config.Telemetry.Backend {
	case datasource.BackendNone, datasource.BackendMQTT:
	default:
		store = telemetry.NewLazyStore(config.Telemetry.Backend, func(ctx context.Context) (telemetry.Store, error) {
			return telemetry.Open(ctx, config, logger)
		}, logger)
	}

	c := collector.New(collector.Options{
		Forecasts:   provider,
		Searcher:    provider,
		Merger:      telemetry.NewMerger(store, logger),
		Logger:      logger,
		DefaultCity: config.DefaultCity,
		DefaultDays: config.WeatherAPI.DefaultDays,
	})

	if *search {
		runSearch(c, config, os.Stdin, os.Stdout)
		return
	}

	if *city == "" {
		*city = config.DefaultCity
	}
	if *days <= 0 {
		*days = config.WeatherAPI.DefaultDays
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d := c.Assemble(ctx, *city, *days)
	if !d.OK {
		fmt.Fprintf(os.Stderr, "No forecast for %s: %s\n", *city, d.Error)
		os.Exit(1)
	}
	printDisplay(d)
}

func printDisplay(d collector.Display) {
	f := d.Forecast
	fmt.Printf("%s, %s\n", f.Location.Name, f.Location.Country)
	fmt.Println(strings.Repeat("=", 40))

	cur := f.Current
	fmt.Printf("Now: %.1f°C / %.1f°F, humidity %.0f%%, %s\n", cur.TempC, cur.TempF, cur.Humidity, cur.Condition.Text)
	if d.TelemetryMerged {
		fmt.Printf("Sensors (%s): %.2f K, %.2f °R\n", cur.Date, cur.TempK, cur.TempR)
	} else {
		fmt.Println("Sensors: no telemetry")
	}

	h := d.Hazards
	fmt.Printf("Fire hazard: %v, seismic hazard: %v, %s\n", h.FireHazard, h.SeismicHazard, h.Light)
	for _, a := range d.Alerts {
		fmt.Printf("!! %s: %s\n", a.Title, a.Message)
	}

	fmt.Println()
	for _, day := range f.Forecast.ForecastDay {
		fmt.Printf("%s  avg %5.1f°C  min %5.1f°C  max %5.1f°C  humidity %3.0f%%  %s\n",
			day.Date, day.Day.AvgTempC, day.Day.MinTempC, day.Day.MaxTempC, day.Day.AvgHumidity, day.Day.Condition.Text)
	}
}

// runSearch treats every stdin line as the current search-box contents
func runSearch(c *collector.Collector, config *datasource.Config, in io.Reader, out io.Writer) {
	var mu sync.Mutex

	s := debounce.NewSearch(config.Search.Debounce.Std(), config.Search.MinLength, func(query string) {
		result := c.SearchLocations(context.Background(), query)

		mu.Lock()
		defer mu.Unlock()
		if !result.OK() {
			fmt.Fprintf(out, "%q: search failed: %s\n", query, result.Reason())
			return
		}
		fmt.Fprintf(out, "%q: %d match(es)\n", query, len(result.Value))
		for _, loc := range result.Value {
			fmt.Fprintf(out, "  %s, %s, %s (%.2f, %.2f)\n", loc.Name, loc.Region, loc.Country, loc.Lat, loc.Lon)
		}
	})

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		s.Input(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Error("failed to read input", "error", err)
	}

	// Send the last pending query and wait for every printed result
	s.Flush()
}
