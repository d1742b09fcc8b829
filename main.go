package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"

	"weather-monitor/api"
	"weather-monitor/broker"
	"weather-monitor/cache"
	"weather-monitor/collector"
	"weather-monitor/datasource"
	"weather-monitor/hazard"
	"weather-monitor/logging"
	"weather-monitor/preferences"
	"weather-monitor/telemetry"
)

const serviceName = "weather-monitor"

func main() {
	// Parse command line arguments
	port := flag.Int("port", 8080, "Port to run the server on")
	configFile := flag.String("config", "config.json", "Path to configuration file")
	enableRateLimiting := flag.Bool("rate-limit", true, "Enable API rate limiting")
	refresh := flag.Duration("refresh", 0, "Refresh interval for the current city (0 disables)")
	flag.Parse()

	// Bootstrap logger until the configured one can be built
	logger := logging.New("info", "json", os.Stdout)

	// Load configuration
	config, err := datasource.LoadConfig(*configFile)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Flags given explicitly win over the file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = *port
		case "rate-limit":
			config.WeatherAPI.RateLimit = *enableRateLimiting
		case "refresh":
			config.RefreshInterval = datasource.Duration(*refresh)
		}
	})

	if err := config.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger = logging.New(config.Logging.Level, config.Logging.Format, os.Stdout)
	slog.SetDefault(logger)

	// The broker is shared by the telemetry feed, alerts and the log mirror
	var mqttStore *telemetry.MQTTStore
	if config.Telemetry.Backend == datasource.BackendMQTT {
		mqttStore = telemetry.NewMQTTStore(config.Telemetry.MQTT.Topic, logger)
	}

	var client mqtt.Client
	if needsBroker(config) {
		client, err = broker.Connect(broker.Options{
			Broker:   config.Telemetry.MQTT.Broker,
			ClientID: config.Telemetry.MQTT.ClientID,
			OnConnect: func(c mqtt.Client) {
				if mqttStore == nil {
					return
				}
				if err := mqttStore.Subscribe(c); err != nil {
					logger.Error("failed to subscribe to telemetry", "error", err)
				}
			},
		})
		if err != nil {
			logger.Error("failed to connect to MQTT broker", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(250)

		if config.Logging.MQTTTopic != "" {
			mirror := logging.NewMQTTWriter(client, serviceName, config.Logging.MQTTTopic)
			logger = logging.New(config.Logging.Level, config.Logging.Format, os.Stdout, mirror)
			slog.SetDefault(logger)
			logger.Info("mirroring logs to MQTT", "topic", mirror.Topic())
		}
	}

	// Create the provider based on configuration
	provider := datasource.WeatherProvider(datasource.NewWeatherAPIProvider(config.WeatherAPI.APIKey,
		datasource.WithBaseURL(config.WeatherAPI.BaseURL),
		datasource.WithTimeout(config.WeatherAPI.Timeout.Std()),
		datasource.WithRetryCount(config.WeatherAPI.RetryCount),
		datasource.WithLogger(logger),
	))

	// Apply rate limiting if enabled
	if config.WeatherAPI.RateLimit {
		provider = datasource.NewRateLimitedProvider(provider, config.WeatherAPI.RPS, config.WeatherAPI.Burst)
		logger.Info("applied rate limiting", "provider", provider.Name(), "rps", config.WeatherAPI.RPS, "burst", config.WeatherAPI.Burst)
	}

	forecasts, memoryCache, closeCache := buildForecastSource(config, provider, logger)
	defer closeCache()

	store := buildTelemetryStore(config, mqttStore, logger)

	notifiers := hazard.MultiNotifier{hazard.LogNotifier{Logger: logger}}
	if client != nil && config.Alerts.MQTTTopic != "" {
		notifiers = append(notifiers, hazard.NewMQTTNotifier(client, config.Alerts.MQTTTopic))
	}

	opts := collector.Options{
		Forecasts:       forecasts,
		Searcher:        provider,
		Merger:          telemetry.NewMerger(store, logger),
		Notifier:        notifiers,
		Gate:            hazard.NewGate(config.Alerts.Cooldown.Std()),
		Logger:          logger,
		DefaultCity:     config.DefaultCity,
		DefaultDays:     config.WeatherAPI.DefaultDays,
		RefreshInterval: config.RefreshInterval.Std(),
	}

	prefs, err := preferences.NewSQLite(config.Preferences.Path)
	if err != nil {
		logger.Warn("preferences unavailable, the selected city will not be remembered", "error", err)
	} else {
		defer prefs.Close()
		opts.Preferences = prefs
	}

	// Create in-memory store for the published display state
	forecastStore := api.NewForecastStore()
	opts.Sink = forecastStore

	c := collector.New(opts)
	logger.Info("collector configured", "collector", c.String(), "telemetry", config.Telemetry.Backend)

	// Create API server
	server := api.NewServer(c, forecastStore, api.Options{
		Port:            config.Port,
		DefaultDays:     config.WeatherAPI.DefaultDays,
		MinSearchLength: config.Search.MinLength,
		AllowedOrigins:  config.AllowedOrigins,
		Logger:          logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopCollector := c.Start(ctx)

	if memoryCache != nil {
		go pruneCache(ctx, memoryCache, config.WeatherAPI.CacheTTL.Std(), logger)
	}

	// Start the API server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		logger.Error("server stopped", "error", err)
	}

	stopCollector()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}

func needsBroker(config *datasource.Config) bool {
	if config.Telemetry.MQTT.Broker == "" {
		return false
	}
	return config.Telemetry.Backend == datasource.BackendMQTT ||
		config.Alerts.MQTTTopic != "" ||
		config.Logging.MQTTTopic != ""
}

// buildForecastSource layers the optional raw-forecast cache over the provider.
// The in-memory cache is returned separately so it can be pruned, and the
// returned func releases the redis connection pool if one was opened.
func buildForecastSource(config *datasource.Config, provider datasource.WeatherProvider, logger *slog.Logger) (datasource.ForecastSource, *cache.CachedForecastSource, func()) {
	noop := func() {}
	ttl := config.WeatherAPI.CacheTTL.Std()
	if ttl <= 0 {
		return provider, nil, noop
	}

	if config.WeatherAPI.CacheRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.Telemetry.Redis.Addr,
			Password: config.Telemetry.Redis.Password,
			DB:       config.Telemetry.Redis.DB,
		})
		logger.Info("caching forecasts in redis", "addr", config.Telemetry.Redis.Addr, "ttl", ttl)
		closeRedis := func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close forecast cache", "error", err)
			}
		}
		return cache.NewRedisForecastSource(provider, rdb, ttl, logger), nil, closeRedis
	}

	cached := cache.NewCachedForecastSource(provider, ttl, logger)
	logger.Info("caching forecasts in memory", "ttl", ttl)
	return cached, cached, noop
}

// buildTelemetryStore returns the configured store, or nil when telemetry is off
func buildTelemetryStore(config *datasource.Config, mqttStore *telemetry.MQTTStore, logger *slog.Logger) telemetry.Store {
	switch config.Telemetry.Backend {
	case datasource.BackendNone:
		logger.Info("telemetry disabled, forecasts are shown unmerged")
		return nil
	case datasource.BackendMQTT:
		return mqttStore
	}

	backend := config.Telemetry.Backend
	return telemetry.NewLazyStore(backend, func(ctx context.Context) (telemetry.Store, error) {
		return telemetry.Open(ctx, config, logger)
	}, logger)
}

// pruneCache periodically drops expired forecasts from the in-memory cache
func pruneCache(ctx context.Context, c *cache.CachedForecastSource, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pruned := c.Prune()
			hits, misses := c.CacheStats()
			logger.Debug("pruned forecast cache", "pruned", pruned, "hits", hits, "misses", misses)
		case <-ctx.Done():
			return
		}
	}
}
