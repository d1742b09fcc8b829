package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Telemetry backends understood by the telemetry package
const (
	BackendNone     = "none"
	BackendFirebase = "firebase"
	BackendRedis    = "redis"
	BackendInflux   = "influx"
	BackendPostgres = "postgres"
	BackendMQTT     = "mqtt"
)

// Duration is a time.Duration that reads from JSON strings such as "1200ms"
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	Port int `json:"port"`

	WeatherAPI struct {
		APIKey      string   `json:"apiKey"`
		BaseURL     string   `json:"baseURL"`
		Timeout     Duration `json:"timeout"`
		RetryCount  int      `json:"retryCount"`
		RateLimit   bool     `json:"rateLimit"`
		RPS         float64  `json:"rps"`
		Burst       int      `json:"burst"`
		CacheTTL    Duration `json:"cacheTTL"`
		CacheRedis  bool     `json:"cacheRedis"`
		DefaultDays int      `json:"defaultDays"`
	} `json:"weatherAPI"`

	Telemetry struct {
		Backend string `json:"backend"`

		Firebase struct {
			DatabaseURL string `json:"databaseURL"`
			Auth        string `json:"auth"`
		} `json:"firebase"`

		Redis struct {
			Addr     string `json:"addr"`
			Password string `json:"password"`
			DB       int    `json:"db"`
			Key      string `json:"key"`
		} `json:"redis"`

		Influx struct {
			URL         string   `json:"url"`
			Token       string   `json:"token"`
			Org         string   `json:"org"`
			Bucket      string   `json:"bucket"`
			Measurement string   `json:"measurement"`
			Lookback    Duration `json:"lookback"`
		} `json:"influx"`

		Postgres struct {
			URL   string `json:"url"`
			Table string `json:"table"`
		} `json:"postgres"`

		MQTT struct {
			Broker   string `json:"broker"`
			ClientID string `json:"clientID"`
			Topic    string `json:"topic"`
		} `json:"mqtt"`
	} `json:"telemetry"`

	Alerts struct {
		Cooldown  Duration `json:"cooldown"`
		MQTTTopic string   `json:"mqttTopic"`
	} `json:"alerts"`

	Search struct {
		Debounce  Duration `json:"debounce"`
		MinLength int      `json:"minLength"`
	} `json:"search"`

	Preferences struct {
		Path string `json:"path"`
	} `json:"preferences"`

	Logging struct {
		Level     string `json:"level"`
		Format    string `json:"format"`
		MQTTTopic string `json:"mqttTopic"`
	} `json:"logging"`

	AllowedOrigins []string `json:"allowedOrigins"`

	DefaultCity     string   `json:"defaultCity"`
	RefreshInterval Duration `json:"refreshInterval"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	config := &Config{Port: 8080}

	config.WeatherAPI.BaseURL = "https://api.weatherapi.com/v1"
	config.WeatherAPI.Timeout = Duration(10 * time.Second)
	config.WeatherAPI.RetryCount = 1
	config.WeatherAPI.RateLimit = true
	// WeatherAPI free tier allows ~23 calls/minute = 0.4 calls per second
	config.WeatherAPI.RPS = 0.4
	config.WeatherAPI.Burst = 3
	config.WeatherAPI.DefaultDays = 7

	config.Telemetry.Backend = BackendNone
	config.Telemetry.Redis.Addr = "localhost:6379"
	config.Telemetry.Redis.Key = "telemetry:latest"
	config.Telemetry.Influx.Bucket = "sensors"
	config.Telemetry.Influx.Measurement = "environment"
	config.Telemetry.Influx.Lookback = Duration(24 * time.Hour)
	config.Telemetry.Postgres.Table = "telemetry_snapshots"
	config.Telemetry.MQTT.ClientID = "weather-monitor"
	config.Telemetry.MQTT.Topic = "sensors/latest"

	config.Search.Debounce = Duration(1200 * time.Millisecond)
	config.Search.MinLength = 3

	config.Preferences.Path = "preferences.db"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.AllowedOrigins = []string{"*"}
	config.DefaultCity = "Islamabad"
	return config
}

// LoadConfig loads configuration from a JSON file layered over the defaults,
// then applies environment overrides (a .env file is loaded first if present).
// A missing config file is not an error.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		file, err := os.Open(filename)
		switch {
		case err == nil:
			defer file.Close()
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(config); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to open config %s: %w", filename, err)
		}
	}

	// .env is optional; the process environment wins either way
	_ = godotenv.Load()

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("WEATHERAPI_KEY", &c.WeatherAPI.APIKey)
	setString("WEATHERAPI_URL", &c.WeatherAPI.BaseURL)
	setString("TELEMETRY_BACKEND", &c.Telemetry.Backend)
	setString("FIREBASE_DATABASE_URL", &c.Telemetry.Firebase.DatabaseURL)
	setString("FIREBASE_AUTH", &c.Telemetry.Firebase.Auth)
	setString("REDIS_ADDR", &c.Telemetry.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Telemetry.Redis.Password)
	setString("INFLUXDB_URL", &c.Telemetry.Influx.URL)
	setString("INFLUXDB_TOKEN", &c.Telemetry.Influx.Token)
	setString("INFLUXDB_ORG", &c.Telemetry.Influx.Org)
	setString("POSTGRES_URL", &c.Telemetry.Postgres.URL)
	setString("MQTT_BROKER", &c.Telemetry.MQTT.Broker)
	setString("DEFAULT_CITY", &c.DefaultCity)
	setString("PREFERENCES_PATH", &c.Preferences.Path)
	setString("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// Validate checks that the configuration can start the service
func (c *Config) Validate() error {
	if c.WeatherAPI.APIKey == "" {
		return errors.New("weatherAPI.apiKey is required (or set WEATHERAPI_KEY)")
	}
	if c.WeatherAPI.DefaultDays <= 0 {
		return fmt.Errorf("weatherAPI.defaultDays must be positive, got %d", c.WeatherAPI.DefaultDays)
	}

	backend := strings.ToLower(c.Telemetry.Backend)
	switch backend {
	case BackendNone, "":
	case BackendFirebase:
		if c.Telemetry.Firebase.DatabaseURL == "" {
			return errors.New("telemetry.firebase.databaseURL is required for the firebase backend")
		}
	case BackendRedis:
		if c.Telemetry.Redis.Addr == "" {
			return errors.New("telemetry.redis.addr is required for the redis backend")
		}
	case BackendInflux:
		if c.Telemetry.Influx.URL == "" || c.Telemetry.Influx.Token == "" || c.Telemetry.Influx.Org == "" {
			return errors.New("telemetry.influx url, token and org are required for the influx backend")
		}
	case BackendPostgres:
		if c.Telemetry.Postgres.URL == "" {
			return errors.New("telemetry.postgres.url is required for the postgres backend")
		}
	case BackendMQTT:
		if c.Telemetry.MQTT.Broker == "" {
			return errors.New("telemetry.mqtt.broker is required for the mqtt backend")
		}
	default:
		return fmt.Errorf("unknown telemetry backend %q", c.Telemetry.Backend)
	}
	c.Telemetry.Backend = backend
	if c.Telemetry.Backend == "" {
		c.Telemetry.Backend = BackendNone
	}
	return nil
}
