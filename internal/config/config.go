package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server      ServerConfig      `toml:"server"`      // HTTP server settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
	Stations    StationsConfig    `toml:"stations"`    // Station directory settings
	Weather     WeatherConfig     `toml:"wx"`          // Weather feed fetching and caching settings
	Frequencies FrequenciesConfig `toml:"frequencies"` // Airport frequency lookup settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	FilePath   string `toml:"file_path"`    // Optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Number of rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// StationsConfig contains station directory configuration
type StationsConfig struct {
	DBPath             string `toml:"db_path"`               // SQLite database holding the station directory
	AirportsCSVPath    string `toml:"airports_csv_path"`     // OurAirports airports.csv imported at startup (optional)
	WindsAloftListPath string `toml:"winds_aloft_list_path"` // Newline-separated list of winds-aloft publishing station codes (optional)
	NationalPrefix     string `toml:"national_prefix"`       // Letter prepended to 3-character forecast identifiers (e.g., "K")
}

// WeatherConfig contains weather feed fetching and caching configuration
type WeatherConfig struct {
	APIBaseURL            string `toml:"api_base_url"`            // Base URL of the aviation weather data API
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MaxRetries            int    `toml:"max_retries"`             // Maximum number of retry attempts for failed requests

	WindsAloft   WindsAloftConfig   `toml:"winds_aloft"`
	Observations ObservationsConfig `toml:"observations"`
	Hazards      HazardsConfig      `toml:"hazards"`
}

// WindsAloftConfig contains winds-aloft bulk product settings
type WindsAloftConfig struct {
	URL               string   `toml:"url"`                // Bulk fixed-column forecast product URL
	InvalidationTimes []string `toml:"invalidation_times"` // UTC times of day ("HH:MM") when the cached table is discarded
}

// ObservationsConfig contains METAR feed and cache settings
type ObservationsConfig struct {
	URL             string `toml:"url"`               // Decoded METAR URL template with a {station} placeholder
	APIKey          string `toml:"api_key"`           // API key sent as X-API-Key
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"` // How long a decomposed observation is served from cache
	CacheSize       int    `toml:"cache_size"`        // Maximum number of cached stations
}

// HazardsConfig contains hazard feed filtering settings
type HazardsConfig struct {
	URL    string  `toml:"url"`     // SIGMET GeoJSON feed URL
	MinLat float64 `toml:"min_lat"` // Default filter region
	MaxLat float64 `toml:"max_lat"`
	MinLon float64 `toml:"min_lon"`
	MaxLon float64 `toml:"max_lon"`
}

// FrequenciesConfig contains airport frequency lookup settings
type FrequenciesConfig struct {
	URL      string `toml:"url"`       // Airport database URL template with {code} and {token} placeholders
	APIToken string `toml:"api_token"` // API token for the airport database
}

// Load reads and decodes the configuration file at path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// in order of preference, returning the first one that loads
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate checks the configuration and fills in defaults for unset values
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 30
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if err := c.ValidateStations(); err != nil {
		return err
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}

	if c.Frequencies.URL == "" {
		c.Frequencies.URL = "https://airportdb.io/api/v1/airport/{code}?apiToken={token}"
	}

	return nil
}

// ValidateStations validates the station directory configuration
func (c *Config) ValidateStations() error {
	if c.Stations.DBPath == "" {
		c.Stations.DBPath = "data/stations.db"
	}

	if c.Stations.NationalPrefix == "" {
		c.Stations.NationalPrefix = "K"
	}
	if len(c.Stations.NationalPrefix) != 1 {
		return fmt.Errorf("stations national_prefix must be a single letter: %q", c.Stations.NationalPrefix)
	}

	for _, path := range []string{c.Stations.AirportsCSVPath, c.Stations.WindsAloftListPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("station data file not accessible: %s: %w", path, err)
		}
	}

	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	w := &c.Weather

	if w.APIBaseURL == "" {
		w.APIBaseURL = "https://aviationweather.gov/api/data"
	}

	if w.RequestTimeoutSeconds == 0 {
		w.RequestTimeoutSeconds = 10
	}
	if w.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", w.RequestTimeoutSeconds)
	}

	if w.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", w.MaxRetries)
	}

	if w.WindsAloft.URL == "" {
		w.WindsAloft.URL = w.APIBaseURL + "/windtemp?region=all&level=low&fcst=06"
	}
	if len(w.WindsAloft.InvalidationTimes) == 0 {
		w.WindsAloft.InvalidationTimes = []string{"00:01", "06:01", "12:01", "18:01"}
	}
	for _, hhmm := range w.WindsAloft.InvalidationTimes {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("weather winds_aloft invalidation time %q is not HH:MM: %w", hhmm, err)
		}
	}

	if w.Observations.URL == "" {
		w.Observations.URL = "https://api.checkwx.com/metar/{station}/decoded"
	}
	if w.Observations.CacheTTLSeconds == 0 {
		w.Observations.CacheTTLSeconds = 300
	}
	if w.Observations.CacheTTLSeconds < 0 {
		return fmt.Errorf("weather observations cache_ttl_seconds must be greater than 0: %d", w.Observations.CacheTTLSeconds)
	}
	if w.Observations.CacheSize <= 0 {
		w.Observations.CacheSize = 1024
	}

	h := &w.Hazards
	if h.URL == "" {
		h.URL = w.APIBaseURL + "/airsigmet?type=SIGMET&format=geojson"
	}
	if h.MinLat == 0 && h.MaxLat == 0 && h.MinLon == 0 && h.MaxLon == 0 {
		h.MinLat, h.MaxLat, h.MinLon, h.MaxLon = 24, 50, -125, -66
	}
	if h.MinLat > h.MaxLat || h.MinLon > h.MaxLon {
		return fmt.Errorf("weather hazards region is inverted: lat [%v,%v] lon [%v,%v]", h.MinLat, h.MaxLat, h.MinLon, h.MaxLon)
	}

	return nil
}

// RequestTimeout returns the upstream request timeout as a duration
func (w WeatherConfig) RequestTimeout() time.Duration {
	return time.Duration(w.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the observation cache expiry as a duration
func (o ObservationsConfig) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLSeconds) * time.Second
}
