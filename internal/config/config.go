// Package config loads and validates sync configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob of the sync pipelines.
type Config struct {
	Federation FederationConfig `mapstructure:"federation"`
	FIDE       FIDEConfig       `mapstructure:"fide"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Output     OutputConfig     `mapstructure:"output"`
	Geocode    GeocodeConfig    `mapstructure:"geocode"`
	Exclude    ExcludeConfig    `mapstructure:"exclude"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// FederationConfig points at the national federation portal.
type FederationConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	DetailConcurrency int    `mapstructure:"detail_concurrency"`
	RosterConcurrency int    `mapstructure:"roster_concurrency"`
	ListDelayMs       int    `mapstructure:"list_delay_ms"`
	PageDelayMs       int    `mapstructure:"page_delay_ms"`
}

// FIDEConfig governs the bulk players-list sync.
type FIDEConfig struct {
	DownloadPageURL     string `mapstructure:"download_page_url"`
	ArchiveEndpoint     string `mapstructure:"archive_endpoint"`
	DefaultPlayersURL   string `mapstructure:"default_players_url"`
	ShardCount          int    `mapstructure:"shard_count"`
	FlushBytes          int    `mapstructure:"flush_bytes"`
	MinPlausiblePlayers int    `mapstructure:"min_plausible_players"`
	MaxRows             int    `mapstructure:"max_rows"`
	ArchivePeriods      string `mapstructure:"archive_periods"`
	IncludeArchiveXML   bool   `mapstructure:"include_archive_xml"`
}

// HTTPConfig configures fetch client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffBaseMs  int    `mapstructure:"backoff_base_ms"`
	UserAgent      string `mapstructure:"user_agent"`
}

// OutputConfig sets where the produced dataset lands.
type OutputConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	BasePath string `mapstructure:"base_path"`
}

// GeocodeConfig controls the multi-provider geocode reconciliation.
type GeocodeConfig struct {
	PrimaryEndpoint   string            `mapstructure:"primary_endpoint"`
	SecondaryEndpoint string            `mapstructure:"secondary_endpoint"`
	DelayMs           int               `mapstructure:"delay_ms"`
	MaxDistanceKm     float64           `mapstructure:"max_distance_km"`
	SuspectDistanceKm float64           `mapstructure:"suspect_distance_km"`
	CentroidsFile     string            `mapstructure:"centroids_file"`
	Overrides         map[string]string `mapstructure:"overrides"`
}

// ExcludeConfig filters non-club administrative entries out of listings.
type ExcludeConfig struct {
	Refs         []string `mapstructure:"refs"`
	NamePatterns []string `mapstructure:"name_patterns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the optional debug/metrics listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Timeout returns the per-attempt HTTP timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffBase returns the linear backoff base delay.
func (c HTTPConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHESS_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("federation.base_url", "https://echecs.asso.fr")
	v.SetDefault("federation.detail_concurrency", 8)
	v.SetDefault("federation.roster_concurrency", 3)
	v.SetDefault("federation.list_delay_ms", 120)
	v.SetDefault("federation.page_delay_ms", 80)
	v.SetDefault("fide.download_page_url", "https://ratings.fide.com/download_lists.phtml")
	v.SetDefault("fide.archive_endpoint", "https://ratings.fide.com/a_download.php?period=")
	v.SetDefault("fide.default_players_url", "https://ratings.fide.com/download/players_list.zip")
	v.SetDefault("fide.shard_count", 100)
	v.SetDefault("fide.flush_bytes", 512*1024)
	v.SetDefault("fide.min_plausible_players", 100000)
	v.SetDefault("fide.max_rows", 0)
	v.SetDefault("fide.archive_periods", "1")
	v.SetDefault("fide.include_archive_xml", false)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_ms", 500)
	v.SetDefault("http.user_agent", "echecs92-data-sync/1.0 (+https://echecs92.fr)")
	v.SetDefault("output.data_dir", "data")
	v.SetDefault("output.base_path", "/assets/data/")
	v.SetDefault("geocode.primary_endpoint", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.secondary_endpoint", "https://api-adresse.data.gouv.fr/search")
	v.SetDefault("geocode.delay_ms", 650)
	v.SetDefault("geocode.max_distance_km", 15.0)
	v.SetDefault("geocode.suspect_distance_km", 5.0)
	v.SetDefault("geocode.centroids_file", "data/postal-coordinates-fr.json")
	v.SetDefault("exclude.refs", []string{"1901"})
	v.SetDefault("exclude.name_patterns", []string{"(?i)championnat de france"})
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Federation.BaseURL == "" {
		return fmt.Errorf("federation.base_url must be set")
	}
	if c.Federation.DetailConcurrency <= 0 {
		return fmt.Errorf("federation.detail_concurrency must be > 0")
	}
	if c.Federation.RosterConcurrency <= 0 {
		return fmt.Errorf("federation.roster_concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.FIDE.ShardCount != 100 {
		return fmt.Errorf("fide.shard_count must be 100, shard prefixes are two digits")
	}
	if c.FIDE.FlushBytes <= 0 {
		return fmt.Errorf("fide.flush_bytes must be > 0")
	}
	if c.Geocode.MaxDistanceKm <= 0 {
		return fmt.Errorf("geocode.max_distance_km must be > 0")
	}
	if c.Output.DataDir == "" {
		return fmt.Errorf("output.data_dir must be set")
	}
	return nil
}
