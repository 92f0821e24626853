package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
}

// StoreConfig selects and configures the record store. With the sqlite
// driver DatabaseURL is the database file path.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// GeocodeConfig configures address resolution.
type GeocodeConfig struct {
	NominatimURL     string          `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	ViaCEPURL        string          `yaml:"viacep_url" mapstructure:"viacep_url"`
	UserAgent        string          `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit        float64         `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs      int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	AcceptThreshold  float64         `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	KeepThreshold    float64         `yaml:"keep_threshold" mapstructure:"keep_threshold"`
	BreakerFailures  int             `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int             `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	Region           geocode.Region  `yaml:"region" mapstructure:"region"`
	Weights          geocode.Weights `yaml:"weights" mapstructure:"weights"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZOONOSES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.viacep_url", "https://viacep.com.br")
	v.SetDefault("geocode.user_agent", "zoonoses/1.0 (vigilancia epidemiologica)")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.accept_threshold", 0.5)
	v.SetDefault("geocode.keep_threshold", 0.3)
	v.SetDefault("geocode.breaker_failures", 5)
	v.SetDefault("geocode.breaker_reset_secs", 60)

	region := geocode.DefaultRegion()
	v.SetDefault("geocode.region.municipality", region.Municipality)
	v.SetDefault("geocode.region.state", region.State)
	v.SetDefault("geocode.region.country", region.Country)
	v.SetDefault("geocode.region.center_lat", region.CenterLat)
	v.SetDefault("geocode.region.center_lng", region.CenterLng)
	v.SetDefault("geocode.region.min_lat", region.MinLat)
	v.SetDefault("geocode.region.max_lat", region.MaxLat)
	v.SetDefault("geocode.region.min_lng", region.MinLng)
	v.SetDefault("geocode.region.max_lng", region.MaxLng)

	w := geocode.DefaultWeights()
	v.SetDefault("geocode.weights.municipality_match", w.MunicipalityMatch)
	v.SetDefault("geocode.weights.house_number", w.HouseNumber)
	v.SetDefault("geocode.weights.type_house", w.TypeHouse)
	v.SetDefault("geocode.weights.type_residential", w.TypeResidential)
	v.SetDefault("geocode.weights.class_place", w.ClassPlace)
	v.SetDefault("geocode.weights.importance_factor", w.ImportanceFactor)
	v.SetDefault("geocode.weights.road_match", w.RoadMatch)
	v.SetDefault("geocode.weights.base_confidence", w.BaseConfidence)
	v.SetDefault("geocode.weights.house_number_confidence", w.HouseNumberConf)
	v.SetDefault("geocode.weights.type_house_confidence", w.TypeHouseConf)
	v.SetDefault("geocode.weights.importance_confidence", w.ImportanceConf)
	v.SetDefault("geocode.weights.importance_confidence_cutoff", w.ImportanceConfCutoff)
}

// Validate rejects settings the resolver cannot work with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unsupported store.driver %q", c.Store.Driver)
	}

	g := c.Geocode
	if g.AcceptThreshold < 0 || g.AcceptThreshold > 1 {
		return eris.Errorf("config: geocode.accept_threshold %v outside [0,1]", g.AcceptThreshold)
	}
	if g.KeepThreshold < 0 || g.KeepThreshold > 1 {
		return eris.Errorf("config: geocode.keep_threshold %v outside [0,1]", g.KeepThreshold)
	}
	if g.RateLimit <= 0 {
		return eris.New("config: geocode.rate_limit must be positive")
	}
	r := g.Region
	if strings.TrimSpace(r.Municipality) == "" {
		return eris.New("config: geocode.region.municipality is required")
	}
	if r.MinLat >= r.MaxLat || r.MinLng >= r.MaxLng {
		return eris.New("config: geocode.region bounding box is empty")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
