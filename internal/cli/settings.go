package cli

import (
	"os"
	"time"

	"github.com/spf13/viper"

	photohistory "github.com/anatolykoptev/go-photohistory"
)

// Settings is the effective scan configuration after merging defaults,
// the config file, PHOTOHISTORY_* variables and flags.
type Settings struct {
	Workers                   int            `yaml:"workers" mapstructure:"workers"`
	ItemTimeout               time.Duration  `yaml:"item_timeout" mapstructure:"item_timeout"`
	Filter                    bool           `yaml:"filter" mapstructure:"filter"`
	AllowUnrecognizablePeople bool           `yaml:"allow_unrecognizable_people" mapstructure:"allow_unrecognizable_people"`
	Limit                     int            `yaml:"limit" mapstructure:"limit"`
	MinWidth                  int            `yaml:"min_width" mapstructure:"min_width"`
	Format                    string         `yaml:"format" mapstructure:"format"`
	MetricsAddr               string         `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	CacheTTL                  time.Duration  `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Vision                    VisionSettings `yaml:"vision" mapstructure:"vision"`
}

// VisionSettings configures the vision model endpoint.
type VisionSettings struct {
	Model             string        `yaml:"model" mapstructure:"model"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// DefaultSettings mirrors the library defaults.
func DefaultSettings() Settings {
	return Settings{
		Workers:     photohistory.DefaultWorkers,
		ItemTimeout: photohistory.DefaultItemTimeout,
		Limit:       photohistory.DefaultFetchLimit,
		Format:      "table",
		CacheTTL:    time.Hour,
		Vision: VisionSettings{
			Model:   "gpt-4o-mini",
			Timeout: 45 * time.Second,
		},
	}
}

func init() {
	d := DefaultSettings()
	viper.SetDefault("workers", d.Workers)
	viper.SetDefault("item_timeout", d.ItemTimeout)
	viper.SetDefault("filter", d.Filter)
	viper.SetDefault("allow_unrecognizable_people", d.AllowUnrecognizablePeople)
	viper.SetDefault("limit", d.Limit)
	viper.SetDefault("min_width", d.MinWidth)
	viper.SetDefault("format", d.Format)
	viper.SetDefault("metrics_addr", d.MetricsAddr)
	viper.SetDefault("cache_ttl", d.CacheTTL)
	viper.SetDefault("vision.model", d.Vision.Model)
	viper.SetDefault("vision.base_url", d.Vision.BaseURL)
	viper.SetDefault("vision.api_key", "")
	viper.SetDefault("vision.timeout", d.Vision.Timeout)
	viper.SetDefault("vision.requests_per_second", d.Vision.RequestsPerSecond)
}

// loadSettings reads the merged configuration from viper.
func loadSettings() (Settings, error) {
	s := DefaultSettings()
	if err := viper.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	if s.Vision.APIKey == "" {
		s.Vision.APIKey = viper.GetString("api_key")
	}
	if s.Vision.APIKey == "" {
		s.Vision.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return s, nil
}

// redacted returns a copy safe to print.
func (s Settings) redacted() Settings {
	if s.Vision.APIKey != "" {
		s.Vision.APIKey = "********"
	}
	return s
}
