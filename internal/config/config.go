package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type WorkerConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	IncrementalRowLimit int           `mapstructure:"incremental_row_limit"`
}

type Config struct {
	DatabaseURL          string          `mapstructure:"database_url"`
	AnalyticsDatabaseURL string          `mapstructure:"analytics_database_url"`
	Scheduler            SchedulerConfig `mapstructure:"scheduler"`
	Worker               WorkerConfig    `mapstructure:"worker"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.DatabaseURL == "" {
		log.Fatal("database_url must be set in the config file")
	}
	if config.AnalyticsDatabaseURL == "" {
		config.AnalyticsDatabaseURL = config.DatabaseURL
	}
	if config.Scheduler.PollInterval == 0 {
		config.Scheduler.PollInterval = time.Minute
	}
	if config.Worker.PollInterval == 0 {
		config.Worker.PollInterval = 5 * time.Second
	}
	if config.Worker.IncrementalRowLimit == 0 {
		config.Worker.IncrementalRowLimit = 1000
	}

	return &config
}
