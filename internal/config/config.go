package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type EngineConfig struct {
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
	WriteBatchSize  int           `mapstructure:"write_batch_size"`
	StaleRunAfter   time.Duration `mapstructure:"stale_run_after"`
}

type Config struct {
	DatabaseURL        string       `mapstructure:"database_url"`
	ServerPort         string       `mapstructure:"server_port"`
	CORSAllowedOrigins []string     `mapstructure:"cors_allowed_origins"`
	Engine             EngineConfig `mapstructure:"engine"`
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
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if len(config.CORSAllowedOrigins) == 0 {
		config.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}
	if config.Engine.CallTimeout == 0 {
		config.Engine.CallTimeout = 30 * time.Second
	}
	if config.Engine.TransferTimeout == 0 {
		config.Engine.TransferTimeout = 30 * time.Minute
	}
	if config.Engine.WriteBatchSize == 0 {
		config.Engine.WriteBatchSize = 500
	}
	if config.Engine.StaleRunAfter == 0 {
		config.Engine.StaleRunAfter = time.Hour
	}

	return &config
}
