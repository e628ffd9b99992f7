// Package config loads the scheduler service's configuration from an
// optional YAML file and environment variables, with env taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all scheduler service configuration.
type Config struct {
	HTTPAddress string `mapstructure:"http_address"`
	DatabaseURL string `mapstructure:"database_url"`

	// ExecutionBaseURL is the base URL of the workflow-execution API the
	// dispatcher calls back into.
	ExecutionBaseURL string        `mapstructure:"execution_base_url"`
	DispatchTimeout  time.Duration `mapstructure:"dispatch_timeout"`

	// ServiceKey is the base64 symmetric key used to encrypt recoverable
	// automation credential secrets.
	ServiceKey string `mapstructure:"service_key"`

	// GraphAPIBaseURL is the platform API used to scan deployed graphs for
	// trigger nodes.
	GraphAPIBaseURL string `mapstructure:"graph_api_base_url"`
	GraphAPIKey     string `mapstructure:"graph_api_key"`

	TaskQueue string `mapstructure:"task_queue"`
}

// LoadConfig loads configuration from files and environment variables.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("http_address", ":8090")
	v.SetDefault("dispatch_timeout", 5*time.Minute)
	v.SetDefault("task_queue", "workflow-executions")

	v.AutomaticEnv()
	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"http_address":       "LOOM_HTTP_ADDRESS",
		"database_url":       "LOOM_DATABASE_URL",
		"execution_base_url": "LOOM_EXECUTION_BASE_URL",
		"dispatch_timeout":   "LOOM_DISPATCH_TIMEOUT",
		"service_key":        "LOOM_SERVICE_KEY",
		"graph_api_base_url": "LOOM_GRAPH_API_BASE_URL",
		"graph_api_key":      "LOOM_GRAPH_API_KEY",
		"task_queue":         "LOOM_TASK_QUEUE",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("loom_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.loom")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return config, nil
}
