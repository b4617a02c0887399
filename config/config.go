package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Match  MatchConfig  `mapstructure:"match"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type MatchConfig struct {
	DurationSeconds int `mapstructure:"duration_seconds"`
}

// Duration returns the configured match length.
func (m MatchConfig) Duration() time.Duration {
	return time.Duration(m.DurationSeconds) * time.Second
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9090")
	viper.SetDefault("match.duration_seconds", 60)

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// Defaults cover every key, so a missing file is fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}
