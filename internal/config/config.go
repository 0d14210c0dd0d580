// Package config loads server and client settings from an optional JSON
// file, with defaults for every key.
package config

import (
	"errors"

	"github.com/spf13/viper"
)

const configName = "orrery.cfg.json"

// Load reads configuration from configDir and sets default values. A
// missing config file is not an error; the defaults apply.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("server.listenAddr", ":8080")
	viper.SetDefault("server.metricsAddr", ":9090")
	viper.SetDefault("server.tickRate", 20.0)
	viper.SetDefault("server.minLeadTicks", 5)
	viper.SetDefault("server.keyframeInterval", 32)
	viper.SetDefault("server.maxManeuvers", 32)
	viper.SetDefault("server.commandRate", 10.0)
	viper.SetDefault("server.commandBurst", 20)
	viper.SetDefault("server.homeBody", "earth")
	viper.SetDefault("server.spawnRadius", 42164.0)

	viper.SetDefault("server.tls.enabled", false)
	viper.SetDefault("server.tls.domain", "")
	viper.SetDefault("server.tls.certCacheDir", "certs")

	viper.SetDefault("universe.dt", 0.001)
	viper.SetDefault("universe.file", "")
	viper.SetDefault("universe.db", "")

	viper.SetDefault("client.serverUrl", "ws://localhost:8080/ws")
	viper.SetDefault("client.name", "")
	viper.SetDefault("client.predictionHorizon", 360)
	viper.SetDefault("client.predictionStride", 3)

	viper.SetConfigName(configName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
