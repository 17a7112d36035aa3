package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server     Server
	Database   Database
	Proctoring Proctoring
}

type Server struct {
	Port string
}
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Proctoring holds the anti-cheat policy knobs. Auto-termination on a
// CRITICAL violation is a product decision, so it stays configurable.
type Proctoring struct {
	AutoTerminateOnFullscreenExit  bool
	AutoTerminateOnUnauthorizedApp bool
	EventRateLimit                 float64 // events per second, per attempt
	EventRateBurst                 int
	DeniedApps                     []string // overrides the built-in deny list when set
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AUTO_TERMINATE_ON_FULLSCREEN_EXIT", true)
	viper.SetDefault("AUTO_TERMINATE_ON_UNAUTHORIZED_APP", false)
	viper.SetDefault("EVENT_RATE_LIMIT", 20.0)
	viper.SetDefault("EVENT_RATE_BURST", 40)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Proctoring.AutoTerminateOnFullscreenExit = viper.GetBool("AUTO_TERMINATE_ON_FULLSCREEN_EXIT")
	config.Proctoring.AutoTerminateOnUnauthorizedApp = viper.GetBool("AUTO_TERMINATE_ON_UNAUTHORIZED_APP")
	config.Proctoring.EventRateLimit = viper.GetFloat64("EVENT_RATE_LIMIT")
	config.Proctoring.EventRateBurst = viper.GetInt("EVENT_RATE_BURST")
	if raw := viper.GetString("DENIED_APPS"); raw != "" {
		for _, app := range strings.Split(raw, ",") {
			if app = strings.TrimSpace(app); app != "" {
				config.Proctoring.DeniedApps = append(config.Proctoring.DeniedApps, app)
			}
		}
	}

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil
}
