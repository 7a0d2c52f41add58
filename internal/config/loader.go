package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/datadeck/datadeck/internal/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// ETLConfig holds ingestion tuning knobs.
type ETLConfig struct {
	BatchSize int
	Workers   int
	// ReadyAttempts bounds the table-visibility poll after provisioning.
	ReadyAttempts int
	// FallbackOwner scopes requests that carry no owner id. uuid.Nil
	// disables the fallback and such requests are rejected.
	FallbackOwner uuid.UUID
}

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	ETL      ETLConfig
}

// Load reads config.yaml from configPath, with environment overrides
// prefixed DATADECK (DATADECK_DATABASE_HOST and so on). Missing file is
// fine; defaults plus env apply.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		ETL: ETLConfig{
			BatchSize:     50,
			Workers:       4,
			ReadyAttempts: 5,
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("DATADECK")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("etl.fallback_owner")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if v.IsSet("etl.batch_size") {
		cfg.ETL.BatchSize = v.GetInt("etl.batch_size")
	}
	if v.IsSet("etl.workers") {
		cfg.ETL.Workers = v.GetInt("etl.workers")
	}
	if v.IsSet("etl.ready_attempts") {
		cfg.ETL.ReadyAttempts = v.GetInt("etl.ready_attempts")
	}
	if v.IsSet("etl.fallback_owner") {
		raw := v.GetString("etl.fallback_owner")
		id, err := uuid.Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid etl.fallback_owner %q: %w", raw, err)
		}
		cfg.ETL.FallbackOwner = id
	}

	return cfg, nil
}
