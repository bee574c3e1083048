package config

import (
	"os"
	"strings"
)

type Postgres struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

type Config struct {
	Port          string
	DBDriver      string // "sqlite" or "postgres"
	SQLitePath    string
	Postgres      Postgres
	MQTTBrokerURL string
	SimIngest     bool
	SeedDemo      bool
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func boolEnv(key string) bool {
	return strings.TrimSpace(strings.ToLower(os.Getenv(key))) == "true"
}

func Load() Config {
	return Config{
		Port:          env("FLOORPLAN_PORT", "5000"),
		DBDriver:      env("FLOORPLAN_DB_DRIVER", "sqlite"),
		SQLitePath:    env("FLOORPLAN_SQLITE_PATH", "smart.db"),
		MQTTBrokerURL: env("MQTT_BROKER_URL", "tcp://mosquitto:1883"),
		SimIngest:     boolEnv("FLOORPLAN_SIM_INGEST"),
		SeedDemo:      boolEnv("FLOORPLAN_SEED_DEMO"),
		Postgres: Postgres{
			User:     env("POSTGRES_USER", "postgres"),
			Password: env("POSTGRES_PASSWORD", "postgres"),
			DBName:   env("POSTGRES_DB", "floorplan"),
			Host:     env("POSTGRES_HOST", "postgres"),
			Port:     env("POSTGRES_PORT", "5432"),
			SSLMode:  env("POSTGRES_SSLMODE", "disable"),
		},
	}
}
