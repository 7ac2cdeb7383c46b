// Package config reads runtime settings from a .env file and the process
// environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage backends accepted in STORAGE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds every setting the front ends need.
type Config struct {
	HTTPAddr       string
	TLSCert        string
	TLSKey         string
	StorageBackend string
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	DatabaseURL    string
	CatalogURL     string
	OTelHost       string
	OTelSampling   float64
	LogLevel       string
}

// Load reads the given .env files (".env" when none are named) and then
// the environment. Missing files are not an error; variables already set in
// the environment win over file values.
func Load(files ...string) (Config, bool) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	loaded := godotenv.Load(files...) == nil
	return FromEnv(), loaded
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8443"),
		TLSCert:        os.Getenv("TLS_CERT"),
		TLSKey:         os.Getenv("TLS_KEY"),
		StorageBackend: getenv("STORAGE_BACKEND", BackendSQLite),
		SQLitePath:     getenv("SQLITE_PATH", "tackleshop.db"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		CatalogURL:     os.Getenv("CATALOG_URL"),
		OTelHost:       os.Getenv("OTEL_HOST"),
		OTelSampling:   getfloat("OTEL_SAMPLING", 1.0),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getfloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
