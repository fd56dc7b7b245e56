package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Insecure default values (must never reach production)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Panel          PanelConfig
	Hub            HubConfig
	Queue          QueueConfig
	JWT            JWTConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// PanelConfig configures the node control-plane (WHM-style) client
type PanelConfig struct {
	APIToken        string
	Port            int
	ContactEmail    string
	AllowSelfSigned bool
	TimeoutSeconds  int
}

type HubConfig struct {
	URL          string
	SharedSecret string
}

type QueueConfig struct {
	Workers     int
	MaxAttempts int
}

type JWTConfig struct {
	SecretKey string
}

func Load() *Config {
	// Optional .env for local development; real deployments set the
	// environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "qhosting_user"),
			Password: getEnv("DB_PASSWORD", "qhosting_pass"),
			DBName:   getEnv("DB_NAME", "qhosting_db"),
			Schema:   getEnv("DB_SCHEMA", "provisioning"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Panel: PanelConfig{
			APIToken:        getEnv("PANEL_API_TOKEN", ""),
			Port:            getEnvInt("PANEL_PORT", 2087),
			ContactEmail:    getEnv("PANEL_CONTACT_EMAIL", "admin@qhosting.net"),
			AllowSelfSigned: getEnvBool("PANEL_ALLOW_SELF_SIGNED", false),
			TimeoutSeconds:  getEnvInt("PANEL_TIMEOUT_SECONDS", 30),
		},
		Hub: HubConfig{
			URL:          getEnv("HUB_URL", ""),
			SharedSecret: getEnv("HUB_SHARED_SECRET", ""),
		},
		Queue: QueueConfig{
			Workers:     getEnvInt("QUEUE_WORKERS", 3),
			MaxAttempts: getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
	}

	// Do not log credentials
	log.Printf("[config] Provisioning Service loaded: port=%s db=%s/%s.%s redis=%s:%s workers=%d",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema,
		cfg.Redis.Host, cfg.Redis.Port, cfg.Queue.Workers)

	return cfg
}

// Validate enforces startup-time configuration invariants. A missing panel
// token would silently block all provisioning, so it is fatal here rather
// than a per-job failure.
func (c *Config) Validate() error {
	if c.Panel.APIToken == "" {
		return fmt.Errorf("PANEL_API_TOKEN must be set; provisioning cannot authenticate against node control planes without it")
	}

	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be positive")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
