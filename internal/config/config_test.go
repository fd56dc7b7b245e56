package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			APIToken: "whm-token",
		},
		JWT: JWTConfig{
			SecretKey: strings.Repeat("a", 32),
		},
		InternalSecret: strings.Repeat("b", 32),
		Queue: QueueConfig{
			Workers:     3,
			MaxAttempts: 5,
		},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	t.Run("missing panel token is fatal", func(t *testing.T) {
		cfg := validConfig()
		cfg.Panel.APIToken = ""
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing PANEL_API_TOKEN")
		}
	})

	t.Run("insecure jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWT.SecretKey = "your-secret-key-change-in-production"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for insecure JWT secret")
		}
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWT.SecretKey = "short"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for short JWT secret")
		}
	})

	t.Run("insecure internal secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.InternalSecret = "internal-secret"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for insecure internal secret")
		}
	})

	t.Run("non-positive max attempts", func(t *testing.T) {
		cfg := validConfig()
		cfg.Queue.MaxAttempts = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for zero max attempts")
		}
	})
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "u",
		Password: "p",
		DBName:   "d",
		SSLMode:  "disable",
	}
	want := "postgres://u:p@localhost:5432/d?sslmode=disable"
	if got := db.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: "6379"}
	if got := r.Addr(); got != "localhost:6379" {
		t.Fatalf("Addr() = %q, want localhost:6379", got)
	}
}
