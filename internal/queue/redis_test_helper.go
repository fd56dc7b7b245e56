package queue

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const isolatedTestRedisDB = 14

// newTestRedisClient connects to a local Redis on an isolated DB and
// flushes it before and after the test. Skips when no Redis is reachable
// so the suite stays runnable without infrastructure.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	hosts := []string{
		os.Getenv("REDIS_HOST"),
		"localhost",
		"127.0.0.1",
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	var lastErr error
	for _, host := range hosts {
		if host == "" {
			continue
		}

		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", host, port),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       isolatedTestRedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := client.Ping(ctx).Result()
		cancel()
		if err != nil {
			lastErr = err
			_ = client.Close()
			continue
		}

		if err := client.FlushDB(context.Background()).Err(); err != nil {
			_ = client.Close()
			t.Fatalf("failed to flush isolated redis db %d: %v", isolatedTestRedisDB, err)
		}

		t.Cleanup(func() {
			_ = client.FlushDB(context.Background()).Err()
			_ = client.Close()
		})

		return client
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}
