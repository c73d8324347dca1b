//go:build integration

package integration

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	"github.com/reliefmap/backend/internal/infrastructure/clients/redis"
	"github.com/reliefmap/backend/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "clinic_directory_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")
	return client
}

func maybeTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(cfg)
	if err != nil {
		t.Logf("Redis unavailable: %v", err)
		return nil
	}
	return client
}

// newTestClinic builds a minimal valid clinic row with a unique place id.
func newTestClinic(t *testing.T, name string) *entities.Clinic {
	t.Helper()

	now := time.Now().Truncate(time.Second)
	return &entities.Clinic{
		ID:      uuid.NewString(),
		PlaceID: "it-" + uuid.NewString(),
		Name:    name,
		Slug:    "test-" + uuid.NewString(),
		Address: entities.Address{
			Street:     "123 Main St",
			City:       "Springfield",
			State:      "Illinois",
			StateAbbr:  "IL",
			PostalCode: "62704",
			Country:    "US",
		},
		IsActive:   true,
		ImportedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func cleanupClinic(t *testing.T, client *postgres.Client, id string) {
	t.Helper()
	_, err := client.DB().ExecContext(context.Background(), "DELETE FROM clinics WHERE id = $1", id)
	require.NoError(t, err)
}

func cleanupBatch(t *testing.T, client *postgres.Client, id string) {
	t.Helper()
	_, err := client.DB().ExecContext(context.Background(), "DELETE FROM import_batches WHERE id = $1", id)
	require.NoError(t, err)
}
