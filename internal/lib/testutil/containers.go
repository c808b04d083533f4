// Package testutil starts throwaway service containers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartMongoContainer returns the host:port of a fresh mongo. The test is
// skipped in -short mode or when no container runtime is reachable.
func StartMongoContainer(t *testing.T) string {
	return start(t, "mongo:7", "27017/tcp", wait.ForLog("mongod startup complete"))
}

// StartRedisContainer returns the host:port of a fresh redis.
func StartRedisContainer(t *testing.T) string {
	return start(t, "redis:7", "6379/tcp", wait.ForLog("Ready to accept connections"))
}

// StartPostgresContainer returns a pgx DSN for a fresh postgres database.
func StartPostgresContainer(t *testing.T) string {
	endpoint := start(t, "postgres:16-alpine", "5432/tcp",
		// the server restarts once after initdb
		wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "botflow",
			"POSTGRES_PASSWORD": "botflow",
			"POSTGRES_DB":       "botflow",
		}),
	)
	return fmt.Sprintf("postgres://botflow:botflow@%s/botflow?sslmode=disable", endpoint)
}

func start(t *testing.T, image, port string, ready wait.Strategy, opts ...testcontainers.ContainerCustomizer) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// Give generous timeout in CI environments
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	opts = append([]testcontainers.ContainerCustomizer{
		testcontainers.WithExposedPorts(port),
		testcontainers.WithWaitStrategy(wait.ForListeningPort(port), ready),
	}, opts...)

	c, err := testcontainers.Run(ctx, image, opts...)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("start %s: %v", image, err)
	}

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint of %s: %v", image, err)
	}
	return endpoint
}
