// Package redistest provides a Redis server for tests: the one named by
// REDIS_ADDR, or a container.
package redistest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const image = "redis:7-alpine"

// Addr returns REDIS_ADDR when it is set. Otherwise it starts a container
// for the duration of t and skips t when no container runtime is reachable.
func Addr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	c, err := testcontainers.Run(
		ctx, image,
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	addr, err := c.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	t.Logf("redis addr: %s", addr)
	return addr
}
