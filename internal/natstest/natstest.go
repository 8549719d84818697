// Package natstest provides a NATS server for tests: the one named by
// NATS_URL, or a JetStream enabled container.
package natstest

import (
	"os"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alekseev-bro/evstore/pkg/natsconn"
)

const image = "nats:2.11-alpine"

// URL returns NATS_URL when it is set. Otherwise it starts a container for
// the duration of t and skips t when no container runtime is reachable.
func URL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	c, err := testcontainers.Run(
		ctx, image,
		testcontainers.WithCmd("-js"),
		testcontainers.WithExposedPorts("4222/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp"),
			wait.ForLog("Server is ready"),
		),
	)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	url, err := c.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	t.Logf("nats url: %s", url)
	return url
}

// Conn connects to URL(t) and closes the connection when t ends.
func Conn(t *testing.T) *nats.Conn {
	t.Helper()
	nc, release, err := natsconn.ConnectURL(URL(t))()
	require.NoError(t, err)
	t.Cleanup(release)
	return nc
}
