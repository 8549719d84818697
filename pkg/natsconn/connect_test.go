package natsconn_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/alekseev-bro/evstore/internal/natstest"
	"github.com/alekseev-bro/evstore/pkg/natsconn"
)

func countingConnector(opened, closed *int) natsconn.Connector {
	return func() (*nats.Conn, natsconn.CloseFunc, error) {
		*opened++
		return &nats.Conn{}, func() { *closed++ }, nil
	}
}

func TestSharedUntilLastRelease(t *testing.T) {
	var opened, closed int
	connect := natsconn.Shared(countingConnector(&opened, &closed))

	nc1, release1, err := connect()
	require.NoError(t, err)
	nc2, release2, err := connect()
	require.NoError(t, err)
	require.Same(t, nc1, nc2)
	require.Equal(t, 1, opened)

	release1()
	release1()
	require.Equal(t, 0, closed)
	release2()
	require.Equal(t, 1, closed)

	nc3, release3, err := connect()
	require.NoError(t, err)
	require.Equal(t, 2, opened)
	require.NotSame(t, nc1, nc3)
	release3()
	require.Equal(t, 2, closed)
}

func TestSharedError(t *testing.T) {
	boom := errors.New("refused")
	connect := natsconn.Shared(func() (*nats.Conn, natsconn.CloseFunc, error) {
		return nil, nil, boom
	})
	_, _, err := connect()
	require.ErrorIs(t, err, boom)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("NATS_URL", "nats://nats.internal:4222")
	t.Setenv("NATS_CONNECT_TIMEOUT", "500ms")
	cfg, err := natsconn.ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "nats://nats.internal:4222", cfg.URL)
	require.Equal(t, 500*time.Millisecond, cfg.Timeout)
	require.Equal(t, 3, cfg.MaxReconnects)
}

func TestConnect(t *testing.T) {
	cfg := natsconn.Config{URL: natstest.URL(t), Name: "connect-test", MaxReconnects: 1, Timeout: 2 * time.Second}
	nc, release, err := cfg.Connect()()
	require.NoError(t, err)
	require.True(t, nc.IsConnected())
	release()
	require.True(t, nc.IsClosed())
}
