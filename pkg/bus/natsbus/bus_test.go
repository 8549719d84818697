package natsbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/alekseev-bro/evstore/internal/natstest"
	"github.com/alekseev-bro/evstore/internal/testdomain"
	"github.com/alekseev-bro/evstore/pkg/bus"
	"github.com/alekseev-bro/evstore/pkg/bus/natsbus"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/natsconn"
	"github.com/alekseev-bro/evstore/pkg/qos"
)

type userEvent = testdomain.UserEvent

var _ bus.Bus[userEvent] = (*natsbus.Bus[userEvent])(nil)

func added(name string) event.Envelope[userEvent] {
	info := event.NewInfo[userEvent](event.GuestActor())
	return event.NewEnvelope(info, testdomain.Added(name+"@mail.com", name))
}

func next(t *testing.T, sub bus.Subscription[userEvent]) event.Envelope[userEvent] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for env, err := range sub.Events(ctx) {
		require.NoError(t, err)
		return env
	}
	t.Fatal("no envelope received")
	return event.Envelope[userEvent]{}
}

func roundTrip(t *testing.T, opts ...natsbus.Option) {
	ctx := context.Background()
	b, err := natsbus.New[userEvent](ctx, natstest.Conn(t), opts...)
	require.NoError(t, err)

	sub, err := b.Register(ctx)
	require.NoError(t, err)
	defer sub.Drain()

	env := added("binh")
	require.NoError(t, b.Publish(ctx, env))
	require.Equal(t, env, next(t, sub))
}

func TestAtMostOnce(t *testing.T) {
	roundTrip(t, natsbus.WithQoS(qos.QoS{Delivery: qos.AtMostOnce}), natsbus.WithSubjectPrefix("test-core"))
}

func TestAtLeastOnce(t *testing.T) {
	roundTrip(t, natsbus.WithInMemory(), natsbus.WithSubjectPrefix("test-js"))
}

func TestDurableConsumerSeesEarlierEvents(t *testing.T) {
	ctx := context.Background()
	b, err := natsbus.New[userEvent](ctx, natstest.Conn(t),
		natsbus.WithInMemory(),
		natsbus.WithSubjectPrefix("test-durable-"+event.RandomID().String()[:8]),
		natsbus.WithDurable("reader"),
	)
	require.NoError(t, err)

	env := added("early")
	require.NoError(t, b.Publish(ctx, env))

	sub, err := b.Register(ctx)
	require.NoError(t, err)
	defer sub.Drain()
	require.Equal(t, env, next(t, sub))
}

func closeEndsEvents(t *testing.T, opts ...natsbus.Option) {
	ctx := context.Background()
	nc, release, err := natsconn.ConnectURL(natstest.URL(t))()
	require.NoError(t, err)
	defer release()
	b, err := natsbus.New[userEvent](ctx, nc, opts...)
	require.NoError(t, err)
	sub, err := b.Register(ctx)
	require.NoError(t, err)

	nc.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var last error
	for _, err := range sub.Events(ctx) {
		last = err
	}
	require.NoError(t, ctx.Err())
	require.ErrorIs(t, last, nats.ErrConnectionClosed)
	require.NoError(t, sub.Drain())
}

func TestAtMostOnceEndsOnConnectionClose(t *testing.T) {
	closeEndsEvents(t, natsbus.WithQoS(qos.QoS{Delivery: qos.AtMostOnce}), natsbus.WithSubjectPrefix("test-core-close"))
}

func TestAtLeastOnceEndsOnConnectionClose(t *testing.T) {
	closeEndsEvents(t, natsbus.WithInMemory(), natsbus.WithSubjectPrefix("test-js-close"))
}

func TestDrainEndsEventsCleanly(t *testing.T) {
	ctx := context.Background()
	b, err := natsbus.New[userEvent](ctx, natstest.Conn(t), natsbus.WithQoS(qos.QoS{Delivery: qos.AtMostOnce}))
	require.NoError(t, err)
	sub, err := b.Register(ctx)
	require.NoError(t, err)
	require.NoError(t, sub.Drain())

	for _, err := range sub.Events(ctx) {
		t.Fatalf("drained subscription yielded, err=%v", err)
	}
}

func TestDialSharesConnection(t *testing.T) {
	ctx := context.Background()
	dialed, released := 0, 0
	base := natsconn.ConnectURL(natstest.URL(t))
	connect := natsconn.Shared(func() (*nats.Conn, natsconn.CloseFunc, error) {
		nc, release, err := base()
		if err != nil {
			return nil, nil, err
		}
		dialed++
		return nc, func() { released++; release() }, nil
	})

	prefix := natsbus.WithSubjectPrefix("test-dial")
	core := natsbus.WithQoS(qos.QoS{Delivery: qos.AtMostOnce})
	reader, err := natsbus.Dial[userEvent](ctx, connect, prefix, core)
	require.NoError(t, err)
	writer, err := natsbus.Dial[userEvent](ctx, connect, prefix, core)
	require.NoError(t, err)
	require.Equal(t, 1, dialed)

	sub, err := reader.Register(ctx)
	require.NoError(t, err)
	defer sub.Drain()

	env := added("shared")
	require.NoError(t, writer.Publish(ctx, env))
	require.Equal(t, env, next(t, sub))

	require.NoError(t, writer.Close())
	require.Equal(t, 0, released)
	require.NoError(t, reader.Close())
	require.Equal(t, 1, released)
}
