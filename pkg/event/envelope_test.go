package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alekseev-bro/evstore/internal/testdomain"
	"github.com/alekseev-bro/evstore/pkg/event"
)

type versioned struct {
	Version int `json:"version"`
}

func (versioned) StreamType() string { return "versioned" }

type scalar string

func (scalar) StreamType() string { return "scalar" }

func TestNewInfo(t *testing.T) {
	info := event.NewInfo[testdomain.UserEvent](event.GuestActor())
	require.False(t, info.ID.IsZero())
	require.Equal(t, "user", info.Stream)
	require.Equal(t, uint64(1), info.Version)
	require.Equal(t, event.GuestActor(), info.User)
	require.Equal(t, time.UTC, info.Date.Location())

	next := info.Next(event.RootActor())
	require.Equal(t, info.ID, next.ID)
	require.Equal(t, info.Stream, next.Stream)
	require.Equal(t, uint64(2), next.Version)
	require.Equal(t, event.RootActor(), next.User)
	require.False(t, next.Date.Before(info.Date))

	require.Equal(t, uint64(1), info.Version, "Next must not change the receiver")
}

func TestEnvelopeFlatJSON(t *testing.T) {
	info := event.NewInfo[testdomain.UserEvent](event.GuestActor())
	env := event.NewEnvelope(info, testdomain.Added("demo@my.com", "name1"))

	b, err := event.Encode(env)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &fields))
	for _, k := range []string{"id", "stream", "date", "user", "version", "add_user"} {
		require.Contains(t, fields, k)
	}
	require.NotContains(t, fields, "payload")
	require.NotContains(t, fields, "rename_user")
	require.JSONEq(t, `"user"`, string(fields["stream"]))
	require.JSONEq(t, `"guest"`, string(fields["user"]))
	require.JSONEq(t, `1`, string(fields["version"]))
	require.JSONEq(t, `{"email":"demo@my.com","name":"name1"}`, string(fields["add_user"]))

	back, err := event.Decode[testdomain.UserEvent](b)
	require.NoError(t, err)
	require.Equal(t, env, back)
}

func TestEnvelopeFieldCollision(t *testing.T) {
	env := event.NewEnvelope(event.NewInfo[versioned](event.RootActor()), versioned{Version: 3})
	_, err := event.Encode(env)
	require.ErrorIs(t, err, event.ErrFieldCollision)
}

type untagged struct {
	Version int
	Note    string
}

func (untagged) StreamType() string { return "untagged" }

type untaggedUser struct {
	User string
}

func (untaggedUser) StreamType() string { return "untagged-user" }

type shoutingID struct {
	ID string `json:"ID"`
}

func (shoutingID) StreamType() string { return "shouting" }

func TestEnvelopeFieldCollisionIgnoresCase(t *testing.T) {
	for name, encode := range map[string]func() ([]byte, error){
		"Version": func() ([]byte, error) {
			return event.Encode(event.NewEnvelope(event.NewInfo[untagged](event.RootActor()), untagged{Version: 42}))
		},
		"User": func() ([]byte, error) {
			return event.Encode(event.NewEnvelope(event.NewInfo[untaggedUser](event.RootActor()), untaggedUser{User: "bob"}))
		},
		"ID": func() ([]byte, error) {
			return event.Encode(event.NewEnvelope(event.NewInfo[shoutingID](event.RootActor()), shoutingID{ID: "x"}))
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := encode()
			require.ErrorIs(t, err, event.ErrFieldCollision)
		})
	}
}

func TestEnvelopeNotAnObject(t *testing.T) {
	env := event.NewEnvelope(event.NewInfo[scalar](event.RootActor()), scalar("x"))
	_, err := event.Encode(env)
	require.ErrorIs(t, err, event.ErrNotAnObject)
}

func TestDecodeStreamMismatch(t *testing.T) {
	info := event.NewInfo[testdomain.UserEvent](event.GuestActor())
	info.Stream = "order"
	b, err := event.Encode(event.NewEnvelope(info, testdomain.Renamed("x")))
	require.NoError(t, err)

	_, err = event.Decode[testdomain.UserEvent](b)
	require.ErrorIs(t, err, event.ErrStreamMismatch)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := event.Decode[testdomain.UserEvent]([]byte(`{"id":"nope"}`))
	require.Error(t, err)
	_, err = event.Decode[testdomain.UserEvent]([]byte(`[`))
	require.Error(t, err)
}
