package event_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/alekseev-bro/evstore/pkg/event"
)

func TestIDRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(id.String()) == id", prop.ForAll(
		func(b []byte) bool {
			u, err := uuid.FromBytes(b)
			if err != nil {
				return false
			}
			id := event.ID(u)
			parsed, err := event.ParseID(id.String())
			return err == nil && parsed == id
		},
		gen.SliceOfN(16, gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestRandomID(t *testing.T) {
	seen := make(map[event.ID]struct{})
	for range 1000 {
		id := event.RandomID()
		require.False(t, id.IsZero())
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}

		parsed, err := event.ParseID(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestIDCanonicalForm(t *testing.T) {
	id, err := event.ParseID("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())
}

func TestParseIDMalformed(t *testing.T) {
	for _, s := range []string{"", "nope", "6ba7b810-9dad-11d1-80b4", "zzzzzzzz-9dad-11d1-80b4-00c04fd430c8"} {
		_, err := event.ParseID(s)
		require.Error(t, err, s)
	}
	require.Panics(t, func() { event.MustParseID("nope") })
}

func TestIDJSON(t *testing.T) {
	id := event.RandomID()
	b, err := json.Marshal(id)
	require.NoError(t, err)
	require.Equal(t, `"`+id.String()+`"`, string(b))

	var back event.ID
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, id, back)
}

func TestActor(t *testing.T) {
	uid := event.RandomID()
	tests := []struct {
		name  string
		actor event.Actor
		json  string
	}{
		{name: "root", actor: event.RootActor(), json: `"root"`},
		{name: "guest", actor: event.GuestActor(), json: `"guest"`},
		{name: "user", actor: event.UserActor(uid), json: `"` + uid.String() + `"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.actor)
			require.NoError(t, err)
			require.JSONEq(t, tc.json, string(b))

			var back event.Actor
			require.NoError(t, json.Unmarshal(b, &back))
			require.Equal(t, tc.actor, back)
		})
	}

	sys, ok := event.RootActor().System()
	require.True(t, ok)
	require.Equal(t, event.Root, sys)
	_, ok = event.RootActor().User()
	require.False(t, ok)

	got, ok := event.UserActor(uid).User()
	require.True(t, ok)
	require.Equal(t, uid, got)
}

func TestActorInvalid(t *testing.T) {
	_, err := json.Marshal(event.Actor{})
	require.ErrorIs(t, err, event.ErrNoActor)

	var a event.Actor
	require.Error(t, json.Unmarshal([]byte(`"admin"`), &a))
	require.Error(t, json.Unmarshal([]byte(`42`), &a))
}
