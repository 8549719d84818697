package event

import (
	"encoding/json"
	"fmt"
)

type SystemUser uint8

const (
	Root SystemUser = iota + 1
	Guest
)

func (s SystemUser) String() string {
	switch s {
	case Root:
		return "root"
	case Guest:
		return "guest"
	default:
		return fmt.Sprintf("system(%d)", uint8(s))
	}
}

// Actor records who caused an event: a system user or an end user.
// Exactly one of the two is set on a valid Actor.
type Actor struct {
	system SystemUser
	user   ID
}

func GuestActor() Actor {
	return Actor{system: Guest}
}

func RootActor() Actor {
	return Actor{system: Root}
}

// UserActor of NilID is the zero Actor, which Handle and Encode reject
// with ErrNoActor.
func UserActor(id ID) Actor {
	return Actor{user: id}
}

// System returns the system user and true when the actor is not an end user.
func (a Actor) System() (SystemUser, bool) {
	return a.system, a.system != 0
}

// User returns the user ID and true when the actor is an end user.
func (a Actor) User() (ID, bool) {
	return a.user, a.system == 0 && !a.user.IsZero()
}

func (a Actor) IsZero() bool {
	return a.system == 0 && a.user.IsZero()
}

func (a Actor) String() string {
	if a.system != 0 {
		return a.system.String()
	}
	return a.user.String()
}

// MarshalText writes "root", "guest" or the user ID.
func (a Actor) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("marshal actor: %w", ErrNoActor)
	}
	return []byte(a.String()), nil
}

func (a *Actor) UnmarshalText(data []byte) error {
	switch s := string(data); s {
	case "root":
		*a = RootActor()
	case "guest":
		*a = GuestActor()
	default:
		id, err := ParseID(s)
		if err != nil {
			return fmt.Errorf("unmarshal actor: %w", err)
		}
		*a = UserActor(id)
	}
	return nil
}

func (a Actor) MarshalJSON() ([]byte, error) {
	b, err := a.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(b))
}

func (a *Actor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal actor: %w", err)
	}
	return a.UnmarshalText([]byte(s))
}
