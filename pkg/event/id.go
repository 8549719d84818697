package event

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies one stream instance. It is a random 128-bit value.
type ID uuid.UUID

// NilID is the zero ID. It never comes out of RandomID.
var NilID = ID(uuid.Nil)

func RandomID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical hyphenated form (and the other forms uuid.Parse accepts).
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, fmt.Errorf("parse id %q: %w", s, err)
	}
	return ID(u), nil
}

// MustParseID is ParseID that panics on malformed input.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (i ID) IsZero() bool {
	return uuid.UUID(i) == uuid.Nil
}

// String returns the lowercase hyphenated form.
func (i ID) String() string {
	return uuid.UUID(i).String()
}

func (i ID) UUID() uuid.UUID {
	return uuid.UUID(i)
}

func (i ID) MarshalText() ([]byte, error) {
	return uuid.UUID(i).MarshalText()
}

func (i *ID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(i).UnmarshalText(data)
}

func (i ID) MarshalBinary() ([]byte, error) {
	return uuid.UUID(i).MarshalBinary()
}

func (i *ID) UnmarshalBinary(data []byte) error {
	return (*uuid.UUID)(i).UnmarshalBinary(data)
}

// Value stores the ID as its string form.
func (i ID) Value() (driver.Value, error) {
	return uuid.UUID(i).Value()
}

func (i *ID) Scan(src any) error {
	return (*uuid.UUID)(i).Scan(src)
}
