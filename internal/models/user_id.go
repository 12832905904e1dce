package models

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrInvalidUserID = errors.New("invalid user id")

// UserID identifies a user. Values come from NewUserID or ParseUserID only.
type UserID uuid.UUID

func NewUserID() UserID {
	return UserID(uuid.New())
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return UserID{}, fmt.Errorf("%w: %q", ErrInvalidUserID, s)
	}
	return UserID(id), nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

func (id UserID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id UserID) Value() (driver.Value, error) {
	return id.String(), nil
}

func (id *UserID) Scan(src interface{}) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
