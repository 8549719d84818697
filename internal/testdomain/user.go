// Package testdomain is a small user domain used by the package tests.
package testdomain

import (
	"errors"
	"strings"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrEmptyName    = errors.New("name is empty")
)

type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type UserAdded struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type UserRenamed struct {
	NewName string `json:"new_name"`
}

// UserEvent is a one-of: exactly one variant is set.
type UserEvent struct {
	Added   *UserAdded   `json:"add_user,omitempty"`
	Renamed *UserRenamed `json:"rename_user,omitempty"`
}

func Added(email, name string) UserEvent {
	return UserEvent{Added: &UserAdded{Email: email, Name: name}}
}

func Renamed(name string) UserEvent {
	return UserEvent{Renamed: &UserRenamed{NewName: name}}
}

func (UserEvent) StreamType() string {
	return "user"
}

func (e UserEvent) ApplyTo(prev *User) User {
	switch {
	case e.Added != nil:
		return User{Email: e.Added.Email, Name: e.Added.Name}
	case e.Renamed != nil:
		if prev == nil {
			panic("rename_user applied to a user that does not exist")
		}
		u := *prev
		u.Name = e.Renamed.NewName
		return u
	default:
		panic("user event without variant")
	}
}

type AddUser struct {
	Email string
	Name  string
}

func (c AddUser) HandleBy(prev *User) ([]UserEvent, error) {
	if prev != nil {
		return nil, ErrUserExists
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, ErrEmptyName
	}
	return []UserEvent{Added(c.Email, c.Name)}, nil
}

type RenameUser struct {
	NewName string
}

func (c RenameUser) HandleBy(prev *User) ([]UserEvent, error) {
	if prev == nil {
		return nil, ErrUserNotFound
	}
	if strings.TrimSpace(c.NewName) == "" {
		return nil, ErrEmptyName
	}
	if prev.Name == c.NewName {
		return nil, nil
	}
	return []UserEvent{Renamed(c.NewName)}, nil
}

// ImportUser adds a user and immediately renames it, producing two events.
type ImportUser struct {
	Email       string
	Name        string
	DisplayName string
}

func (c ImportUser) HandleBy(prev *User) ([]UserEvent, error) {
	evts, err := AddUser{Email: c.Email, Name: c.Name}.HandleBy(prev)
	if err != nil {
		return nil, err
	}
	return append(evts, Renamed(c.DisplayName)), nil
}

// Account is a second domain, fed from user events by sagas in tests.
type Account struct {
	Owner   string `json:"owner"`
	Welcome bool   `json:"welcome"`
}

type AccountEvent struct {
	Opened *AccountOpened `json:"account_opened,omitempty"`
}

type AccountOpened struct {
	Owner string `json:"owner"`
}

func (AccountEvent) StreamType() string {
	return "account"
}

func (e AccountEvent) ApplyTo(prev *Account) Account {
	if e.Opened == nil {
		panic("account event without variant")
	}
	return Account{Owner: e.Opened.Owner, Welcome: true}
}

type OpenAccount struct {
	Owner string
}

func (c OpenAccount) HandleBy(prev *Account) ([]AccountEvent, error) {
	if prev != nil {
		return nil, nil
	}
	return []AccountEvent{{Opened: &AccountOpened{Owner: c.Owner}}}, nil
}
