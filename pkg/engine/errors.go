package engine

import (
	"errors"
)

// Kind classifies engine errors for hosts that need to react differently to
// store, network and lifecycle failures.
type Kind int

const (
	KindStore Kind = iota
	KindMigration
	KindDatabaseNotLoaded
	KindNetwork
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "store"
	case KindMigration:
		return "migration"
	case KindDatabaseNotLoaded:
		return "database_not_loaded"
	case KindNetwork:
		return "network"
	case KindInvalidArgument:
		return "invalid_argument"
	}
	return "unknown"
}

var ErrDatabaseNotLoaded = errors.New("Database not loaded")

// Error is returned by every Engine operation. Its message is the message of
// the wrapped error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStore, Err: err}
}

func networkErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(err error) error {
	return &Error{Kind: KindInvalidArgument, Err: err}
}

// KindOf returns the kind of err, or KindStore for errors that did not come
// from the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}
