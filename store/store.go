package store

import (
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// ErrNotFound is returned by Get when the key has never been written or was removed.
var ErrNotFound = errors.New("key not found")

// Op is a single mutation applied by Store.Apply. A Remove op ignores Value.
type Op struct {
	Key    string
	Value  []byte
	Remove bool
}

// Store is the persistence port used by the session and queue layers.
// Implementations must make Apply atomic: either every op is visible afterwards or none is.
type Store interface {
	Get(key string) ([]byte, error)
	Apply(ops ...Op) error
}

// Set writes a single key.
func Set(s Store, key string, value []byte) error {
	return s.Apply(Op{Key: key, Value: value})
}

// Remove deletes a single key. Removing a missing key is not an error.
func Remove(s Store, key string) error {
	return s.Apply(Op{Key: key, Remove: true})
}

// Key is a typed, JSON encoded entry in a Store.
type Key[T any] struct {
	name string
}

// NewKey declares a typed key. Names are namespaced by convention, e.g. "session.access_token".
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

func (k Key[T]) Name() string {
	return k.name
}

// Load reads and decodes the value. A missing key yields the zero value and ErrNotFound.
func (k Key[T]) Load(s Store) (T, error) {
	var v T
	raw, err := s.Get(k.name)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, pkgerrors.Wrapf(err, "[Key.Load] decode %s", k.name)
	}
	return v, nil
}

// Put returns the op that stores v under the key.
func (k Key[T]) Put(v T) (Op, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Op{}, pkgerrors.Wrapf(err, "[Key.Put] encode %s", k.name)
	}
	return Op{Key: k.name, Value: raw}, nil
}

// Delete returns the op that removes the key.
func (k Key[T]) Delete() Op {
	return Op{Key: k.name, Remove: true}
}

// Save stores v immediately.
func (k Key[T]) Save(s Store, v T) error {
	op, err := k.Put(v)
	if err != nil {
		return err
	}
	return s.Apply(op)
}
