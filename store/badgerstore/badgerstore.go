// Package badgerstore persists store.Store keys in an embedded BadgerDB so that
// tokens and queued sales survive a process restart.
package badgerstore

import (
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/jrsteele09/go-pos-client/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var _ store.Store = (*BadgerStore)(nil)

// Config holds configuration for a BadgerStore.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory disables disk persistence. Tests only.
	InMemory bool
	// SyncWrites fsyncs every transaction before Apply returns.
	SyncWrites bool
}

// DefaultConfig returns a durable configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the database described by cfg. Callers must Close it.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("[badgerstore.Open] path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, errors.Wrapf(err, "[badgerstore.Open] create directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "[badgerstore.Open] badger.Open")
	}
	return &BadgerStore{db: db}, nil
}

func (bs *BadgerStore) Get(key string) ([]byte, error) {
	var value []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[BadgerStore.Get] %s", key)
	}
	return value, nil
}

// Apply writes all ops in a single transaction.
func (bs *BadgerStore) Apply(ops ...store.Op) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			if op.Remove {
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set([]byte(op.Key), op.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[BadgerStore.Apply] update")
	}
	return nil
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

// badgerLogger routes badger's internal logging into zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Trace().Str("component", "badger").Msgf(format, args...)
}
