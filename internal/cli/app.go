package cli

import (
	"path/filepath"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/gateway"
	"github.com/jrsteele09/go-pos-client/internal/config"
	interrors "github.com/jrsteele09/go-pos-client/internal/errors"
	"github.com/jrsteele09/go-pos-client/queue"
	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/jrsteele09/go-pos-client/session"
	"github.com/jrsteele09/go-pos-client/store"
	"github.com/jrsteele09/go-pos-client/store/badgerstore"
	"github.com/jrsteele09/go-pos-client/syncer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// app is the wired client core for one command invocation.
type app struct {
	db      *badgerstore.BadgerStore
	manager *session.Manager
	sales   *sales.API
	queue   *queue.Queue
	engine  *syncer.Engine
}

func openApp(cfg config.Config) (_ *app, returnError error) {
	db, err := badgerstore.Open(badgerstore.DefaultConfig(filepath.Join(cfg.GetDataFolder(), "store")))
	if err != nil {
		return nil, errors.Wrap(err, "[openApp] open store")
	}
	defer func() {
		if returnError != nil {
			if err := db.Close(); err != nil {
				log.Err(err).Msg("failed to close store")
			}
		}
	}()

	st, err := sealIfConfigured(db, cfg.GetStoreKey())
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.GetBaseURL(), api.WithTimeout(cfg.GetRequestTimeout()))
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrInvalidConfig, "[openApp] %v", err)
	}
	tokens, err := session.NewTokenStore(st)
	if err != nil {
		return nil, err
	}
	manager, err := session.NewManager(tokens, client, session.WithRefreshTimeout(cfg.GetRefreshTimeout()))
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(client, manager)
	if err != nil {
		return nil, err
	}
	salesAPI, err := sales.NewAPI(gw)
	if err != nil {
		return nil, err
	}
	q, err := queue.New(st, queue.WithLedgerSize(cfg.GetSyncedLedgerSize()))
	if err != nil {
		return nil, err
	}
	engine, err := syncer.New(q, salesAPI,
		syncer.WithInterval(cfg.GetSyncInterval()),
		syncer.WithBackoff(cfg.GetSyncBackoffInitial(), cfg.GetSyncBackoffMax()),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		db:      db,
		manager: manager,
		sales:   salesAPI,
		queue:   q,
		engine:  engine,
	}, nil
}

func sealIfConfigured(inner store.Store, hexKey string) (store.Store, error) {
	if hexKey == "" {
		return inner, nil
	}
	key, err := store.ParseKey(hexKey)
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrInvalidConfig, "[openApp] POS_STORE_KEY: %v", err)
	}
	sealed, err := store.NewSealed(inner, key)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// withApp opens the core, runs fn and always closes the store.
func withApp(opts *RootOptions, fn func(a *app) error) (returnError error) {
	a, err := openApp(opts.Config)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil && returnError == nil {
			returnError = err
		}
	}()
	return fn(a)
}
