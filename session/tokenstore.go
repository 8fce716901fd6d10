package session

import (
	"errors"
	"time"

	"github.com/jrsteele09/go-pos-client/store"
	"github.com/jrsteele09/go-pos-client/tenants"
	pkgerrors "github.com/pkg/errors"
)

var (
	accessTokenKey  = store.NewKey[string]("session.access_token")
	refreshTokenKey = store.NewKey[string]("session.refresh_token")
	expiresAtKey    = store.NewKey[time.Time]("session.expires_at")
	userKey         = store.NewKey[User]("session.user")
	tenantKey       = store.NewKey[tenants.Tenant]("session.tenant")
	businessKey     = store.NewKey[tenants.Business]("session.business")
)

// TokenStore persists the session through the store port. It holds no logic beyond encoding.
type TokenStore struct {
	store store.Store
}

func NewTokenStore(s store.Store) (*TokenStore, error) {
	if s == nil {
		return nil, pkgerrors.New("[NewTokenStore] store is required")
	}
	return &TokenStore{store: s}, nil
}

// Load returns the persisted session, or nil when no access token is stored.
func (ts *TokenStore) Load() (*Session, error) {
	access, err := accessTokenKey.Load(ts.store)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[TokenStore.Load] access token")
	}

	sess := &Session{AccessToken: access}
	if sess.RefreshToken, err = loadOptional(ts.store, refreshTokenKey); err != nil {
		return nil, err
	}
	if sess.User, err = loadOptional(ts.store, userKey); err != nil {
		return nil, err
	}
	if sess.Tenant, err = loadOptional(ts.store, tenantKey); err != nil {
		return nil, err
	}
	if sess.Business, err = loadOptional(ts.store, businessKey); err != nil {
		return nil, err
	}
	exp, err := loadOptional(ts.store, expiresAtKey)
	if err != nil {
		return nil, err
	}
	if !exp.IsZero() {
		sess.ExpiresAtEstimate = &exp
	}
	return sess, nil
}

// Save writes the whole session in one atomic batch.
func (ts *TokenStore) Save(sess Session) error {
	results := []opResult{
		put(accessTokenKey, sess.AccessToken),
		put(refreshTokenKey, sess.RefreshToken),
		put(userKey, sess.User),
	}
	// An empty snapshot never overwrites the last known tenant or business.
	if sess.Tenant.ID != "" {
		results = append(results, put(tenantKey, sess.Tenant))
	}
	if sess.Business.ID != "" {
		results = append(results, put(businessKey, sess.Business))
	}
	ops, err := collectOps(results...)
	if err != nil {
		return pkgerrors.Wrap(err, "[TokenStore.Save]")
	}
	ops = append(ops, expiryOp(sess.ExpiresAtEstimate))
	if err := ts.store.Apply(ops...); err != nil {
		return pkgerrors.Wrap(err, "[TokenStore.Save] apply")
	}
	return nil
}

// SaveTokens replaces the token pair after a refresh.
func (ts *TokenStore) SaveTokens(access, refresh string, expiresAt *time.Time) error {
	ops, err := collectOps(
		put(accessTokenKey, access),
		put(refreshTokenKey, refresh),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "[TokenStore.SaveTokens]")
	}
	ops = append(ops, expiryOp(expiresAt))
	if err := ts.store.Apply(ops...); err != nil {
		return pkgerrors.Wrap(err, "[TokenStore.SaveTokens] apply")
	}
	return nil
}

func (ts *TokenStore) SaveBusiness(b tenants.Business) error {
	return pkgerrors.Wrap(businessKey.Save(ts.store, b), "[TokenStore.SaveBusiness]")
}

// CachedContext returns the last known tenant and business, which outlive the tokens.
func (ts *TokenStore) CachedContext() (tenants.Context, error) {
	tenant, err := loadOptional(ts.store, tenantKey)
	if err != nil {
		return tenants.Context{}, err
	}
	business, err := loadOptional(ts.store, businessKey)
	if err != nil {
		return tenants.Context{}, err
	}
	return tenants.Context{TenantID: tenant.ID, BusinessID: business.ID}, nil
}

// Clear removes every credential. Tenant and business snapshots are kept; they are not secrets.
func (ts *TokenStore) Clear() error {
	err := ts.store.Apply(
		accessTokenKey.Delete(),
		refreshTokenKey.Delete(),
		expiresAtKey.Delete(),
		userKey.Delete(),
	)
	return pkgerrors.Wrap(err, "[TokenStore.Clear]")
}

func loadOptional[T any](s store.Store, key store.Key[T]) (T, error) {
	v, err := key.Load(s)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return v, pkgerrors.Wrapf(err, "[TokenStore] load %s", key.Name())
	}
	return v, nil
}

type opResult struct {
	op  store.Op
	err error
}

func put[T any](key store.Key[T], v T) opResult {
	op, err := key.Put(v)
	return opResult{op: op, err: err}
}

func collectOps(results ...opResult) ([]store.Op, error) {
	ops := make([]store.Op, 0, len(results)+1)
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		ops = append(ops, r.op)
	}
	return ops, nil
}

func expiryOp(expiresAt *time.Time) store.Op {
	if expiresAt == nil {
		return expiresAtKey.Delete()
	}
	op, err := expiresAtKey.Put(*expiresAt)
	if err != nil {
		return expiresAtKey.Delete()
	}
	return op
}
