package queue

import (
	"errors"
	"slices"
	"sync"
	"time"

	interrors "github.com/jrsteele09/go-pos-client/internal/errors"
	"github.com/jrsteele09/go-pos-client/internal/metrics"
	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/jrsteele09/go-pos-client/store"
	pkgerrors "github.com/pkg/errors"
)

var (
	ErrDuplicateSale = errors.New("sale already recorded")
	ErrEntryNotFound = errors.New("queue entry not found")
	ErrNotPending    = errors.New("only unsynced sales can be queued")
)

const defaultLedgerSize = 500

var (
	entriesKey = store.NewKey[[]Entry]("queue.entries")
	ledgerKey  = store.NewKey[[]SyncedRecord]("queue.synced")
)

// Entry is a sale waiting for server confirmation.
type Entry struct {
	Sale          sales.Record `json:"sale"`
	AttemptCount  int          `json:"attemptCount"`
	LastError     string       `json:"lastError,omitempty"`
	EnqueuedAt    time.Time    `json:"enqueuedAt"`
	LastAttemptAt *time.Time   `json:"lastAttemptAt,omitempty"`
}

func (e Entry) ID() string {
	return e.Sale.ID
}

func (e Entry) SyncStatus() sales.SyncStatus {
	return e.Sale.SyncStatus
}

// SyncedRecord remembers a confirmed sale after its entry is removed.
type SyncedRecord struct {
	SaleID   string    `json:"saleId"`
	ServerID string    `json:"serverId,omitempty"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Counts backs the UI sync badges.
type Counts struct {
	Pending int
	Failed  int
}

// Queue is the durable FIFO of unconfirmed sales. Every mutation is persisted before it
// returns, and entries leave only through MarkSynced.
type Queue struct {
	store      store.Store
	ledgerSize int
	nowFunc    func() time.Time

	mu      sync.Mutex
	entries []Entry
	ledger  []SyncedRecord
}

type Option func(*Queue)

// WithLedgerSize bounds how many synced ids are remembered for dedup.
func WithLedgerSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ledgerSize = n
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(q *Queue) {
		q.nowFunc = now
	}
}

// New loads the persisted queue from s.
func New(s store.Store, options ...Option) (*Queue, error) {
	if s == nil {
		return nil, pkgerrors.New("[queue.New] store is required")
	}
	q := &Queue{
		store:      s,
		ledgerSize: defaultLedgerSize,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(q)
	}

	var err error
	if q.entries, err = load(s, entriesKey); err != nil {
		return nil, err
	}
	if q.ledger, err = load(s, ledgerKey); err != nil {
		return nil, err
	}
	metrics.QueueDepth.Set(float64(len(q.entries)))
	return q, nil
}

func load[T any](s store.Store, key store.Key[[]T]) ([]T, error) {
	v, err := key.Load(s)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, interrors.Wrapf(interrors.ErrCorrupted, "[queue.New] %s: %v", key.Name(), err)
	}
	return v, nil
}

// Enqueue durably appends r as pending. A sale id already queued or recently synced
// returns ErrDuplicateSale and leaves the queue unchanged. A record already marked synced or
// failed returns ErrNotPending.
func (q *Queue) Enqueue(r sales.Record) error {
	if r.ID == "" {
		return pkgerrors.New("[Queue.Enqueue] sale id is required")
	}
	if r.SyncStatus != "" && r.SyncStatus != sales.SyncPending {
		return pkgerrors.Wrapf(ErrNotPending, "[Queue.Enqueue] %s is %s", r.ID, r.SyncStatus)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexLocked(r.ID) >= 0 || q.syncedLocked(r.ID) != nil {
		return pkgerrors.Wrapf(ErrDuplicateSale, "[Queue.Enqueue] %s", r.ID)
	}

	r.SyncStatus = sales.SyncPending
	r.AttemptCount = 0
	next := append(cloneEntries(q.entries), Entry{
		Sale:       r,
		EnqueuedAt: q.nowFunc().UTC(),
	})
	return q.commitLocked(next, q.ledger)
}

// PeekOrdered returns every unconfirmed entry in insertion order. It does not mutate.
func (q *Queue) PeekOrdered() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneEntries(q.entries)
}

// All is the read-only view used for sync badges.
func (q *Queue) All() []Entry {
	return q.PeekOrdered()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	var c Counts
	for _, e := range q.entries {
		if e.SyncStatus() == sales.SyncFailed {
			c.Failed++
		} else {
			c.Pending++
		}
	}
	return c
}

// MarkSynced removes the entry and records it in the synced ledger in one write.
func (q *Queue) MarkSynced(id, serverID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return pkgerrors.Wrapf(ErrEntryNotFound, "[Queue.MarkSynced] %s", id)
	}

	next := cloneEntries(q.entries)
	next = slices.Delete(next, idx, idx+1)

	ledger := append(slices.Clone(q.ledger), SyncedRecord{
		SaleID:   id,
		ServerID: serverID,
		SyncedAt: q.nowFunc().UTC(),
	})
	if over := len(ledger) - q.ledgerSize; over > 0 {
		ledger = ledger[over:]
	}
	return q.commitLocked(next, ledger)
}

// MarkFailed records the attempt and leaves the entry in place for the next run.
func (q *Queue) MarkFailed(id string, cause error) error {
	return q.update(id, "[Queue.MarkFailed]", func(e *Entry) error {
		now := q.nowFunc().UTC()
		e.AttemptCount++
		e.Sale.AttemptCount = e.AttemptCount
		e.Sale.SyncStatus = sales.SyncFailed
		e.LastAttemptAt = &now
		if cause != nil {
			e.LastError = cause.Error()
		}
		return nil
	})
}

// Retry moves a failed entry back to pending. Pending entries are left as they are.
func (q *Queue) Retry(id string) error {
	return q.update(id, "[Queue.Retry]", func(e *Entry) error {
		if e.SyncStatus() == sales.SyncPending {
			return nil
		}
		if !e.SyncStatus().CanTransition(sales.SyncPending) {
			return pkgerrors.Errorf("cannot retry entry in state %s", e.SyncStatus())
		}
		e.Sale.SyncStatus = sales.SyncPending
		return nil
	})
}

// Lookup reports the sync status of a sale still queued or recently synced.
func (q *Queue) Lookup(id string) (sales.SyncStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx := q.indexLocked(id); idx >= 0 {
		return q.entries[idx].SyncStatus(), true
	}
	if q.syncedLocked(id) != nil {
		return sales.SyncSynced, true
	}
	return "", false
}

// Synced returns the ledger entry for a confirmed sale.
func (q *Queue) Synced(id string) (SyncedRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rec := q.syncedLocked(id); rec != nil {
		return *rec, true
	}
	return SyncedRecord{}, false
}

func (q *Queue) update(id, op string, mutate func(e *Entry) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return pkgerrors.Wrapf(ErrEntryNotFound, "%s %s", op, id)
	}
	next := cloneEntries(q.entries)
	if err := mutate(&next[idx]); err != nil {
		return pkgerrors.Wrapf(err, "%s %s", op, id)
	}
	return pkgerrors.Wrap(q.commitLocked(next, q.ledger), op)
}

// commitLocked persists entries and ledger atomically, then swaps the in-memory copy.
func (q *Queue) commitLocked(entries []Entry, ledger []SyncedRecord) error {
	entriesOp, err := entriesKey.Put(entries)
	if err != nil {
		return err
	}
	ledgerOp, err := ledgerKey.Put(ledger)
	if err != nil {
		return err
	}
	if err := q.store.Apply(entriesOp, ledgerOp); err != nil {
		return pkgerrors.Wrap(err, "[Queue] persist")
	}
	q.entries = entries
	q.ledger = ledger
	metrics.QueueDepth.Set(float64(len(entries)))
	return nil
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.entries, func(e Entry) bool { return e.ID() == id })
}

func (q *Queue) syncedLocked(id string) *SyncedRecord {
	for i := range q.ledger {
		if q.ledger[i].SaleID == id {
			return &q.ledger[i]
		}
	}
	return nil
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Sale.Items = slices.Clone(e.Sale.Items)
		if e.LastAttemptAt != nil {
			t := *e.LastAttemptAt
			e.LastAttemptAt = &t
		}
		out[i] = e
	}
	return out
}
