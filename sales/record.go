package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSale is returned for a malformed record. Such a record is never queued.
var ErrInvalidSale = errors.New("invalid sale")

// Status is the business state of a sale.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusVoided    Status = "voided"
)

// SyncStatus is the transport state: has the server acknowledged the sale.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// CanTransition reports whether a record may move from s to next. synced is final.
func (s SyncStatus) CanTransition(next SyncStatus) bool {
	switch s {
	case SyncPending:
		return next == SyncSynced || next == SyncFailed
	case SyncFailed:
		return next == SyncPending
	default:
		return false
	}
}

type LineItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0,money"`
}

func (li LineItem) Amount() float64 {
	return li.Quantity * li.UnitPrice
}

// Record is a sale as captured at checkout. ID is generated on the device and stays stable
// across retries; the server deduplicates on it.
type Record struct {
	ID            string     `json:"id" validate:"required"`
	BusinessID    string     `json:"businessId" validate:"required"`
	UserID        string     `json:"userId" validate:"required"`
	Items         []LineItem `json:"items,omitempty" validate:"dive"`
	Subtotal      float64    `json:"subtotal" validate:"gte=0,money"`
	Tax           float64    `json:"tax" validate:"gte=0,money"`
	Discount      float64    `json:"discount" validate:"gte=0,money"`
	Total         float64    `json:"total" validate:"gte=0,money"`
	PaymentMethod string     `json:"paymentMethod" validate:"required"`
	Status        Status     `json:"status" validate:"oneof=pending completed voided"`
	SyncStatus    SyncStatus `json:"syncStatus,omitempty" validate:"omitempty,oneof=pending synced failed"`
	CreatedAt     time.Time  `json:"createdAt" validate:"required"`
	AttemptCount  int        `json:"attemptCount"`
}

func NewID() string {
	return uuid.NewString()
}

// NewRecord starts a completed, unsynced sale with a fresh id.
func NewRecord(businessID, userID, paymentMethod string, now time.Time) Record {
	return Record{
		ID:            NewID(),
		BusinessID:    businessID,
		UserID:        userID,
		PaymentMethod: paymentMethod,
		Status:        StatusCompleted,
		SyncStatus:    SyncPending,
		CreatedAt:     now.UTC(),
	}
}
