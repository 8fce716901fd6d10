package sales

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/gateway"
	"github.com/pkg/errors"
)

const salesPath = "/sales"

// Confirmation is the server's acknowledgement of a created sale.
type Confirmation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Sequence int64  `json:"sequence"`
}

// Remote is a sale as the server reports it.
type Remote struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"clientId"`
	Sequence      int64     `json:"sequence"`
	BusinessID    string    `json:"businessId"`
	Total         float64   `json:"total"`
	PaymentMethod string    `json:"paymentMethod"`
	Status        Status    `json:"status"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

type Filter struct {
	BusinessID    string
	PaymentMethod string
	From          *time.Time
	To            *time.Time
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.BusinessID != "" {
		q.Set("businessId", f.BusinessID)
	}
	if f.PaymentMethod != "" {
		q.Set("paymentMethod", f.PaymentMethod)
	}
	if f.From != nil {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	return q
}

// API is the /sales client. Every call goes through the gateway.
type API struct {
	gateway gateway.Executor
}

func NewAPI(g gateway.Executor) (*API, error) {
	if g == nil {
		return nil, errors.New("[NewAPI] gateway is required")
	}
	return &API{gateway: g}, nil
}

// Create submits one sale. A sale the server already holds fails with api.ErrConflict.
func (a *API) Create(ctx context.Context, r Record) (*Confirmation, error) {
	payload := r
	payload.SyncStatus = ""
	resp, err := a.gateway.Execute(ctx, api.Request{
		Method: http.MethodPost,
		Path:   salesPath,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	var c Confirmation
	if err := resp.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "[API.Create]")
	}
	return &c, nil
}

// List is used by reporting screens.
func (a *API) List(ctx context.Context, f Filter) ([]Remote, error) {
	resp, err := a.gateway.Execute(ctx, api.Request{
		Method: http.MethodGet,
		Path:   salesPath,
		Query:  f.query(),
	})
	if err != nil {
		return nil, err
	}
	var out []Remote
	if err := resp.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "[API.List]")
	}
	return out, nil
}

// ConflictServerID returns the server id reported in a 409 body, if any.
func ConflictServerID(err error) string {
	var se *api.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusConflict {
		return ""
	}
	var body struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(se.Body, &body) != nil {
		return ""
	}
	return body.ID
}
