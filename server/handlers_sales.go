package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Sale is a server-side record. ClientID is the device generated id used for dedup.
type Sale struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"clientId"`
	Sequence      int64           `json:"sequence"`
	BusinessID    string          `json:"businessId"`
	Total         float64         `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"`
	ReceivedAt    time.Time       `json:"receivedAt"`
	Payload       json.RawMessage `json:"-"`
}

type createSaleRequest struct {
	ID            string  `json:"id"`
	BusinessID    string  `json:"businessId"`
	Total         float64 `json:"total"`
	PaymentMethod string  `json:"paymentMethod"`
	Status        string  `json:"status"`
}

// CreateSaleHandler answers 409 for a client id it already holds, so replays never duplicate.
func (s *Server) CreateSaleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		var req createSaleRequest
		if err := json.Unmarshal(raw, &req); err != nil || req.ID == "" {
			writeError(w, http.StatusBadRequest, "sale id is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if status, ok := s.faults.saleStatus[req.ID]; ok {
			writeError(w, status, "sale refused")
			return
		}
		if idx, ok := s.saleIndex[req.ID]; ok {
			writeJSON(w, http.StatusConflict, map[string]any{
				"message": "sale already recorded",
				"id":      s.sales[idx].ID,
			})
			return
		}

		sale := Sale{
			ID:            uuid.NewString(),
			ClientID:      req.ID,
			Sequence:      int64(len(s.sales) + 1),
			BusinessID:    req.BusinessID,
			Total:         req.Total,
			PaymentMethod: req.PaymentMethod,
			Status:        req.Status,
			ReceivedAt:    s.nowFunc(),
			Payload:       raw,
		}
		s.saleIndex[req.ID] = len(s.sales)
		s.sales = append(s.sales, sale)
		writeJSON(w, http.StatusCreated, sale)
	}
}

func (s *Server) ListSalesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID := r.URL.Query().Get("businessId")
		paymentMethod := r.URL.Query().Get("paymentMethod")

		s.mu.Lock()
		out := make([]Sale, 0, len(s.sales))
		for _, sale := range s.sales {
			if businessID != "" && sale.BusinessID != businessID {
				continue
			}
			if paymentMethod != "" && sale.PaymentMethod != paymentMethod {
				continue
			}
			out = append(out, sale)
		}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, out)
	}
}

// Sales returns the recorded sales in arrival order.
func (s *Server) Sales() []Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sale, len(s.sales))
	copy(out, s.sales)
	return out
}
