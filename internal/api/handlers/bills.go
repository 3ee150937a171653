package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/card-ledger/internal/api/middleware"
	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/jobs"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/rs/zerolog"
)

// BillsHandler handles bill-related endpoints.
type BillsHandler struct {
	repo      billing.BillRepository
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewBillsHandler creates a new bills handler.
func NewBillsHandler(repo billing.BillRepository, publisher jobs.Publisher, log zerolog.Logger) *BillsHandler {
	return &BillsHandler{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// ListBills handles GET /api/bills?card_id=
func (h *BillsHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cardID := r.URL.Query().Get("card_id")
	if cardID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "card_id is required")
		return
	}

	bills, err := h.repo.ListBills(ctx, cardID)
	if err != nil {
		h.log.Error().Err(err).Str("card_id", cardID).Msg("Failed to list bills")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list bills")
		return
	}

	if bills == nil {
		bills = []*domain.Bill{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"count": len(bills),
	})
}

// GenerateBills handles POST /api/bills/generate
// An empty body regenerates every active card with the default window.
func (h *BillsHandler) GenerateBills(w http.ResponseWriter, r *http.Request) {
	var req jobs.GenerateBillsParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if req.MonthsBack < 0 || req.MonthsForward < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "months_back and months_forward must not be negative")
		return
	}

	ctx := r.Context()
	job := jobs.NewGenerateBillsJob(req)
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue bill generation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue bill generation job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("card_id", req.CardID).Msg("Bill generation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// PayBill handles POST /api/bills/pay
func (h *BillsHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID string `json:"card_id"`
		Month  int    `json:"month"`
		Year   int    `json:"year"`
		Amount string `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CardID == "" || req.Month < 1 || req.Month > 12 || req.Year < 1 {
		middleware.WriteError(w, http.StatusBadRequest, "card_id, month and year are required")
		return
	}

	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	ctx := r.Context()
	key := domain.BillKey{CardID: req.CardID, Month: req.Month, Year: req.Year}

	bill, err := billing.RecordPayment(ctx, h.repo, key, amount)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrNonPositivePayment):
		middleware.WriteError(w, http.StatusBadRequest, "Payment amount must be positive")
		return
	case errors.Is(err, domain.ErrBillNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Bill not found")
		return
	case errors.Is(err, billing.ErrBillAlreadyPaid):
		middleware.WriteError(w, http.StatusConflict, "Bill already paid")
		return
	case errors.Is(err, domain.ErrBillVersionConflict):
		middleware.WriteError(w, http.StatusConflict, "Bill was modified concurrently, retry")
		return
	default:
		h.log.Error().Err(err).Str("bill", key.String()).Msg("Failed to record payment")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	h.log.Info().
		Str("bill", key.String()).
		Str("amount", amount.StringFixed(2)).
		Bool("is_paid", bill.IsPaid).
		Msg("Payment recorded")

	middleware.WriteJSON(w, http.StatusOK, bill)
}
