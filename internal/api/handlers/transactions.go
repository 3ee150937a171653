package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/api/middleware"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/extract"
	"github.com/rs/zerolog"
)

// SMSImporter imports purchases from notification messages.
type SMSImporter interface {
	ImportSMS(ctx context.Context, req extract.ImportRequest, today civil.Date) (*extract.ImportResult, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	importer SMSImporter
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. A nil importer
// disables SMS import.
func NewTransactionsHandler(importer SMSImporter, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		importer: importer,
		log:      log,
	}
}

// ImportSMS handles POST /api/transactions/import-sms
func (h *TransactionsHandler) ImportSMS(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "SMS import is not configured")
		return
	}

	var req extract.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	result, err := h.importer.ImportSMS(ctx, req, calendar.Today(time.Local))
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrNotAPurchase):
			middleware.WriteError(w, http.StatusUnprocessableEntity, "Message is not a card purchase")
		case errors.Is(err, extract.ErrCardNotResolved):
			middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not determine the card, pass card_id")
		case errors.Is(err, domain.ErrCardNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Card not found")
		default:
			h.log.Error().Err(err).Msg("Failed to import SMS")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to import SMS")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}
