package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/card-ledger/internal/api/middleware"
	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// CardsHandler handles card-related endpoints.
type CardsHandler struct {
	repo billing.CardRepository
	log  zerolog.Logger
}

// NewCardsHandler creates a new cards handler.
func NewCardsHandler(repo billing.CardRepository, log zerolog.Logger) *CardsHandler {
	return &CardsHandler{
		repo: repo,
		log:  log,
	}
}

// ListCards handles GET /api/cards
func (h *CardsHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cards, err := h.repo.ListActiveCards(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list cards")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list cards")
		return
	}

	if cards == nil {
		cards = []*domain.Card{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"count": len(cards),
	})
}

// GetPeriod handles GET /api/cards/{id}/period?month=&year=
// Month and year default to the current month.
func (h *CardsHandler) GetPeriod(w http.ResponseWriter, r *http.Request, cardID string) {
	ctx := r.Context()

	today := calendar.Today(time.Local)
	month, year := int(today.Month), today.Year

	query := r.URL.Query()
	if s := query.Get("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month")
			return
		}
		month = m
	}
	if s := query.Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = y
	}

	card, err := h.repo.GetCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, domain.ErrCardNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Card not found")
			return
		}
		h.log.Error().Err(err).Str("card_id", cardID).Msg("Failed to get card")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get card")
		return
	}

	if !card.HasBillingConfig() {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Card has no closing or due day configured")
		return
	}

	period := billing.ComputePeriod(card.ClosingDay, month, year, card.DueDay)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"card_id": card.CardID,
		"month":   month,
		"year":    year,
		"period":  period,
	})
}
