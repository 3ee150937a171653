package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/card-ledger/internal/api/middleware"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/jobs"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/rs/zerolog"
)

// InstallmentsHandler handles installment planning and repair.
type InstallmentsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewInstallmentsHandler creates a new installments handler.
func NewInstallmentsHandler(publisher jobs.Publisher, log zerolog.Logger) *InstallmentsHandler {
	return &InstallmentsHandler{
		publisher: publisher,
		log:       log,
	}
}

// Plan handles POST /api/installments/plan
func (h *InstallmentsHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		Count     int    `json:"count"`
		Total     string `json:"total"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
		return
	}

	total, err := money.ParseAmount(req.Total)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid total")
		return
	}

	plan, err := installments.PlanInstallments(start, req.Count, total)
	if err != nil {
		switch {
		case errors.Is(err, installments.ErrInvalidInstallmentCount):
			middleware.WriteError(w, http.StatusBadRequest, "count must be at least 2")
		case errors.Is(err, installments.ErrNonPositiveAmount):
			middleware.WriteError(w, http.StatusBadRequest, "total must be positive")
		default:
			h.log.Error().Err(err).Msg("Failed to plan installments")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to plan installments")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, plan)
}

// Repair handles POST /api/installments/repair
// The job only reports unless "execute" is true.
func (h *InstallmentsHandler) Repair(w http.ResponseWriter, r *http.Request) {
	var req jobs.RepairInstallmentsParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if req.Limit < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}

	ctx := r.Context()
	job := jobs.NewRepairInstallmentsJob(req)
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue installment repair job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue installment repair job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", req.UserID).
		Bool("execute", req.Execute).
		Msg("Installment repair job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.JobID,
		"status":  string(job.Status),
		"execute": req.Execute,
	})
}
