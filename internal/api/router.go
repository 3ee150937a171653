// Package api assembles the HTTP routes of the card ledger service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/card-ledger/internal/api/handlers"
	"github.com/dvloznov/card-ledger/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Cards        *handlers.CardsHandler
	Bills        *handlers.BillsHandler
	Installments *handlers.InstallmentsHandler
	Transactions *handlers.TransactionsHandler
	Jobs         *handlers.JobsHandler
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// NewRouter registers every route and wraps them in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Cards endpoints
	mux.HandleFunc("/api/cards", method(http.MethodGet, h.Cards.ListCards))

	mux.HandleFunc("/api/cards/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Expect /api/cards/{id}/period
		rest := strings.TrimPrefix(r.URL.Path, "/api/cards/")
		cardID, tail, ok := strings.Cut(rest, "/")
		if !ok || cardID == "" || tail != "period" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		h.Cards.GetPeriod(w, r, cardID)
	})

	// Bills endpoints
	mux.HandleFunc("/api/bills", method(http.MethodGet, h.Bills.ListBills))
	mux.HandleFunc("/api/bills/generate", method(http.MethodPost, h.Bills.GenerateBills))
	mux.HandleFunc("/api/bills/pay", method(http.MethodPost, h.Bills.PayBill))

	// Installments endpoints
	mux.HandleFunc("/api/installments/plan", method(http.MethodPost, h.Installments.Plan))
	mux.HandleFunc("/api/installments/repair", method(http.MethodPost, h.Installments.Repair))

	// Transactions endpoints
	mux.HandleFunc("/api/transactions/import-sms", method(http.MethodPost, h.Transactions.ImportSMS))

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", method(http.MethodGet, h.Jobs.ListJobs))

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		h.Jobs.GetJob(w, r, jobID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.LimitBody(maxBodyBytes)(mux),
				),
			),
		),
	)
}

func method(want string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != want {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next(w, r)
	}
}
