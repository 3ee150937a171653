package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/api/handlers"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/extract"
	"github.com/dvloznov/card-ledger/internal/jobs"
	"github.com/dvloznov/card-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/card-ledger/internal/store/memory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubImporter struct {
	err error
}

func (s *stubImporter) ImportSMS(ctx context.Context, req extract.ImportRequest, today civil.Date) (*extract.ImportResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &extract.ImportResult{CardID: "nu", Transactions: []*domain.Transaction{{TransactionID: "t1"}}}, nil
}

type testServer struct {
	handler  http.Handler
	store    *memory.Store
	jobStore *inmemory.Store
}

func newTestServer(t *testing.T, importer handlers.SMSImporter) *testServer {
	t.Helper()
	log := zerolog.Nop()

	store := memory.NewStore()
	store.PutCard(&domain.Card{CardID: "nu", UserID: "u1", Name: "Nubank", ClosingDay: 31, DueDay: 10, IsActive: true})
	store.PutCard(&domain.Card{CardID: "raw", UserID: "u1", Name: "Unconfigured", IsActive: true})

	bill := &domain.Bill{
		BillKey:     domain.BillKey{CardID: "nu", Month: 4, Year: 2025},
		UserID:      "u1",
		TotalAmount: decimal.RequireFromString("300"),
		Status:      domain.BillStatusClosed,
	}
	if err := store.SaveBill(context.Background(), bill, 0); err != nil {
		t.Fatalf("SaveBill() error = %v", err)
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, jobStore)
	t.Cleanup(func() { queue.Close() })

	var h Handlers
	h.Cards = handlers.NewCardsHandler(store, log)
	h.Bills = handlers.NewBillsHandler(store, queue, log)
	h.Installments = handlers.NewInstallmentsHandler(queue, log)
	h.Transactions = handlers.NewTransactionsHandler(importer, log)
	h.Jobs = handlers.NewJobsHandler(jobStore, log)

	return &testServer{handler: NewRouter(h, log), store: store, jobStore: jobStore}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decoding %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestRouter_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"list cards", http.MethodGet, "/api/cards", "", http.StatusOK},
		{"cards wrong method", http.MethodPost, "/api/cards", "", http.StatusMethodNotAllowed},
		{"period", http.MethodGet, "/api/cards/nu/period?month=4&year=2025", "", http.StatusOK},
		{"period unknown card", http.MethodGet, "/api/cards/zz/period?month=4&year=2025", "", http.StatusNotFound},
		{"period unconfigured card", http.MethodGet, "/api/cards/raw/period?month=4&year=2025", "", http.StatusUnprocessableEntity},
		{"period bad month", http.MethodGet, "/api/cards/nu/period?month=13", "", http.StatusBadRequest},
		{"card subpath", http.MethodGet, "/api/cards/nu/bills", "", http.StatusNotFound},
		{"bills without card", http.MethodGet, "/api/bills", "", http.StatusBadRequest},
		{"bills", http.MethodGet, "/api/bills?card_id=nu", "", http.StatusOK},
		{"generate", http.MethodPost, "/api/bills/generate", "", http.StatusAccepted},
		{"generate negative window", http.MethodPost, "/api/bills/generate", `{"months_back": -1}`, http.StatusBadRequest},
		{"pay unknown bill", http.MethodPost, "/api/bills/pay", `{"card_id": "nu", "month": 5, "year": 2025, "amount": "10"}`, http.StatusNotFound},
		{"pay zero", http.MethodPost, "/api/bills/pay", `{"card_id": "nu", "month": 4, "year": 2025, "amount": "0"}`, http.StatusBadRequest},
		{"pay bad body", http.MethodPost, "/api/bills/pay", `{`, http.StatusBadRequest},
		{"plan", http.MethodPost, "/api/installments/plan", `{"start_date": "2025-01-31", "count": 3, "total": "100"}`, http.StatusOK},
		{"plan count 1", http.MethodPost, "/api/installments/plan", `{"start_date": "2025-01-31", "count": 1, "total": "100"}`, http.StatusBadRequest},
		{"plan bad date", http.MethodPost, "/api/installments/plan", `{"start_date": "soon", "count": 3, "total": "100"}`, http.StatusBadRequest},
		{"repair", http.MethodPost, "/api/installments/repair", `{"user_id": "u1"}`, http.StatusAccepted},
		{"import sms", http.MethodPost, "/api/transactions/import-sms", `{"message": "Compra aprovada"}`, http.StatusCreated},
		{"import sms empty", http.MethodPost, "/api/transactions/import-sms", `{}`, http.StatusBadRequest},
		{"jobs", http.MethodGet, "/api/jobs", "", http.StatusOK},
		{"unknown job", http.MethodGet, "/api/jobs/nope", "", http.StatusNotFound},
	}

	srv := newTestServer(t, &stubImporter{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body := srv.do(t, tt.method, tt.path, tt.body)
			if got != tt.want {
				t.Errorf("%s %s = %d, want %d (body %v)", tt.method, tt.path, got, tt.want, body)
			}
		})
	}
}

func TestRouter_Period(t *testing.T) {
	srv := newTestServer(t, nil)

	_, body := srv.do(t, http.MethodGet, "/api/cards/nu/period?month=4&year=2025", "")
	period := body["period"].(map[string]interface{})

	// Closing day 31 rolls April's close into May 1.
	want := map[string]string{
		"period_start": "2025-04-01",
		"period_end":   "2025-05-01",
		"closing_date": "2025-05-01",
		"due_date":     "2025-05-10",
	}
	for field, w := range want {
		if period[field] != w {
			t.Errorf("%s = %v, want %s", field, period[field], w)
		}
	}
}

func TestRouter_PayBill(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := srv.do(t, http.MethodPost, "/api/bills/pay", `{"card_id": "nu", "month": 4, "year": 2025, "amount": "R$ 300,00"}`)
	if code != http.StatusOK {
		t.Fatalf("pay = %d, body %v", code, body)
	}
	if body["IsPaid"] != true {
		t.Errorf("IsPaid = %v, want true", body["IsPaid"])
	}

	code, _ = srv.do(t, http.MethodPost, "/api/bills/pay", `{"card_id": "nu", "month": 4, "year": 2025, "amount": "1"}`)
	if code != http.StatusConflict {
		t.Errorf("second payment = %d, want 409", code)
	}
}

func TestRouter_EnqueuedJobIsListed(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := srv.do(t, http.MethodPost, "/api/installments/repair", `{"user_id": "u1", "limit": 5}`)
	if code != http.StatusAccepted {
		t.Fatalf("repair = %d", code)
	}
	if body["execute"] != false {
		t.Errorf("execute = %v, want false by default", body["execute"])
	}
	jobID := body["job_id"].(string)

	code, job := srv.do(t, http.MethodGet, "/api/jobs/"+jobID, "")
	if code != http.StatusOK {
		t.Fatalf("get job = %d", code)
	}
	if job["type"] != string(jobs.JobTypeRepairInstallments) || job["status"] != string(jobs.JobStatusPending) {
		t.Errorf("job = %v", job)
	}

	_, list := srv.do(t, http.MethodGet, "/api/jobs?type=repair_installments", "")
	if list["count"] != float64(1) {
		t.Errorf("count = %v, want 1", list["count"])
	}
}

func TestRouter_ImportSMSErrors(t *testing.T) {
	tests := []struct {
		name     string
		importer handlers.SMSImporter
		want     int
	}{
		{"not configured", nil, http.StatusServiceUnavailable},
		{"not a purchase", &stubImporter{err: extract.ErrNotAPurchase}, http.StatusUnprocessableEntity},
		{"card unresolved", &stubImporter{err: extract.ErrCardNotResolved}, http.StatusUnprocessableEntity},
		{"unknown card", &stubImporter{err: domain.ErrCardNotFound}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.importer)
			code, _ := srv.do(t, http.MethodPost, "/api/transactions/import-sms", `{"message": "x"}`)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}
