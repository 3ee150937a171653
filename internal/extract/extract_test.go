package extract

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/store/memory"
	"github.com/shopspring/decimal"
)

// MockModel returns a canned answer and records the prompt.
type MockModel struct {
	Answer string
	Err    error
	Prompt string
}

func (m *MockModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompt = prompt
	return m.Answer, m.Err
}

var today = civil.Date{Year: 2025, Month: 3, Day: 10}

func TestParsePurchase(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantDesc  string
		wantAmt   string
		wantDate  civil.Date
		wantCount int
		wantHint  string
		wantErr   bool
	}{
		{
			name:      "plain object",
			raw:       `{"is_purchase": true, "description": "Mercado Livre", "amount": 1200, "date": "2025-01-31", "installments": 3, "card_hint": "Nubank"}`,
			wantDesc:  "Mercado Livre",
			wantAmt:   "1200",
			wantDate:  civil.Date{Year: 2025, Month: 1, Day: 31},
			wantCount: 3,
			wantHint:  "Nubank",
		},
		{
			name:      "fenced with formatted amount",
			raw:       "```json\n{\"description\": \"Padaria\", \"amount\": \"R$ 1.234,56\", \"date\": \"05/03/2025\"}\n```",
			wantDesc:  "Padaria",
			wantAmt:   "1234.56",
			wantDate:  civil.Date{Year: 2025, Month: 3, Day: 5},
			wantCount: 1,
		},
		{
			name:      "missing date defaults to today",
			raw:       `Here you go: {"description": "Uber", "amount": 23.456, "date": null, "installments": 1}`,
			wantDesc:  "Uber",
			wantAmt:   "23.46",
			wantDate:  today,
			wantCount: 1,
		},
		{name: "not a purchase", raw: `{"is_purchase": false}`, wantErr: true},
		{name: "missing description", raw: `{"amount": 10}`, wantErr: true},
		{name: "zero amount", raw: `{"description": "x", "amount": 0}`, wantErr: true},
		{name: "fractional installments", raw: `{"description": "x", "amount": 10, "installments": 2.5}`, wantErr: true},
		{name: "bad date", raw: `{"description": "x", "amount": 10, "date": "yesterday"}`, wantErr: true},
		{name: "not json", raw: `sorry, I cannot help`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePurchase(tt.raw, today)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePurchase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if !got.Amount.Equal(decimal.RequireFromString(tt.wantAmt)) {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.wantAmt)
			}
			if got.Date != tt.wantDate {
				t.Errorf("Date = %s, want %s", got.Date, tt.wantDate)
			}
			if got.Installments != tt.wantCount {
				t.Errorf("Installments = %d, want %d", got.Installments, tt.wantCount)
			}
			if got.CardHint != tt.wantHint {
				t.Errorf("CardHint = %q, want %q", got.CardHint, tt.wantHint)
			}
		})
	}
}

func TestParsePurchase_NotAPurchase(t *testing.T) {
	_, err := ParsePurchase(`{"is_purchase": false}`, today)
	if !errors.Is(err, ErrNotAPurchase) {
		t.Errorf("error = %v, want ErrNotAPurchase", err)
	}
}

func TestExtractPurchase_ModelError(t *testing.T) {
	modelErr := errors.New("quota exceeded")
	_, err := NewExtractor(&MockModel{Err: modelErr}).ExtractPurchase(context.Background(), "Compra aprovada", today)
	if !errors.Is(err, modelErr) {
		t.Errorf("error = %v, want wrapped model error", err)
	}
}

func newCardStore() *memory.Store {
	store := memory.NewStore()
	store.PutCard(&domain.Card{CardID: "nu", UserID: "u1", Name: "Nubank Gold", ClosingDay: 3, DueDay: 10, IsActive: true})
	store.PutCard(&domain.Card{CardID: "itau", UserID: "u1", Name: "Itau Platinum", ClosingDay: 25, DueDay: 5, IsActive: true})
	store.PutCard(&domain.Card{CardID: "solo", UserID: "u2", Name: "Inter", ClosingDay: 1, DueDay: 8, IsActive: true})
	return store
}

func TestImportSMS_ExpandsInstallments(t *testing.T) {
	store := newCardStore()
	model := &MockModel{Answer: `{"description": "Geladeira", "amount": "R$ 3.000,00", "date": "2025-01-31", "installments": 3, "card_hint": "nubank"}`}
	importer := NewImporter(NewExtractor(model), store, store)

	result, err := importer.ImportSMS(context.Background(), ImportRequest{Message: "Compra aprovada NUBANK 3x R$ 1.000,00"}, today)
	if err != nil {
		t.Fatalf("ImportSMS() error = %v", err)
	}
	if result.CardID != "nu" {
		t.Errorf("CardID = %q, want nu", result.CardID)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("len(Transactions) = %d, want 3", len(result.Transactions))
	}

	wantDates := []civil.Date{{Year: 2025, Month: 1, Day: 31}, {Year: 2025, Month: 3, Day: 3}, {Year: 2025, Month: 3, Day: 31}}
	for i, tx := range result.Transactions {
		stored, ok := store.Transaction(tx.TransactionID)
		if !ok {
			t.Fatalf("transaction %s not stored", tx.TransactionID)
		}
		if !stored.Amount.Equal(decimal.RequireFromString("1000")) {
			t.Errorf("row %d Amount = %s, want 1000", i, stored.Amount)
		}
		if stored.Date != wantDates[i] {
			t.Errorf("row %d Date = %s, want %s", i, stored.Date, wantDates[i])
		}
		if stored.InstallmentNumber != i+1 || stored.InstallmentCount != 3 {
			t.Errorf("row %d installment = %d/%d", i, stored.InstallmentNumber, stored.InstallmentCount)
		}
		if stored.UserID != "u1" || stored.PaymentMethod != PaymentMethodCreditCard {
			t.Errorf("row %d owner = %q/%q", i, stored.UserID, stored.PaymentMethod)
		}
	}
	if got := result.Transactions[1].Description; got != "Geladeira (2/3)" {
		t.Errorf("Description = %q, want %q", got, "Geladeira (2/3)")
	}
}

func TestImportSMS_CardResolution(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		req      ImportRequest
		wantCard string
		wantErr  error
	}{
		{
			name:     "explicit card wins over hint",
			answer:   `{"description": "x", "amount": 10, "card_hint": "nubank"}`,
			req:      ImportRequest{Message: "m", CardID: "itau"},
			wantCard: "itau",
		},
		{
			name:     "single card of user",
			answer:   `{"description": "x", "amount": 10}`,
			req:      ImportRequest{Message: "m", UserID: "u2"},
			wantCard: "solo",
		},
		{
			name:    "ambiguous without hint",
			answer:  `{"description": "x", "amount": 10}`,
			req:     ImportRequest{Message: "m", UserID: "u1"},
			wantErr: ErrCardNotResolved,
		},
		{
			name:    "unknown explicit card",
			answer:  `{"description": "x", "amount": 10}`,
			req:     ImportRequest{Message: "m", CardID: "missing"},
			wantErr: domain.ErrCardNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCardStore()
			importer := NewImporter(NewExtractor(&MockModel{Answer: tt.answer}), store, store)

			result, err := importer.ImportSMS(context.Background(), tt.req, today)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ImportSMS() error = %v", err)
			}
			if result.CardID != tt.wantCard {
				t.Errorf("CardID = %q, want %q", result.CardID, tt.wantCard)
			}
			if len(result.Transactions) != 1 || result.Transactions[0].IsInstallment {
				t.Errorf("Transactions = %+v, want one plain row", result.Transactions)
			}
		})
	}
}
