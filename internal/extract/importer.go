package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/google/uuid"
)

// PaymentMethodCreditCard is the payment method of imported card purchases.
const PaymentMethodCreditCard = "credit_card"

// ErrCardNotResolved is returned when no single card matches an import.
var ErrCardNotResolved = errors.New("could not resolve card for purchase")

// CardLister reads the cards a purchase can be charged to.
type CardLister interface {
	ListActiveCards(ctx context.Context) ([]*domain.Card, error)
	GetCard(ctx context.Context, cardID string) (*domain.Card, error)
}

// TransactionWriter stores new transactions.
type TransactionWriter interface {
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) error
}

// ImportRequest is one message to import.
type ImportRequest struct {
	Message    string `json:"message"`
	UserID     string `json:"user_id,omitempty"`
	CardID     string `json:"card_id,omitempty"` // overrides the model's card hint
	CategoryID string `json:"category_id,omitempty"`
}

// ImportResult is what an import stored.
type ImportResult struct {
	Purchase     *Purchase             `json:"purchase"`
	CardID       string                `json:"card_id"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// Importer extracts purchases from messages and stores them, one row per
// installment.
type Importer struct {
	extractor *Extractor
	cards     CardLister
	txs       TransactionWriter
}

// NewImporter wires an Importer.
func NewImporter(extractor *Extractor, cards CardLister, txs TransactionWriter) *Importer {
	return &Importer{extractor: extractor, cards: cards, txs: txs}
}

// ImportSMS extracts the purchase in req.Message, resolves its card and
// inserts it. Purchases in two or more installments are expanded forward
// from the purchase date.
func (i *Importer) ImportSMS(ctx context.Context, req ImportRequest, today civil.Date) (*ImportResult, error) {
	log := logger.FromContext(ctx)

	purchase, err := i.extractor.ExtractPurchase(ctx, req.Message, today)
	if err != nil {
		return nil, fmt.Errorf("ImportSMS: %w", err)
	}

	card, err := i.resolveCard(ctx, req, purchase.CardHint)
	if err != nil {
		return nil, fmt.Errorf("ImportSMS: %w", err)
	}

	tx := &domain.Transaction{
		TransactionID: uuid.NewString(),
		UserID:        card.UserID,
		CardID:        card.CardID,
		PaymentMethod: PaymentMethodCreditCard,
		CategoryID:    req.CategoryID,
		Amount:        purchase.Amount,
		Date:          purchase.Date,
		Type:          domain.TransactionTypeExpense,
		Description:   purchase.Description,
	}

	rows := []*domain.Transaction{tx}
	if purchase.Installments >= 2 {
		rows, err = installments.ExpandPurchase(tx, purchase.Installments)
		if err != nil {
			return nil, fmt.Errorf("ImportSMS: %w", err)
		}
	}

	if err := i.txs.InsertTransactions(ctx, rows); err != nil {
		return nil, fmt.Errorf("ImportSMS: inserting transactions: %w", err)
	}

	log.Info().
		Str("card_id", card.CardID).
		Str("description", purchase.Description).
		Str("amount", purchase.Amount.StringFixed(2)).
		Int("installments", purchase.Installments).
		Msg("Imported purchase from SMS")

	return &ImportResult{Purchase: purchase, CardID: card.CardID, Transactions: rows}, nil
}

// resolveCard picks the explicit card, else the single active card of the
// user whose name contains the hint, else the user's only active card.
func (i *Importer) resolveCard(ctx context.Context, req ImportRequest, hint string) (*domain.Card, error) {
	if req.CardID != "" {
		card, err := i.cards.GetCard(ctx, req.CardID)
		if err != nil {
			return nil, fmt.Errorf("resolveCard: %w", err)
		}
		return card, nil
	}

	cards, err := i.cards.ListActiveCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolveCard: listing cards: %w", err)
	}

	var owned []*domain.Card
	for _, c := range cards {
		if req.UserID == "" || c.UserID == req.UserID {
			owned = append(owned, c)
		}
	}

	if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" {
		var matched []*domain.Card
		for _, c := range owned {
			name := strings.ToLower(c.Name)
			if strings.Contains(name, hint) || (name != "" && strings.Contains(hint, name)) {
				matched = append(matched, c)
			}
		}
		if len(matched) == 1 {
			return matched[0], nil
		}
	}

	if len(owned) == 1 {
		return owned[0], nil
	}
	return nil, fmt.Errorf("resolveCard: hint %q: %w", hint, ErrCardNotResolved)
}
