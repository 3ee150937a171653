// Package memory is an in-memory implementation of the card, bill and
// transaction repositories. It is safe for concurrent use. Data is lost on
// restart; it backs tests and local runs with STORE_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/google/uuid"
)

// Store holds cards, bills and transactions in maps guarded by one mutex.
type Store struct {
	mu           sync.RWMutex
	cards        map[string]*domain.Card
	bills        map[domain.BillKey]*domain.Bill
	transactions map[string]*domain.Transaction
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		cards:        make(map[string]*domain.Card),
		bills:        make(map[domain.BillKey]*domain.Bill),
		transactions: make(map[string]*domain.Transaction),
	}
}

// PutCard saves or replaces a card.
func (s *Store) PutCard(card *domain.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *card
	s.cards[card.CardID] = &c
}

// ListActiveCards returns active cards ordered by ID.
func (s *Store) ListActiveCards(ctx context.Context) ([]*domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Card
	for _, c := range s.cards {
		if !c.IsActive {
			continue
		}
		cardCopy := *c
		result = append(result, &cardCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CardID < result[j].CardID })
	return result, nil
}

// GetCard returns a card by ID.
func (s *Store) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("GetCard: %s: %w", cardID, domain.ErrCardNotFound)
	}
	cardCopy := *c
	return &cardCopy, nil
}

// FindBill returns a copy of the stored bill, or nil.
func (s *Store) FindBill(ctx context.Context, key domain.BillKey) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[key]
	if !ok {
		return nil, nil
	}
	billCopy := *b
	return &billCopy, nil
}

// SaveBill inserts or updates a bill with a version check.
func (s *Store) SaveBill(ctx context.Context, bill *domain.Bill, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.bills[bill.BillKey]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("SaveBill: %s: %w", bill.BillKey, domain.ErrBillVersionConflict)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("SaveBill: %s: stored version %d, expected %d: %w",
			bill.BillKey, current.Version, expectedVersion, domain.ErrBillVersionConflict)
	}

	if bill.BillID == "" {
		bill.BillID = uuid.NewString()
	}
	bill.Version = expectedVersion + 1

	billCopy := *bill
	s.bills[bill.BillKey] = &billCopy
	return nil
}

// ListBills returns a card's bills, oldest first. An empty cardID lists all bills.
func (s *Store) ListBills(ctx context.Context, cardID string) ([]*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Bill{}
	for _, b := range s.bills {
		if cardID != "" && b.CardID != cardID {
			continue
		}
		billCopy := *b
		result = append(result, &billCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CardID != b.CardID {
			return a.CardID < b.CardID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return result, nil
}

// InsertTransactions stores new transactions, assigning IDs where missing.
func (s *Store) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.NewString()
		}
		if _, exists := s.transactions[tx.TransactionID]; exists {
			return fmt.Errorf("InsertTransactions: duplicate transaction %s", tx.TransactionID)
		}
		txCopy := *tx
		s.transactions[tx.TransactionID] = &txCopy
	}
	return nil
}

// ListCardTransactions returns cardID's transactions dated within [start, end].
func (s *Store) ListCardTransactions(ctx context.Context, cardID string, start, end civil.Date) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.transactions {
		if tx.CardID != cardID || tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		txCopy := *tx
		result = append(result, &txCopy)
	}
	sortTransactions(result)
	return result, nil
}

// ListInstallmentCandidates returns rows flagged as installments or carrying
// a "(k/N)" marker, optionally restricted to one user.
func (s *Store) ListInstallmentCandidates(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.transactions {
		if userID != "" && tx.UserID != userID {
			continue
		}
		if !tx.IsInstallment && !domain.HasInstallmentMarker(tx.Description) {
			continue
		}
		txCopy := *tx
		result = append(result, &txCopy)
	}
	sortTransactions(result)
	return result, nil
}

// UpdateInstallment rewrites the installment fields of one transaction.
func (s *Store) UpdateInstallment(ctx context.Context, u domain.InstallmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[u.TransactionID]
	if !ok {
		return fmt.Errorf("UpdateInstallment: transaction not found: %s", u.TransactionID)
	}

	tx.IsInstallment = true
	tx.InstallmentNumber = u.InstallmentNumber
	tx.InstallmentCount = u.InstallmentCount
	tx.Amount = u.Amount
	tx.TotalAmount = u.TotalAmount
	tx.Date = u.Date
	tx.Description = u.Description
	tx.LastInstallmentDate = u.LastInstallmentDate
	tx.UpdatedTS = time.Now().UTC()
	return nil
}

// Transaction returns a copy of one stored transaction.
func (s *Store) Transaction(id string) (*domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	txCopy := *tx
	return &txCopy, true
}

func sortTransactions(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].TransactionID < txs[j].TransactionID
	})
}

// Close is a no-op; it lets Store stand in for the database-backed stores.
func (s *Store) Close() error {
	return nil
}
