package installments

import (
	"sort"

	"github.com/dvloznov/card-ledger/internal/domain"
)

// GroupKey identifies the rows of one installment purchase.
type GroupKey struct {
	UserID          string `json:"user_id"`
	BaseDescription string `json:"base_description"`
	CategoryID      string `json:"category_id"`
	PaymentMethod   string `json:"payment_method"`
}

// Group is a set of installment rows sharing a GroupKey, ordered by date,
// then installment number, then transaction ID.
type Group struct {
	Key          GroupKey
	Transactions []*domain.Transaction
}

// StripInstallmentSuffix removes a trailing " (k/N)" marker.
func StripInstallmentSuffix(desc string) string {
	return domain.StripInstallmentMarker(desc)
}

// IsInstallmentRow reports whether tx is flagged as an installment or its
// description carries a marker.
func IsInstallmentRow(tx *domain.Transaction) bool {
	return tx.IsInstallment || domain.HasInstallmentMarker(tx.Description)
}

// IdentifyInstallmentGroups groups the installment rows of txs. Rows that are
// not installments are ignored. Groups are ordered by key.
func IdentifyInstallmentGroups(txs []*domain.Transaction) []Group {
	byKey := make(map[GroupKey][]*domain.Transaction)
	for _, tx := range txs {
		if tx == nil || !IsInstallmentRow(tx) {
			continue
		}
		key := GroupKey{
			UserID:          tx.UserID,
			BaseDescription: StripInstallmentSuffix(tx.Description),
			CategoryID:      tx.CategoryID,
			PaymentMethod:   tx.PaymentMethod,
		}
		byKey[key] = append(byKey[key], tx)
	}

	groups := make([]Group, 0, len(byKey))
	for key, rows := range byKey {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			if a.Date != b.Date {
				return a.Date.Before(b.Date)
			}
			if a.InstallmentNumber != b.InstallmentNumber {
				return a.InstallmentNumber < b.InstallmentNumber
			}
			return a.TransactionID < b.TransactionID
		})
		groups = append(groups, Group{Key: key, Transactions: rows})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.BaseDescription != b.BaseDescription {
			return a.BaseDescription < b.BaseDescription
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.PaymentMethod < b.PaymentMethod
	})
	return groups
}
