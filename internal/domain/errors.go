package domain

import "errors"

var (
	// ErrCardNotFound is returned when a card lookup matches no row.
	ErrCardNotFound = errors.New("card not found")

	// ErrBillNotFound is returned when no bill exists for a (card, month, year) key.
	ErrBillNotFound = errors.New("bill not found")

	// ErrBillVersionConflict is returned by a store when a bill write carries a
	// version that no longer matches the stored row.
	ErrBillVersionConflict = errors.New("bill version conflict")
)
