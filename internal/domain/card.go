package domain

// Card is a payment card's billing configuration.
// ClosingDay and DueDay are 0 when the user never configured them.
type Card struct {
	CardID     string
	UserID     string
	Name       string
	ClosingDay int
	DueDay     int
	IsActive   bool
}

// HasBillingConfig reports whether both billing days are set to a calendar day.
func (c Card) HasBillingConfig() bool {
	return validDay(c.ClosingDay) && validDay(c.DueDay)
}

func validDay(d int) bool {
	return d >= 1 && d <= 31
}
