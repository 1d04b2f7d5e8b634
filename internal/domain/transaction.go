package domain

import "time"

// Transaction models a single account movement. Positive amounts are income,
// negative amounts are expenses.
type Transaction struct {
	ID          string
	UserID      string
	Amount      float64
	Category    string
	Merchant    string
	Description string
	Timestamp   time.Time
}

// IsExpense reports whether the transaction is an outgoing payment.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}
