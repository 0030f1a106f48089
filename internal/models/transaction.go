package models

import "time"

// Transaction is the idempotency record of one business operation. It is
// written in the same storage transaction as the balance change it guards,
// so replaying an operation with the same key is rejected as a whole.
type Transaction struct {
	ID             string
	IdempotencyKey string
	Kind           string
	Reference      string
	CreatedAt      time.Time
}

// IdempotencyKey builds the key used for escrow and wallet operations.
func IdempotencyKey(kind, reference string) string {
	return kind + ":" + reference
}
