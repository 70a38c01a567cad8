package domain

import "time"

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
	// TransactionReversed marks a charge whose rental could not be committed.
	TransactionReversed TransactionStatus = "reversed"
)

type Transaction struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider"`
	Mobile    string            `json:"mobile"`
	Amount    float64           `json:"amount"`
	UserEmail string            `json:"userEmail"`
	Status    TransactionStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ChargeRequest carries the mobile-money details for one charge attempt.
type ChargeRequest struct {
	Provider  string
	Mobile    string
	PIN       string
	Amount    float64
	UserEmail string
}
