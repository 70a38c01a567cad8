package domain

import "time"

type Rental struct {
	ID            string    `json:"id"`
	UserName      string    `json:"userName"`
	UserEmail     string    `json:"userEmail"`
	RegNumber     string    `json:"regNumber"`
	BikeID        int64     `json:"bikeId"`
	BikeName      string    `json:"bikeName"`
	Hours         int       `json:"hours"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Provider      string    `json:"provider"`
	Mobile        string    `json:"mobile"`
	Paid          bool      `json:"paid"`
	TransactionID string    `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RentalEnd computes the end of a rental that starts at start and lasts hours.
func RentalEnd(start time.Time, hours int) time.Time {
	return start.Add(time.Duration(hours) * time.Hour)
}

// MaxRentalHours caps a single rental.
const MaxRentalHours = 24

// RentRequest is the input of the rental workflow.
type RentRequest struct {
	BikeID    int64  `json:"bikeId"`
	Hours     int    `json:"hours"`
	RegNumber string `json:"regNumber"`
	Provider  string `json:"provider"`
	Mobile    string `json:"mobile"`
	PIN       string `json:"pin"`
}

// RentalReceipt is returned once a rental has been committed.
type RentalReceipt struct {
	RentalID      string    `json:"rentalId"`
	TransactionID string    `json:"transactionId"`
	BikeID        int64     `json:"bikeId"`
	Hours         int       `json:"hours"`
	Amount        float64   `json:"amount"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
}

// RentalState names a step of the rental workflow.
type RentalState string

const (
	StateValidating RentalState = "validating"
	StateCharging   RentalState = "charging"
	StatePersisting RentalState = "persisting"
	StateCommitted  RentalState = "committed"
	StateRejected   RentalState = "rejected"
)
