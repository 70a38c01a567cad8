package domain

import (
	"time"
)

// swagger:model domain.Bike
type Bike struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Type        BikeType  `json:"type" validate:"required,max=50"`
	Price       float64   `json:"price" validate:"gte=0"` // per hour
	Image       string    `json:"image"`
	Available   bool      `json:"available"`
	Description string    `json:"description,omitempty" validate:"max=500"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

type BikeType string

const (
	Mountain BikeType = "Mountain"
	Road     BikeType = "Road"
	EBike    BikeType = "E-Bike"
)

// BikePatch carries an admin edit. Nil fields keep the stored value.
type BikePatch struct {
	Name        *string
	Type        *BikeType
	Price       *float64
	Image       *string
	Available   *bool
	Description *string
}

// Apply writes the set fields onto b.
func (p BikePatch) Apply(b *Bike) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Type != nil {
		b.Type = *p.Type
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.Image != nil {
		b.Image = *p.Image
	}
	if p.Available != nil {
		b.Available = *p.Available
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
}

const PlaceholderImage = "images/placeholder.png"

// RentalCost is the amount charged for renting the bike for the given hours.
func (b *Bike) RentalCost(hours int) float64 {
	return b.Price * float64(hours)
}
