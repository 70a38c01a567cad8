package ports

import (
	"context"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
)

type BikeService interface {
	ListBikes(ctx context.Context) ([]domain.Bike, error)
	GetBikeByID(ctx context.Context, bikeID int64) (*domain.Bike, error)
	CreateBike(ctx context.Context, bike *domain.Bike) (*domain.Bike, error)
	UpdateBike(ctx context.Context, bikeID int64, patch domain.BikePatch) (*domain.Bike, error)
	ToggleAvailability(ctx context.Context, bikeID int64) (*domain.Bike, error)
	DeleteBike(ctx context.Context, bikeID int64) error
}

type RentalService interface {
	Rent(ctx context.Context, sessionID string, req domain.RentRequest) (*domain.RentalReceipt, error)
	ListRentals(ctx context.Context) ([]domain.Rental, error)
	ListRentalsByUser(ctx context.Context, email string) ([]domain.Rental, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
}
