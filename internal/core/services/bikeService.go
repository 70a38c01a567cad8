package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"

	"github.com/go-playground/validator/v10"
)

const bikeCacheTTL = 15 * time.Minute

type BikeService struct {
	records  *repository.Records
	ids      *IDAllocator
	logger   ports.LoggerPort
	validate *validator.Validate
	cache    ports.CachePort
	now      func() time.Time
}

func NewBikeService(
	records *repository.Records,
	ids *IDAllocator,
	logger ports.LoggerPort,
	validate *validator.Validate,
	cache ports.CachePort,
) *BikeService {
	return &BikeService{
		records:  records,
		ids:      ids,
		logger:   logger,
		validate: validate,
		cache:    cache,
		now:      time.Now,
	}
}

// SampleBikes is the catalog written on first start.
func SampleBikes() []domain.Bike {
	return []domain.Bike{
		{ID: 1, Name: "Mountain Bike Pro", Type: domain.Mountain, Price: 50, Image: "mountain-bike-1.jpeg", Available: true, Description: "Perfect for off-road trails"},
		{ID: 2, Name: "Road Bike Speed", Type: domain.Road, Price: 80, Image: "road-bike-1.jpeg", Available: true, Description: "Fast and lightweight for campus"},
		{ID: 3, Name: "Electric Bike Plus", Type: domain.EBike, Price: 150, Image: "electric-1.jpeg", Available: true, Description: "Eco-friendly with long battery"},
	}
}

// Seed writes the sample catalog when no bikes collection exists yet.
func (s *BikeService) Seed(ctx context.Context) error {
	seeded := false
	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Bikes}), func(u *repository.UnitOfWork) error {
		has, err := u.Has(domain.Bikes)
		if err != nil || has {
			return err
		}
		seeded = true
		return u.SetBikes(SampleBikes())
	})
	if err != nil {
		return fmt.Errorf("failed to seed bikes: %w", err)
	}
	if seeded {
		s.logger.Info("Seeded sample bikes", nil)
	}
	return nil
}

func (s *BikeService) ListBikes(ctx context.Context) ([]domain.Bike, error) {
	bikes, err := s.records.Bikes(ctx)
	if err != nil {
		s.logger.Error("Failed to get bikes", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	return bikes, nil
}

func (s *BikeService) CreateBike(ctx context.Context, bike *domain.Bike) (*domain.Bike, error) {
	if err := s.validate.Struct(bike); err != nil {
		s.logger.Error("Bike validation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if bike.Image == "" {
		bike.Image = domain.PlaceholderImage
	}

	var created domain.Bike
	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Bikes}), func(u *repository.UnitOfWork) error {
		bikes, err := u.Bikes()
		if err != nil {
			return err
		}
		ids := make([]int64, len(bikes))
		for i, b := range bikes {
			ids[i] = b.ID
		}
		created = *bike
		created.ID = s.ids.NextSequential(ids)
		created.CreatedAt = s.now().UTC()
		created.UpdatedAt = created.CreatedAt
		return u.SetBikes(append(bikes, created))
	})
	if err != nil {
		s.logger.Error("Failed to create bike", map[string]interface{}{
			"error": err.Error(),
			"name":  bike.Name,
		})
		return nil, err
	}

	s.logger.Info("Bike created successfully", map[string]interface{}{
		"bike_id": created.ID,
	})
	return &created, nil
}

func (s *BikeService) GetBikeByID(ctx context.Context, bikeID int64) (*domain.Bike, error) {
	cacheKey := bikeCacheKey(bikeID)
	cachedData, err := s.cache.Get(cacheKey)
	if err == nil {
		var cachedBike domain.Bike
		if err := json.Unmarshal(cachedData, &cachedBike); err == nil {
			s.logger.Debug("Bike found in cache", map[string]interface{}{
				"bike_id": bikeID,
			})
			return &cachedBike, nil
		}
	}

	bikes, err := s.records.Bikes(ctx)
	if err != nil {
		s.logger.Error("Failed to get bike", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
		return nil, err
	}
	idx := findBike(bikes, bikeID)
	if idx == -1 {
		return nil, domain.ErrBikeNotFound
	}
	bike := bikes[idx]

	bikeData, err := json.Marshal(bike)
	if err != nil {
		s.logger.Warn("Failed to marshal bike for cache", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
	} else if err := s.cache.Set(cacheKey, bikeData, bikeCacheTTL); err != nil {
		s.logger.Warn("Failed to cache bike", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
	}

	return &bike, nil
}

// UpdateBike applies the patch to the stored bike inside one unit of work, so
// fields the patch leaves nil (Available in particular) keep whatever was
// committed last. CreatedAt is kept.
func (s *BikeService) UpdateBike(ctx context.Context, bikeID int64, patch domain.BikePatch) (*domain.Bike, error) {
	updated, err := s.mutateChecked(ctx, bikeID, func(b *domain.Bike) error {
		patch.Apply(b)
		if b.Image == "" {
			b.Image = domain.PlaceholderImage
		}
		if err := s.validate.Struct(b); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update bike", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
		return nil, err
	}

	s.logger.Info("Bike updated successfully", map[string]interface{}{
		"bike_id": bikeID,
	})
	return updated, nil
}

// ToggleAvailability flips the available flag. It is the only way a rented
// bike becomes available again.
func (s *BikeService) ToggleAvailability(ctx context.Context, bikeID int64) (*domain.Bike, error) {
	updated, err := s.mutate(ctx, bikeID, func(b *domain.Bike) {
		b.Available = !b.Available
	})
	if err != nil {
		s.logger.Error("Failed to toggle bike", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
		return nil, err
	}

	s.logger.Info("Bike availability toggled", map[string]interface{}{
		"bike_id":   bikeID,
		"available": updated.Available,
	})
	return updated, nil
}

func (s *BikeService) DeleteBike(ctx context.Context, bikeID int64) error {
	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Bikes}), func(u *repository.UnitOfWork) error {
		bikes, err := u.Bikes()
		if err != nil {
			return err
		}
		idx := findBike(bikes, bikeID)
		if idx == -1 {
			return domain.ErrBikeNotFound
		}
		return u.SetBikes(append(bikes[:idx], bikes[idx+1:]...))
	})
	if err != nil {
		s.logger.Error("Failed to delete bike", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
		return err
	}

	s.invalidate(bikeID)
	s.logger.Info("Bike deleted successfully", map[string]interface{}{
		"bike_id": bikeID,
	})
	return nil
}

func (s *BikeService) mutate(ctx context.Context, bikeID int64, fn func(b *domain.Bike)) (*domain.Bike, error) {
	return s.mutateChecked(ctx, bikeID, func(b *domain.Bike) error {
		fn(b)
		return nil
	})
}

// mutateChecked edits the stored bike in place. An error from fn aborts the
// unit of work before anything is written.
func (s *BikeService) mutateChecked(ctx context.Context, bikeID int64, fn func(b *domain.Bike) error) (*domain.Bike, error) {
	var updated domain.Bike
	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Bikes}), func(u *repository.UnitOfWork) error {
		bikes, err := u.Bikes()
		if err != nil {
			return err
		}
		idx := findBike(bikes, bikeID)
		if idx == -1 {
			return domain.ErrBikeNotFound
		}
		if err := fn(&bikes[idx]); err != nil {
			return err
		}
		bikes[idx].ID = bikeID
		bikes[idx].UpdatedAt = s.now().UTC()
		updated = bikes[idx]
		return u.SetBikes(bikes)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(bikeID)
	return &updated, nil
}

func (s *BikeService) invalidate(bikeID int64) {
	if err := s.cache.Delete(bikeCacheKey(bikeID)); err != nil {
		s.logger.Warn("Failed to invalidate bike cache", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bikeID,
		})
	}
}

func bikeCacheKey(bikeID int64) string {
	return fmt.Sprintf("bike:%d", bikeID)
}
