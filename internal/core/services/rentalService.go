package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"

	"github.com/go-playground/validator/v10"
)

const RentalConfirmedEvent = "rental.confirmed"

// Outcomes reported to metrics.
const (
	outcomeCommitted    = "committed"
	outcomeRejected     = "rejected"
	outcomeDeclined     = "declined"
	outcomeInconsistent = "inconsistent"
)

type RentalService struct {
	records   *repository.Records
	gateway   ports.PaymentGateway
	locker    ports.BikeLocker
	ids       *IDAllocator
	logger    ports.LoggerPort
	validate  *validator.Validate
	cache     ports.CachePort
	metrics   ports.MetricsPort
	publisher ports.EventPublisher
	now       func() time.Time
}

func NewRentalService(
	records *repository.Records,
	gateway ports.PaymentGateway,
	locker ports.BikeLocker,
	ids *IDAllocator,
	logger ports.LoggerPort,
	validate *validator.Validate,
	cache ports.CachePort,
	metrics ports.MetricsPort,
	publisher ports.EventPublisher,
) *RentalService {
	return &RentalService{
		records:   records,
		gateway:   gateway,
		locker:    locker,
		ids:       ids,
		logger:    logger,
		validate:  validate,
		cache:     cache,
		metrics:   metrics,
		publisher: publisher,
		now:       time.Now,
	}
}

// Rent runs one rental attempt for the user of sessionID:
// validating, charging, persisting and finally committed. Any failure leaves
// the attempt rejected. Validation failures and declines write nothing.
func (s *RentalService) Rent(ctx context.Context, sessionID string, req domain.RentRequest) (*domain.RentalReceipt, error) {
	s.enter(domain.StateValidating, req.BikeID, nil)

	user, bike, err := s.check(ctx, sessionID, &req)
	if err != nil {
		return nil, s.reject(req.BikeID, outcomeRejected, err)
	}

	release, err := s.locker.Acquire(ctx, bike.ID)
	if err != nil {
		if errors.Is(err, domain.ErrBikeUnavailable) {
			err = fmt.Errorf("bike %d is being rented: %w", bike.ID, domain.ErrBikeUnavailable)
		} else {
			err = fmt.Errorf("failed to hold bike: %w", err)
		}
		return nil, s.reject(bike.ID, outcomeRejected, err)
	}
	defer release()

	s.enter(domain.StateCharging, bike.ID, nil)
	amount := bike.RentalCost(req.Hours)
	tx, err := s.charge(ctx, domain.ChargeRequest{
		Provider:  req.Provider,
		Mobile:    req.Mobile,
		PIN:       req.PIN,
		Amount:    amount,
		UserEmail: user.Email,
	})
	if err != nil {
		outcome := outcomeRejected
		if errors.Is(err, domain.ErrPaymentDeclined) {
			outcome = outcomeDeclined
		}
		return nil, s.reject(bike.ID, outcome, err)
	}

	s.enter(domain.StatePersisting, bike.ID, map[string]interface{}{
		"transaction_id": tx.ID,
	})
	// the charge is captured; a client hanging up must not abort the commit
	ctx = context.WithoutCancel(ctx)
	rental, err := s.commit(ctx, sessionID, user.Email, bike.ID, req, tx)
	if err != nil {
		if cerr := s.compensate(ctx, tx, err); cerr != nil {
			return nil, s.reject(bike.ID, outcomeRejected, cerr)
		}
		return nil, s.reject(bike.ID, outcomeRejected, err)
	}

	if err := s.cache.Delete(bikeCacheKey(bike.ID)); err != nil {
		s.logger.Warn("Failed to invalidate bike cache", map[string]interface{}{
			"error":   err.Error(),
			"bike_id": bike.ID,
		})
	}

	receipt := &domain.RentalReceipt{
		RentalID:      rental.ID,
		TransactionID: tx.ID,
		BikeID:        bike.ID,
		Hours:         rental.Hours,
		Amount:        tx.Amount,
		StartDate:     rental.StartDate,
		EndDate:       rental.EndDate,
	}
	s.publish(ctx, rental, receipt)

	s.metrics.RecordRental(outcomeCommitted)
	s.enter(domain.StateCommitted, bike.ID, map[string]interface{}{
		"rental_id":      rental.ID,
		"transaction_id": tx.ID,
		"user_email":     user.Email,
	})
	return receipt, nil
}

// check validates the request against the session and the catalog. It
// normalizes the registration number in place.
func (s *RentalService) check(ctx context.Context, sessionID string, req *domain.RentRequest) (*domain.User, *domain.Bike, error) {
	user, err := s.records.SessionUser(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, domain.ErrNotAuthenticated
	}
	// A session can outlive its account; refuse it before anything is charged.
	users, err := s.records.Users(ctx)
	if err != nil {
		return nil, nil, err
	}
	if findUser(users, user.Email) == -1 {
		return nil, nil, domain.ErrNotAuthenticated
	}

	bikes, err := s.records.Bikes(ctx)
	if err != nil {
		return nil, nil, err
	}
	idx := findBike(bikes, req.BikeID)
	if idx == -1 {
		return nil, nil, domain.ErrBikeNotFound
	}
	bike := bikes[idx]
	if !bike.Available {
		return nil, nil, domain.ErrBikeUnavailable
	}

	if err := s.validate.Var(req.Hours, fmt.Sprintf("min=1,max=%d", domain.MaxRentalHours)); err != nil {
		return nil, nil, domain.NewValidationError("hours", fmt.Sprintf("rental hours must be between 1 and %d", domain.MaxRentalHours))
	}
	req.RegNumber = domain.NormalizeRegNumber(req.RegNumber)
	if !domain.ValidRegNumber(req.RegNumber) {
		return nil, nil, domain.NewValidationError("regNumber", "registration number must match format e.g. ENG-219-036/2025")
	}
	if strings.TrimSpace(req.Provider) == "" {
		return nil, nil, domain.NewValidationError("provider", "please select a provider")
	}
	req.Mobile = strings.TrimSpace(req.Mobile)
	if !domain.ValidMobile(req.Mobile) {
		return nil, nil, domain.NewValidationError("mobile", "invalid mobile number")
	}
	req.PIN = strings.TrimSpace(req.PIN)
	if !domain.ValidPIN(req.PIN) {
		return nil, nil, domain.NewValidationError("pin", "PIN must be 4-6 digits")
	}
	return user, &bike, nil
}

// charge waits for settlement. When ctx ends first the charge is cancelled; a
// charge that had already settled is reversed.
func (s *RentalService) charge(ctx context.Context, req domain.ChargeRequest) (*domain.Transaction, error) {
	start := time.Now()
	task, err := s.gateway.Charge(ctx, req)
	if err != nil {
		return nil, err
	}

	tx, err := task.Await(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		task.Cancel()
		if late, lerr := task.Result(); lerr == nil {
			if rerr := s.reverse(ctx, late.ID); rerr != nil {
				return nil, &domain.InconsistencyError{TransactionID: late.ID, Err: rerr}
			}
		}
	}

	switch {
	case err == nil:
		s.metrics.ObservePayment("success", time.Since(start))
	case errors.Is(err, domain.ErrPaymentDeclined):
		s.metrics.ObservePayment("declined", time.Since(start))
	default:
		s.metrics.ObservePayment("error", time.Since(start))
	}
	return tx, err
}

// commit writes the rental, the bike flip and the user counter in one unit of
// work. Availability and the transaction are checked again inside it.
func (s *RentalService) commit(
	ctx context.Context,
	sessionID, email string,
	bikeID int64,
	req domain.RentRequest,
	tx *domain.Transaction,
) (*domain.Rental, error) {
	scope := repository.Scope(
		[]domain.Collection{domain.Transactions, domain.Bikes, domain.Rentals, domain.Users},
		domain.SessionKey(domain.CurrentUserKey, sessionID),
	)

	var rental domain.Rental
	err := s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		txs, err := u.Transactions()
		if err != nil {
			return err
		}
		if !settled(txs, tx.ID) {
			return fmt.Errorf("transaction %s is not recorded as successful", tx.ID)
		}

		bikes, err := u.Bikes()
		if err != nil {
			return err
		}
		bi := findBike(bikes, bikeID)
		if bi == -1 {
			return domain.ErrBikeNotFound
		}
		if !bikes[bi].Available {
			return domain.ErrBikeUnavailable
		}

		users, err := u.Users()
		if err != nil {
			return err
		}
		ui := findUser(users, email)
		if ui == -1 {
			return fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
		}

		created := s.now().UTC()
		if !created.After(tx.CreatedAt) {
			created = tx.CreatedAt.Add(time.Millisecond)
		}
		rental = domain.Rental{
			ID:            s.ids.NextRentalID(),
			UserName:      users[ui].Fullname,
			UserEmail:     users[ui].Email,
			RegNumber:     req.RegNumber,
			BikeID:        bikes[bi].ID,
			BikeName:      bikes[bi].Name,
			Hours:         req.Hours,
			StartDate:     created,
			EndDate:       domain.RentalEnd(created, req.Hours),
			Provider:      req.Provider,
			Mobile:        req.Mobile,
			Paid:          true,
			TransactionID: tx.ID,
			CreatedAt:     created,
		}

		rentals, err := u.Rentals()
		if err != nil {
			return err
		}
		if err := u.SetRentals(append(rentals, rental)); err != nil {
			return err
		}

		bikes[bi].Available = false
		bikes[bi].UpdatedAt = created
		if err := u.SetBikes(bikes); err != nil {
			return err
		}

		users[ui].Rentals++
		if err := u.SetUsers(users); err != nil {
			return err
		}
		current, err := u.SessionUser(sessionID)
		if err != nil {
			return err
		}
		if current != nil {
			return u.SetSessionUser(sessionID, users[ui])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

// compensate reverses the transaction of a failed commit. It returns an
// InconsistencyError when the reversal itself fails.
func (s *RentalService) compensate(ctx context.Context, tx *domain.Transaction, cause error) error {
	s.logger.Warn("Rental commit failed, reversing transaction", map[string]interface{}{
		"error":          cause.Error(),
		"transaction_id": tx.ID,
	})
	if err := s.reverse(ctx, tx.ID); err != nil {
		s.logger.Error("Failed to reverse transaction", map[string]interface{}{
			"error":          err.Error(),
			"cause":          cause.Error(),
			"transaction_id": tx.ID,
		})
		return &domain.InconsistencyError{TransactionID: tx.ID, Err: errors.Join(cause, err)}
	}
	return nil
}

func (s *RentalService) reverse(ctx context.Context, txID string) error {
	ctx = context.WithoutCancel(ctx)
	return s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Transactions}), func(u *repository.UnitOfWork) error {
		txs, err := u.Transactions()
		if err != nil {
			return err
		}
		for i := range txs {
			if txs[i].ID == txID {
				txs[i].Status = domain.TransactionReversed
				return u.SetTransactions(txs)
			}
		}
		return fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	})
}

func (s *RentalService) publish(ctx context.Context, rental *domain.Rental, receipt *domain.RentalReceipt) {
	if s.publisher == nil {
		return
	}
	event := map[string]interface{}{
		"rental":  rental,
		"receipt": receipt,
	}
	if err := s.publisher.Publish(ctx, RentalConfirmedEvent, rental.ID, event); err != nil {
		s.logger.Warn("Failed to publish rental event", map[string]interface{}{
			"error":     err.Error(),
			"rental_id": rental.ID,
		})
	}
}

func (s *RentalService) enter(state domain.RentalState, bikeID int64, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["state"] = string(state)
	fields["bike_id"] = bikeID
	s.logger.Debug("Rental state changed", fields)
}

func (s *RentalService) reject(bikeID int64, outcome string, err error) error {
	fields := map[string]interface{}{
		"error": err.Error(),
	}
	var inconsistent *domain.InconsistencyError
	if errors.As(err, &inconsistent) {
		outcome = outcomeInconsistent
		fields["transaction_id"] = inconsistent.TransactionID
		s.logger.Error("Rental left a captured payment without a rental", fields)
	}
	s.metrics.RecordRental(outcome)
	s.enter(domain.StateRejected, bikeID, fields)
	return err
}

func (s *RentalService) ListRentals(ctx context.Context) ([]domain.Rental, error) {
	rentals, err := s.records.Rentals(ctx)
	if err != nil {
		s.logger.Error("Failed to get rentals", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	return rentals, nil
}

func (s *RentalService) ListRentalsByUser(ctx context.Context, email string) ([]domain.Rental, error) {
	rentals, err := s.ListRentals(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]domain.Rental, 0)
	for _, r := range rentals {
		if r.UserEmail == email {
			mine = append(mine, r)
		}
	}
	return mine, nil
}

func (s *RentalService) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := s.records.Transactions(ctx)
	if err != nil {
		s.logger.Error("Failed to get transactions", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	return txs, nil
}

func findBike(bikes []domain.Bike, id int64) int {
	for i := range bikes {
		if bikes[i].ID == id {
			return i
		}
	}
	return -1
}

func findUser(users []domain.User, email string) int {
	for i := range users {
		if users[i].Email == email {
			return i
		}
	}
	return -1
}

func settled(txs []domain.Transaction, id string) bool {
	for _, t := range txs {
		if t.ID == id {
			return t.Status == domain.TransactionSuccess
		}
	}
	return false
}
