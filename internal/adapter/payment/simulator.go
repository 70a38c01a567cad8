// Package payment simulates a mobile-money gateway.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"
)

const (
	DefaultDelay = 1200 * time.Millisecond
	// DeclinePIN is always refused by the simulator.
	DeclinePIN = "0000"
)

type TransactionIDs interface {
	NextTransactionID(taken func(id string) bool) (string, error)
}

type Simulator struct {
	records *repository.Records
	ids     TransactionIDs
	logger  ports.LoggerPort
	delay   time.Duration
	now     func() time.Time
}

func NewSimulator(records *repository.Records, ids TransactionIDs, logger ports.LoggerPort, delay time.Duration) *Simulator {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Simulator{
		records: records,
		ids:     ids,
		logger:  logger,
		delay:   delay,
		now:     time.Now,
	}
}

// Charge checks the request and starts settlement. Malformed input fails here
// with domain.ErrInvalidInput and no task is started. The returned task
// outlives ctx; only Cancel stops it.
func (s *Simulator) Charge(ctx context.Context, req domain.ChargeRequest) (*ports.ChargeTask, error) {
	if req.Provider == "" || req.Mobile == "" || req.PIN == "" {
		return nil, fmt.Errorf("%w: missing payment details", domain.ErrInvalidInput)
	}
	if !domain.ValidPIN(req.PIN) {
		return nil, fmt.Errorf("%w: invalid PIN format", domain.ErrInvalidInput)
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := ports.NewChargeTask(cancel)
	go s.settle(taskCtx, task, req)
	return task, nil
}

func (s *Simulator) settle(ctx context.Context, task *ports.ChargeTask, req domain.ChargeRequest) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		task.Resolve(nil, ctx.Err())
		return
	case <-timer.C:
	}

	if req.PIN == DeclinePIN {
		s.logger.Info("Payment declined", map[string]interface{}{
			"provider":   req.Provider,
			"user_email": req.UserEmail,
		})
		task.Resolve(nil, domain.ErrPaymentDeclined)
		return
	}

	tx, err := s.persist(ctx, req)
	if err != nil {
		s.logger.Error("Failed to record transaction", map[string]interface{}{
			"error":      err.Error(),
			"user_email": req.UserEmail,
		})
		task.Resolve(nil, err)
		return
	}

	s.logger.Info("Payment settled", map[string]interface{}{
		"transaction_id": tx.ID,
		"amount":         tx.Amount,
		"user_email":     tx.UserEmail,
	})
	task.Resolve(tx, nil)
}

func (s *Simulator) persist(ctx context.Context, req domain.ChargeRequest) (*domain.Transaction, error) {
	var tx domain.Transaction
	scope := repository.Scope([]domain.Collection{domain.Transactions})
	err := s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		txs, err := u.Transactions()
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(txs))
		for _, t := range txs {
			taken[t.ID] = struct{}{}
		}

		id, err := s.ids.NextTransactionID(func(id string) bool {
			_, ok := taken[id]
			return ok
		})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		tx = domain.Transaction{
			ID:        id,
			Provider:  req.Provider,
			Mobile:    domain.StripSpaces(req.Mobile),
			Amount:    req.Amount,
			UserEmail: req.UserEmail,
			Status:    domain.TransactionSuccess,
			Timestamp: now,
			CreatedAt: now,
		}
		return u.SetTransactions(append(txs, tx))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	return &tx, nil
}
