package ports

import (
	"context"
	"sync"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
)

// PaymentGateway charges a mobile-money account. Charge validates its input
// synchronously; settlement happens on the returned task.
type PaymentGateway interface {
	Charge(ctx context.Context, req domain.ChargeRequest) (*ChargeTask, error)
}

// ChargeTask resolves exactly once with either a transaction or an error.
type ChargeTask struct {
	done   chan struct{}
	once   sync.Once
	tx     *domain.Transaction
	err    error
	cancel context.CancelFunc
}

func NewChargeTask(cancel context.CancelFunc) *ChargeTask {
	return &ChargeTask{done: make(chan struct{}), cancel: cancel}
}

// Resolve settles the task. Only the first call has an effect; it reports
// whether this call won.
func (t *ChargeTask) Resolve(tx *domain.Transaction, err error) bool {
	won := false
	t.once.Do(func() {
		t.tx, t.err = tx, err
		won = true
		close(t.done)
	})
	return won
}

func (t *ChargeTask) Done() <-chan struct{} { return t.done }

// Result blocks until the task is settled.
func (t *ChargeTask) Result() (*domain.Transaction, error) {
	<-t.done
	return t.tx, t.err
}

// Await waits for settlement or ctx. Giving up on ctx does not cancel the charge.
func (t *ChargeTask) Await(ctx context.Context) (*domain.Transaction, error) {
	select {
	case <-t.done:
		return t.tx, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops a charge that has not settled yet.
func (t *ChargeTask) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}
