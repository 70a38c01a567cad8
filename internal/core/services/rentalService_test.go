package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
)

func TestRentEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	receipt, err := h.rentals.Rent(ctx, sid, rentRequest(2, 3, "1234"))
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}
	if receipt.Amount != 240 {
		t.Errorf("amount = %v, want 240", receipt.Amount)
	}

	txs, _ := h.records.Transactions(ctx)
	if len(txs) != 1 {
		t.Fatalf("got %d transactions", len(txs))
	}
	tx := txs[0]
	if tx.ID != receipt.TransactionID || tx.Status != domain.TransactionSuccess || tx.Amount != 240 || tx.UserEmail != "a@b.com" {
		t.Errorf("transaction = %+v", tx)
	}

	rentals, _ := h.records.Rentals(ctx)
	if len(rentals) != 1 {
		t.Fatalf("got %d rentals", len(rentals))
	}
	r := rentals[0]
	if r.ID != receipt.RentalID || r.TransactionID != tx.ID {
		t.Errorf("rental ids = %s/%s, receipt %+v", r.ID, r.TransactionID, receipt)
	}
	if r.Hours != 3 || !r.EndDate.Equal(r.StartDate.Add(3*time.Hour)) {
		t.Errorf("rental window = %v..%v (%dh)", r.StartDate, r.EndDate, r.Hours)
	}
	if !r.Paid || r.BikeName != "Road Bike Speed" || r.UserEmail != "a@b.com" {
		t.Errorf("rental = %+v", r)
	}
	if !tx.CreatedAt.Before(r.CreatedAt) {
		t.Errorf("transaction %v not created before rental %v", tx.CreatedAt, r.CreatedAt)
	}

	if h.bike(t, 2).Available {
		t.Error("bike 2 still available")
	}
	if !h.bike(t, 1).Available {
		t.Error("bike 1 should be untouched")
	}

	if got := h.user(t, "a@b.com").Rentals; got != 1 {
		t.Errorf("user rentals = %d, want 1", got)
	}
	session, _ := h.records.SessionUser(ctx, sid)
	if session == nil || session.Rentals != 1 {
		t.Errorf("session projection = %+v", session)
	}

	if len(h.publisher.events) != 1 || h.publisher.events[0] != RentalConfirmedEvent+":"+r.ID {
		t.Errorf("published = %v", h.publisher.events)
	}
	if h.metrics.rentals[outcomeCommitted] != 1 {
		t.Errorf("metrics = %v", h.metrics.rentals)
	}

	// stays rented until toggled
	if _, err := h.rentals.Rent(ctx, sid, rentRequest(2, 1, "1234")); !errors.Is(err, domain.ErrBikeUnavailable) {
		t.Errorf("second rent: %v", err)
	}
	if _, err := h.bikes.ToggleAvailability(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if !h.bike(t, 2).Available {
		t.Error("toggle did not release the bike")
	}
}

func TestRentNormalizesRegNumber(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	req := rentRequest(1, 1, "1234")
	req.RegNumber = "eng-219-036/2025"
	if _, err := h.rentals.Rent(ctx, sid, req); err != nil {
		t.Fatal(err)
	}
	rentals, _ := h.records.Rentals(ctx)
	if rentals[0].RegNumber != "ENG-219-036/2025" {
		t.Errorf("regNumber = %s", rentals[0].RegNumber)
	}
}

func TestRentDeclined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	_, err := h.rentals.Rent(ctx, sid, rentRequest(2, 3, "0000"))
	if !errors.Is(err, domain.ErrPaymentDeclined) {
		t.Fatalf("expected decline, got %v", err)
	}
	if rentals, _ := h.records.Rentals(ctx); len(rentals) != 0 {
		t.Errorf("rentals = %+v", rentals)
	}
	if txs, _ := h.records.Transactions(ctx); len(txs) != 0 {
		t.Errorf("transactions = %+v", txs)
	}
	if !h.bike(t, 2).Available {
		t.Error("declined rental flipped the bike")
	}
	if h.user(t, "a@b.com").Rentals != 0 {
		t.Error("declined rental counted")
	}
	if h.metrics.rentals[outcomeDeclined] != 1 {
		t.Errorf("metrics = %v", h.metrics.rentals)
	}

	// the hold is released after a decline
	if _, err := h.rentals.Rent(ctx, sid, rentRequest(2, 3, "1234")); err != nil {
		t.Errorf("retry after decline: %v", err)
	}
}

func TestRentValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")
	if _, err := h.bikes.ToggleAvailability(ctx, 3); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		session string
		mutate  func(r *domain.RentRequest)
		wantErr error
		field   string
	}{
		{name: "not logged in", session: "missing", wantErr: domain.ErrNotAuthenticated},
		{name: "unknown bike", mutate: func(r *domain.RentRequest) { r.BikeID = 99 }, wantErr: domain.ErrBikeNotFound},
		{name: "unavailable bike", mutate: func(r *domain.RentRequest) { r.BikeID = 3 }, wantErr: domain.ErrBikeUnavailable},
		{name: "zero hours", mutate: func(r *domain.RentRequest) { r.Hours = 0 }, field: "hours"},
		{name: "too many hours", mutate: func(r *domain.RentRequest) { r.Hours = 25 }, field: "hours"},
		{name: "reg without dashes", mutate: func(r *domain.RentRequest) { r.RegNumber = "ENG219036/2025" }, field: "regNumber"},
		{name: "empty reg", mutate: func(r *domain.RentRequest) { r.RegNumber = "" }, field: "regNumber"},
		{name: "no provider", mutate: func(r *domain.RentRequest) { r.Provider = " " }, field: "provider"},
		{name: "short mobile", mutate: func(r *domain.RentRequest) { r.Mobile = "07123" }, field: "mobile"},
		{name: "short pin", mutate: func(r *domain.RentRequest) { r.PIN = "12" }, field: "pin"},
		{name: "alpha pin", mutate: func(r *domain.RentRequest) { r.PIN = "12ab" }, field: "pin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := rentRequest(1, 2, "1234")
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			session := sid
			if tt.session != "" {
				session = tt.session
			}

			_, err := h.rentals.Rent(ctx, session, req)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.field != "" {
				var ve *domain.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.field {
					t.Fatalf("expected validation error on %s, got %v", tt.field, err)
				}
			}
		})
	}

	if h.gateway.calls != 0 {
		t.Errorf("gateway called %d times for invalid input", h.gateway.calls)
	}
	if txs, _ := h.records.Transactions(ctx); len(txs) != 0 {
		t.Errorf("transactions = %+v", txs)
	}
	if !h.bike(t, 1).Available {
		t.Error("bike 1 flipped by invalid attempts")
	}
}

func TestRentMobileWithSeparators(t *testing.T) {
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")
	req := rentRequest(1, 1, "1234")
	req.Mobile = "0712 345-678"
	if _, err := h.rentals.Rent(context.Background(), sid, req); err != nil {
		t.Fatalf("Rent: %v", err)
	}
}

func TestConcurrentRentalsOneWinner(t *testing.T) {
	tests := []struct {
		name string
		opts []harnessOption
	}{
		{"with bike hold", []harnessOption{withPaymentDelay(5 * time.Millisecond)}},
		// the commit re-check alone must still pick a single winner
		{"commit re-check only", []harnessOption{withPaymentDelay(5 * time.Millisecond), withoutLocker()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, tt.opts...)

			const riders = 8
			sessions := make([]string, riders)
			for i := range sessions {
				sessions[i] = h.signup(t, string(rune('a'+i))+"@b.com")
			}

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				wins    int
				winner  *domain.RentalReceipt
				otherEr []error
			)
			start := make(chan struct{})
			for _, sid := range sessions {
				wg.Add(1)
				go func(sid string) {
					defer wg.Done()
					<-start
					receipt, err := h.rentals.Rent(ctx, sid, rentRequest(1, 2, "1234"))
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						wins++
						winner = receipt
						return
					}
					otherEr = append(otherEr, err)
				}(sid)
			}
			close(start)
			wg.Wait()

			if wins != 1 {
				t.Fatalf("got %d winners, want 1", wins)
			}
			for _, err := range otherEr {
				if !errors.Is(err, domain.ErrBikeUnavailable) {
					t.Errorf("loser error = %v", err)
				}
			}

			rentals, _ := h.records.Rentals(ctx)
			if len(rentals) != 1 || rentals[0].ID != winner.RentalID {
				t.Fatalf("rentals = %+v", rentals)
			}
			txs, _ := h.records.Transactions(ctx)
			success := 0
			for _, tx := range txs {
				switch tx.Status {
				case domain.TransactionSuccess:
					success++
					if tx.ID != winner.TransactionID {
						t.Errorf("unreferenced successful transaction %s", tx.ID)
					}
				case domain.TransactionReversed:
				default:
					t.Errorf("unexpected status %s", tx.Status)
				}
			}
			if success != 1 {
				t.Errorf("got %d successful transactions, want 1", success)
			}
			if h.bike(t, 1).Available {
				t.Error("bike still available")
			}
		})
	}
}

func TestRentCompensatesWhenCommitFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	// the bike disappears while the charge is settling
	simulator := h.gateway.PaymentGateway
	h.rentals.gateway = gatewayFunc(func(ctx context.Context, req domain.ChargeRequest) (*ports.ChargeTask, error) {
		task, err := simulator.Charge(ctx, req)
		if err != nil {
			return nil, err
		}
		if _, err := task.Result(); err != nil {
			return nil, err
		}
		if err := h.bikes.DeleteBike(ctx, 2); err != nil {
			t.Errorf("delete bike: %v", err)
		}
		return task, nil
	})

	_, err := h.rentals.Rent(ctx, sid, rentRequest(2, 1, "1234"))
	if !errors.Is(err, domain.ErrBikeNotFound) {
		t.Fatalf("expected ErrBikeNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrPersistenceInconsistency) {
		t.Fatal("compensation should have succeeded")
	}

	txs, _ := h.records.Transactions(ctx)
	if len(txs) != 1 || txs[0].Status != domain.TransactionReversed {
		t.Fatalf("transactions = %+v", txs)
	}
	if rentals, _ := h.records.Rentals(ctx); len(rentals) != 0 {
		t.Errorf("rentals = %+v", rentals)
	}
	if h.user(t, "a@b.com").Rentals != 0 {
		t.Error("user counted a failed rental")
	}
}

func TestRentReportsInconsistencyWhenCompensationFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	// settles with a transaction the store never saw
	h.rentals.gateway = gatewayFunc(func(context.Context, domain.ChargeRequest) (*ports.ChargeTask, error) {
		task := ports.NewChargeTask(nil)
		task.Resolve(&domain.Transaction{ID: "TXN123456", Status: domain.TransactionSuccess, Amount: 80}, nil)
		return task, nil
	})

	_, err := h.rentals.Rent(ctx, sid, rentRequest(2, 1, "1234"))
	if !errors.Is(err, domain.ErrPersistenceInconsistency) {
		t.Fatalf("expected inconsistency, got %v", err)
	}
	var ie *domain.InconsistencyError
	if !errors.As(err, &ie) || ie.TransactionID != "TXN123456" {
		t.Errorf("error = %#v", err)
	}
	if h.metrics.rentals[outcomeInconsistent] != 1 {
		t.Errorf("metrics = %v", h.metrics.rentals)
	}
	if !h.bike(t, 2).Available {
		t.Error("bike flipped without a rental")
	}
}

func TestRentCancelledWhileCharging(t *testing.T) {
	h := newHarness(t, withPaymentDelay(time.Hour))
	sid := h.signup(t, "a@b.com")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.rentals.Rent(ctx, sid, rentRequest(2, 1, "1234"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if txs, _ := h.records.Transactions(context.Background()); len(txs) != 0 {
		t.Errorf("cancelled charge left transactions: %+v", txs)
	}
	if !h.bike(t, 2).Available {
		t.Error("bike flipped")
	}
}

func TestDeleteUserCascadesRentals(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.signup(t, "a@b.com")
	b := h.signup(t, "c@d.com")
	if _, err := h.rentals.Rent(ctx, a, rentRequest(1, 1, "1234")); err != nil {
		t.Fatal(err)
	}
	if _, err := h.rentals.Rent(ctx, b, rentRequest(2, 1, "1234")); err != nil {
		t.Fatal(err)
	}

	if err := h.users.DeleteUser(ctx, "a@b.com"); err != nil {
		t.Fatal(err)
	}
	rentals, _ := h.rentals.ListRentals(ctx)
	if len(rentals) != 1 || rentals[0].UserEmail != "c@d.com" {
		t.Errorf("rentals = %+v", rentals)
	}
	txs, _ := h.rentals.ListTransactions(ctx)
	if len(txs) != 2 {
		t.Errorf("transactions should survive, got %d", len(txs))
	}
	mine, _ := h.rentals.ListRentalsByUser(ctx, "c@d.com")
	if len(mine) != 1 {
		t.Errorf("ListRentalsByUser = %+v", mine)
	}
	if err := h.users.DeleteUser(ctx, "a@b.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestRentRefusesSessionOfDeletedUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "gone@b.com")
	if err := h.users.DeleteUser(ctx, "gone@b.com"); err != nil {
		t.Fatal(err)
	}

	_, err := h.rentals.Rent(ctx, sid, rentRequest(2, 1, "1234"))
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if h.gateway.calls != 0 {
		t.Errorf("gateway called %d times for a deleted user", h.gateway.calls)
	}
	if txs, _ := h.records.Transactions(ctx); len(txs) != 0 {
		t.Errorf("transactions = %+v", txs)
	}
	if !h.bike(t, 2).Available {
		t.Error("bike flipped")
	}
}

func TestRentalMarkersAdvance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")
	before, _ := h.records.Markers(ctx)

	if _, err := h.rentals.Rent(ctx, sid, rentRequest(1, 1, "1234")); err != nil {
		t.Fatal(err)
	}
	after, _ := h.records.Markers(ctx)
	for _, c := range []domain.Collection{domain.Bikes, domain.Rentals} {
		if after[c] <= before[c] {
			t.Errorf("%s marker did not advance: %d -> %d", c, before[c], after[c])
		}
	}
	if after[domain.Messages] != before[domain.Messages] {
		t.Error("messages marker moved")
	}
}
