package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/adapter/memory"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/payment"
	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

type fakeMetrics struct {
	mu       sync.Mutex
	rentals  map[string]int
	payments map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rentals: map[string]int{}, payments: map[string]int{}}
}

func (m *fakeMetrics) RecordMetrics(*gin.Context, time.Time) {}

func (m *fakeMetrics) RecordRental(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rentals[outcome]++
}

func (m *fakeMetrics) ObservePayment(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[outcome]++
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Compare(hash, p string) bool   { return hash == "h:"+p }

type stubTokens struct{}

func (stubTokens) IssueToken(p *domain.TokenPayload) (string, error) {
	return string(p.Role) + "|" + p.SessionID.String(), nil
}

func (stubTokens) VerifyToken(token string) (*domain.TokenPayload, error) {
	role, sid, _ := strings.Cut(token, "|")
	id, err := uuid.Parse(sid)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPayload{SessionID: id, Role: domain.UserRole(role)}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type gatewayFunc func(ctx context.Context, req domain.ChargeRequest) (*ports.ChargeTask, error)

func (f gatewayFunc) Charge(ctx context.Context, req domain.ChargeRequest) (*ports.ChargeTask, error) {
	return f(ctx, req)
}

// countingGateway wraps a gateway and counts Charge calls.
type countingGateway struct {
	ports.PaymentGateway
	mu    sync.Mutex
	calls int
}

func (g *countingGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*ports.ChargeTask, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.PaymentGateway.Charge(ctx, req)
}

type noLocker struct{}

func (noLocker) Acquire(context.Context, int64) (func(), error) { return func() {}, nil }

type harness struct {
	store     *memory.Store
	records   *repository.Records
	ids       *IDAllocator
	metrics   *fakeMetrics
	publisher *recordingPublisher
	gateway   *countingGateway
	bikes     *BikeService
	users     *UserService
	admins    *AdminService
	messages  *MessageService
	rentals   *RentalService
}

type harnessOption func(h *harness, locker *ports.BikeLocker, gateway *ports.PaymentGateway)

func withoutLocker() harnessOption {
	return func(_ *harness, locker *ports.BikeLocker, _ *ports.PaymentGateway) {
		*locker = noLocker{}
	}
}

func withGateway(g ports.PaymentGateway) harnessOption {
	return func(_ *harness, _ *ports.BikeLocker, gateway *ports.PaymentGateway) {
		*gateway = g
	}
}

func withPaymentDelay(d time.Duration) harnessOption {
	return func(h *harness, _ *ports.BikeLocker, gateway *ports.PaymentGateway) {
		*gateway = payment.NewSimulator(h.records, h.ids, nopLogger{}, d)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewStore(),
		ids:       NewIDAllocator(),
		metrics:   newFakeMetrics(),
		publisher: &recordingPublisher{},
	}
	h.records = repository.New(h.store, nil, nopLogger{})
	validate := validator.New()
	cache := memory.NewCache()

	var locker ports.BikeLocker = memory.NewLocker()
	var gateway ports.PaymentGateway = payment.NewSimulator(h.records, h.ids, nopLogger{}, 0)
	for _, opt := range opts {
		opt(h, &locker, &gateway)
	}
	h.gateway = &countingGateway{PaymentGateway: gateway}

	h.bikes = NewBikeService(h.records, h.ids, nopLogger{}, validate, cache)
	h.users = NewUserService(h.records, h.ids, plainHasher{}, stubTokens{}, nopLogger{}, validate)
	h.admins = NewAdminService(h.records, h.ids, plainHasher{}, stubTokens{}, nopLogger{}, validate)
	h.messages = NewMessageService(h.records, h.ids, nopLogger{}, validate)
	h.rentals = NewRentalService(h.records, h.gateway, locker, h.ids, nopLogger{}, validate, cache, h.metrics, h.publisher)

	if err := h.bikes.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return h
}

// signup creates a user and returns its session id.
func (h *harness) signup(t *testing.T, email string) string {
	t.Helper()
	sess, err := h.users.Signup(context.Background(), domain.SignupRequest{
		Fullname: "Test Rider",
		Email:    email,
		Password: "secret1",
		Phone:    "0712345678",
	})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return sess.SessionID
}

func (h *harness) bike(t *testing.T, id int64) domain.Bike {
	t.Helper()
	bikes, err := h.records.Bikes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bikes {
		if b.ID == id {
			return b
		}
	}
	t.Fatalf("bike %d not found", id)
	return domain.Bike{}
}

func (h *harness) user(t *testing.T, email string) domain.User {
	t.Helper()
	users, err := h.records.Users(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range users {
		if u.Email == email {
			return u
		}
	}
	t.Fatalf("user %s not found", email)
	return domain.User{}
}

func rentRequest(bikeID int64, hours int, pin string) domain.RentRequest {
	return domain.RentRequest{
		BikeID:    bikeID,
		Hours:     hours,
		RegNumber: "ENG-219-036/2025",
		Provider:  "M-Pesa",
		Mobile:    "0712345678",
		PIN:       pin,
	}
}
