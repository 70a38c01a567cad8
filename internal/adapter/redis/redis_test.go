package redis

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestClient connects to REDIS_TEST_ADDR. Tests are skipped when it is unset.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testPrefix() string { return "test:" + uuid.NewString() + ":" }

func TestCacheMiss(t *testing.T) {
	cache := NewRedisAdapter(newTestClient(t))
	key := testPrefix() + "bike:1"

	if _, err := cache.Get(key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := cache.Set(key, []byte("x"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if got, err := cache.Get(key); err != nil || string(got) != "x" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := cache.Delete(key); err != nil {
		t.Fatal(err)
	}
}

func TestStoreAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestClient(t), testPrefix())

	if _, err := store.Get(ctx, "bikes"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := store.Set(ctx, "n", []byte("0")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Atomic(ctx, []string{"n"}, func(tx ports.RecordTx) error {
				raw, err := tx.Get(ctx, "n")
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(string(raw))
				if err != nil {
					return err
				}
				tx.Set("n", []byte(strconv.Itoa(n+1)))
				return nil
			})
			if err != nil && !errors.Is(err, domain.ErrConflict) {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	raw, err := store.Get(ctx, "n")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := strconv.Atoi(string(raw)); n < 1 || n > 10 {
		t.Errorf("n = %d", n)
	}
}

func TestStoreAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestClient(t), testPrefix())

	boom := errors.New("boom")
	err := store.Atomic(ctx, []string{"a"}, func(tx ports.RecordTx) error {
		tx.Set("a", []byte("1"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("write survived rollback: %v", err)
	}
}

func TestLockerSingleHolder(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(newTestClient(t), time.Minute)
	bikeID := time.Now().UnixNano()

	release, err := locker.Acquire(ctx, bikeID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := locker.Acquire(ctx, bikeID); !errors.Is(err, domain.ErrBikeUnavailable) {
		t.Fatalf("expected ErrBikeUnavailable, got %v", err)
	}
	release()
	release2, err := locker.Acquire(ctx, bikeID)
	if err != nil {
		t.Fatalf("expected hold after release, got %v", err)
	}
	release2()
}

type chanNotifier chan domain.ChangeEvent

func (c chanNotifier) Notify(_ context.Context, ev domain.ChangeEvent) { c <- ev }

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

func TestChangeRelay(t *testing.T) {
	client := newTestClient(t)
	local := make(chanNotifier, 1)
	relay := NewChangeRelay(client, local, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	// wait for the subscription to be live
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, _ := client.PubSubNumSub(ctx, ChangesChannel).Result()
		if n[ChangesChannel] > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	relay.Notify(ctx, domain.ChangeEvent{Collection: domain.Bikes, Marker: 42})
	select {
	case ev := <-local:
		if ev.Collection != domain.Bikes || ev.Marker != 42 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change not relayed")
	}
}
