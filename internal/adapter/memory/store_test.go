package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
)

func TestStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.Get(ctx, "bikes"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := s.Set(ctx, "bikes", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "bikes")
	if err != nil || string(got) != "[]" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := s.Remove(ctx, "bikes"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "bikes"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected removal, got %v", err)
	}
}

func TestStoreAtomicDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Set(ctx, "a", []byte("1"))

	boom := errors.New("boom")
	err := s.Atomic(ctx, []string{"a", "b"}, func(tx ports.RecordTx) error {
		tx.Set("a", []byte("2"))
		tx.Set("b", []byte("3"))
		if v, _ := tx.Get(ctx, "a"); string(v) != "2" {
			t.Errorf("tx should read its own write, got %q", v)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if v, _ := s.Get(ctx, "a"); string(v) != "1" {
		t.Errorf("a = %q, want 1", v)
	}
	if _, err := s.Get(ctx, "b"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("b should not exist, got %v", err)
	}
}

func TestStoreAtomicApplies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Set(ctx, "gone", []byte("x"))

	err := s.Atomic(ctx, nil, func(tx ports.RecordTx) error {
		tx.Set("a", []byte("1"))
		tx.Remove("gone")
		if _, err := tx.Get(ctx, "gone"); !errors.Is(err, domain.ErrRecordNotFound) {
			t.Errorf("removed key visible inside tx: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get(ctx, "a"); string(v) != "1" {
		t.Errorf("a = %q", v)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("gone should be removed")
	}
}

func TestStoreAtomicSerializes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Set(ctx, "n", []byte("0"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Atomic(ctx, []string{"n"}, func(tx ports.RecordTx) error {
				v, _ := tx.Get(ctx, "n")
				n, _ := strconv.Atoi(string(v))
				tx.Set("n", []byte(strconv.Itoa(n+1)))
				return nil
			})
		}()
	}
	wg.Wait()
	if v, _ := s.Get(ctx, "n"); string(v) != "50" {
		t.Errorf("n = %s, want 50", v)
	}
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	release, err := l.Acquire(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, 2); !errors.Is(err, domain.ErrBikeUnavailable) {
		t.Fatalf("second acquire: %v", err)
	}
	if r, err := l.Acquire(ctx, 3); err != nil {
		t.Fatalf("other bike: %v", err)
	} else {
		r()
	}
	release()
	release()
	if r, err := l.Acquire(ctx, 2); err != nil {
		t.Fatalf("after release: %v", err)
	} else {
		r()
	}
}

func TestCacheTTL(t *testing.T) {
	c := NewCache()
	_ = c.Set("k", []byte("v"), 0)
	if v, err := c.Get("k"); err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	_ = c.Set("e", []byte("v"), -1)
	_ = c.Delete("k")
	if _, err := c.Get("k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}
