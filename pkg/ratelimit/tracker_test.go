package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker(store Store, cfg Config, now time.Time) *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(store, cfg, logger)
	tracker.now = func() time.Time { return now }
	return tracker
}

func TestTracker_WaitWithoutState(t *testing.T) {
	tracker := newTestTracker(nil, Config{}, time.Now())

	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestTracker_RecordRetryAfter(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	tracker := newTestTracker(store, Config{}, now)
	ctx := context.Background()

	if err := tracker.RecordRetryAfter(ctx, 429, "30"); err != nil {
		t.Fatalf("RecordRetryAfter() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state == nil {
		t.Fatal("GetState() returned nil after RecordRetryAfter")
	}
	if !state.BlockedUntil.Equal(now.Add(30 * time.Second)) {
		t.Errorf("BlockedUntil = %v, want %v", state.BlockedUntil, now.Add(30*time.Second))
	}
	if state.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", state.StatusCode)
	}
}

func TestTracker_WaitRefusesLongCooldown(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	tracker := newTestTracker(store, Config{MaxWait: time.Second}, now)
	ctx := context.Background()

	if err := store.Set(ctx, &ThrottleState{BlockedUntil: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	err := tracker.Wait(ctx)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Wait() error = %v, want ErrBlocked", err)
	}
}

func TestTracker_WaitSleepsThroughShortCooldown(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	tracker := newTestTracker(store, Config{MaxWait: time.Second}, now)
	ctx := context.Background()

	if err := store.Set(ctx, &ThrottleState{BlockedUntil: now.Add(50 * time.Millisecond)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to wait for the cool-down", elapsed)
	}
}

func TestTracker_WaitHonoursContext(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	tracker := newTestTracker(store, Config{MaxWait: time.Minute}, now)

	ctx, cancel := context.WithCancel(context.Background())
	if err := store.Set(ctx, &ThrottleState{BlockedUntil: now.Add(30 * time.Second)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	cancel()

	if err := tracker.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestTracker_Pacing(t *testing.T) {
	tracker := newTestTracker(nil, Config{RequestsPerSecond: 20, Burst: 1}, time.Now())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tracker.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// Burst of 1 at 20/s: the 2nd and 3rd requests wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 paced requests took %v, want >= ~100ms", elapsed)
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context) (*ThrottleState, error) {
	return nil, errors.New("store down")
}

func (failingStore) Set(context.Context, *ThrottleState) error {
	return errors.New("store down")
}

func TestTracker_StoreFailureDoesNotBlock(t *testing.T) {
	tracker := newTestTracker(failingStore{}, Config{}, time.Now())
	ctx := context.Background()

	if err := tracker.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v, want nil when store is down", err)
	}
	if err := tracker.RecordRetryAfter(ctx, 429, "10"); err == nil {
		t.Error("RecordRetryAfter() should surface store errors")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &ThrottleState{StatusCode: 429}
	if err := store.Set(ctx, state); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	state.StatusCode = 500

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StatusCode != 429 {
		t.Errorf("stored state was mutated through caller pointer: %d", got.StatusCode)
	}

	if err := store.Set(ctx, nil); err == nil {
		t.Error("Set(nil) should fail")
	}
}
