package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu        sync.Mutex
	batchErr  error
	insertErr func(model.AttemptEvent) error
	stored    []model.AttemptEvent
}

func (f *fakeStore) InsertBatch(_ context.Context, events []model.AttemptEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	f.stored = append(f.stored, events...)
	return nil
}

func (f *fakeStore) Insert(_ context.Context, ev model.AttemptEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		if err := f.insertErr(ev); err != nil {
			return err
		}
	}
	f.stored = append(f.stored, ev)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func pushEvent(t *testing.T, mr *miniredis.Miniredis, ev model.AttemptEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	mr.Lpush(config.WorkerKey.AttemptEventsQueue, string(data))
}

func TestEventWorkerFlushesOnShutdown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := &fakeStore{}
	w := NewEventWorker(store, rdb, zerolog.Nop())

	for i := 0; i < 3; i++ {
		pushEvent(t, mr, model.AttemptEvent{
			AttemptID: uuid.New(),
			QuizID:    uuid.New(),
			StudentID: i + 1,
			Type:      model.EventJoined,
		})
	}
	mr.Lpush(config.WorkerKey.AttemptEventsQueue, "{not json")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := rdb.LLen(context.Background(), config.WorkerKey.AttemptEventsQueue).Result(); n == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	if got := store.count(); got != 3 {
		t.Fatalf("expected 3 stored events, got %d", got)
	}
}

func TestFallbackInsertDropsOrphansAndRequeues(t *testing.T) {
	_, rdb := newTestRedis(t)

	deleted := uuid.New()
	broken := uuid.New()
	store := &fakeStore{
		batchErr: errors.New("batch failed"),
		insertErr: func(ev model.AttemptEvent) error {
			switch ev.QuizID {
			case deleted:
				return repository.ErrOrphanEvent
			case broken:
				return errors.New("connection reset")
			}
			return nil
		},
	}
	w := NewEventWorker(store, rdb, zerolog.Nop())
	w.requeueBackoff = 0

	batch := []model.AttemptEvent{
		{AttemptID: uuid.New(), QuizID: uuid.New(), Type: model.EventJoined},
		{AttemptID: uuid.New(), QuizID: deleted, Type: model.EventAnswerSaved},
		{AttemptID: uuid.New(), QuizID: broken, Type: model.EventCompleted},
	}
	w.flushSafe(context.Background(), batch)

	if got := store.count(); got != 1 {
		t.Fatalf("expected 1 stored event, got %d", got)
	}

	items, err := rdb.LRange(context.Background(), config.WorkerKey.AttemptEventsQueue, 0, -1).Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 requeued event, got %d", len(items))
	}
	var ev model.AttemptEvent
	if err := json.Unmarshal([]byte(items[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.QuizID != broken {
		t.Fatalf("requeued the wrong event: %s", ev.QuizID)
	}
}

func TestRequeueBackoffStopsOnShutdown(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewEventWorker(&fakeStore{}, rdb, zerolog.Nop())
	w.requeueBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.requeue(ctx, []model.AttemptEvent{{AttemptID: uuid.New(), QuizID: uuid.New(), Type: model.EventJoined}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("requeue kept sleeping after shutdown")
	}

	if n, err := rdb.LLen(context.Background(), config.WorkerKey.AttemptEventsQueue).Result(); err != nil || n != 1 {
		t.Fatalf("queue length = %d, %v; want 1", n, err)
	}
}

type fakeSweeper struct {
	mu      sync.Mutex
	order   []string
	expErr  error
	expired int
}

func (f *fakeSweeper) FinalizeExpired(context.Context, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, "expire")
	return f.expired, f.expErr
}

func (f *fakeSweeper) RankDue(context.Context, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, "rank")
	return 0, nil
}

func TestDeadlineSweepOrder(t *testing.T) {
	t.Run("expires before ranking", func(t *testing.T) {
		f := &fakeSweeper{expired: 2}
		w := NewDeadlineWorker(f, f, time.Second, zerolog.Nop())
		w.Sweep(context.Background())

		if len(f.order) != 2 || f.order[0] != "expire" || f.order[1] != "rank" {
			t.Fatalf("unexpected order %v", f.order)
		}
	})

	t.Run("ranks even when expiry fails", func(t *testing.T) {
		f := &fakeSweeper{expErr: errors.New("db down")}
		w := NewDeadlineWorker(f, f, time.Second, zerolog.Nop())
		w.Sweep(context.Background())

		if len(f.order) != 2 {
			t.Fatalf("expected both steps, got %v", f.order)
		}
	})
}

func TestDeadlineWorkerStops(t *testing.T) {
	f := &fakeSweeper{}
	w := NewDeadlineWorker(f, f, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) < 2 {
		t.Fatalf("expected at least one sweep, got %v", f.order)
	}
}
