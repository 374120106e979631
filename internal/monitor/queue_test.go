package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/netpad/internal/testutil"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(3)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, Task{Device: testutil.NewDevice(testutil.WithID(name))}); err != nil {
			t.Fatalf("Push(%s): %v", name, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		task, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if task.Device.ID != want {
			t.Errorf("Pop() = %q, want %q", task.Device.ID, want)
		}
	}
}

func TestQueue_PushBlocksWhenFull(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	_ = q.Push(ctx, Task{Device: testutil.NewDevice(testutil.WithID("1"))})
	_ = q.Push(ctx, Task{Device: testutil.NewDevice(testutil.WithID("2"))})

	done := make(chan error, 1)
	go func() {
		done <- q.Push(ctx, Task{Device: testutil.NewDevice(testutil.WithID("3"))})
	}()

	select {
	case err := <-done:
		t.Fatalf("third Push returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	if _, err := q.Pop(ctx); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("third Push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("third Push still blocked after a slot was freed")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestQueue_TryPush(t *testing.T) {
	q := NewQueue(1)
	if !q.TryPush(Task{}) {
		t.Fatal("TryPush on empty queue = false")
	}
	if q.TryPush(Task{}) {
		t.Fatal("TryPush on full queue = true")
	}
}

func TestQueue_PushHonorsContext(t *testing.T) {
	q := NewQueue(1)
	_ = q.Push(context.Background(), Task{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, Task{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Push error = %v, want DeadlineExceeded", err)
	}
}

func TestQueue_CloseWakesPopAndPush(t *testing.T) {
	q := NewQueue(1)

	popped := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		popped <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close() // idempotent

	select {
	case err := <-popped:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("Pop error = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop not woken by Close")
	}

	if err := q.Push(context.Background(), Task{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Push after Close = %v, want ErrQueueClosed", err)
	}
}

func TestInFlight(t *testing.T) {
	f := NewInFlight()
	if !f.Acquire("dev") {
		t.Fatal("first Acquire = false")
	}
	if f.Acquire("dev") {
		t.Fatal("second Acquire = true")
	}
	if f.Len() != 1 {
		t.Fatal("device not tracked")
	}
	f.Release("dev")
	f.Release("unknown")
	if f.Len() != 0 {
		t.Fatal("device still tracked after Release")
	}
}

func TestQueue_ClosedPopLeavesTasksForDrain(t *testing.T) {
	q := NewQueue(3)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := q.Push(ctx, Task{Device: testutil.NewDevice(testutil.WithID(id))}); err != nil {
			t.Fatalf("Push(%s): %v", id, err)
		}
	}
	q.Close()

	if _, err := q.Pop(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Pop after Close = %v, want ErrQueueClosed", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := NewQueue(1).Pop(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Pop with cancelled ctx = %v, want Canceled", err)
	}

	tasks := q.Drain()
	if len(tasks) != 2 || tasks[0].Device.ID != "a" || tasks[1].Device.ID != "b" {
		t.Fatalf("Drain() = %+v, want tasks a, b", tasks)
	}
	if q.Len() != 0 || len(q.Drain()) != 0 {
		t.Fatal("queue not empty after Drain")
	}
}
