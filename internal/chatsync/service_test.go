package chatsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSynchronizer struct {
	inbox    *Inbox
	polls    atomic.Int64
	pollFunc func(ctx context.Context) error
}

func (f *fakeSynchronizer) Shape() string { return "customer" }

func (f *fakeSynchronizer) Inbox() *Inbox { return f.inbox }

func (f *fakeSynchronizer) PollOnce(ctx context.Context) error {
	f.polls.Add(1)
	if f.pollFunc == nil {
		return nil
	}
	return f.pollFunc(ctx)
}

func (f *fakeSynchronizer) SendMessage(context.Context, string, string) error { return nil }

func newServiceForTest(t *testing.T, sync Synchronizer, interval time.Duration) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Sync:     sync,
		Interval: interval,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return service
}

func TestServicePollsImmediatelyThenOnInterval(t *testing.T) {
	fake := &fakeSynchronizer{inbox: NewInbox("42", 0)}
	service := newServiceForTest(t, fake, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for fake.polls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 polls, got %d", fake.polls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestServiceAbsorbsPollFailures(t *testing.T) {
	fake := &fakeSynchronizer{
		inbox: NewInbox("42", 0),
		pollFunc: func(context.Context) error {
			return errors.New("transient")
		},
	}
	service := newServiceForTest(t, fake, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for fake.polls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("loop should keep polling through failures, got %d polls", fake.polls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestServiceStopsWhenContextAlreadyCanceled(t *testing.T) {
	fake := &fakeSynchronizer{inbox: NewInbox("42", 0)}
	service := newServiceForTest(t, fake, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fake.polls.Load() != 0 {
		t.Fatalf("no poll expected on a dead context, got %d", fake.polls.Load())
	}
}
