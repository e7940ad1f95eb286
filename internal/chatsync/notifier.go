package chatsync

import "context"

// Notifier is the audible-alert capability. The poll loop plays it at most
// once per cycle, however many conversations turned up new messages.
type Notifier interface {
	Play(ctx context.Context)
}

// NopNotifier discards alerts.
type NopNotifier struct{}

func (NopNotifier) Play(context.Context) {}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context)

func (f NotifierFunc) Play(ctx context.Context) { f(ctx) }
