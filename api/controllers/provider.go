package controllers

import (
	"context"

	"github.com/angelmondragon/eventix-edge/internal/notifications"
)

// NotificationProvider is the slice of the notification manager the HTTP
// surface needs.
type NotificationProvider interface {
	Snapshot() notifications.Snapshot
	Watch(ctx context.Context) <-chan notifications.Snapshot
	Refresh(ctx context.Context) uint64
	MarkAllRead()
	ClearHistory()
	DismissToast(id string) bool
	Degraded() (bool, string)
}

// TokenSetter receives the bearer token forwarded on navigation.
type TokenSetter interface {
	Set(token string)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
