package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/eventix-edge/api/responses"
	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
)

const streamKeepAlive = 25 * time.Second

// NotificationsStream pushes a snapshot as a server-sent event after every
// state change until the client goes away.
func NotificationsStream(provider NotificationProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}
		if !canFlush(w) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "streaming is not supported on this connection"))
			return
		}
		ctx := r.Context()
		rc := http.NewResponseController(w)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			logg.Error(ctx, "notifications.stream.flush_unsupported", err)
			return
		}

		updates := provider.Watch(ctx)
		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case snap, ok := <-updates:
				if !ok {
					return
				}
				payload, err := json.Marshal(snap)
				if err != nil {
					logg.Error(ctx, "notifications.stream.encode_failed", err)
					return
				}
				if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// canFlush walks the Unwrap chain the same way http.ResponseController does,
// so the check happens before any header is written.
func canFlush(w http.ResponseWriter) bool {
	for {
		switch t := w.(type) {
		case http.Flusher:
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return false
		}
	}
}
