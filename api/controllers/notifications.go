package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/eventix-edge/api/responses"
	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/pagination"
)

// NotificationsSnapshot returns toasts, history and the unread counter.
func NotificationsSnapshot(provider NotificationProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}
		responses.WriteSuccess(w, provider.Snapshot())
	}
}

// NotificationsHistory pages through history, newest first.
func NotificationsHistory(provider NotificationProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}
		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = limit
		}
		page, err := pagination.Slice(provider.Snapshot().History, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func MarkAllNotificationsRead(provider NotificationProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}
		provider.MarkAllRead()
		responses.WriteSuccess(w, map[string]int{"unread": 0})
	}
}

func ClearNotificationHistory(provider NotificationProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}
		provider.ClearHistory()
		responses.WriteSuccess(w, map[string]bool{"cleared": true})
	}
}

func DismissToast(provider NotificationProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "toastId"))
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "toast id required"))
			return
		}
		if !provider.DismissToast(id) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "toast not active"))
			return
		}
		responses.WriteSuccess(w, map[string]bool{"dismissed": true})
	}
}
