package controllers

import (
	"net/http"

	"github.com/angelmondragon/eventix-edge/api/middleware"
	"github.com/angelmondragon/eventix-edge/api/responses"
	"github.com/angelmondragon/eventix-edge/api/validators"
	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
)

type NavigationBody struct {
	Path string `json:"path" validate:"required,startswith=/,max=2048"`
}

// Navigate records a console route change. The caller's bearer token (or its
// absence) replaces the held token and identity is re-resolved in the
// background.
func Navigate(provider NotificationProvider, tokens TokenSetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil || tokens == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification provider unavailable"))
			return
		}

		var body NavigationBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tokens.Set(middleware.BearerTokenFromContext(r.Context()))
		request := provider.Refresh(r.Context())

		out := map[string]any{
			"path":    body.Path,
			"request": request,
		}
		if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
			out["request_id"] = reqID
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, out)
	}
}
