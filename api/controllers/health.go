package controllers

import (
	"net/http"

	"github.com/angelmondragon/eventix-edge/api/responses"
	"github.com/angelmondragon/eventix-edge/pkg/config"
	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
)

const envHeader = "X-Eventix-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady fails only when redis is configured and unreachable. A degraded
// realtime provider is reported but does not fail readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisClient Pinger, provider NotificationProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		checks := map[string]string{"redis": "disabled", "realtime": "ok"}

		if redisClient != nil {
			if err := redisClient.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
					WithDetails(map[string]string{"redis": "unreachable"}))
				return
			}
			checks["redis"] = "ok"
		}

		if provider != nil {
			if degraded, reason := provider.Degraded(); degraded {
				// Dial errors can carry cluster hosts; production only reports the state.
				checks["realtime"] = "degraded"
				if !cfg.App.IsProd() {
					checks["realtime"] += ": " + reason
				}
			}
		} else {
			checks["realtime"] = "disabled"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
