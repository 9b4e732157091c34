package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/eventix-edge/api/responses"
	"github.com/angelmondragon/eventix-edge/api/validators"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/validation"
)

// PublicValidate runs the named form schema and echoes the normalized value.
func PublicValidate(v *validation.Validator, logg *logger.Logger) http.HandlerFunc {
	if v == nil {
		v = validation.Default
	}
	return func(w http.ResponseWriter, r *http.Request) {
		schema := chi.URLParam(r, "schema")
		body, err := validators.ReadBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		value, err := v.Decode(schema, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"schema": schema,
			"value":  value,
		})
	}
}
