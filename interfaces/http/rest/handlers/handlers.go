// Package handlers implements the HTTP endpoints for listing, mapping,
// positioning, and stats.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

// validate checks request DTO struct tags.
var validate = validator.New()

// defaultListLimit bounds list responses when the client does not ask for a
// page size.
const defaultListLimit = 50

// decodeAndValidate parses the JSON body into dst and applies its validation
// tags.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.NewValidation("invalid request body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return pkgerrors.NewValidation("validation error: " + validationMessage(err))
	}
	return nil
}

// respondError maps an application error onto the response envelope.
// Internal errors are logged with an opaque reference and never leak details
// to the client.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := pkgerrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		ref := uuid.New().String()[:8]
		logger.Error("Request failed",
			zap.String("errorRef", ref),
			zap.Error(err),
		)
		api.Error(w, status, fmt.Sprintf("internal server error (ref %s)", ref))
		return
	}
	api.Error(w, status, pkgerrors.ClientMessage(err))
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// queryBool parses a boolean query parameter, treating absence as false.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// validationMessage unwraps validator errors into a readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("invalid field: %s", verrs[0].Field())
	}
	return err.Error()
}
