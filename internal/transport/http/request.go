package http

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apierrors "neareports/internal/errors"
	"neareports/internal/services"
	"neareports/internal/store"
)

// maxBodyBytes caps run request bodies.
const maxBodyBytes = 1 << 16

var validate = validator.New()

// RunRequest is the optional body of the run endpoints. A zero Offset means
// the task default.
type RunRequest struct {
	Offset Offset `json:"offset" validate:"omitempty,min=1"`
}

// Offset accepts a whole JSON number or a numeric string. Any other value
// decodes as 0 rather than failing the request.
type Offset int

// UnmarshalJSON implements json.Unmarshaler.
func (o *Offset) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		*o = 0
		return nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			*o = 0
			return nil
		}
		*o = Offset(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			*o = 0
			return nil
		}
		*o = Offset(i)
	default:
		*o = 0
	}
	return nil
}

// decodeRunRequest reads the run body. A missing or unreadable body, or an
// offset that fails validation, yields the zero request so the service
// falls back to the task default.
func decodeRunRequest(r *http.Request) RunRequest {
	var req RunRequest
	if r.Body == nil {
		return req
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return RunRequest{}
	}
	if err := validate.Struct(req); err != nil {
		return RunRequest{}
	}
	return req
}

// taskID parses the {id} URL parameter.
func taskID(r *http.Request) (int64, *apierrors.APIError) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apierrors.ErrValidation("id", "must be a positive integer")
	}
	return id, nil
}

// apiError maps service and store errors to API errors.
func apiError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return apierrors.ErrTaskNotFound
	case errors.Is(err, services.ErrRunNotFound):
		return apierrors.ErrRunNotFound
	case errors.Is(err, services.ErrTaskUnavailable):
		return apierrors.ErrTaskUnavailable
	default:
		return apierrors.ErrInternalServer
	}
}
