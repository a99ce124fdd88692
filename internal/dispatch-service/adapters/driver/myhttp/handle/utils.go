package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"courier-dispatch/internal/dispatch-service/core/myerrors"
	"courier-dispatch/internal/dispatch-service/core/services"
)

var errOtherCourier = errors.New("couriers may only query themselves")

// jsonResponse writes data wrapped in the success envelope.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JsonError writes an error response as JSON with the specified HTTP status code.
func JsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// serviceError maps domain sentinels onto HTTP status codes. A transition
// rejected by the lifecycle guard is client error, never 500.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, myerrors.ErrNotFound):
		JsonError(w, http.StatusNotFound, err)
	case errors.Is(err, myerrors.ErrForbidden):
		JsonError(w, http.StatusForbidden, err)
	case errors.Is(err, myerrors.ErrStatusConflict):
		JsonError(w, http.StatusBadRequest, err)
	case errors.Is(err, myerrors.ErrValidation):
		JsonError(w, http.StatusBadRequest, err)
	default:
		JsonError(w, http.StatusInternalServerError, err)
	}
}

// actorFrom reads the identity headers set by the auth middleware.
func actorFrom(r *http.Request) services.Actor {
	return services.Actor{
		ID:   r.Header.Get("X-UserId"),
		Role: r.Header.Get("X-Role"),
	}
}
