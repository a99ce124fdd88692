package handle

import (
	"net/http"

	"courier-dispatch/internal/dispatch-service/core/services"
	"courier-dispatch/internal/mylogger"
)

// TrackingHandler serves the public tracking page. No auth: the capability
// is the token itself, and every response is already masked by the service.
type TrackingHandler struct {
	trackingService *services.TrackingService
	log             mylogger.Logger
}

func NewTrackingHandler(ts *services.TrackingService, log mylogger.Logger) *TrackingHandler {
	return &TrackingHandler{
		trackingService: ts,
		log:             log,
	}
}

func (th *TrackingHandler) Snapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := th.trackingService.Snapshot(r.Context(), r.PathValue("token"))
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (th *TrackingHandler) Location() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := th.trackingService.Location(r.Context(), r.PathValue("token"))
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (th *TrackingHandler) Route() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := th.trackingService.Route(r.Context(), r.PathValue("token"))
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}
