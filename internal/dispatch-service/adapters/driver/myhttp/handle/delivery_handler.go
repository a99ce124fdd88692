package handle

import (
	"encoding/json"
	"net/http"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/dispatch-service/core/services"
	"courier-dispatch/internal/mylogger"
)

type DeliveryHandler struct {
	deliveryService *services.DeliveryService
	log             mylogger.Logger
}

func NewDeliveryHandler(ds *services.DeliveryService, log mylogger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: ds,
		log:             log,
	}
}

func (dh *DeliveryHandler) CreateDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.CreateDeliveryRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := dh.deliveryService.Create(r.Context(), actorFrom(r), req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusCreated, res)
	}
}

func (dh *DeliveryHandler) GetDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := dh.deliveryService.Get(r.Context(), actorFrom(r), r.PathValue("delivery_id"))
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) ListDeliveries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := dh.deliveryService.List(r.Context(), actorFrom(r), r.URL.Query().Get("status"))
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) AssignDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.AssignRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := dh.deliveryService.Assign(r.Context(), actorFrom(r), r.PathValue("delivery_id"), req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) StartDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := dh.deliveryService.Start(r.Context(), actorFrom(r), r.PathValue("delivery_id"))
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) CompleteDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.CompleteRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := dh.deliveryService.Complete(r.Context(), actorFrom(r), r.PathValue("delivery_id"), req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) FailDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.FailRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := dh.deliveryService.Fail(r.Context(), actorFrom(r), r.PathValue("delivery_id"), req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) RescheduleDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.RescheduleRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := dh.deliveryService.Reschedule(r.Context(), actorFrom(r), r.PathValue("delivery_id"), req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) CancelDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.CancelRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := dh.deliveryService.Cancel(r.Context(), actorFrom(r), r.PathValue("delivery_id"), req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DeliveryHandler) DeleteDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := dh.deliveryService.Delete(r.Context(), actorFrom(r), r.PathValue("delivery_id")); err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func (dh *DeliveryHandler) CourierLocations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := dh.deliveryService.LatestCourierLocations(r.Context())
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

// CourierActive answers the mobile supervisor poll: does this courier have a
// delivery in transit right now.
func (dh *DeliveryHandler) CourierActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courierID := r.PathValue("courier_id")
		actor := actorFrom(r)
		if actor.ID != courierID {
			JsonError(w, http.StatusForbidden, errOtherCourier)
			return
		}

		active, err := dh.deliveryService.HasActiveDelivery(r.Context(), courierID)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, dto.CourierActiveResponse{Active: active})
	}
}
