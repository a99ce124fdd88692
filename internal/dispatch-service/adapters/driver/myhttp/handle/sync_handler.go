package handle

import (
	"encoding/json"
	"net/http"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/dispatch-service/core/services"
	"courier-dispatch/internal/mylogger"
)

type SyncHandler struct {
	syncService *services.SyncService
	log         mylogger.Logger
}

func NewSyncHandler(ss *services.SyncService, log mylogger.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: ss,
		log:         log,
	}
}

// Sync receives the batch a courier's device queued while offline. The
// response always carries the courier's authoritative active deliveries so
// the device can reconcile its local state.
func (sh *SyncHandler) Sync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.SyncRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := sh.syncService.Process(r.Context(), actorFrom(r).ID, req)
		if err != nil {
			serviceError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}
