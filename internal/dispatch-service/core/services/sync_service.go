package services

import (
	"context"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/dispatch-service/core/domain/model"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/mylogger"
)

// SyncService merges a mobile client's locally queued writes into server
// state. The protocol is convergent: delivery updates are idempotent per id,
// location inserts are harmless duplicates, and the response carries the
// authoritative non-terminal set so the client re-derives its state.
type SyncService struct {
	deliveries ports.IDeliveryRepo
	locations  ports.ILocationRepo
	log        mylogger.Logger
}

func NewSyncService(deliveries ports.IDeliveryRepo, locations ports.ILocationRepo, log mylogger.Logger) *SyncService {
	return &SyncService{
		deliveries: deliveries,
		locations:  locations,
		log:        log,
	}
}

// Process applies one batch for the authenticated courier. Items that do not
// match (serverId, courierId) ownership are skipped silently so one bad or
// racy item never aborts the batch; the loop and the bulk location insert are
// independent, non-transactional steps.
func (s *SyncService) Process(ctx context.Context, courierID string, req dto.SyncRequest) (dto.SyncResponse, error) {
	log := s.log.Action("sync_batch").With("courier_id", courierID)
	metrics.SyncBatchesTotal.Inc()

	updated := 0
	for _, item := range req.Deliveries {
		if item.ServerID == nil || *item.ServerID == "" {
			// nothing to correlate against yet; the client keeps the item
			// until a dispatcher creates the server-side delivery
			continue
		}
		upd, ok := s.buildSyncUpdate(item)
		if !ok {
			log.Warn("skipping sync item with unknown status", "local_id", item.LocalID, "status", item.Status)
			continue
		}
		applied, err := s.deliveries.ApplySyncUpdate(ctx, courierID, upd)
		if err != nil {
			// storage error on one item does not roll back the previous
			// ones; partial application is documented behavior
			log.Error("failed to apply sync item", err, "local_id", item.LocalID)
			continue
		}
		if applied {
			updated++
		}
	}
	metrics.SyncDeliveriesUpdatedTotal.Add(float64(updated))

	added := 0
	if len(req.Locations) > 0 {
		samples := make([]model.LocationSample, 0, len(req.Locations))
		for _, loc := range req.Locations {
			if loc.Lat == nil || loc.Lng == nil {
				continue
			}
			samples = append(samples, model.LocationSample{
				CourierID:  courierID,
				Latitude:   *loc.Lat,
				Longitude:  *loc.Lng,
				Accuracy:   loc.Accuracy,
				SpeedKmh:   loc.SpeedKmh,
				Battery:    loc.Battery,
				CapturedAt: parseClientTime(loc.RecordedAt),
			})
		}
		n, err := s.locations.BulkInsertSamples(ctx, samples)
		if err != nil {
			log.Error("failed to bulk insert queued locations", err)
		} else {
			added = n
		}
	}

	current, err := s.deliveries.ListActiveByCourier(ctx, courierID)
	if err != nil {
		return dto.SyncResponse{}, err
	}
	out := make([]dto.DeliveryResponse, 0, len(current))
	for _, d := range current {
		out = append(out, ToDeliveryResponse(d))
	}

	log.Info("sync batch processed", "deliveries_updated", updated, "locations_added", added)
	return dto.SyncResponse{
		DeliveriesUpdated: updated,
		LocationsAdded:    added,
		Deliveries:        out,
	}, nil
}

// buildSyncUpdate translates one queued client write into a conditional
// update. The guard allows any non-terminal state: the client's queue may be
// hours old, so the server only protects terminal states and ownership.
func (s *SyncService) buildSyncUpdate(item dto.SyncDeliveryItem) (ports.StatusUpdate, bool) {
	if !model.IsValidStatus(item.Status) || item.Status == model.StatusPending || item.Status == model.StatusCancelled {
		// a courier client cannot move a delivery to PENDING or CANCELLED
		return ports.StatusUpdate{}, false
	}

	upd := ports.StatusUpdate{
		DeliveryID:    *item.ServerID,
		AllowedFrom:   nonTerminalStatuses(),
		NextStatus:    item.Status,
		PhotoURL:      item.PhotoURL,
		SignatureURL:  item.SignatureURL,
		DeliveryLat:   item.DeliveryLat,
		DeliveryLng:   item.DeliveryLng,
		DeliveryNotes: item.DeliveryNotes,
		LocalRef:      &item.LocalID,
		TouchSyncedAt: true,
	}
	if item.Status == model.StatusDelivered {
		deliveredAt := time.Now().UTC()
		if item.DeliveredAt != nil {
			if t, err := time.Parse(time.RFC3339, *item.DeliveredAt); err == nil {
				deliveredAt = t.UTC()
			}
		}
		upd.DeliveredAt = &deliveredAt
	}
	return upd, true
}

func nonTerminalStatuses() []string {
	var out []string
	for status := range model.Transitions {
		if !model.IsTerminal(status) {
			out = append(out, status)
		}
	}
	return out
}

func parseClientTime(s *string) time.Time {
	if s == nil {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
