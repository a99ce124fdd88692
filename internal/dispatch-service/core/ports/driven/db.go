package driven

import (
	"context"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
)

type ICourierRepo interface {
	// GetActiveCourier loads a courier by id, filtered to active = true.
	GetActiveCourier(ctx context.Context, courierID string) (model.Courier, error)
}

// StatusUpdate is applied as one conditional UPDATE: the row is touched only
// if its current status is in AllowedFrom, which is what serializes racing
// transitions at the storage layer.
type StatusUpdate struct {
	DeliveryID  string
	AllowedFrom []string
	NextStatus  string

	CourierID        *string // assign sets, cancel/reschedule clear
	ClearCourier     bool
	ScheduledDate    *time.Time
	BumpRescheduled  bool
	RescheduleReason *string
	CancelReason     *string
	CancelledAt      *time.Time
	PhotoURL         *string
	SignatureURL     *string
	DeliveryLat      *float64
	DeliveryLng      *float64
	DeliveryNotes    *string
	DeliveredAt      *time.Time
	LocalRef         *string
	TouchSyncedAt    bool
}

type IDeliveryRepo interface {
	Create(ctx context.Context, d model.Delivery) error
	GetByID(ctx context.Context, id string) (model.Delivery, error)
	GetByToken(ctx context.Context, token string) (model.Delivery, error)
	// ApplyStatusUpdate performs the conditional transition. Returns the
	// updated row, or ErrStatusConflict if the guard did not match.
	ApplyStatusUpdate(ctx context.Context, upd StatusUpdate) (model.Delivery, error)
	// ApplySyncUpdate is ApplyStatusUpdate additionally scoped to the owning
	// courier; a row owned by someone else is reported as not applied, not
	// as an error.
	ApplySyncUpdate(ctx context.Context, courierID string, upd StatusUpdate) (bool, error)
	Delete(ctx context.Context, id string) error
	ListActiveByCourier(ctx context.Context, courierID string) ([]model.Delivery, error)
	ListByStatus(ctx context.Context, status string) ([]model.Delivery, error)
	GetInTransitByCourier(ctx context.Context, courierID string) (model.Delivery, error)
	HasActiveDelivery(ctx context.Context, courierID string) (bool, error)
}

type ILocationRepo interface {
	InsertSample(ctx context.Context, s model.LocationSample) error
	BulkInsertSamples(ctx context.Context, samples []model.LocationSample) (int, error)
	LatestPerCourier(ctx context.Context) ([]model.CourierPosition, error)
	InsertRoutePoint(ctx context.Context, p model.RoutePoint) error
	LatestRoutePoint(ctx context.Context, deliveryID string) (model.RoutePoint, error)
	RoutePoints(ctx context.Context, deliveryID string) ([]model.RoutePoint, error)
}
