package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/mylogger"

	"github.com/google/uuid"
)

const scheduledDateLayout = "2006-01-02"

// Actor is the authenticated caller of a dispatch operation.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) backOffice() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleDispatcher
}

// DeliveryService owns the delivery lifecycle. Every mutation goes through
// the transition table and lands as one conditional UPDATE, so two racing
// operations can never both win.
type DeliveryService struct {
	deliveries ports.IDeliveryRepo
	couriers   ports.ICourierRepo
	locations  ports.ILocationRepo
	log        mylogger.Logger
}

func NewDeliveryService(
	deliveries ports.IDeliveryRepo,
	couriers ports.ICourierRepo,
	locations ports.ILocationRepo,
	log mylogger.Logger,
) *DeliveryService {
	return &DeliveryService{
		deliveries: deliveries,
		couriers:   couriers,
		locations:  locations,
		log:        log,
	}
}

func (s *DeliveryService) Create(ctx context.Context, actor Actor, req dto.CreateDeliveryRequest) (dto.DeliveryResponse, error) {
	if !actor.backOffice() {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	log := s.log.Action("create_delivery")

	if err := validateCreateRequest(req); err != nil {
		return dto.DeliveryResponse{}, err
	}

	scheduled := time.Now().UTC().Truncate(24 * time.Hour)
	if req.ScheduledDate != nil {
		parsed, err := time.Parse(scheduledDateLayout, *req.ScheduledDate)
		if err != nil {
			return dto.DeliveryResponse{}, fmt.Errorf("%w: scheduled_date must be YYYY-MM-DD", myerrors.ErrValidation)
		}
		scheduled = parsed
	}

	priority := 1
	if req.Priority != nil {
		priority = *req.Priority
	}

	now := time.Now().UTC()
	d := model.Delivery{
		ID:            uuid.NewString(),
		TrackingCode:  generateTrackingCode(now),
		TrackingToken: generateTrackingToken(),
		CustomerName:  *req.CustomerName,
		CustomerPhone: strValue(req.CustomerPhone),
		Address:       *req.Address,
		DestLat:       req.DestLat,
		DestLng:       req.DestLng,
		Status:        model.StatusPending,
		Priority:      priority,
		ScheduledDate: scheduled,
		CreatedBy:     actor.ID,
		CreatedByRole: actor.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// supplying a courier at creation skips straight to ASSIGNED
	if req.CourierID != nil && *req.CourierID != "" {
		courier, err := s.couriers.GetActiveCourier(ctx, *req.CourierID)
		if err != nil {
			return dto.DeliveryResponse{}, fmt.Errorf("%w: courier is not active", myerrors.ErrValidation)
		}
		if courier.Role != model.RoleCourier {
			return dto.DeliveryResponse{}, fmt.Errorf("%w: assignee must have the COURIER role", myerrors.ErrValidation)
		}
		d.CourierID = req.CourierID
		d.Status = model.StatusAssigned
	}

	if err := s.deliveries.Create(ctx, d); err != nil {
		log.Error("failed to create delivery", err)
		return dto.DeliveryResponse{}, err
	}

	log.Info("delivery created", "delivery_id", d.ID, "tracking_code", d.TrackingCode, "status", d.Status)
	return ToDeliveryResponse(d), nil
}

func (s *DeliveryService) Get(ctx context.Context, actor Actor, id string) (dto.DeliveryResponse, error) {
	d, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	if actor.Role == model.RoleCourier && !d.OwnedBy(actor.ID) {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	return ToDeliveryResponse(d), nil
}

// List returns the actor's view: a courier sees only their own non-terminal
// deliveries, back office can filter by status.
func (s *DeliveryService) List(ctx context.Context, actor Actor, status string) ([]dto.DeliveryResponse, error) {
	var (
		items []model.Delivery
		err   error
	)
	switch {
	case actor.Role == model.RoleCourier:
		items, err = s.deliveries.ListActiveByCourier(ctx, actor.ID)
	case status != "":
		if !model.IsValidStatus(status) {
			return nil, fmt.Errorf("%w: unknown status %q", myerrors.ErrValidation, status)
		}
		items, err = s.deliveries.ListByStatus(ctx, status)
	default:
		items, err = s.deliveries.ListByStatus(ctx, model.StatusPending)
	}
	if err != nil {
		return nil, err
	}

	out := make([]dto.DeliveryResponse, 0, len(items))
	for _, d := range items {
		out = append(out, ToDeliveryResponse(d))
	}
	return out, nil
}

func (s *DeliveryService) Assign(ctx context.Context, actor Actor, deliveryID string, req dto.AssignRequest) (dto.DeliveryResponse, error) {
	if !actor.backOffice() {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	if req.CourierID == nil || *req.CourierID == "" {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: courier_id is required", myerrors.ErrValidation)
	}
	if err := s.guardOwnership(ctx, actor, deliveryID); err != nil {
		return dto.DeliveryResponse{}, err
	}

	courier, err := s.couriers.GetActiveCourier(ctx, *req.CourierID)
	if err != nil {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: courier is not active", myerrors.ErrValidation)
	}
	if courier.Role != model.RoleCourier {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: assignee must have the COURIER role", myerrors.ErrValidation)
	}

	d, err := s.deliveries.ApplyStatusUpdate(ctx, ports.StatusUpdate{
		DeliveryID:  deliveryID,
		AllowedFrom: model.StatusesAllowing(model.OpAssign),
		NextStatus:  model.StatusAssigned,
		CourierID:   req.CourierID,
	})
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	s.log.Action("assign_delivery").Info("courier assigned", "delivery_id", deliveryID, "courier_id", *req.CourierID)
	return ToDeliveryResponse(d), nil
}

// Start moves ASSIGNED → IN_TRANSIT, only by the owning courier.
func (s *DeliveryService) Start(ctx context.Context, actor Actor, deliveryID string) (dto.DeliveryResponse, error) {
	if actor.Role != model.RoleCourier {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	if err := s.guardCourierOwnership(ctx, actor.ID, deliveryID); err != nil {
		return dto.DeliveryResponse{}, err
	}

	d, err := s.deliveries.ApplyStatusUpdate(ctx, ports.StatusUpdate{
		DeliveryID:  deliveryID,
		AllowedFrom: model.StatusesAllowing(model.OpStart),
		NextStatus:  model.StatusInTransit,
	})
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	s.log.Action("start_delivery").Info("delivery started", "delivery_id", deliveryID, "courier_id", actor.ID)
	return ToDeliveryResponse(d), nil
}

// Complete requires the full proof set: photo, signature and geo.
func (s *DeliveryService) Complete(ctx context.Context, actor Actor, deliveryID string, req dto.CompleteRequest) (dto.DeliveryResponse, error) {
	if actor.Role != model.RoleCourier {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	if err := validateProof(req); err != nil {
		return dto.DeliveryResponse{}, err
	}
	if err := s.guardCourierOwnership(ctx, actor.ID, deliveryID); err != nil {
		return dto.DeliveryResponse{}, err
	}

	deliveredAt := time.Now().UTC()
	d, err := s.deliveries.ApplyStatusUpdate(ctx, ports.StatusUpdate{
		DeliveryID:    deliveryID,
		AllowedFrom:   model.StatusesAllowing(model.OpComplete),
		NextStatus:    model.StatusDelivered,
		PhotoURL:      req.PhotoURL,
		SignatureURL:  req.SignatureURL,
		DeliveryLat:   req.DeliveryLat,
		DeliveryLng:   req.DeliveryLng,
		DeliveryNotes: req.Notes,
		DeliveredAt:   &deliveredAt,
	})
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	s.log.Action("complete_delivery").Info("delivery completed", "delivery_id", deliveryID, "courier_id", actor.ID)
	return ToDeliveryResponse(d), nil
}

func (s *DeliveryService) Fail(ctx context.Context, actor Actor, deliveryID string, req dto.FailRequest) (dto.DeliveryResponse, error) {
	if actor.Role != model.RoleCourier {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	if req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: reason is required", myerrors.ErrValidation)
	}
	if err := s.guardCourierOwnership(ctx, actor.ID, deliveryID); err != nil {
		return dto.DeliveryResponse{}, err
	}

	d, err := s.deliveries.ApplyStatusUpdate(ctx, ports.StatusUpdate{
		DeliveryID:    deliveryID,
		AllowedFrom:   model.StatusesAllowing(model.OpFail),
		NextStatus:    model.StatusFailed,
		DeliveryNotes: req.Reason,
	})
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	s.log.Action("fail_delivery").Warn("delivery attempt failed", "delivery_id", deliveryID, "reason", *req.Reason)
	return ToDeliveryResponse(d), nil
}

// Reschedule lands back in PENDING and returns the delivery to the dispatch
// pool, so the courier assignment is cleared.
func (s *DeliveryService) Reschedule(ctx context.Context, actor Actor, deliveryID string, req dto.RescheduleRequest) (dto.DeliveryResponse, error) {
	if !actor.backOffice() {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	if req.ScheduledDate == nil || req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: scheduled_date and reason are required", myerrors.ErrValidation)
	}
	newDate, err := time.Parse(scheduledDateLayout, *req.ScheduledDate)
	if err != nil {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: scheduled_date must be YYYY-MM-DD", myerrors.ErrValidation)
	}
	if err := s.guardOwnership(ctx, actor, deliveryID); err != nil {
		return dto.DeliveryResponse{}, err
	}

	d, err := s.deliveries.ApplyStatusUpdate(ctx, ports.StatusUpdate{
		DeliveryID:       deliveryID,
		AllowedFrom:      model.StatusesAllowing(model.OpReschedule),
		NextStatus:       model.StatusPending,
		ClearCourier:     true,
		ScheduledDate:    &newDate,
		BumpRescheduled:  true,
		RescheduleReason: req.Reason,
	})
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	s.log.Action("reschedule_delivery").Info("delivery rescheduled", "delivery_id", deliveryID, "scheduled_date", *req.ScheduledDate)
	return ToDeliveryResponse(d), nil
}

func (s *DeliveryService) Cancel(ctx context.Context, actor Actor, deliveryID string, req dto.CancelRequest) (dto.DeliveryResponse, error) {
	if !actor.backOffice() {
		return dto.DeliveryResponse{}, myerrors.ErrForbidden
	}
	if req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
		return dto.DeliveryResponse{}, fmt.Errorf("%w: a non-empty reason is required", myerrors.ErrValidation)
	}
	if err := s.guardOwnership(ctx, actor, deliveryID); err != nil {
		return dto.DeliveryResponse{}, err
	}

	cancelledAt := time.Now().UTC()
	d, err := s.deliveries.ApplyStatusUpdate(ctx, ports.StatusUpdate{
		DeliveryID:   deliveryID,
		AllowedFrom:  model.StatusesAllowing(model.OpCancel),
		NextStatus:   model.StatusCancelled,
		ClearCourier: true,
		CancelReason: req.Reason,
		CancelledAt:  &cancelledAt,
	})
	if err != nil {
		return dto.DeliveryResponse{}, err
	}
	s.log.Action("cancel_delivery").Info("delivery cancelled", "delivery_id", deliveryID, "reason", *req.Reason)
	return ToDeliveryResponse(d), nil
}

// Delete hard-deletes, rejected once DELIVERED.
func (s *DeliveryService) Delete(ctx context.Context, actor Actor, deliveryID string) error {
	if !actor.backOffice() {
		return myerrors.ErrForbidden
	}
	d, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if actor.Role == model.RoleDispatcher && d.CreatedByRole == model.RoleAdmin {
		return myerrors.ErrForbidden
	}
	if d.Status == model.StatusDelivered {
		return myerrors.ErrStatusConflict
	}
	if err := s.deliveries.Delete(ctx, deliveryID); err != nil {
		return err
	}
	s.log.Action("delete_delivery").Warn("delivery deleted", "delivery_id", deliveryID, "actor", actor.ID)
	return nil
}

// HasActiveDelivery backs the mobile supervisor poll.
func (s *DeliveryService) HasActiveDelivery(ctx context.Context, courierID string) (bool, error) {
	return s.deliveries.HasActiveDelivery(ctx, courierID)
}

// LatestCourierLocations is the dashboard snapshot viewers fetch before
// subscribing to the live fan-out.
func (s *DeliveryService) LatestCourierLocations(ctx context.Context) ([]dto.CourierPositionResponse, error) {
	positions, err := s.locations.LatestPerCourier(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CourierPositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, dto.CourierPositionResponse{
			CourierID:   p.CourierID,
			CourierName: p.CourierName,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			SpeedKmh:    p.SpeedKmh,
			Battery:     p.Battery,
			RecordedAt:  p.RecordedAt,
		})
	}
	return out, nil
}

// guardOwnership enforces the back-office matrix: a dispatcher may not touch
// a delivery created by an admin.
func (s *DeliveryService) guardOwnership(ctx context.Context, actor Actor, deliveryID string) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	d, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if d.CreatedByRole == model.RoleAdmin {
		return myerrors.ErrForbidden
	}
	return nil
}

func (s *DeliveryService) guardCourierOwnership(ctx context.Context, courierID, deliveryID string) error {
	d, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if !d.OwnedBy(courierID) {
		return myerrors.ErrForbidden
	}
	return nil
}

func validateCreateRequest(req dto.CreateDeliveryRequest) error {
	if req.CustomerName == nil || strings.TrimSpace(*req.CustomerName) == "" {
		return fmt.Errorf("%w: customer_name is required", myerrors.ErrValidation)
	}
	if req.Address == nil || strings.TrimSpace(*req.Address) == "" {
		return fmt.Errorf("%w: address is required", myerrors.ErrValidation)
	}
	if len(*req.Address) > 255 {
		return fmt.Errorf("%w: address exceeds 255 characters", myerrors.ErrValidation)
	}
	if (req.DestLat == nil) != (req.DestLng == nil) {
		return fmt.Errorf("%w: destination coordinates must come as a pair", myerrors.ErrValidation)
	}
	if req.DestLat != nil {
		if math.Abs(*req.DestLat) > 90 {
			return fmt.Errorf("%w: invalid latitude", myerrors.ErrValidation)
		}
		if math.Abs(*req.DestLng) > 180 {
			return fmt.Errorf("%w: invalid longitude", myerrors.ErrValidation)
		}
	}
	if req.Priority != nil && (*req.Priority < 1 || *req.Priority > 10) {
		return fmt.Errorf("%w: priority must be within [1, 10]", myerrors.ErrValidation)
	}
	return nil
}

func validateProof(req dto.CompleteRequest) error {
	if req.PhotoURL == nil || *req.PhotoURL == "" {
		return fmt.Errorf("%w: photo_url is required as proof of delivery", myerrors.ErrValidation)
	}
	if req.SignatureURL == nil || *req.SignatureURL == "" {
		return fmt.Errorf("%w: signature_url is required as proof of delivery", myerrors.ErrValidation)
	}
	if req.DeliveryLat == nil || req.DeliveryLng == nil {
		return fmt.Errorf("%w: delivery coordinates are required as proof of delivery", myerrors.ErrValidation)
	}
	return nil
}

// generateTrackingCode builds the human-shareable identifier, unique per day
// with a random suffix. Independent from the tracking token.
func generateTrackingCode(now time.Time) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("DLV_%s_%s", now.Format("20060102"), uuid.NewString()[:6])
	}
	return fmt.Sprintf("DLV_%s_%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(b)))
}

// generateTrackingToken mints the anonymous tracking capability: 128 bits of
// entropy, enough to resist enumeration. Leaking a tracking code must never
// leak the token, so the two share no input.
func generateTrackingToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b)
}

func ToDeliveryResponse(d model.Delivery) dto.DeliveryResponse {
	return dto.DeliveryResponse{
		ID:               d.ID,
		TrackingCode:     d.TrackingCode,
		TrackingToken:    d.TrackingToken,
		CustomerName:     d.CustomerName,
		CustomerPhone:    d.CustomerPhone,
		Address:          d.Address,
		DestLat:          d.DestLat,
		DestLng:          d.DestLng,
		CourierID:        d.CourierID,
		Status:           d.Status,
		Priority:         d.Priority,
		ScheduledDate:    d.ScheduledDate.Format(scheduledDateLayout),
		PhotoURL:         d.PhotoURL,
		SignatureURL:     d.SignatureURL,
		DeliveryNotes:    d.DeliveryNotes,
		DeliveredAt:      d.DeliveredAt,
		RescheduledCount: d.RescheduledCount,
		CancelledAt:      d.CancelledAt,
		CancelReason:     d.CancelReason,
		LocalRef:         d.LocalRef,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
