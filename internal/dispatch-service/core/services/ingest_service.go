package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"context"

	brokerdto "courier-dispatch/internal/dispatch-service/core/domain/broker_dto"
	"courier-dispatch/internal/dispatch-service/core/domain/model"
	websocketdto "courier-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/mylogger"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// drop reasons, used as metric labels and log fields
const (
	dropMalformed       = "malformed"
	dropInvalidToken    = "invalid_token"
	dropUnknownCourier  = "unknown_courier"
	dropStorage         = "storage_error"
	dropInvalidPresence = "invalid_presence"
)

var (
	ErrEmptyField       = errors.New("field is empty")
	ErrInvalidLatitude  = errors.New("invalid latitude [-90, 90]")
	ErrInvalidLongitude = errors.New("invalid longitude [-180, 180]")
	ErrInvalidBattery   = errors.New("invalid battery level [0, 100]")
	ErrInvalidTelemetry = errors.New("negative accuracy or speed")
)

// IngestService owns the per-message pipeline: validate schema, authenticate
// the embedded credential, resolve identity, persist, conditionally append a
// route point, fan out. Every returned error means the message is dropped;
// the consumer logs and moves on, it never stops the subscription.
type IngestService struct {
	auth       *AuthService
	cache      ports.IIdentityCache
	locations  ports.ILocationRepo
	deliveries ports.IDeliveryRepo
	fanout     ports.IFanout
	log        mylogger.Logger
}

func NewIngestService(
	auth *AuthService,
	cache ports.IIdentityCache,
	locations ports.ILocationRepo,
	deliveries ports.IDeliveryRepo,
	fanout ports.IFanout,
	log mylogger.Logger,
) *IngestService {
	return &IngestService{
		auth:       auth,
		cache:      cache,
		locations:  locations,
		deliveries: deliveries,
		fanout:     fanout,
		log:        log,
	}
}

// ProcessLocation handles one message from {prefix}.{courierId}.location.
func (s *IngestService) ProcessLocation(ctx context.Context, topicCourierID string, body []byte) error {
	metrics.TelemetryReceivedTotal.WithLabelValues("location").Inc()
	log := s.log.Action("ingest_location").With("courier_id", topicCourierID)

	var msg brokerdto.LocationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropMalformed).Inc()
		return fmt.Errorf("unmarshal location: %w", err)
	}
	if err := validateLocationMessage(msg); err != nil {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropMalformed).Inc()
		return fmt.Errorf("validate location: %w", err)
	}

	courierID, err := s.auth.ValidateCourierToken(msg.Token, topicCourierID)
	if err != nil {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropInvalidToken).Inc()
		return fmt.Errorf("authenticate location: %w", err)
	}

	identity, ok := s.cache.Get(ctx, courierID)
	if !ok {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropUnknownCourier).Inc()
		return fmt.Errorf("unknown or inactive courier %s", courierID)
	}

	capturedAt := captureTime(msg.Ts)
	sample := model.LocationSample{
		CourierID:  courierID,
		Latitude:   *msg.Lat,
		Longitude:  *msg.Lng,
		Accuracy:   msg.Accuracy,
		SpeedKmh:   msg.SpeedKmh,
		Battery:    msg.Battery,
		CapturedAt: capturedAt,
	}
	if err := s.locations.InsertSample(ctx, sample); err != nil {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropStorage).Inc()
		return fmt.Errorf("persist sample: %w", err)
	}
	metrics.LocationSamplesTotal.Inc()

	// a courier with an IN_TRANSIT delivery also feeds that delivery's route
	delivery, err := s.deliveries.GetInTransitByCourier(ctx, courierID)
	switch {
	case err == nil:
		point := model.RoutePoint{
			DeliveryID: delivery.ID,
			CourierID:  courierID,
			Latitude:   *msg.Lat,
			Longitude:  *msg.Lng,
			Accuracy:   msg.Accuracy,
			SpeedKmh:   msg.SpeedKmh,
			Battery:    msg.Battery,
			RecordedAt: capturedAt,
		}
		if err := s.locations.InsertRoutePoint(ctx, point); err != nil {
			// the sample is already persisted; losing one route point is
			// tolerable, losing the whole message is not
			log.Error("failed to append route point", err, "delivery_id", delivery.ID)
		} else {
			metrics.RoutePointsTotal.Inc()
		}
	case errors.Is(err, myerrors.ErrNotFound):
		// nothing in transit, raw history only
	default:
		log.Error("failed to look up in-transit delivery", err)
	}

	s.fanout.Broadcast(websocketdto.Event{
		Type: websocketdto.TypeCourierLocation,
		Data: websocketdto.CourierLocation{
			CourierID: courierID,
			FullName:  identity.Name,
			Lat:       *msg.Lat,
			Lng:       *msg.Lng,
			Accuracy:  msg.Accuracy,
			SpeedKmh:  msg.SpeedKmh,
			Battery:   msg.Battery,
			Timestamp: capturedAt,
		},
	})

	log.Debug("location accepted", "lat", *msg.Lat, "lng", *msg.Lng)
	return nil
}

// ProcessPresence handles one message from {prefix}.{courierId}.presence.
// Only the offline edge is broadcast; the dashboard infers liveness from
// recent location events, so online is accepted silently.
func (s *IngestService) ProcessPresence(ctx context.Context, topicCourierID string, body []byte) error {
	metrics.TelemetryReceivedTotal.WithLabelValues("presence").Inc()

	var msg brokerdto.PresenceMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropMalformed).Inc()
		return fmt.Errorf("unmarshal presence: %w", err)
	}
	if msg.Status != PresenceOnline && msg.Status != PresenceOffline {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropInvalidPresence).Inc()
		return fmt.Errorf("unknown presence status %q", msg.Status)
	}

	courierID, err := s.auth.ValidateCourierToken(msg.Token, topicCourierID)
	if err != nil {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropInvalidToken).Inc()
		return fmt.Errorf("authenticate presence: %w", err)
	}

	if _, ok := s.cache.Get(ctx, courierID); !ok {
		metrics.TelemetryDroppedTotal.WithLabelValues(dropUnknownCourier).Inc()
		return fmt.Errorf("unknown or inactive courier %s", courierID)
	}

	if msg.Status == PresenceOffline {
		s.fanout.Broadcast(websocketdto.Event{
			Type: websocketdto.TypeCourierOffline,
			Data: websocketdto.CourierOffline{
				CourierID: courierID,
				Timestamp: captureTime(msg.Ts),
			},
		})
	}
	return nil
}

func validateLocationMessage(msg brokerdto.LocationMessage) error {
	if msg.Token == "" {
		return fmt.Errorf("token: %w", ErrEmptyField)
	}
	if msg.Lat == nil || msg.Lng == nil {
		return fmt.Errorf("coordinates: %w", ErrEmptyField)
	}
	if !isFinite(*msg.Lat) || math.Abs(*msg.Lat) > 90 {
		return ErrInvalidLatitude
	}
	if !isFinite(*msg.Lng) || math.Abs(*msg.Lng) > 180 {
		return ErrInvalidLongitude
	}
	if msg.Accuracy != nil && (!isFinite(*msg.Accuracy) || *msg.Accuracy < 0) {
		return ErrInvalidTelemetry
	}
	if msg.SpeedKmh != nil && (!isFinite(*msg.SpeedKmh) || *msg.SpeedKmh < 0) {
		return ErrInvalidTelemetry
	}
	if msg.Battery != nil && (*msg.Battery < 0 || *msg.Battery > 100) {
		return ErrInvalidBattery
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func captureTime(ts *int64) time.Time {
	if ts == nil || *ts <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(*ts).UTC()
}
