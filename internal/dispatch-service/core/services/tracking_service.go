package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/mylogger"
)

// knownZones is the curated list of area names recognized in delivery
// addresses. Matching is case-insensitive substring.
var knownZones = []string{
	"Costa del Este",
	"Punta Pacifica",
	"Punta Paitilla",
	"San Francisco",
	"El Cangrejo",
	"Obarrio",
	"Bella Vista",
	"Casco Viejo",
	"Albrook",
	"Clayton",
	"Condado del Rey",
	"Tocumen",
	"Juan Diaz",
	"Las Cumbres",
	"Arraijan",
	"La Chorrera",
}

const genericZone = "Zona de entrega"

const routeDecimationStep = 5

// TrackingService is the anonymous read side. The token is the capability:
// no caller identity exists, so everything returned here is already masked
// and status-gated.
type TrackingService struct {
	deliveries ports.IDeliveryRepo
	locations  ports.ILocationRepo
	couriers   ports.ICourierRepo
	log        mylogger.Logger
}

func NewTrackingService(deliveries ports.IDeliveryRepo, locations ports.ILocationRepo, couriers ports.ICourierRepo, log mylogger.Logger) *TrackingService {
	return &TrackingService{
		deliveries: deliveries,
		locations:  locations,
		couriers:   couriers,
		log:        log,
	}
}

// Snapshot returns the masked status view of one delivery.
func (s *TrackingService) Snapshot(ctx context.Context, token string) (dto.TrackingSnapshot, error) {
	d, err := s.deliveries.GetByToken(ctx, token)
	if err != nil {
		return dto.TrackingSnapshot{}, err
	}

	snap := dto.TrackingSnapshot{
		TrackingCode:     d.TrackingCode,
		Status:           d.Status,
		Zone:             MaskAddress(d.Address),
		ScheduledDate:    d.ScheduledDate.Format(scheduledDateLayout),
		RescheduledCount: d.RescheduledCount,
	}

	// destination coordinates stay hidden while the delivery is PENDING
	if d.Status != model.StatusPending {
		snap.DestLat = d.DestLat
		snap.DestLng = d.DestLng
	}

	if d.CourierID != nil {
		if courier, err := s.couriers.GetActiveCourier(ctx, *d.CourierID); err == nil {
			if name := FirstName(courier.Name); name != "" {
				snap.CourierName = &name
			}
		}
	}

	if d.DeliveredAt != nil {
		delivered := d.DeliveredAt.UTC().Format(time.RFC3339)
		snap.DeliveredAt = &delivered
	}

	return snap, nil
}

// Location returns the live position, available only while the delivery is
// exactly IN_TRANSIT and at least one route point exists. Absence is a soft
// payload, not an error: an anonymous caller cannot tell transient from
// structural absence.
func (s *TrackingService) Location(ctx context.Context, token string) (dto.TrackingLocation, error) {
	d, err := s.deliveries.GetByToken(ctx, token)
	if err != nil {
		return dto.TrackingLocation{}, err
	}

	if d.Status != model.StatusInTransit {
		return dto.TrackingLocation{
			Available: false,
			Message:   "live tracking is not available yet",
		}, nil
	}

	point, err := s.locations.LatestRoutePoint(ctx, d.ID)
	if err != nil {
		if errors.Is(err, myerrors.ErrNotFound) {
			return dto.TrackingLocation{
				Available: false,
				Message:   "live tracking is not available yet",
			}, nil
		}
		return dto.TrackingLocation{}, err
	}

	updatedAt := point.RecordedAt.UTC().Format(time.RFC3339)
	return dto.TrackingLocation{
		Available: true,
		Lat:       &point.Latitude,
		Lng:       &point.Longitude,
		UpdatedAt: &updatedAt,
	}, nil
}

// Route returns the decimated path while IN_TRANSIT or DELIVERED, empty
// otherwise.
func (s *TrackingService) Route(ctx context.Context, token string) (dto.TrackingRoute, error) {
	d, err := s.deliveries.GetByToken(ctx, token)
	if err != nil {
		return dto.TrackingRoute{}, err
	}

	route := dto.TrackingRoute{Points: []dto.TrackingRoutePoint{}}
	if d.Status != model.StatusInTransit && d.Status != model.StatusDelivered {
		return route, nil
	}

	points, err := s.locations.RoutePoints(ctx, d.ID)
	if err != nil {
		return dto.TrackingRoute{}, err
	}

	for _, p := range DecimateRoute(points, routeDecimationStep) {
		route.Points = append(route.Points, dto.TrackingRoutePoint{
			Lat:        p.Latitude,
			Lng:        p.Longitude,
			RecordedAt: p.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	return route, nil
}

// MaskAddress reduces a stored street address to a coarse named area. The
// literal address never leaves the server: first a curated zone match, then
// the text after the last comma, then a generic placeholder.
func MaskAddress(address string) string {
	lower := strings.ToLower(address)
	for _, zone := range knownZones {
		if strings.Contains(lower, strings.ToLower(zone)) {
			return "Zona: " + zone
		}
	}
	if i := strings.LastIndex(address, ","); i >= 0 {
		if tail := strings.TrimSpace(address[i+1:]); tail != "" {
			return "Zona: " + tail
		}
	}
	return genericZone
}

// FirstName reduces a courier's full name for anonymous viewers.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DecimateRoute keeps every step-th point plus the final point, preserving
// order: enough shape for a map polyline at a fraction of the payload.
func DecimateRoute(points []model.RoutePoint, step int) []model.RoutePoint {
	if step <= 1 || len(points) == 0 {
		return points
	}
	out := make([]model.RoutePoint, 0, len(points)/step+2)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	if last := len(points) - 1; last%step != 0 {
		out = append(out, points[last])
	}
	return out
}
