package services

import (
	"context"
	"math"
	"testing"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
)

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"Calle 50, Costa del Este, Panama", "Zona: Costa del Este"},
		{"costa del este torre 2", "Zona: Costa del Este"},
		{"Ave Balboa, Punta Paitilla", "Zona: Punta Paitilla"},
		{"Calle 12, Rio Abajo", "Zona: Rio Abajo"},
		{"Sin comas ni zonas", "Zona de entrega"},
		{"Trailing comma,", "Zona de entrega"},
	}

	for _, tt := range tests {
		if got := MaskAddress(tt.address); got != tt.want {
			t.Errorf("MaskAddress(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestMaskAddressNeverEqualsInput(t *testing.T) {
	for _, address := range []string{
		"Calle 50, Costa del Este, Panama",
		"Via Espana 123",
		"Edificio X, El Cangrejo",
	} {
		if MaskAddress(address) == address {
			t.Errorf("masked zone must never equal the stored address: %q", address)
		}
	}
}

func TestFirstName(t *testing.T) {
	if got := FirstName("Maria Gomez Lopez"); got != "Maria" {
		t.Errorf("FirstName = %q", got)
	}
	if got := FirstName("  "); got != "" {
		t.Errorf("FirstName of blank = %q", got)
	}
}

func TestDecimateRouteCounts(t *testing.T) {
	makePoints := func(n int) []model.RoutePoint {
		points := make([]model.RoutePoint, n)
		for i := range points {
			points[i] = model.RoutePoint{ID: int64(i)}
		}
		return points
	}

	for _, n := range []int{1, 4, 5, 6, 10, 11, 12, 50, 51} {
		got := DecimateRoute(makePoints(n), 5)

		want := int(math.Ceil(float64(n) / 5))
		if (n-1)%5 != 0 {
			want++ // final point appended when not already kept
		}
		if len(got) != want {
			t.Errorf("n=%d: len = %d, want %d", n, len(got), want)
			continue
		}

		// order preserved, final point always present
		for i := 1; i < len(got); i++ {
			if got[i].ID <= got[i-1].ID {
				t.Errorf("n=%d: order not preserved", n)
			}
		}
		if got[len(got)-1].ID != int64(n-1) {
			t.Errorf("n=%d: final point missing", n)
		}
	}
}

func newTrackingFixture(t *testing.T, d *model.Delivery) (*TrackingService, *fakeLocationRepo) {
	t.Helper()
	couriers := newFakeCourierRepo(model.Courier{ID: "c-1", Name: "Maria Gomez", Role: model.RoleCourier, Active: true})
	locations := &fakeLocationRepo{}
	svc := NewTrackingService(newFakeDeliveryRepo(d), locations, couriers, testLogger(t))
	return svc, locations
}

func trackedDelivery(status string) *model.Delivery {
	courierID := "c-1"
	return &model.Delivery{
		ID:            "d-1",
		TrackingCode:  "DLV_20260831_A1B2C3",
		TrackingToken: "token-1",
		Address:       "Calle 50, Costa del Este, Panama",
		DestLat:       ptr(9.01),
		DestLng:       ptr(-79.47),
		CourierID:     &courierID,
		Status:        status,
		ScheduledDate: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotPendingHidesCoordinates(t *testing.T) {
	d := trackedDelivery(model.StatusPending)
	d.CourierID = nil
	svc, _ := newTrackingFixture(t, d)

	snap, err := svc.Snapshot(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DestLat != nil || snap.DestLng != nil {
		t.Error("PENDING must not expose destination coordinates")
	}
	if snap.Zone != "Zona: Costa del Este" {
		t.Errorf("zone = %q", snap.Zone)
	}
	if snap.Zone == d.Address {
		t.Error("zone must never equal the stored address")
	}
}

func TestSnapshotInTransit(t *testing.T) {
	svc, _ := newTrackingFixture(t, trackedDelivery(model.StatusInTransit))

	snap, err := svc.Snapshot(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DestLat == nil || snap.DestLng == nil {
		t.Error("IN_TRANSIT exposes destination coordinates")
	}
	if snap.CourierName == nil || *snap.CourierName != "Maria" {
		t.Errorf("courier name = %v, want first name only", snap.CourierName)
	}
}

func TestSnapshotDeliveredHasDeliveredAt(t *testing.T) {
	d := trackedDelivery(model.StatusDelivered)
	deliveredAt := time.Date(2026, 8, 31, 15, 4, 5, 0, time.UTC)
	d.DeliveredAt = &deliveredAt
	svc, _ := newTrackingFixture(t, d)

	snap, err := svc.Snapshot(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DeliveredAt == nil || *snap.DeliveredAt != "2026-08-31T15:04:05Z" {
		t.Errorf("deliveredAt = %v", snap.DeliveredAt)
	}
}

func TestSnapshotUnknownToken(t *testing.T) {
	svc, _ := newTrackingFixture(t, trackedDelivery(model.StatusPending))
	if _, err := svc.Snapshot(context.Background(), "no-such-token"); err == nil {
		t.Fatal("expected not found")
	}
}

func TestLocationSoftUnavailable(t *testing.T) {
	// not in transit yet
	svc, _ := newTrackingFixture(t, trackedDelivery(model.StatusAssigned))
	loc, err := svc.Location(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Available || loc.Message == "" {
		t.Errorf("loc = %+v, want soft unavailable", loc)
	}

	// in transit but no data yet: same soft answer, not an error
	svc, _ = newTrackingFixture(t, trackedDelivery(model.StatusInTransit))
	loc, err = svc.Location(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Available {
		t.Error("no route point yet, must be unavailable")
	}
}

func TestLocationAvailableInTransit(t *testing.T) {
	svc, locations := newTrackingFixture(t, trackedDelivery(model.StatusInTransit))
	locations.routePoints = []model.RoutePoint{
		{DeliveryID: "d-1", Latitude: 8.98, Longitude: -79.52, RecordedAt: time.Now()},
		{DeliveryID: "d-1", Latitude: 8.99, Longitude: -79.51, RecordedAt: time.Now()},
	}

	loc, err := svc.Location(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loc.Available {
		t.Fatal("expected live location")
	}
	if *loc.Lat != 8.99 || *loc.Lng != -79.51 {
		t.Errorf("location = (%v, %v), want latest point", *loc.Lat, *loc.Lng)
	}
}

func TestRouteGatedByStatus(t *testing.T) {
	svc, locations := newTrackingFixture(t, trackedDelivery(model.StatusAssigned))
	locations.routePoints = []model.RoutePoint{{DeliveryID: "d-1", Latitude: 8.98, Longitude: -79.52}}

	route, err := svc.Route(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Points) != 0 {
		t.Error("route must be empty before IN_TRANSIT")
	}
}

func TestRouteDecimated(t *testing.T) {
	svc, locations := newTrackingFixture(t, trackedDelivery(model.StatusInTransit))
	for i := 0; i < 12; i++ {
		locations.routePoints = append(locations.routePoints, model.RoutePoint{
			ID:         int64(i),
			DeliveryID: "d-1",
			Latitude:   8.98,
			Longitude:  -79.52,
			RecordedAt: time.Now(),
		})
	}

	route, err := svc.Route(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// indices 0, 5, 10 plus the final point 11
	if len(route.Points) != 4 {
		t.Errorf("points = %d, want 4", len(route.Points))
	}
}
