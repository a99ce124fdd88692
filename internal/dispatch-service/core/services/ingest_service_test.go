package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	brokerdto "courier-dispatch/internal/dispatch-service/core/domain/broker_dto"
	"courier-dispatch/internal/dispatch-service/core/domain/model"
	websocketdto "courier-dispatch/internal/dispatch-service/core/domain/websocket_dto"
)

type ingestFixture struct {
	service    *IngestService
	couriers   *fakeCourierRepo
	deliveries *fakeDeliveryRepo
	locations  *fakeLocationRepo
	fanout     *fakeFanout
}

func newIngestFixture(t *testing.T, deliveries ...*model.Delivery) *ingestFixture {
	t.Helper()
	couriers := newFakeCourierRepo(model.Courier{ID: "c-1", Name: "Maria Gomez", Role: model.RoleCourier, Active: true})
	deliveryRepo := newFakeDeliveryRepo(deliveries...)
	locations := &fakeLocationRepo{}
	fanout := &fakeFanout{}

	auth := NewAuthService(testSecret)
	cache := NewIdentityCache(couriers, time.Minute, testLogger(t))
	service := NewIngestService(auth, cache, locations, deliveryRepo, fanout, testLogger(t))

	return &ingestFixture{
		service:    service,
		couriers:   couriers,
		deliveries: deliveryRepo,
		locations:  locations,
		fanout:     fanout,
	}
}

func locationPayload(t *testing.T, msg brokerdto.LocationMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestProcessLocationAccepted(t *testing.T) {
	fx := newIngestFixture(t)
	body := locationPayload(t, brokerdto.LocationMessage{
		Token: signToken(t, "c-1", model.RoleCourier, time.Hour),
		Lat:   ptr(8.9824),
		Lng:   ptr(-79.5199),
	})

	if err := fx.service.ProcessLocation(context.Background(), "c-1", body); err != nil {
		t.Fatalf("unexpected drop: %v", err)
	}

	if len(fx.locations.samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(fx.locations.samples))
	}
	if len(fx.locations.routePoints) != 0 {
		t.Errorf("no delivery in transit, route points = %d, want 0", len(fx.locations.routePoints))
	}

	events := fx.fanout.Events()
	if len(events) != 1 || events[0].Type != websocketdto.TypeCourierLocation {
		t.Fatalf("events = %+v", events)
	}
	loc := events[0].Data.(websocketdto.CourierLocation)
	if loc.CourierID != "c-1" || loc.FullName != "Maria Gomez" {
		t.Errorf("broadcast = %+v", loc)
	}
}

func TestProcessLocationAppendsRoutePointWhileInTransit(t *testing.T) {
	courierID := "c-1"
	fx := newIngestFixture(t, &model.Delivery{
		ID:        "d-1",
		CourierID: &courierID,
		Status:    model.StatusInTransit,
	})
	body := locationPayload(t, brokerdto.LocationMessage{
		Token: signToken(t, "c-1", model.RoleCourier, time.Hour),
		Lat:   ptr(8.98),
		Lng:   ptr(-79.52),
	})

	if err := fx.service.ProcessLocation(context.Background(), "c-1", body); err != nil {
		t.Fatalf("unexpected drop: %v", err)
	}

	if len(fx.locations.routePoints) != 1 {
		t.Fatalf("route points = %d, want 1", len(fx.locations.routePoints))
	}
	if fx.locations.routePoints[0].DeliveryID != "d-1" {
		t.Errorf("route point delivery = %s", fx.locations.routePoints[0].DeliveryID)
	}
}

func TestProcessLocationSubjectMismatchDropped(t *testing.T) {
	fx := newIngestFixture(t)

	// credential for c-1, published on c-2's topic
	body := locationPayload(t, brokerdto.LocationMessage{
		Token: signToken(t, "c-1", model.RoleCourier, time.Hour),
		Lat:   ptr(8.98),
		Lng:   ptr(-79.52),
	})

	if err := fx.service.ProcessLocation(context.Background(), "c-2", body); err == nil {
		t.Fatal("expected drop")
	}
	if len(fx.locations.samples) != 0 {
		t.Errorf("no sample may be stored on auth mismatch, got %d", len(fx.locations.samples))
	}
	if len(fx.fanout.Events()) != 0 {
		t.Error("nothing may be broadcast on auth mismatch")
	}
}

func TestProcessLocationMalformed(t *testing.T) {
	fx := newIngestFixture(t)

	if err := fx.service.ProcessLocation(context.Background(), "c-1", []byte("{not json")); err == nil {
		t.Fatal("expected drop")
	}

	body := locationPayload(t, brokerdto.LocationMessage{
		Token: signToken(t, "c-1", model.RoleCourier, time.Hour),
		Lat:   ptr(95.0), // out of range
		Lng:   ptr(-79.52),
	})
	if err := fx.service.ProcessLocation(context.Background(), "c-1", body); err == nil {
		t.Fatal("expected latitude drop")
	}

	body = locationPayload(t, brokerdto.LocationMessage{
		Token:   signToken(t, "c-1", model.RoleCourier, time.Hour),
		Lat:     ptr(8.98),
		Lng:     ptr(-79.52),
		Battery: ptr(150),
	})
	if err := fx.service.ProcessLocation(context.Background(), "c-1", body); err == nil {
		t.Fatal("expected battery drop")
	}

	if len(fx.locations.samples) != 0 {
		t.Errorf("samples = %d, want 0", len(fx.locations.samples))
	}
}

func TestProcessLocationUnknownCourier(t *testing.T) {
	fx := newIngestFixture(t)

	body := locationPayload(t, brokerdto.LocationMessage{
		Token: signToken(t, "ghost", model.RoleCourier, time.Hour),
		Lat:   ptr(8.98),
		Lng:   ptr(-79.52),
	})
	if err := fx.service.ProcessLocation(context.Background(), "ghost", body); err == nil {
		t.Fatal("expected unknown courier drop")
	}
	if len(fx.locations.samples) != 0 {
		t.Errorf("samples = %d, want 0", len(fx.locations.samples))
	}
}

func TestProcessPresenceOffline(t *testing.T) {
	fx := newIngestFixture(t)
	body, _ := json.Marshal(brokerdto.PresenceMessage{
		Token:  signToken(t, "c-1", model.RoleCourier, time.Hour),
		Status: PresenceOffline,
	})

	if err := fx.service.ProcessPresence(context.Background(), "c-1", body); err != nil {
		t.Fatalf("unexpected drop: %v", err)
	}

	events := fx.fanout.Events()
	if len(events) != 1 || events[0].Type != websocketdto.TypeCourierOffline {
		t.Fatalf("events = %+v", events)
	}
}

func TestProcessPresenceOnlineSilent(t *testing.T) {
	fx := newIngestFixture(t)
	body, _ := json.Marshal(brokerdto.PresenceMessage{
		Token:  signToken(t, "c-1", model.RoleCourier, time.Hour),
		Status: PresenceOnline,
	})

	if err := fx.service.ProcessPresence(context.Background(), "c-1", body); err != nil {
		t.Fatalf("unexpected drop: %v", err)
	}
	if len(fx.fanout.Events()) != 0 {
		t.Error("online presence must not broadcast")
	}
}

func TestProcessPresenceInvalidStatus(t *testing.T) {
	fx := newIngestFixture(t)
	body, _ := json.Marshal(brokerdto.PresenceMessage{
		Token:  signToken(t, "c-1", model.RoleCourier, time.Hour),
		Status: "sleeping",
	})

	if err := fx.service.ProcessPresence(context.Background(), "c-1", body); err == nil {
		t.Fatal("expected drop")
	}
}
