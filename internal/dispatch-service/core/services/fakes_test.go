package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
	websocketdto "courier-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/mylogger"

	"github.com/golang-jwt/jwt"
)

const testSecret = "test-secret"

func testLogger(t *testing.T) mylogger.Logger {
	t.Helper()
	log, err := mylogger.New(mylogger.LevelError)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func signToken(t *testing.T, userID, role string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func ptr[T any](v T) *T { return &v }

type fakeCourierRepo struct {
	mu       sync.Mutex
	couriers map[string]model.Courier
	calls    int
}

func newFakeCourierRepo(couriers ...model.Courier) *fakeCourierRepo {
	m := make(map[string]model.Courier)
	for _, c := range couriers {
		m[c.ID] = c
	}
	return &fakeCourierRepo{couriers: m}
}

func (f *fakeCourierRepo) GetActiveCourier(_ context.Context, courierID string) (model.Courier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	c, ok := f.couriers[courierID]
	if !ok || !c.Active {
		return model.Courier{}, myerrors.ErrNotFound
	}
	return c, nil
}

// fakeDeliveryRepo applies the same conditional-guard semantics as the real
// repository, just in memory.
type fakeDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[string]*model.Delivery
}

func newFakeDeliveryRepo(deliveries ...*model.Delivery) *fakeDeliveryRepo {
	m := make(map[string]*model.Delivery)
	for _, d := range deliveries {
		m[d.ID] = d
	}
	return &fakeDeliveryRepo{deliveries: m}
}

func (f *fakeDeliveryRepo) Create(_ context.Context, d model.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries[d.ID] = &d
	return nil
}

func (f *fakeDeliveryRepo) GetByID(_ context.Context, id string) (model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return model.Delivery{}, myerrors.ErrNotFound
	}
	return *d, nil
}

func (f *fakeDeliveryRepo) GetByToken(_ context.Context, token string) (model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deliveries {
		if d.TrackingToken == token {
			return *d, nil
		}
	}
	return model.Delivery{}, myerrors.ErrNotFound
}

func (f *fakeDeliveryRepo) ApplyStatusUpdate(_ context.Context, upd ports.StatusUpdate) (model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[upd.DeliveryID]
	if !ok {
		return model.Delivery{}, myerrors.ErrNotFound
	}
	if !statusIn(d.Status, upd.AllowedFrom) {
		return model.Delivery{}, myerrors.ErrStatusConflict
	}
	applyUpdate(d, upd)
	return *d, nil
}

func (f *fakeDeliveryRepo) ApplySyncUpdate(_ context.Context, courierID string, upd ports.StatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[upd.DeliveryID]
	if !ok {
		return false, nil
	}
	if d.CourierID == nil || *d.CourierID != courierID {
		return false, nil
	}
	if !statusIn(d.Status, upd.AllowedFrom) {
		return false, nil
	}
	applyUpdate(d, upd)
	return true, nil
}

func (f *fakeDeliveryRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deliveries[id]; !ok {
		return myerrors.ErrNotFound
	}
	delete(f.deliveries, id)
	return nil
}

func (f *fakeDeliveryRepo) ListActiveByCourier(_ context.Context, courierID string) ([]model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Delivery
	for _, d := range f.deliveries {
		if d.OwnedBy(courierID) && (d.Status == model.StatusAssigned || d.Status == model.StatusInTransit) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) ListByStatus(_ context.Context, status string) ([]model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Delivery
	for _, d := range f.deliveries {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) GetInTransitByCourier(_ context.Context, courierID string) (model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deliveries {
		if d.OwnedBy(courierID) && d.Status == model.StatusInTransit {
			return *d, nil
		}
	}
	return model.Delivery{}, myerrors.ErrNotFound
}

func (f *fakeDeliveryRepo) HasActiveDelivery(_ context.Context, courierID string) (bool, error) {
	_, err := f.GetInTransitByCourier(context.Background(), courierID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func statusIn(status string, allowed []string) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func applyUpdate(d *model.Delivery, upd ports.StatusUpdate) {
	d.Status = upd.NextStatus
	if upd.ClearCourier {
		d.CourierID = nil
	} else if upd.CourierID != nil {
		d.CourierID = upd.CourierID
	}
	if upd.ScheduledDate != nil {
		d.ScheduledDate = *upd.ScheduledDate
	}
	if upd.BumpRescheduled {
		d.RescheduledCount++
	}
	if upd.RescheduleReason != nil {
		d.RescheduleReason = upd.RescheduleReason
	}
	if upd.CancelReason != nil {
		d.CancelReason = upd.CancelReason
	}
	if upd.CancelledAt != nil {
		d.CancelledAt = upd.CancelledAt
	}
	if upd.PhotoURL != nil {
		d.PhotoURL = upd.PhotoURL
	}
	if upd.SignatureURL != nil {
		d.SignatureURL = upd.SignatureURL
	}
	if upd.DeliveryLat != nil {
		d.DeliveryLat = upd.DeliveryLat
	}
	if upd.DeliveryLng != nil {
		d.DeliveryLng = upd.DeliveryLng
	}
	if upd.DeliveryNotes != nil {
		d.DeliveryNotes = upd.DeliveryNotes
	}
	if upd.DeliveredAt != nil {
		d.DeliveredAt = upd.DeliveredAt
	}
	if upd.LocalRef != nil {
		d.LocalRef = upd.LocalRef
	}
	if upd.TouchSyncedAt {
		now := time.Now().UTC()
		d.LastSyncedAt = &now
	}
	d.UpdatedAt = time.Now().UTC()
}

type fakeLocationRepo struct {
	mu          sync.Mutex
	samples     []model.LocationSample
	routePoints []model.RoutePoint
	positions   []model.CourierPosition
}

func (f *fakeLocationRepo) InsertSample(_ context.Context, s model.LocationSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeLocationRepo) BulkInsertSamples(_ context.Context, samples []model.LocationSample) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, samples...)
	return len(samples), nil
}

func (f *fakeLocationRepo) LatestPerCourier(_ context.Context) ([]model.CourierPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, nil
}

func (f *fakeLocationRepo) InsertRoutePoint(_ context.Context, p model.RoutePoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routePoints = append(f.routePoints, p)
	return nil
}

func (f *fakeLocationRepo) LatestRoutePoint(_ context.Context, deliveryID string) (model.RoutePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.routePoints) - 1; i >= 0; i-- {
		if f.routePoints[i].DeliveryID == deliveryID {
			return f.routePoints[i], nil
		}
	}
	return model.RoutePoint{}, myerrors.ErrNotFound
}

func (f *fakeLocationRepo) RoutePoints(_ context.Context, deliveryID string) ([]model.RoutePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.RoutePoint
	for _, p := range f.routePoints {
		if p.DeliveryID == deliveryID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFanout struct {
	mu     sync.Mutex
	events []websocketdto.Event
}

func (f *fakeFanout) Broadcast(event websocketdto.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeFanout) Events() []websocketdto.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]websocketdto.Event(nil), f.events...)
}
