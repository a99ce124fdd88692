package bm

import (
	"context"
	"sync"
	"testing"
	"time"

	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/mylogger"

	amqp "github.com/rabbitmq/amqp091-go"
)

func testLog(t *testing.T) mylogger.Logger {
	t.Helper()
	log, err := mylogger.New(mylogger.LevelError)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type fakeBroker struct {
	mu       sync.Mutex
	consumes int
	chans    []chan amqp.Delivery
}

func (f *fakeBroker) PublishJSON(context.Context, string, string, any) error { return nil }

func (f *fakeBroker) Consume(_ context.Context, _, _ string, _ ports.ConsumeOptions) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumes++
	ch := make(chan amqp.Delivery)
	f.chans = append(f.chans, ch)
	return ch, nil
}

func (f *fakeBroker) IsAlive() bool { return true }
func (f *fakeBroker) Close() error  { return nil }

func (f *fakeBroker) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.chans {
		close(ch)
	}
	f.chans = nil
}

func (f *fakeBroker) waitForConsumes(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		got := f.consumes
		f.mu.Unlock()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("consume calls = %d, want >= %d", got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeAcknowledger struct {
	mu   sync.Mutex
	acks int
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(uint64, bool, bool) error { return nil }
func (f *fakeAcknowledger) Reject(uint64, bool) error     { return nil }

func (f *fakeAcknowledger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks
}

func TestCourierIDFromKey(t *testing.T) {
	c := &TelemetryConsumer{topicPrefix: "couriers"}

	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"couriers.c-1.location", "c-1", false},
		{"couriers.550e8400-e29b-41d4-a716-446655440000.presence", "550e8400-e29b-41d4-a716-446655440000", false},
		{"couriers..location", "", true},
		{"couriers.c-1", "", true},
		{"couriers.c-1.location.extra", "", true},
		{"fleet.c-1.location", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := c.courierIDFromKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("courierIDFromKey(%q): err = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("courierIDFromKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

// A closed delivery channel means the broker connection died. The consumer
// must come back on its own, with a fresh declare/bind/consume.
func TestSubscribeResumesAfterChannelClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fb := &fakeBroker{}
	c := &TelemetryConsumer{
		ctx:         ctx,
		log:         testLog(t),
		broker:      fb,
		topicPrefix: "couriers",
		retry:       5 * time.Millisecond,
	}

	go c.subscribe(locationQueue, "couriers.*.location", "location",
		func(context.Context, string, []byte) error { return nil })

	fb.waitForConsumes(t, 1)
	fb.closeAll()
	fb.waitForConsumes(t, 2)
}

func TestSubscribeStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fb := &fakeBroker{}
	c := &TelemetryConsumer{
		ctx:         ctx,
		log:         testLog(t),
		broker:      fb,
		topicPrefix: "couriers",
		retry:       5 * time.Millisecond,
	}

	done := make(chan struct{})
	go func() {
		c.subscribe(locationQueue, "couriers.*.location", "location",
			func(context.Context, string, []byte) error { return nil })
		close(done)
	}()

	fb.waitForConsumes(t, 1)
	cancel()
	fb.closeAll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribe did not stop after context cancellation")
	}
}

func TestHandlerPanicDoesNotStopLoop(t *testing.T) {
	c := &TelemetryConsumer{ctx: context.Background(), log: testLog(t), topicPrefix: "couriers"}

	ack := &fakeAcknowledger{}
	msgCh := make(chan amqp.Delivery, 2)
	msgCh <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: "couriers.c-1.location", Body: []byte(`{}`)}
	msgCh <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, RoutingKey: "couriers.c-2.location", Body: []byte(`{}`)}
	close(msgCh)

	var handled []string
	c.loop(c.log.Action("consume_location"), msgCh, func(_ context.Context, courierID string, _ []byte) error {
		handled = append(handled, courierID)
		if courierID == "c-1" {
			panic("boom")
		}
		return nil
	})

	if len(handled) != 2 || handled[1] != "c-2" {
		t.Fatalf("handled couriers = %v", handled)
	}
	if got := ack.count(); got != 2 {
		t.Errorf("acks = %d, want 2", got)
	}
}
