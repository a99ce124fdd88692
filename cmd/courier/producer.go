package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	brokerdto "courier-dispatch/internal/dispatch-service/core/domain/broker_dto"
	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/mylogger"
)

const (
	captureTick = time.Second

	idleDistanceM   = 10.0
	idleInterval    = 10 * time.Second
	activeDistanceM = 5.0
	activeInterval  = 5 * time.Second
)

// producer is the background capture task. It simulates GPS readings with a
// random walk and fires on the distance/time thresholds; a reading the broker
// refuses goes to the local queue instead of being lost.
type producer struct {
	courierID string
	token     string
	prefix    string
	pub       *publisher
	queue     *locationQueue
	log       mylogger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	onDuty  bool
	lat     float64
	lng     float64
	battery int
	rng     *rand.Rand
}

func newProducer(courierID, token, prefix string, pub *publisher, queue *locationQueue, log mylogger.Logger) *producer {
	return &producer{
		courierID: courierID,
		token:     token,
		prefix:    prefix,
		pub:       pub,
		queue:     queue,
		log:       log,
		// Panama City as the walk origin
		lat:     8.9824,
		lng:     -79.5199,
		battery: 100,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Running reports whether the capture loop is live.
func (p *producer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start launches the capture loop and announces presence. Idempotent.
func (p *producer) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.publishPresence(ctx, "online")
	go p.loop(loopCtx)
	p.log.Action("capture_started").Info("location capture running")
}

// Stop halts the capture loop and announces the courier offline. Idempotent.
func (p *producer) Stop(ctx context.Context) {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.publishPresence(ctx, "offline")
	p.log.Action("capture_stopped").Info("location capture stopped")
}

// SetOnDuty switches between the idle and active thresholds.
func (p *producer) SetOnDuty(onDuty bool) {
	p.mu.Lock()
	p.onDuty = onDuty
	p.mu.Unlock()
}

func (p *producer) loop(ctx context.Context) {
	ticker := time.NewTicker(captureTick)
	defer ticker.Stop()

	lastLat, lastLng := p.position()
	lastSent := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.step()
			lat, lng := p.position()

			minDist, minWait := idleDistanceM, idleInterval
			if p.isOnDuty() {
				minDist, minWait = activeDistanceM, activeInterval
			}

			moved := haversineMeters(lastLat, lastLng, lat, lng)
			if moved < minDist && time.Since(lastSent) < minWait {
				continue
			}

			speed := moved / captureTick.Seconds() * 3.6 // km/h
			p.send(ctx, lat, lng, speed)
			lastLat, lastLng = lat, lng
			lastSent = time.Now()
		}
	}
}

func (p *producer) send(ctx context.Context, lat, lng, speedKmh float64) {
	now := time.Now()
	ts := now.UnixMilli()
	accuracy := 5 + p.rng.Float64()*10
	battery := p.drainBattery()

	msg := brokerdto.LocationMessage{
		Token:    p.token,
		Lat:      &lat,
		Lng:      &lng,
		Accuracy: &accuracy,
		SpeedKmh: &speedKmh,
		Battery:  &battery,
		Ts:       &ts,
	}

	key := fmt.Sprintf("%s.%s.location", p.prefix, p.courierID)
	if err := p.pub.Publish(ctx, key, msg); err == nil {
		return
	}

	// direct send failed, keep the reading on device
	recordedAt := now.UTC().Format(time.RFC3339)
	item := dto.SyncLocationItem{
		Lat:        &lat,
		Lng:        &lng,
		Accuracy:   &accuracy,
		SpeedKmh:   &speedKmh,
		Battery:    &battery,
		RecordedAt: &recordedAt,
	}
	if err := p.queue.Append(item); err != nil {
		p.log.Action("enqueue").Error("reading lost", err)
		return
	}
	if err := p.queue.Trim(maxQueuedLocations); err != nil {
		p.log.Action("enqueue").Warn("queue trim failed", "error", err.Error())
	}
}

func (p *producer) publishPresence(ctx context.Context, status string) {
	ts := time.Now().UnixMilli()
	msg := brokerdto.PresenceMessage{Token: p.token, Status: status, Ts: &ts}

	key := fmt.Sprintf("%s.%s.presence", p.prefix, p.courierID)
	if err := p.pub.Publish(ctx, key, msg); err != nil {
		p.log.Action("presence").Warn("presence publish failed", "status", status)
	}
}

// step advances the random walk a few meters in a drifting direction.
func (p *producer) step() {
	p.mu.Lock()
	defer p.mu.Unlock()

	// roughly 0-8 m per tick
	p.lat += (p.rng.Float64() - 0.5) * 0.00014
	p.lng += (p.rng.Float64() - 0.5) * 0.00014
}

func (p *producer) position() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lat, p.lng
}

func (p *producer) isOnDuty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onDuty
}

func (p *producer) drainBattery() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.battery > 5 && p.rng.Intn(20) == 0 {
		p.battery--
	}
	return p.battery
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusM = 6371000.0

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
