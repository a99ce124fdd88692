package main

import (
	"context"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
	"courier-dispatch/internal/mylogger"
)

const (
	activePollInterval = 30 * time.Second
	flushInterval      = time.Minute
	flushBatchSize     = 50
	maxQueuedLocations = 1000
)

// supervisor decides when the capture loop runs and opportunistically drains
// the local queue. Tracking only costs battery while a delivery is in
// transit, so the loop follows the server's answer to the active poll.
type supervisor struct {
	api   *apiClient
	prod  *producer
	queue *locationQueue
	log   mylogger.Logger
}

func newSupervisor(api *apiClient, prod *producer, queue *locationQueue, log mylogger.Logger) *supervisor {
	return &supervisor{
		api:   api,
		prod:  prod,
		queue: queue,
		log:   log,
	}
}

func (s *supervisor) Run(ctx context.Context) {
	s.poll(ctx)
	s.flush(ctx)

	pollTicker := time.NewTicker(activePollInterval)
	flushTicker := time.NewTicker(flushInterval)
	defer pollTicker.Stop()
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.prod.Stop(context.Background())
			return
		case <-pollTicker.C:
			s.poll(ctx)
		case <-flushTicker.C:
			s.flush(ctx)
		}
	}
}

func (s *supervisor) poll(ctx context.Context) {
	log := s.log.Action("active_poll")

	active, err := s.api.Active(ctx)
	if err != nil {
		// leave the loop in its current state, the next poll may succeed
		log.Warn("poll failed", "error", err.Error())
		return
	}

	s.prod.SetOnDuty(active)
	if active && !s.prod.Running() {
		s.prod.Start(ctx)
	} else if !active && s.prod.Running() {
		s.prod.Stop(ctx)
	}
}

// flush drains the queue oldest-first in bounded batches. The first failed
// batch stops the drain so queue order is preserved for the next attempt.
func (s *supervisor) flush(ctx context.Context) {
	log := s.log.Action("queue_flush")

	for {
		items, keys, err := s.queue.OldestBatch(flushBatchSize)
		if err != nil {
			log.Error("failed to read queue", err)
			return
		}
		if len(items) == 0 {
			return
		}

		res, err := s.api.Sync(ctx, dto.SyncRequest{Locations: items})
		if err != nil {
			log.Warn("batch send failed, keeping queue", "queued", len(items))
			return
		}
		if err := s.queue.Remove(keys); err != nil {
			log.Error("failed to remove sent entries", err)
			return
		}
		log.Info("batch flushed", "sent", res.LocationsAdded)
	}
}
