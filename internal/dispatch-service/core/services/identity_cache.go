package services

import (
	"context"
	"sync"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/mylogger"
)

type cacheEntry struct {
	identity model.CourierIdentity
	loadedAt time.Time
}

// IdentityCache is a read-through cache over the courier repository. Hits
// within the TTL window never touch storage; a courier deactivated mid-window
// keeps validating until expiry, an accepted trade-off for ingest throughput.
// Memory is bounded by distinct couriers, not message volume.
type IdentityCache struct {
	repo    ports.ICourierRepo
	ttl     time.Duration
	log     mylogger.Logger
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

var _ ports.IIdentityCache = (*IdentityCache)(nil)

func NewIdentityCache(repo ports.ICourierRepo, ttl time.Duration, log mylogger.Logger) *IdentityCache {
	return &IdentityCache{
		repo:    repo,
		ttl:     ttl,
		log:     log,
		entries: make(map[string]cacheEntry),
	}
}

func (c *IdentityCache) Get(ctx context.Context, courierID string) (model.CourierIdentity, bool) {
	c.mu.RLock()
	entry, ok := c.entries[courierID]
	c.mu.RUnlock()

	if ok && time.Since(entry.loadedAt) < c.ttl {
		metrics.IdentityCacheLookupsTotal.WithLabelValues("hit").Inc()
		return entry.identity, true
	}

	courier, err := c.repo.GetActiveCourier(ctx, courierID)
	if err != nil {
		// miss stays uncached: an unknown or inactive courier is re-checked
		// on its next message
		metrics.IdentityCacheLookupsTotal.WithLabelValues("miss").Inc()
		return model.CourierIdentity{}, false
	}

	identity := model.CourierIdentity{Name: courier.Name, Role: courier.Role}

	c.mu.Lock()
	c.entries[courierID] = cacheEntry{identity: identity, loadedAt: time.Now()}
	c.mu.Unlock()

	metrics.IdentityCacheLookupsTotal.WithLabelValues("load").Inc()
	return identity, true
}
