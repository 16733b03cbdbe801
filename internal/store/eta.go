package store

import (
	"context"
	"fmt"
	"time"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/cache"
	"HibiscusGuard/pkg/geo"
)

// ETAEstimator derives an arrival estimate for an alert from the
// nearest available responder, at an assumed travel speed. Estimates
// are cached with a short TTL so a burst of reads does not rescan the
// responder set.
type ETAEstimator struct {
	store    *Store
	cache    cache.Cache
	speedKmh float64
	ttl      time.Duration
}

// NewETAEstimator creates an estimator backed by c.
func NewETAEstimator(s *Store, c cache.Cache, speedKmh float64, ttl time.Duration) *ETAEstimator {
	if speedKmh <= 0 {
		speedKmh = 40
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ETAEstimator{store: s, cache: c, speedKmh: speedKmh, ttl: ttl}
}

// Estimate returns the estimated seconds until the nearest available
// responder reaches the alert, or false when no estimate is possible.
func (e *ETAEstimator) Estimate(ctx context.Context, alertID string) (float64, bool) {
	key := fmt.Sprintf("eta:%s", alertID)
	if eta, ok := cache.GetFloat64(ctx, e.cache, key); ok {
		return eta, true
	}

	alert, ok := e.store.Alert(alertID)
	if !ok || alert.Location == nil {
		return 0, false
	}

	// A server-provided ETA wins over the local estimate.
	if alert.ETASeconds != nil {
		return *alert.ETASeconds, true
	}

	nearest, ok := e.nearestAvailable(alert.Location.Point())
	if !ok {
		return 0, false
	}

	distanceKm := geo.Distance(alert.Location.Point(), *nearest.Location)
	eta := distanceKm / e.speedKmh * 3600

	_ = e.cache.Set(ctx, key, eta, e.ttl)
	return eta, true
}

// nearestAvailable scans available responders with a known position.
func (e *ETAEstimator) nearestAvailable(point geo.Point) (models.Responder, bool) {
	var best models.Responder
	bestDist := -1.0
	for _, r := range e.store.AvailableResponders() {
		if r.Location == nil {
			continue
		}
		d := geo.Distance(point, *r.Location)
		if bestDist < 0 || d < bestDist {
			best = r
			bestDist = d
		}
	}
	return best, bestDist >= 0
}
