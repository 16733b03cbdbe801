package mapsync

import (
	"sync"

	"go.uber.org/zap"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/logger"
	"HibiscusGuard/pkg/metrics"
)

// Handle is the surface's opaque reference to one visual marker. The
// reconciler is the only component allowed to hold one.
type Handle interface{}

// Surface is the visual map a reconciler drives. Implementations must
// move markers in place on Update rather than recreating them.
type Surface interface {
	AddMarker(id string, m Marker) (Handle, error)
	UpdateMarker(h Handle, m Marker) error
	RemoveMarker(h Handle) error
}

// Snapshot is one consistent view of everything to display.
type Snapshot struct {
	Alerts     []models.Alert
	Responders []models.Responder
	Self       *models.Fix
}

// Stats counts the operations of one reconciliation pass.
type Stats struct {
	Created int
	Updated int
	Removed int
}

// selfID is the arena key of the device's own marker.
const selfID = "self"

// Reconciler keeps the surface's marker set equal to the entity
// snapshot with the minimal number of create/update/remove
// operations. It runs once per batch of changes, never per entity.
type Reconciler struct {
	mu      sync.Mutex
	surface Surface
	handles map[string]Handle
}

// NewReconciler creates a reconciler over the given surface.
func NewReconciler(surface Surface) *Reconciler {
	return &Reconciler{
		surface: surface,
		handles: make(map[string]Handle),
	}
}

// MarkerCount returns the number of markers currently on the surface.
func (r *Reconciler) MarkerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Reconcile applies one snapshot to the surface: existing markers are
// updated in place, new entities get a marker, and markers whose
// entity left the snapshot are removed and released.
func (r *Reconciler) Reconcile(snap Snapshot) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats Stats
	visited := make(map[string]bool, len(r.handles))

	for _, a := range snap.Alerts {
		if a.Location == nil {
			continue
		}
		r.apply("alert_"+a.ID, alertMarker(a), visited, &stats)
	}
	for _, resp := range snap.Responders {
		if resp.Location == nil {
			continue
		}
		r.apply("responder_"+resp.ID, responderMarker(resp), visited, &stats)
	}
	if snap.Self != nil {
		r.apply(selfID, selfMarker(*snap.Self), visited, &stats)
	}

	// Anything not visited this pass is gone from the snapshot.
	for id, h := range r.handles {
		if visited[id] {
			continue
		}
		if err := r.surface.RemoveMarker(h); err != nil {
			logger.Warn("marker removal failed", zap.String("id", id), zap.Error(err))
		}
		delete(r.handles, id)
		stats.Removed++
	}

	if mt := metrics.Global(); mt != nil {
		mt.RecordMarkerOp("create", stats.Created)
		mt.RecordMarkerOp("update", stats.Updated)
		mt.RecordMarkerOp("remove", stats.Removed)
		mt.SetMarkerCount(len(r.handles))
	}
	return stats
}

// apply upserts one marker and records the visit.
func (r *Reconciler) apply(id string, m Marker, visited map[string]bool, stats *Stats) {
	visited[id] = true
	if h, ok := r.handles[id]; ok {
		if err := r.surface.UpdateMarker(h, m); err != nil {
			logger.Warn("marker update failed", zap.String("id", id), zap.Error(err))
			return
		}
		stats.Updated++
		return
	}
	h, err := r.surface.AddMarker(id, m)
	if err != nil {
		logger.Warn("marker creation failed", zap.String("id", id), zap.Error(err))
		return
	}
	r.handles[id] = h
	stats.Created++
}

// Clear removes every marker, releasing the surface's resources.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.handles {
		if err := r.surface.RemoveMarker(h); err != nil {
			logger.Warn("marker removal failed", zap.String("id", id), zap.Error(err))
		}
		delete(r.handles, id)
	}
	if mt := metrics.Global(); mt != nil {
		mt.SetMarkerCount(0)
	}
}
