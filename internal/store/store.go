package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/internal/router"
	"HibiscusGuard/pkg/geo"
	"HibiscusGuard/pkg/logger"
	"HibiscusGuard/pkg/metrics"
)

// Store holds the keyed in-memory collections of alerts and responders.
//
// Mutation happens only through ApplyAlertEvent, ApplyResponderEvent and
// the bulk Seed methods. Merge semantics are upsert-by-id with
// field-level merge: fields absent from a fragment leave the stored
// value untouched, so redelivering an identical fragment is a no-op.
type Store struct {
	mu         sync.RWMutex
	alerts     map[string]*models.Alert
	responders map[string]*models.Responder

	version uint64

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		alerts:     make(map[string]*models.Alert),
		responders: make(map[string]*models.Responder),
		watchers:   make(map[int]chan struct{}),
	}
}

// Watch returns a channel that receives a signal after each batch of
// changes, plus a cancel function. Signals coalesce: a slow consumer
// sees at least one signal for any number of missed batches.
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch

	return ch, func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if c, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(c)
		}
	}
}

// notify signals one completed batch of changes.
func (s *Store) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Version increases by one per applied batch.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ApplyAlertEvent applies one push event to the alert collection.
// kind alert_deleted removes the entity; every other kind merges the
// fragment. An unseen id inserts a new partial entity.
func (s *Store) ApplyAlertEvent(kind string, frag models.AlertFragment) {
	if frag.ID == "" {
		logger.Warn("alert event without id dropped", zap.String("kind", kind))
		return
	}

	s.mu.Lock()
	if kind == router.KindAlertDeleted {
		delete(s.alerts, frag.ID)
	} else {
		existing, ok := s.alerts[frag.ID]
		if !ok {
			existing = &models.Alert{ID: frag.ID, Status: models.AlertStatusOpen, CreatedAt: time.Now()}
			s.alerts[frag.ID] = existing
		}
		mergeAlert(existing, frag, kind)
	}
	s.version++
	alertCount := len(s.alerts)
	s.mu.Unlock()

	if mt := metrics.Global(); mt != nil {
		mt.SetEntityCount("alert", alertCount)
	}
	s.notify()
}

// ApplyResponderEvent applies one push event to the responder collection.
func (s *Store) ApplyResponderEvent(kind string, frag models.ResponderFragment) {
	if frag.ID == "" {
		logger.Warn("responder event without id dropped", zap.String("kind", kind))
		return
	}

	s.mu.Lock()
	existing, ok := s.responders[frag.ID]
	if !ok {
		existing = &models.Responder{ID: frag.ID, Status: models.ResponderStatusOffline}
		s.responders[frag.ID] = existing
	}
	mergeResponder(existing, frag)
	s.version++
	responderCount := len(s.responders)
	s.mu.Unlock()

	if mt := metrics.Global(); mt != nil {
		mt.SetEntityCount("responder", responderCount)
	}
	s.notify()
}

// SeedAlerts merges a bulk fetch result as a single batch. Each
// entity goes through the same merge path as push events, so a stale
// in-flight poll response cannot walk a terminal status back.
func (s *Store) SeedAlerts(alerts []models.Alert) {
	s.mu.Lock()
	for i := range alerts {
		a := alerts[i]
		existing, ok := s.alerts[a.ID]
		if !ok {
			s.alerts[a.ID] = &a
			continue
		}
		mergeAlert(existing, alertSnapshotFragment(&a), "seed")
	}
	s.version++
	alertCount := len(s.alerts)
	s.mu.Unlock()

	if mt := metrics.Global(); mt != nil {
		mt.SetEntityCount("alert", alertCount)
	}
	s.notify()
}

// SeedResponders merges a bulk fetch result as a single batch.
func (s *Store) SeedResponders(responders []models.Responder) {
	s.mu.Lock()
	for i := range responders {
		r := responders[i]
		existing, ok := s.responders[r.ID]
		if !ok {
			s.responders[r.ID] = &r
			continue
		}
		mergeResponder(existing, responderSnapshotFragment(&r))
	}
	s.version++
	responderCount := len(s.responders)
	s.mu.Unlock()

	if mt := metrics.Global(); mt != nil {
		mt.SetEntityCount("responder", responderCount)
	}
	s.notify()
}

// alertSnapshotFragment represents a full bulk-fetch entity as a
// fragment carrying every field, so seeds share the merge path.
func alertSnapshotFragment(a *models.Alert) models.AlertFragment {
	return models.AlertFragment{
		ID:                  a.ID,
		Type:                &a.Type,
		Status:              &a.Status,
		Location:            a.Location,
		Note:                &a.Note,
		CreatedAt:           &a.CreatedAt,
		AssignedResponderID: &a.AssignedResponderID,
		ETASeconds:          a.ETASeconds,
		MediaRefs:           a.MediaRefs,
		ResolvedAt:          a.ResolvedAt,
		MarkedDoneAt:        a.MarkedDoneAt,
	}
}

// responderSnapshotFragment mirrors alertSnapshotFragment for
// responders.
func responderSnapshotFragment(r *models.Responder) models.ResponderFragment {
	return models.ResponderFragment{
		ID:             r.ID,
		Name:           &r.Name,
		Specialization: &r.Specialization,
		Status:         &r.Status,
		Location:       r.Location,
		LastSeen:       &r.LastSeen,
	}
}

// mergeAlert overlays the fields present in frag onto dst.
func mergeAlert(dst *models.Alert, frag models.AlertFragment, kind string) {
	if frag.Status != nil && *frag.Status != dst.Status {
		if models.StatusRegressive(dst.Status, *frag.Status) {
			// Protocol anomaly: the server should never walk the
			// lifecycle backwards. A terminal status is kept; other
			// regressions apply because the server is authoritative.
			logger.Warn("regressive alert status transition",
				zap.String("alert_id", dst.ID),
				zap.String("kind", kind),
				zap.String("from", dst.Status),
				zap.String("to", *frag.Status))
			if !dst.IsTerminal() {
				dst.Status = *frag.Status
			}
		} else {
			dst.Status = *frag.Status
		}
	}
	if frag.Type != nil {
		dst.Type = *frag.Type
	}
	if frag.Location != nil {
		loc := *frag.Location
		dst.Location = &loc
	}
	if frag.Note != nil {
		dst.Note = *frag.Note
	}
	if frag.CreatedAt != nil {
		dst.CreatedAt = *frag.CreatedAt
	}
	if frag.AssignedResponderID != nil {
		dst.AssignedResponderID = *frag.AssignedResponderID
	}
	if frag.ETASeconds != nil {
		eta := *frag.ETASeconds
		dst.ETASeconds = &eta
	}
	if frag.MediaRefs != nil {
		dst.MediaRefs = append([]string(nil), frag.MediaRefs...)
	}
	if frag.ResolvedAt != nil {
		t := *frag.ResolvedAt
		dst.ResolvedAt = &t
	}
	if frag.MarkedDoneAt != nil {
		t := *frag.MarkedDoneAt
		dst.MarkedDoneAt = &t
	}
}

// mergeResponder overlays the fields present in frag onto dst.
func mergeResponder(dst *models.Responder, frag models.ResponderFragment) {
	if frag.Name != nil {
		dst.Name = *frag.Name
	}
	if frag.Specialization != nil {
		dst.Specialization = *frag.Specialization
	}
	if frag.Status != nil {
		dst.Status = *frag.Status
	}
	if frag.Location != nil {
		p := *frag.Location
		dst.Location = &p
	}
	if frag.LastSeen != nil {
		dst.LastSeen = *frag.LastSeen
	}
}

// Alert returns a copy of one alert.
func (s *Store) Alert(id string) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, false
	}
	return *a, true
}

// Responder returns a copy of one responder.
func (s *Store) Responder(id string) (models.Responder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responders[id]
	if !ok {
		return models.Responder{}, false
	}
	return *r, true
}

// Alerts returns a copy of every alert.
func (s *Store) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	return out
}

// LiveAlerts returns alerts currently open, assigned or in progress.
// Terminal alerts stay stored but drop out of this projection.
func (s *Store) LiveAlerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.IsLive() {
			out = append(out, *a)
		}
	}
	return out
}

// AlertsNear returns live alerts within radiusKm of point.
func (s *Store) AlertsNear(point geo.Point, radiusKm float64) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0)
	for _, a := range s.alerts {
		if !a.IsLive() || a.Location == nil {
			continue
		}
		if geo.WithinRadius(point, a.Location.Point(), radiusKm) {
			out = append(out, *a)
		}
	}
	return out
}

// Responders returns a copy of every responder.
func (s *Store) Responders() []models.Responder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Responder, 0, len(s.responders))
	for _, r := range s.responders {
		out = append(out, *r)
	}
	return out
}

// AvailableResponders returns responders with status available.
func (s *Store) AvailableResponders() []models.Responder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Responder, 0)
	for _, r := range s.responders {
		if r.Status == models.ResponderStatusAvailable {
			out = append(out, *r)
		}
	}
	return out
}
