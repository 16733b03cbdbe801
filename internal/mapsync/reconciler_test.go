package mapsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/geo"
)

// fakeSurface records marker operations and current marker content.
type fakeSurface struct {
	next    int
	markers map[int]Marker
	adds    int
	updates int
	removes int
}

type fakeHandle struct{ id int }

func newFakeSurface() *fakeSurface {
	return &fakeSurface{markers: make(map[int]Marker)}
}

func (s *fakeSurface) AddMarker(id string, m Marker) (Handle, error) {
	s.next++
	s.markers[s.next] = m
	s.adds++
	return fakeHandle{id: s.next}, nil
}

func (s *fakeSurface) UpdateMarker(h Handle, m Marker) error {
	s.markers[h.(fakeHandle).id] = m
	s.updates++
	return nil
}

func (s *fakeSurface) RemoveMarker(h Handle) error {
	delete(s.markers, h.(fakeHandle).id)
	s.removes++
	return nil
}

func (s *fakeSurface) resetCounts() {
	s.adds, s.updates, s.removes = 0, 0, 0
}

func loc(lat, lng float64) *models.AlertLocation {
	return &models.AlertLocation{Lat: lat, Lng: lng}
}

func TestReconcileCreatesMarkers(t *testing.T) {
	sfc := newFakeSurface()
	rec := NewReconciler(sfc)

	stats := rec.Reconcile(Snapshot{
		Alerts: []models.Alert{
			{ID: "a1", Type: models.AlertTypeFire, Status: models.AlertStatusOpen, Location: loc(19, 72)},
			{ID: "a2", Type: models.AlertTypeMedical, Status: models.AlertStatusOpen, Location: loc(19.1, 72.1)},
		},
		Responders: []models.Responder{
			{ID: "r1", Status: models.ResponderStatusAvailable, Location: &geo.Point{Lat: 18, Lng: 71}},
		},
		Self: &models.Fix{Lat: 19.05, Lng: 72.05},
	})

	assert.Equal(t, Stats{Created: 4}, stats)
	assert.Equal(t, 4, rec.MarkerCount())
	assert.Equal(t, 4, sfc.adds)
}

func TestReconcileDiffIsMinimal(t *testing.T) {
	sfc := newFakeSurface()
	rec := NewReconciler(sfc)

	rec.Reconcile(Snapshot{Alerts: []models.Alert{
		{ID: "keep", Status: models.AlertStatusOpen, Location: loc(1, 1)},
		{ID: "drop", Status: models.AlertStatusOpen, Location: loc(2, 2)},
	}})
	sfc.resetCounts()

	stats := rec.Reconcile(Snapshot{Alerts: []models.Alert{
		{ID: "keep", Status: models.AlertStatusAssigned, Location: loc(1, 1)},
		{ID: "new", Status: models.AlertStatusOpen, Location: loc(3, 3)},
	}})

	assert.Equal(t, Stats{Created: 1, Updated: 1, Removed: 1}, stats)
	assert.Equal(t, 1, sfc.adds)
	assert.Equal(t, 1, sfc.updates)
	assert.Equal(t, 1, sfc.removes)
	assert.Equal(t, 2, rec.MarkerCount())
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	sfc := newFakeSurface()
	rec := NewReconciler(sfc)

	rec.Reconcile(Snapshot{Alerts: []models.Alert{
		{ID: "a1", Type: models.AlertTypeFire, Status: models.AlertStatusOpen, Location: loc(1, 1)},
	}})
	require.Equal(t, 1, sfc.adds)

	rec.Reconcile(Snapshot{Alerts: []models.Alert{
		{ID: "a1", Type: models.AlertTypeFire, Status: models.AlertStatusAssigned, Location: loc(1, 1), AssignedResponderID: "r7"},
	}})

	assert.Equal(t, 1, sfc.adds, "the existing marker moves, it is not recreated")
	require.Len(t, sfc.markers, 1)
	for _, m := range sfc.markers {
		assert.Equal(t, "orange", m.Color)
		assert.Contains(t, m.Popup, "assigned")
		assert.Contains(t, m.Popup, "Responder: r7", "popup regenerated from the latest fields")
	}
}

func TestReconcileSkipsUnlocatedEntities(t *testing.T) {
	sfc := newFakeSurface()
	rec := NewReconciler(sfc)

	stats := rec.Reconcile(Snapshot{
		Alerts:     []models.Alert{{ID: "a1", Status: models.AlertStatusOpen}},
		Responders: []models.Responder{{ID: "r1", Status: models.ResponderStatusAvailable}},
	})

	assert.Equal(t, Stats{}, stats)
	assert.Zero(t, rec.MarkerCount())
}

func TestSelfMarkerLifecycle(t *testing.T) {
	sfc := newFakeSurface()
	rec := NewReconciler(sfc)

	rec.Reconcile(Snapshot{Self: &models.Fix{Lat: 19, Lng: 72}})
	require.Equal(t, 1, rec.MarkerCount())
	for _, m := range sfc.markers {
		assert.Equal(t, KindSelf, m.Kind)
		assert.Equal(t, "blue", m.Color)
	}

	// Fix cleared: the own-position marker leaves the surface.
	stats := rec.Reconcile(Snapshot{})
	assert.Equal(t, Stats{Removed: 1}, stats)
	assert.Zero(t, rec.MarkerCount())
}

func TestClearRemovesEverything(t *testing.T) {
	sfc := newFakeSurface()
	rec := NewReconciler(sfc)

	rec.Reconcile(Snapshot{
		Alerts: []models.Alert{{ID: "a1", Status: models.AlertStatusOpen, Location: loc(1, 1)}},
		Self:   &models.Fix{Lat: 2, Lng: 2},
	})
	rec.Clear()

	assert.Zero(t, rec.MarkerCount())
	assert.Empty(t, sfc.markers)
}

func TestAlertMarkerDerivation(t *testing.T) {
	eta := 90.0
	m := alertMarker(models.Alert{
		ID:         "a1",
		Type:       models.AlertTypePolice,
		Status:     models.AlertStatusOpen,
		Note:       "disturbance reported",
		ETASeconds: &eta,
		Location:   loc(19, 72),
	})

	assert.Equal(t, "red", m.Color)
	assert.Equal(t, "shield", m.Icon)
	assert.Contains(t, m.Popup, "disturbance reported")
	assert.Contains(t, m.Popup, "ETA: 90s")
}

func TestMarkerDerivationUnknownValues(t *testing.T) {
	m := alertMarker(models.Alert{ID: "a1", Type: "earthquake", Status: "weird", Location: loc(1, 1)})
	assert.Equal(t, "gray", m.Color)
	assert.Equal(t, "exclamation", m.Icon)

	rm := responderMarker(models.Responder{ID: "r1", Status: "weird", Location: &geo.Point{}})
	assert.Equal(t, "gray", rm.Color)
}
