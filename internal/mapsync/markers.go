package mapsync

import (
	"fmt"
	"math"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/geo"
)

// Marker kinds on the surface.
const (
	KindAlert     = "alert"
	KindResponder = "responder"
	KindSelf      = "self"
)

// Marker is the visual description of one entity, regenerated from
// the latest entity fields on every pass.
type Marker struct {
	Kind     string    `json:"kind"`
	Type     string    `json:"type,omitempty"`
	Status   string    `json:"status,omitempty"`
	Position geo.Point `json:"position"`
	Color    string    `json:"color"`
	Icon     string    `json:"icon"`
	Popup    string    `json:"popup"`
}

// alertStatusColors maps alert status to marker color.
var alertStatusColors = map[string]string{
	models.AlertStatusOpen:       "red",
	models.AlertStatusAssigned:   "orange",
	models.AlertStatusInProgress: "amber",
	models.AlertStatusResolved:   "green",
	models.AlertStatusDone:       "green",
	models.AlertStatusCancelled:  "gray",
}

// alertTypeIcons maps alert category to icon name.
var alertTypeIcons = map[string]string{
	models.AlertTypeMedical:  "cross",
	models.AlertTypeFire:     "flame",
	models.AlertTypePolice:   "shield",
	models.AlertTypeAccident: "car",
	models.AlertTypeOther:    "exclamation",
}

// responderStatusColors maps responder availability to marker color.
var responderStatusColors = map[string]string{
	models.ResponderStatusAvailable: "green",
	models.ResponderStatusBusy:      "orange",
	models.ResponderStatusOffline:   "gray",
}

// alertMarker derives the marker for an alert. The caller guarantees
// the alert carries a location.
func alertMarker(a models.Alert) Marker {
	color, ok := alertStatusColors[a.Status]
	if !ok {
		color = "gray"
	}
	icon, ok := alertTypeIcons[a.Type]
	if !ok {
		icon = alertTypeIcons[models.AlertTypeOther]
	}

	popup := fmt.Sprintf("%s - %s", a.Type, a.Status)
	if a.Note != "" {
		popup += "\n" + a.Note
	}
	if a.ETASeconds != nil {
		popup += fmt.Sprintf("\nETA: %ds", int(math.Round(*a.ETASeconds)))
	}
	if a.AssignedResponderID != "" {
		popup += fmt.Sprintf("\nResponder: %s", a.AssignedResponderID)
	}

	return Marker{
		Kind:     KindAlert,
		Type:     a.Type,
		Status:   a.Status,
		Position: a.Location.Point(),
		Color:    color,
		Icon:     icon,
		Popup:    popup,
	}
}

// responderMarker derives the marker for a responder. The caller
// guarantees the responder carries a location.
func responderMarker(r models.Responder) Marker {
	color, ok := responderStatusColors[r.Status]
	if !ok {
		color = "gray"
	}

	popup := fmt.Sprintf("Responder %s", r.ID)
	if r.Name != "" {
		popup = fmt.Sprintf("Responder %s", r.Name)
	}
	if r.Specialization != "" {
		popup += " (" + r.Specialization + ")"
	}
	popup += "\n" + r.Status

	return Marker{
		Kind:     KindResponder,
		Status:   r.Status,
		Position: *r.Location,
		Color:    color,
		Icon:     "badge",
		Popup:    popup,
	}
}

// selfMarker derives the visually distinct marker for the device's
// own position.
func selfMarker(fix models.Fix) Marker {
	return Marker{
		Kind:     KindSelf,
		Position: fix.Point(),
		Color:    "blue",
		Icon:     "dot",
		Popup:    "Your current location",
	}
}
