// Package notification implements the flight notification bus: pilots raise
// emergencies and ground service requests, the bus routes them to the ATC and
// Ground Crew panels, and operators move them through their lifecycle.
package notification

import (
	"slices"
	"time"

	"github.com/aerodesk/aerodesk/internal/errors"
)

// Type is the broad category of a notification
type Type string

const (
	TypeEmergency         Type = "EMERGENCY"
	TypeGroundCrewRequest Type = "GROUND_CREW_REQUEST"
)

// SubType is the specific emergency or ground service within a Type
type SubType string

const (
	SubTypeLandingGear     SubType = "LANDING_GEAR"
	SubTypeEngineExplosion SubType = "ENGINE_EXPLOSION"
	SubTypeWingControl     SubType = "WING_CONTROL"

	SubTypeFollowMe  SubType = "FOLLOW_ME"
	SubTypePushback  SubType = "PUSHBACK"
	SubTypeFireTruck SubType = "FIRE_TRUCK"
)

// Priority represents the urgency level of a notification
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Status is the lifecycle state of a notification
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusCompleted    Status = "COMPLETED"
	StatusCancelled    Status = "CANCELLED"
)

// Panel is an operator-facing surface that consumes notifications
type Panel string

const (
	PanelATC        Panel = "ATC"
	PanelGroundCrew Panel = "GROUND_CREW"
)

// Panels lists every panel in display order.
var Panels = []Panel{PanelATC, PanelGroundCrew}

var subTypeDomains = map[SubType]Type{
	SubTypeLandingGear:     TypeEmergency,
	SubTypeEngineExplosion: TypeEmergency,
	SubTypeWingControl:     TypeEmergency,
	SubTypeFollowMe:        TypeGroundCrewRequest,
	SubTypePushback:        TypeGroundCrewRequest,
	SubTypeFireTruck:       TypeGroundCrewRequest,
}

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Sentinel errors for notification operations
var (
	ErrNotificationNotFound = errors.Newf("notification not found").
				Component("notification").
				Category(errors.CategoryNotFound).
				Build()
	ErrInvalidTransition = errors.Newf("invalid status transition").
				Component("notification").
				Category(errors.CategoryState).
				Build()
	ErrInvalidPairing = errors.Newf("subtype does not belong to notification type").
				Component("notification").
				Category(errors.CategoryValidation).
				Build()
	ErrRateLimited = errors.Newf("too many notifications from this captain").
			Component("notification").
			Category(errors.CategoryRateLimit).
			Build()
)

// IsValid reports whether t is a known notification type.
func (t Type) IsValid() bool {
	return t == TypeEmergency || t == TypeGroundCrewRequest
}

// IsValid reports whether st is a known subtype of any type.
func (st SubType) IsValid() bool {
	_, ok := subTypeDomains[st]
	return ok
}

// Domain returns the Type this subtype belongs to, or "" for unknown subtypes.
func (st SubType) Domain() Type {
	return subTypeDomains[st]
}

// SubTypesOf returns the subtypes belonging to t in declaration order.
func SubTypesOf(t Type) []SubType {
	switch t {
	case TypeEmergency:
		return []SubType{SubTypeLandingGear, SubTypeEngineExplosion, SubTypeWingControl}
	case TypeGroundCrewRequest:
		return []SubType{SubTypeFollowMe, SubTypePushback, SubTypeFireTruck}
	default:
		return nil
	}
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// AtLeast reports whether p is as urgent as min or more.
func (p Priority) AtLeast(minimum Priority) bool {
	return priorityRank[p] >= priorityRank[minimum]
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAcknowledged, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether p is a known panel.
func (p Panel) IsValid() bool {
	return p == PanelATC || p == PanelGroundCrew
}

// Notification is a single flight event routed to one or more panels.
// Flight fields are a snapshot taken at creation and never refreshed.
type Notification struct {
	ID           string `json:"id"`
	FlightID     string `json:"flightId"`
	FlightNumber string `json:"flightNumber"`
	Airline      string `json:"airline"`
	Captain      string `json:"captain"`
	CaptainID    string `json:"captainId"`
	Route        string `json:"route"`

	Type     Type     `json:"type"`
	SubType  SubType  `json:"subType"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	CreatedAt      time.Time  `json:"createdAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`

	// TargetPanels shrinks as panels dismiss the notification; a stored
	// record always has at least one.
	TargetPanels []Panel `json:"targetPanels"`
	Message      string  `json:"message"`
}

// Targets reports whether the notification is visible to panel.
func (n *Notification) Targets(panel Panel) bool {
	return slices.Contains(n.TargetPanels, panel)
}

// Clone returns a deep copy so callers can never mutate stored state.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	clone := *n
	clone.TargetPanels = slices.Clone(n.TargetPanels)
	if n.AcknowledgedAt != nil {
		at := *n.AcknowledgedAt
		clone.AcknowledgedAt = &at
	}
	if n.CompletedAt != nil {
		at := *n.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}

// CloneAll deep copies a collection, preserving order.
func CloneAll(notifications []*Notification) []*Notification {
	out := make([]*Notification, 0, len(notifications))
	for _, n := range notifications {
		if n != nil {
			out = append(out, n.Clone())
		}
	}
	return out
}

// FormatRoute renders the route snapshot the way flight declarations show it.
func FormatRoute(departure, arrival string) string {
	return departure + " → " + arrival
}
