package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aerodesk/aerodesk/internal/errors"
)

const idSuffixLength = 9

// CreateRequest is what the flight side supplies when a pilot declares an
// emergency or asks for a ground service. Every field is required.
type CreateRequest struct {
	FlightID     string  `json:"flightId"`
	FlightNumber string  `json:"flightNumber"`
	Airline      string  `json:"airline"`
	Captain      string  `json:"captain"`
	CaptainID    string  `json:"captainId"`
	Route        string  `json:"route"`
	Type         Type    `json:"type"`
	SubType      SubType `json:"subType"`
}

// Validate checks required fields and that the subtype belongs to the type.
func (r *CreateRequest) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"flightId", r.FlightID},
		{"flightNumber", r.FlightNumber},
		{"airline", r.Airline},
		{"captain", r.Captain},
		{"captainId", r.CaptainID},
		{"route", r.Route},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("missing required fields: %s", strings.Join(missing, ", ")).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("fields", missing).
			Build()
	}

	if !r.Type.IsValid() {
		return errors.Newf("unknown notification type %q", r.Type).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if !r.SubType.IsValid() {
		return errors.Newf("unknown notification subtype %q", r.SubType).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if r.SubType.Domain() != r.Type {
		return errors.New(fmt.Errorf("%w: %s is not a %s subtype", ErrInvalidPairing, r.SubType, r.Type)).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("type", string(r.Type)).
			Context("sub_type", string(r.SubType)).
			Build()
	}
	return nil
}

// PriorityFor derives priority once at creation: emergencies are critical,
// fire trucks are high, everything else is medium.
func PriorityFor(t Type, st SubType) Priority {
	switch {
	case t == TypeEmergency:
		return PriorityCritical
	case st == SubTypeFireTruck:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// TargetPanelsFor routes emergencies and fire truck requests to both panels
// and every other ground request to the ground crew only.
func TargetPanelsFor(t Type, st SubType) []Panel {
	if t == TypeEmergency || st == SubTypeFireTruck {
		return []Panel{PanelATC, PanelGroundCrew}
	}
	return []Panel{PanelGroundCrew}
}

// NewID returns "notif_<unix millis>_<9 random chars>".
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
	return fmt.Sprintf("notif_%d_%s", now.UnixMilli(), suffix)
}

// Build constructs a PENDING notification from a validated request.
func Build(req *CreateRequest, now time.Time, catalog *Catalog) *Notification {
	return &Notification{
		ID:           NewID(now),
		FlightID:     req.FlightID,
		FlightNumber: req.FlightNumber,
		Airline:      req.Airline,
		Captain:      req.Captain,
		CaptainID:    req.CaptainID,
		Route:        req.Route,
		Type:         req.Type,
		SubType:      req.SubType,
		Priority:     PriorityFor(req.Type, req.SubType),
		Status:       StatusPending,
		CreatedAt:    now,
		TargetPanels: TargetPanelsFor(req.Type, req.SubType),
		Message:      catalog.Message(req.Type, req.SubType),
	}
}
