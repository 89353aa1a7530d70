package models

import "time"

type NotificationType string

const (
	NotifyRSVPConfirmed     NotificationType = "rsvp_confirmed"
	NotifyWaitlisted        NotificationType = "waitlisted"
	NotifyPromoted          NotificationType = "promoted_from_waitlist"
	NotifyEventCancelled    NotificationType = "event_cancelled"
	NotifyAttendanceChanged NotificationType = "attendance_changed"
)

// Notification is a fire-and-forget message for the external dispatcher and the realtime stream.
type Notification struct {
	Type       NotificationType `json:"type"`
	EventID    string           `json:"event_id"`
	UserID     string           `json:"user_id,omitempty"`
	Payload    map[string]any   `json:"payload,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewNotification(kind NotificationType, eventID, userID string, payload map[string]any) Notification {
	return Notification{
		Type:       kind,
		EventID:    eventID,
		UserID:     userID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
