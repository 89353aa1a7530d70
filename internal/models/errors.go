package models

import "errors"

// ErrorKind classifies a failure for callers; the HTTP layer maps kinds to status codes.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindConflict     ErrorKind = "conflict"
	KindForbidden    ErrorKind = "forbidden"
	KindValidation   ErrorKind = "validation_error"
)

// DomainError is a typed failure returned by the attendance services.
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

var (
	ErrEventNotFound      = &DomainError{Kind: KindNotFound, Code: "event_not_found", Message: "event not found"}
	ErrItemNotFound       = &DomainError{Kind: KindNotFound, Code: "item_not_found", Message: "bring-list item not found"}
	ErrAttendanceNotFound = &DomainError{Kind: KindNotFound, Code: "attendance_not_found", Message: "no attendance record for this user"}

	ErrEventNotAcceptingRSVPs = &DomainError{Kind: KindInvalidState, Code: "event_not_accepting_rsvps", Message: "this event is no longer accepting responses"}
	ErrInvalidTransition      = &DomainError{Kind: KindInvalidState, Code: "invalid_transition", Message: "status transition not allowed"}
	ErrEventClosed            = &DomainError{Kind: KindInvalidState, Code: "event_closed", Message: "this event is closed"}
	ErrAlreadyClaimed         = &DomainError{Kind: KindInvalidState, Code: "already_claimed", Message: "item already claimed by another attendee"}
	ErrAlreadyFulfilled       = &DomainError{Kind: KindInvalidState, Code: "already_fulfilled", Message: "item already fulfilled; an organizer must reopen it first"}
	ErrItemClaimed            = &DomainError{Kind: KindInvalidState, Code: "item_claimed", Message: "item is claimed; it must be unclaimed before removal"}
	ErrItemNotAssigned        = &DomainError{Kind: KindInvalidState, Code: "item_not_assigned", Message: "item has no assignee"}

	ErrBusy            = &DomainError{Kind: KindConflict, Code: "busy", Message: "please try again"}
	ErrVersionConflict = &DomainError{Kind: KindConflict, Code: "version_conflict", Message: "concurrent modification detected"}

	ErrForbidden    = &DomainError{Kind: KindForbidden, Code: "forbidden", Message: "not allowed to modify this resource"}
	ErrNotEligible  = &DomainError{Kind: KindForbidden, Code: "not_eligible", Message: "only attendees who are going may claim items"}
	ErrNotOwner     = &DomainError{Kind: KindForbidden, Code: "not_owner", Message: "item is not assigned to you"}
	ErrNotAttending = &DomainError{Kind: KindForbidden, Code: "not_attending", Message: "only attendees who are going hold a pass"}

	ErrInvalidGuestCount = &DomainError{Kind: KindValidation, Code: "invalid_guest_count", Message: "guest count is negative or above the event maximum"}
	ErrInvalidRSVPStatus = &DomainError{Kind: KindValidation, Code: "invalid_rsvp_status", Message: "status must be going, maybe or not_going"}
	ErrInvalidPass       = &DomainError{Kind: KindValidation, Code: "invalid_pass", Message: "pass could not be read"}
)

// NewValidationError builds a ValidationError with a field specific message.
func NewValidationError(message string) error {
	return &DomainError{Kind: KindValidation, Code: "validation_error", Message: message}
}

// KindOf returns the kind of the first DomainError in err's chain, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
