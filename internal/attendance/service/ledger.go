package service

import (
	"context"

	"ms-attendance/internal/models"
)

// GetAttendance returns every record of the event keyed by user id.
func (s *AttendanceService) GetAttendance(ctx context.Context, eventID string) (map[string]models.AttendanceRecord, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	records, err := s.Store.ListRecords(ctx, eventID)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]models.AttendanceRecord, len(records))
	for _, r := range records {
		byUser[r.UserID] = r
	}
	return byUser, nil
}

// GetUserAttendance returns nil, nil when the user never responded.
func (s *AttendanceService) GetUserAttendance(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Store.GetRecord(ctx, eventID, userID)
}

// GetWaitlist returns the queue in promotion order.
func (s *AttendanceService) GetWaitlist(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Store.ListWaitlist(ctx, eventID)
}

// GetSummary serves the occupancy view, from cache when possible.
func (s *AttendanceService) GetSummary(ctx context.Context, eventID string) (*models.EventSummary, error) {
	if s.Cache != nil {
		if summary, ok := s.Cache.Get(ctx, eventID); ok {
			return summary, nil
		}
	}

	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	queue, err := s.Store.ListWaitlist(ctx, eventID)
	if err != nil {
		return nil, err
	}

	summary := &models.EventSummary{
		EventID:        event.ID,
		Status:         event.Status,
		Capacity:       event.Capacity,
		AttendeeCount:  event.AttendeeCount,
		WaitlistLength: len(queue),
		Version:        event.Version,
	}
	if remaining, limited := event.RemainingSeats(); limited {
		summary.Remaining = &remaining
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, summary)
	}
	return summary, nil
}

// CheckStreamAccess lets organizers, admins and anyone who responded or queued follow an event.
func (s *AttendanceService) CheckStreamAccess(ctx context.Context, actor models.Actor, eventID string) error {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.IsManagedBy(actor) {
		return nil
	}

	record, err := s.Store.GetRecord(ctx, eventID, actor.UserID)
	if err != nil {
		return err
	}
	if record != nil {
		return nil
	}

	queue, err := s.Store.ListWaitlist(ctx, eventID)
	if err != nil {
		return err
	}
	if position(queue, actor.UserID) > 0 {
		return nil
	}
	return models.ErrForbidden
}

// RequireManager loads the event and checks that actor organizes it or is an admin.
func (s *AttendanceService) RequireManager(ctx context.Context, actor models.Actor, eventID string) (*models.Event, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(actor) {
		return nil, models.ErrForbidden
	}
	return event, nil
}
