package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ms-attendance/internal/attendance"
	"ms-attendance/internal/models"
)

// decision collects what one transaction attempt decided. It is rebuilt on every retry.
type decision struct {
	result        models.RSVPResult
	notifications []models.Notification
	version       int64
}

func (d *decision) notify(kind models.NotificationType, eventID, userID string, payload map[string]any) {
	d.notifications = append(d.notifications, models.NewNotification(kind, eventID, userID, payload))
}

func (d *decision) promoted(eventID string, entries []models.WaitlistEntry) {
	for _, e := range entries {
		d.result.Promoted = append(d.result.Promoted, e.UserID)
		d.notify(models.NotifyPromoted, eventID, e.UserID, map[string]any{"guest_count": e.GuestCount})
	}
}

// SubmitRSVP admits, waitlists or rejects one RSVP intent. The read, the decision and every
// write happen in one transaction that commits only if the event version is unchanged.
func (s *AttendanceService) SubmitRSVP(ctx context.Context, req models.RSVPRequest) (*models.RSVPResult, error) {
	if !req.Status.Valid() {
		return nil, models.ErrInvalidRSVPStatus
	}
	if req.GuestCount < 0 {
		return nil, models.ErrInvalidGuestCount
	}
	if req.Status == models.RSVPNotGoing {
		req.GuestCount = 0
	}

	var d *decision
	err := s.runTx(ctx, "submit_rsvp", func(ctx context.Context, tx attendance.Tx) error {
		var err error
		d, err = s.decideRSVP(ctx, tx, req)
		return err
	})
	if err != nil {
		s.Logger.Warn("RSVP", fmt.Sprintf("[%s] %s - rsvp %s failed: %v", req.EventID, req.UserID, req.Status, err))
		return nil, err
	}

	s.afterCommit(ctx, req.EventID, d.version, d.notifications)
	s.Logger.LogRSVP(req.EventID, req.UserID, fmt.Sprintf("%s (%s, guests=%d, count=%d)", d.result.Outcome, req.Status, req.GuestCount, d.result.AttendeeCount))
	if len(d.result.Promoted) > 0 {
		s.Logger.LogWaitlist("PROMOTE", req.EventID, fmt.Sprintf("promoted %v", d.result.Promoted))
	}
	return &d.result, nil
}

func (s *AttendanceService) decideRSVP(ctx context.Context, tx attendance.Tx, req models.RSVPRequest) (*decision, error) {
	now := s.now()

	event, err := tx.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.AcceptingRSVPs(now) {
		return nil, models.ErrEventNotAcceptingRSVPs
	}
	if req.GuestCount > event.MaxGuestsPerRSVP {
		return nil, models.ErrInvalidGuestCount
	}

	record, err := tx.GetRecord(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, err
	}

	d := &decision{}
	if req.Status == models.RSVPGoing {
		err = s.respondGoing(ctx, tx, event, record, req, now, d)
	} else {
		err = s.respondNotGoing(ctx, tx, event, record, req, now, d)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.CommitEvent(ctx, event); err != nil {
		return nil, err
	}
	d.version = event.Version
	d.result.AttendeeCount = event.AttendeeCount
	return d, nil
}

// respondNotGoing records maybe/not_going, releases held seats, leaves the waitlist and
// offers whatever was freed to the queue.
func (s *AttendanceService) respondNotGoing(ctx context.Context, tx attendance.Tx, event *models.Event, record *models.AttendanceRecord, req models.RSVPRequest, now time.Time, d *decision) error {
	held := record.Seats()
	previous := models.RSVPStatus("")
	rsvpAt := now
	if record != nil {
		previous = record.Status
		if record.Status == req.Status {
			rsvpAt = record.RSVPAt
		}
	}

	updated := &models.AttendanceRecord{
		EventID:    req.EventID,
		UserID:     req.UserID,
		Status:     req.Status,
		GuestCount: req.GuestCount,
		RSVPAt:     rsvpAt,
	}
	if err := tx.SaveRecord(ctx, updated); err != nil {
		return err
	}

	entry, err := tx.GetWaitlistEntry(ctx, req.EventID, req.UserID)
	if err != nil {
		return err
	}
	if entry != nil {
		if err := tx.RemoveWaitlistEntry(ctx, req.EventID, req.UserID); err != nil {
			return err
		}
	}

	event.AttendeeCount -= held

	if held > 0 || entry != nil {
		promoted, err := s.promoteInTx(ctx, tx, event, now)
		if err != nil {
			return err
		}
		d.promoted(req.EventID, promoted)
	}

	d.result.Outcome = models.OutcomeAdmitted
	d.result.Record = updated
	d.notify(models.NotifyAttendanceChanged, req.EventID, req.UserID, map[string]any{
		"status":          req.Status,
		"previous_status": previous,
		"released_seats":  held,
	})
	return nil
}

func (s *AttendanceService) respondGoing(ctx context.Context, tx attendance.Tx, event *models.Event, record *models.AttendanceRecord, req models.RSVPRequest, now time.Time, d *decision) error {
	if record.Seats() > 0 {
		return s.adjustGoing(ctx, tx, event, record, req, now, d)
	}

	// Seats freed by earlier writers are offered to the queue before any newcomer.
	promoted, err := s.promoteInTx(ctx, tx, event, now)
	if err != nil {
		return err
	}
	d.promoted(req.EventID, promoted)
	if slices.ContainsFunc(promoted, func(e models.WaitlistEntry) bool { return e.UserID == req.UserID }) {
		record, err = tx.GetRecord(ctx, req.EventID, req.UserID)
		if err != nil {
			return err
		}
		return s.adjustGoing(ctx, tx, event, record, req, now, d)
	}

	seats := 1 + req.GuestCount

	entry, err := tx.GetWaitlistEntry(ctx, req.EventID, req.UserID)
	if err != nil {
		return err
	}
	if entry != nil {
		return s.requeue(ctx, tx, event, entry, req, now, d)
	}

	queue, err := tx.ListWaitlist(ctx, req.EventID)
	if err != nil {
		return err
	}
	blocked := s.cfg.PromotionPolicy == models.PolicyStrictFIFO && len(queue) > 0

	if !blocked && event.Fits(seats) {
		admitted := &models.AttendanceRecord{
			EventID:    req.EventID,
			UserID:     req.UserID,
			Status:     models.RSVPGoing,
			GuestCount: req.GuestCount,
			RSVPAt:     now,
		}
		if err := tx.SaveRecord(ctx, admitted); err != nil {
			return err
		}
		event.AttendeeCount += seats
		d.result.Outcome = models.OutcomeAdmitted
		d.result.Record = admitted
		d.notify(models.NotifyRSVPConfirmed, req.EventID, req.UserID, map[string]any{"guest_count": req.GuestCount})
		return nil
	}

	entry = &models.WaitlistEntry{
		EventID:    req.EventID,
		UserID:     req.UserID,
		GuestCount: req.GuestCount,
		Seq:        event.Version + 1,
		JoinedAt:   now,
	}
	if err := tx.SaveWaitlistEntry(ctx, entry); err != nil {
		return err
	}
	d.result.Outcome = models.OutcomeWaitlisted
	d.result.Position = len(queue) + 1
	d.result.Record = record
	d.notify(models.NotifyWaitlisted, req.EventID, req.UserID, map[string]any{"position": d.result.Position, "guest_count": req.GuestCount})
	return nil
}

// adjustGoing changes the guest count of a user who already holds seats. Asking for more
// than fits is rejected and the seats already held are kept.
func (s *AttendanceService) adjustGoing(ctx context.Context, tx attendance.Tx, event *models.Event, record *models.AttendanceRecord, req models.RSVPRequest, now time.Time, d *decision) error {
	delta := (1 + req.GuestCount) - record.Seats()

	if delta > 0 {
		fits := event.Fits(delta)
		if fits && s.cfg.PromotionPolicy == models.PolicyStrictFIFO {
			queue, err := tx.ListWaitlist(ctx, req.EventID)
			if err != nil {
				return err
			}
			fits = len(queue) == 0
		}
		if !fits {
			d.result.Outcome = models.OutcomeRejected
			d.result.Reason = models.RejectInsufficientCapacity
			d.result.Record = record
			return nil
		}
	}

	if delta != 0 {
		record.GuestCount = req.GuestCount
		if err := tx.SaveRecord(ctx, record); err != nil {
			return err
		}
		event.AttendeeCount += delta
		d.notify(models.NotifyAttendanceChanged, req.EventID, req.UserID, map[string]any{
			"status":      models.RSVPGoing,
			"guest_count": req.GuestCount,
		})
	}

	if delta < 0 {
		promoted, err := s.promoteInTx(ctx, tx, event, now)
		if err != nil {
			return err
		}
		d.promoted(req.EventID, promoted)
	}

	d.result.Outcome = models.OutcomeAdmitted
	d.result.Record = record
	return nil
}

// requeue updates the seat request of a queued user without touching their position,
// then gives the queue a chance to admit it.
func (s *AttendanceService) requeue(ctx context.Context, tx attendance.Tx, event *models.Event, entry *models.WaitlistEntry, req models.RSVPRequest, now time.Time, d *decision) error {
	entry.GuestCount = req.GuestCount
	if err := tx.SaveWaitlistEntry(ctx, entry); err != nil {
		return err
	}

	promoted, err := s.promoteInTx(ctx, tx, event, now)
	if err != nil {
		return err
	}
	d.promoted(req.EventID, promoted)

	for _, p := range promoted {
		if p.UserID == req.UserID {
			record, err := tx.GetRecord(ctx, req.EventID, req.UserID)
			if err != nil {
				return err
			}
			d.result.Outcome = models.OutcomeAdmitted
			d.result.Record = record
			return nil
		}
	}

	queue, err := tx.ListWaitlist(ctx, req.EventID)
	if err != nil {
		return err
	}
	d.result.Outcome = models.OutcomeWaitlisted
	d.result.Position = position(queue, req.UserID)
	return nil
}

// ChangeCapacity sets or clears the capacity. Reductions below the seats already held are
// refused; increases are offered to the waitlist in the same transaction.
func (s *AttendanceService) ChangeCapacity(ctx context.Context, actor models.Actor, eventID string, capacity *int) (*models.CapacityResult, error) {
	if capacity != nil && *capacity <= 0 {
		return nil, models.NewValidationError("capacity must be positive or absent")
	}

	var (
		event *models.Event
		d     *decision
	)
	err := s.runTx(ctx, "change_capacity", func(ctx context.Context, tx attendance.Tx) error {
		d = &decision{}
		var err error
		event, err = tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.IsManagedBy(actor) {
			return models.ErrForbidden
		}
		if event.Status.IsTerminal() {
			return models.ErrEventClosed
		}
		if capacity != nil && *capacity < event.AttendeeCount {
			return models.NewValidationError(fmt.Sprintf("capacity %d is below the %d seats already taken", *capacity, event.AttendeeCount))
		}

		event.Capacity = capacity
		promoted, err := s.promoteInTx(ctx, tx, event, s.now())
		if err != nil {
			return err
		}
		d.promoted(eventID, promoted)
		return tx.CommitEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, eventID, event.Version, d.notifications)
	s.Logger.LogWaitlist("CAPACITY", eventID, fmt.Sprintf("capacity set to %s by %s, promoted %d", formatCapacity(capacity), actor.UserID, len(d.result.Promoted)))
	return &models.CapacityResult{Event: event, Promoted: d.result.Promoted}, nil
}

// WithdrawAttendee marks a user not_going on an admin's behalf.
func (s *AttendanceService) WithdrawAttendee(ctx context.Context, actor models.Actor, eventID, userID string) (*models.RSVPResult, error) {
	if !actor.IsAdmin() {
		s.Logger.LogSecurity("WITHDRAW_DENIED", fmt.Sprintf("%s tried to withdraw %s from %s", actor.UserID, userID, eventID))
		return nil, models.ErrForbidden
	}
	return s.SubmitRSVP(ctx, models.RSVPRequest{
		EventID: eventID,
		UserID:  userID,
		Status:  models.RSVPNotGoing,
	})
}

func position(queue []models.WaitlistEntry, userID string) int {
	for i, e := range queue {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

func formatCapacity(capacity *int) string {
	if capacity == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d", *capacity)
}
