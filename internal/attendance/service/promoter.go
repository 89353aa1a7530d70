package service

import (
	"context"
	"fmt"
	"time"

	"ms-attendance/internal/attendance"
	"ms-attendance/internal/models"
)

// promoteInTx walks the queue in arrival order and admits every entry that fits the free
// seats. Under strict_fifo it stops at the first entry that does not fit; under skip_ahead
// that entry keeps its place and later, smaller entries are admitted. The caller commits.
func (s *AttendanceService) promoteInTx(ctx context.Context, tx attendance.Tx, event *models.Event, now time.Time) ([]models.WaitlistEntry, error) {
	if !event.AcceptingRSVPs(now) {
		return nil, nil
	}

	queue, err := tx.ListWaitlist(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	var promoted []models.WaitlistEntry
	for _, entry := range queue {
		record, err := tx.GetRecord(ctx, event.ID, entry.UserID)
		if err != nil {
			return nil, err
		}
		if record.Seats() > 0 {
			// already holds seats; the entry is stale
			if err := tx.RemoveWaitlistEntry(ctx, event.ID, entry.UserID); err != nil {
				return nil, err
			}
			continue
		}

		if !event.Fits(entry.Seats()) {
			if s.cfg.PromotionPolicy == models.PolicyStrictFIFO {
				break
			}
			continue
		}

		if err := tx.SaveRecord(ctx, &models.AttendanceRecord{
			EventID:    event.ID,
			UserID:     entry.UserID,
			Status:     models.RSVPGoing,
			GuestCount: entry.GuestCount,
			RSVPAt:     now,
		}); err != nil {
			return nil, err
		}
		if err := tx.RemoveWaitlistEntry(ctx, event.ID, entry.UserID); err != nil {
			return nil, err
		}
		event.AttendeeCount += entry.Seats()
		promoted = append(promoted, entry)
	}
	return promoted, nil
}

// Promote offers any free seats of one event to its waitlist. Safe to re-run: the queue
// and the counter are re-read in the transaction.
func (s *AttendanceService) Promote(ctx context.Context, eventID string) ([]string, error) {
	var d *decision
	err := s.runTx(ctx, "promote", func(ctx context.Context, tx attendance.Tx) error {
		d = &decision{}
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		promoted, err := s.promoteInTx(ctx, tx, event, s.now())
		if err != nil {
			return err
		}
		if len(promoted) == 0 {
			return nil
		}
		d.promoted(eventID, promoted)
		if err := tx.CommitEvent(ctx, event); err != nil {
			return err
		}
		d.version = event.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(d.result.Promoted) > 0 {
		s.afterCommit(ctx, eventID, d.version, d.notifications)
		s.Logger.LogWaitlist("PROMOTE", eventID, fmt.Sprintf("promoted %v", d.result.Promoted))
	}
	return d.result.Promoted, nil
}

// PromoteAll sweeps every event with a non-empty waitlist. Each event is guarded by a
// distributed lock so several instances starting together do not race on the same queue.
// It returns the number of users promoted.
func (s *AttendanceService) PromoteAll(ctx context.Context) (int, error) {
	eventIDs, err := s.Store.ListEventsWithWaitlist(ctx)
	if err != nil {
		return 0, fmt.Errorf("list waitlisted events: %w", err)
	}

	total := 0
	for _, eventID := range eventIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		key := "promote_lock:" + eventID
		if s.Locker != nil {
			ok, err := s.Locker.Acquire(ctx, key, s.instanceID, s.lockTTL)
			if err != nil {
				s.Logger.Warn("WAITLIST", fmt.Sprintf("lock %s unavailable: %v", key, err))
				continue
			}
			if !ok {
				s.Logger.Debug("WAITLIST", fmt.Sprintf("%s is being swept by another instance", eventID))
				continue
			}
		}

		promoted, err := s.Promote(ctx, eventID)
		if err != nil {
			s.Logger.Error("WAITLIST", fmt.Sprintf("sweep of %s failed: %v", eventID, err))
		}
		total += len(promoted)

		if s.Locker != nil {
			if err := s.Locker.Release(ctx, key, s.instanceID); err != nil {
				s.Logger.Warn("WAITLIST", fmt.Sprintf("release %s: %v", key, err))
			}
		}
	}

	s.Logger.LogWaitlist("SWEEP", "*", fmt.Sprintf("checked %d events, promoted %d users", len(eventIDs), total))
	return total, nil
}
