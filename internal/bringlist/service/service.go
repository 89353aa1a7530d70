package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

type ItemStore interface {
	InsertItem(ctx context.Context, item *models.BringListItem) error
	GetItem(ctx context.Context, id string) (*models.BringListItem, error)
	ListItems(ctx context.Context, eventID string) ([]models.BringListItem, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error)
	Assign(ctx context.Context, itemID, userID string) (bool, error)
	Release(ctx context.Context, itemID, userID string) (bool, error)
	SetFulfilled(ctx context.Context, itemID, assignee string, fulfilled bool) (bool, error)
	DeleteUnclaimed(ctx context.Context, itemID string) (bool, error)
}

// BringListService coordinates who brings what. It holds no locks; each write is one
// conditional row update and a lost race is reported by re-reading the row.
type BringListService struct {
	Store  ItemStore
	Logger *logger.Logger
}

func NewBringListService(store ItemStore, log *logger.Logger) *BringListService {
	return &BringListService{Store: store, Logger: log}
}

func (s *BringListService) AddItem(ctx context.Context, actor models.Actor, eventID string, input models.BringListItemInput) (*models.BringListItem, error) {
	name := strings.TrimSpace(input.Item)
	if name == "" {
		return nil, models.NewValidationError("item is required")
	}
	if input.QuantityNeeded < 1 {
		return nil, models.NewValidationError("quantity_needed must be at least 1")
	}

	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(actor) {
		return nil, models.ErrForbidden
	}
	if event.Status.IsTerminal() {
		return nil, models.ErrEventClosed
	}

	now := time.Now().UTC()
	item := &models.BringListItem{
		ID:             uuid.NewString(),
		EventID:        eventID,
		Item:           name,
		QuantityNeeded: input.QuantityNeeded,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	s.Logger.LogBringList("ADD", item.ID, fmt.Sprintf("%q x%d on %s", name, item.QuantityNeeded, eventID))
	return item, nil
}

// RemoveItem deletes an unclaimed item. Claimed items must be released first.
func (s *BringListService) RemoveItem(ctx context.Context, actor models.Actor, itemID string) error {
	item, event, err := s.load(ctx, itemID)
	if err != nil {
		return err
	}
	if !event.IsManagedBy(actor) {
		return models.ErrForbidden
	}

	ok, err := s.Store.DeleteUnclaimed(ctx, item.ID)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.Store.GetItem(ctx, item.ID); err != nil {
			return err
		}
		return models.ErrItemClaimed
	}
	s.Logger.LogBringList("REMOVE", item.ID, fmt.Sprintf("by %s", actor.UserID))
	return nil
}

func (s *BringListService) ListItems(ctx context.Context, eventID string) ([]models.BringListItem, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Store.ListItems(ctx, eventID)
}

// Claim assigns the item to the actor. Claiming an item one already holds is a no-op.
func (s *BringListService) Claim(ctx context.Context, actor models.Actor, itemID string) (*models.BringListItem, error) {
	item, event, err := s.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if event.Status.IsTerminal() {
		return nil, models.ErrEventClosed
	}
	if item.AssignedTo == actor.UserID {
		return item, nil
	}
	if item.AssignedTo != "" {
		return nil, models.ErrAlreadyClaimed
	}
	if err := checkTransition(item, models.ItemAssigned); err != nil {
		return nil, err
	}

	record, err := s.Store.GetRecord(ctx, event.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != models.RSVPGoing {
		return nil, models.ErrNotEligible
	}

	ok, err := s.Store.Assign(ctx, item.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	current, err := s.Store.GetItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if !ok && current.AssignedTo != actor.UserID {
		s.Logger.LogBringList("CLAIM_LOST", item.ID, fmt.Sprintf("%s lost to %s", actor.UserID, current.AssignedTo))
		return nil, models.ErrAlreadyClaimed
	}
	s.Logger.LogBringList("CLAIM", item.ID, fmt.Sprintf("claimed by %s", actor.UserID))
	return current, nil
}

// Unclaim returns the item to the pool. Only the assignee or an admin may do so.
func (s *BringListService) Unclaim(ctx context.Context, actor models.Actor, itemID string) (*models.BringListItem, error) {
	item, event, err := s.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if event.Status.IsTerminal() {
		return nil, models.ErrEventClosed
	}
	if item.AssignedTo == "" {
		return nil, models.ErrItemNotAssigned
	}
	if item.AssignedTo != actor.UserID && !actor.IsAdmin() {
		return nil, models.ErrNotOwner
	}
	if item.Fulfilled {
		return nil, models.ErrAlreadyFulfilled
	}
	if err := checkTransition(item, models.ItemAvailable); err != nil {
		return nil, err
	}

	ok, err := s.Store.Release(ctx, item.ID, item.AssignedTo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.classify(ctx, item.ID, actor)
	}
	s.Logger.LogBringList("UNCLAIM", item.ID, fmt.Sprintf("released %s's claim (by %s)", item.AssignedTo, actor.UserID))
	return s.Store.GetItem(ctx, item.ID)
}

// MarkFulfilled records that the assignee has brought the item. Repeating it is a no-op.
func (s *BringListService) MarkFulfilled(ctx context.Context, actor models.Actor, itemID string) (*models.BringListItem, error) {
	item, event, err := s.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.AssignedTo == "" {
		return nil, models.ErrItemNotAssigned
	}
	if item.AssignedTo != actor.UserID && !actor.IsAdmin() {
		return nil, models.ErrNotOwner
	}
	if item.Fulfilled {
		return item, nil
	}
	if event.Status == models.EventStatusCancelled {
		return nil, models.ErrEventClosed
	}
	if err := checkTransition(item, models.ItemFulfilled); err != nil {
		return nil, err
	}

	ok, err := s.Store.SetFulfilled(ctx, item.ID, item.AssignedTo, true)
	if err != nil {
		return nil, err
	}
	current, err := s.Store.GetItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if !ok && !current.Fulfilled {
		return nil, s.classify(ctx, item.ID, actor)
	}
	s.Logger.LogBringList("FULFILL", item.ID, fmt.Sprintf("fulfilled by %s", current.AssignedTo))
	return current, nil
}

// Unfulfill reopens a fulfilled item; it stays with its assignee. Organizers and admins only.
func (s *BringListService) Unfulfill(ctx context.Context, actor models.Actor, itemID string) (*models.BringListItem, error) {
	item, event, err := s.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(actor) {
		return nil, models.ErrForbidden
	}
	if event.Status.IsTerminal() {
		return nil, models.ErrEventClosed
	}
	if err := checkTransition(item, models.ItemAssigned); err != nil {
		return nil, err
	}

	ok, err := s.Store.SetFulfilled(ctx, item.ID, item.AssignedTo, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrInvalidTransition
	}
	s.Logger.LogBringList("UNFULFILL", item.ID, fmt.Sprintf("reopened by %s", actor.UserID))
	return s.Store.GetItem(ctx, item.ID)
}

func (s *BringListService) load(ctx context.Context, itemID string) (*models.BringListItem, *models.Event, error) {
	item, err := s.Store.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.Store.GetEvent(ctx, item.EventID)
	if err != nil {
		return nil, nil, err
	}
	return item, event, nil
}

// classify explains why a conditional update matched no row.
func (s *BringListService) classify(ctx context.Context, itemID string, actor models.Actor) error {
	current, err := s.Store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	switch {
	case current.AssignedTo == "":
		return models.ErrItemNotAssigned
	case current.AssignedTo != actor.UserID && !actor.IsAdmin():
		return models.ErrNotOwner
	case current.Fulfilled:
		return models.ErrAlreadyFulfilled
	default:
		return models.ErrVersionConflict
	}
}

func checkTransition(item *models.BringListItem, next models.ItemState) error {
	if !item.State().CanTransitionTo(next) {
		return models.ErrInvalidTransition
	}
	return nil
}
