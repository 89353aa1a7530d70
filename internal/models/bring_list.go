package models

import (
	"slices"
	"time"

	"github.com/uptrace/bun"
)

type ItemState string

const (
	ItemAvailable ItemState = "available"
	ItemAssigned  ItemState = "assigned"
	ItemFulfilled ItemState = "fulfilled"
)

// fulfilled -> assigned is the organizer/admin override; everything else is open to the assignee.
var itemTransitions = map[ItemState][]ItemState{
	ItemAvailable: {ItemAssigned},
	ItemAssigned:  {ItemAvailable, ItemFulfilled},
	ItemFulfilled: {ItemAssigned},
}

func (s ItemState) CanTransitionTo(next ItemState) bool {
	return slices.Contains(itemTransitions[s], next)
}

type BringListItem struct {
	bun.BaseModel `bun:"table:bring_list_items"`

	ID             string    `bun:"id,pk" json:"id"`
	EventID        string    `bun:"event_id,notnull" json:"event_id"`
	Item           string    `bun:"item,notnull" json:"item"`
	QuantityNeeded int       `bun:"quantity_needed,notnull" json:"quantity_needed"`
	AssignedTo     string    `bun:"assigned_to,nullzero" json:"assigned_to,omitempty"`
	Fulfilled      bool      `bun:"fulfilled,notnull" json:"fulfilled"`
	CreatedBy      string    `bun:"created_by,notnull" json:"created_by"`
	Version        int64     `bun:"version,notnull" json:"version"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (i *BringListItem) State() ItemState {
	switch {
	case i.Fulfilled:
		return ItemFulfilled
	case i.AssignedTo != "":
		return ItemAssigned
	default:
		return ItemAvailable
	}
}

type BringListItemInput struct {
	Item           string `json:"item"`
	QuantityNeeded int    `json:"quantity_needed"`
}
