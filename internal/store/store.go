// Package store is the system's single source of truth: principals,
// campaigns and their schedule slots, kept in SQLite. Every logical
// operation opens, acts and releases its own transaction; nothing here
// holds a transaction across a network call.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Principal is a registered end user. PlatformID is their remote messaging
// platform identity; ID is the internal row id used by the admin surface.
type Principal struct {
	ID           int64
	PlatformID   int64
	Username     string
	FirstName    string
	LastName     string
	RegisteredAt time.Time
	Active       bool
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaRef points at one locally stored attachment.
type MediaRef struct {
	Path string
	Kind MediaKind
}

// Campaign is a persisted broadcast definition. GroupIDs and GroupNames are
// parallel lists in stored order; the dispatcher delivers in that order.
type Campaign struct {
	ID              int64
	OwnerID         int64 // owner's platform id
	Name            string
	GroupNames      []string
	GroupIDs        []int64
	Message         string
	Media           *MediaRef
	IntervalMinutes int
	CreatedAt       time.Time
}

// Slot is one (hour, minute) daily firing time. Slots are immutable once
// created and only go away with their campaign.
type Slot struct {
	Hour   int
	Minute int
}

func (s Slot) Valid() bool {
	return s.Hour >= 0 && s.Hour <= 23 && s.Minute >= 0 && s.Minute <= 59
}

type Store interface {
	// SavePrincipal inserts the principal if their platform id is new;
	// an existing row is left untouched.
	SavePrincipal(ctx context.Context, p Principal) error
	// Principal returns nil (not an error) when the platform id is unknown.
	Principal(ctx context.Context, platformID int64) (*Principal, error)
	ListPrincipals(ctx context.Context) ([]Principal, error)
	SetActive(ctx context.Context, platformID int64, active bool) error
	// DeletePrincipal removes the row by internal id and returns the deleted
	// principal so callers can clean up sessions and conversation state.
	DeletePrincipal(ctx context.Context, id int64) (*Principal, error)

	// CreateCampaign persists the campaign and all its slots in one
	// transaction: a campaign is never observable without its slots.
	CreateCampaign(ctx context.Context, c *Campaign, slots []Slot) (int64, error)
	ListCampaigns(ctx context.Context, ownerID int64) ([]Campaign, error)
	Campaign(ctx context.Context, id, ownerID int64) (*Campaign, error)
	CampaignSlots(ctx context.Context, campaignID int64) ([]Slot, error)
	DeleteCampaign(ctx context.Context, id, ownerID int64) error

	// DueCampaigns returns every campaign owning a slot at (hour, minute).
	DueCampaigns(ctx context.Context, hour, minute int) ([]Campaign, error)

	Close() error
}
