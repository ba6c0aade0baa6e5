// Package database defines the database store port (interface).
package database

import (
	"context"
	"errors"

	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/domain/profile"
)

// ErrIDTaken is returned by CreateProfile when the requested ID is already
// in use. Callers draw a new ID and retry; it never reaches the HTTP layer.
var ErrIDTaken = errors.New("profile id already taken")

// ProfileStore is the port interface for profile persistence.
// All lookups are scoped by bank; a profile of another bank is not found.
type ProfileStore interface {
	GetProfile(ctx context.Context, bankID, userID int64) (*profile.Profile, error)
	// ListProfilesByBank returns every profile of the bank ordered by ID.
	ListProfilesByBank(ctx context.Context, bankID int64) ([]profile.Profile, error)
	// CreateProfile inserts p with its preassigned ID.
	CreateProfile(ctx context.Context, p *profile.Profile) error
	// UpdateProfile overwrites the mutable fields of an existing profile.
	UpdateProfile(ctx context.Context, p *profile.Profile) error
	DeleteProfile(ctx context.Context, bankID, userID int64) error
	// ProfileExists reports whether any profile, in any bank, holds id.
	ProfileExists(ctx context.Context, id int64) (bool, error)
}

// PhotoStore is the port interface for photo blob persistence, keyed by user.
type PhotoStore interface {
	GetPhoto(ctx context.Context, userID int64) (*photo.Photo, error)
	CreatePhoto(ctx context.Context, p *photo.Photo) error
	UpdatePhoto(ctx context.Context, p *photo.Photo) error
	DeletePhoto(ctx context.Context, userID int64) error
}

// Store combines every persistence port the service uses.
type Store interface {
	ProfileStore
	PhotoStore
	Ping(ctx context.Context) error
}
