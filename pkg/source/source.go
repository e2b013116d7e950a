// Package source defines the read-only data source the notification
// pipelines pull from: listings awaiting verification, the active-user
// stream, and the catalog queries behind digest content. The postgres
// subpackage provides the production implementation; tests substitute
// in-memory fakes.
package source

import (
	"context"
	"time"
)

// Listing is the subset of a property listing the pipelines need.
type Listing struct {
	ID         string
	Name       string
	City       string
	CreatedAt  time.Time
	OwnerName  string
	OwnerEmail string
}

// User is the subset of an account the digest pipeline needs.
type User struct {
	ID       string
	Username string
	Email    string
}

// ListingSource provides the reminder pipeline's single bulk read.
type ListingSource interface {
	// UnverifiedPrivateBefore returns listings that are not yet
	// verified, have private visibility, and were created before the
	// cutoff, together with their owner's contact details.
	UnverifiedPrivateBefore(ctx context.Context, cutoff time.Time) ([]Listing, error)
}

// Catalog provides digest content queries.
type Catalog interface {
	// NewestListings returns the most recently published listings.
	NewestListings(ctx context.Context, limit int) ([]Listing, error)

	// MostViewedListings returns listings ordered by view count.
	MostViewedListings(ctx context.Context, limit int) ([]Listing, error)

	// SavedListings returns the user's saved listings, newest first.
	// This is the cheap per-user personalization query; anything more
	// expensive is deliberately out of bounds for the digest run.
	SavedListings(ctx context.Context, userID string, limit int) ([]Listing, error)
}

// UserCursor streams users one row at a time without materializing the
// full set in memory. Follows the pgx.Rows iteration contract.
type UserCursor interface {
	// Next advances the cursor and reports whether a row is available.
	Next() bool

	// User decodes the current row.
	User() (User, error)

	// Err returns the error that terminated iteration, if any.
	Err() error

	// Close releases the cursor. Safe to call more than once.
	Close()
}

// UserSource provides the digest pipeline's user stream.
type UserSource interface {
	// ActiveUsers opens a forward-only cursor over users with active
	// status. The caller must Close the cursor.
	ActiveUsers(ctx context.Context) (UserCursor, error)
}
