// Package postgres implements the source interfaces over a pgx
// connection pool. All queries are read-only; the notification core
// never writes application data.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbansetu/notifier/pkg/source"
)

// Source implements source.ListingSource, source.Catalog, and
// source.UserSource over one shared pool.
type Source struct {
	pool *pgxpool.Pool
}

// NewSource creates a Source over an established pool.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

const unverifiedPrivateQuery = `
SELECT l.id, l.name, l.city, l.created_at, u.username, u.email
FROM listings l
JOIN users u ON u.id = l.owner_id
WHERE l.is_verified = false
  AND l.visibility = 'private'
  AND l.created_at < $1
ORDER BY l.created_at`

// UnverifiedPrivateBefore implements source.ListingSource.
func (s *Source) UnverifiedPrivateBefore(ctx context.Context, cutoff time.Time) ([]source.Listing, error) {
	rows, err := s.pool.Query(ctx, unverifiedPrivateQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: query unverified listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// NewestListings implements source.Catalog.
func (s *Source) NewestListings(ctx context.Context, limit int) ([]source.Listing, error) {
	rows, err := s.pool.Query(ctx, `
SELECT l.id, l.name, l.city, l.created_at, u.username, u.email
FROM listings l
JOIN users u ON u.id = l.owner_id
WHERE l.is_verified = true AND l.visibility = 'public'
ORDER BY l.created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query newest listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// MostViewedListings implements source.Catalog.
func (s *Source) MostViewedListings(ctx context.Context, limit int) ([]source.Listing, error) {
	rows, err := s.pool.Query(ctx, `
SELECT l.id, l.name, l.city, l.created_at, u.username, u.email
FROM listings l
JOIN users u ON u.id = l.owner_id
WHERE l.is_verified = true AND l.visibility = 'public'
ORDER BY l.view_count DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query most viewed listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// SavedListings implements source.Catalog. One indexed query per user;
// this is the whole personalization budget for a digest run.
func (s *Source) SavedListings(ctx context.Context, userID string, limit int) ([]source.Listing, error) {
	rows, err := s.pool.Query(ctx, `
SELECT l.id, l.name, l.city, l.created_at, u.username, u.email
FROM saved_listings sl
JOIN listings l ON l.id = sl.listing_id
JOIN users u ON u.id = l.owner_id
WHERE sl.user_id = $1 AND l.visibility = 'public'
ORDER BY l.created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query saved listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// ActiveUsers implements source.UserSource. The returned cursor streams
// rows straight off the wire, so the caller's memory use is independent
// of the user count.
func (s *Source) ActiveUsers(ctx context.Context) (source.UserCursor, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, username, email
FROM users
WHERE status = 'active'
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query active users: %w", err)
	}
	return &userCursor{rows: rows}, nil
}

type userCursor struct {
	rows pgx.Rows
}

func (c *userCursor) Next() bool {
	return c.rows.Next()
}

func (c *userCursor) User() (source.User, error) {
	var u source.User
	if err := c.rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
		return source.User{}, fmt.Errorf("postgres: scan user: %w", err)
	}
	return u, nil
}

func (c *userCursor) Err() error {
	return c.rows.Err()
}

func (c *userCursor) Close() {
	c.rows.Close()
}

func scanListings(rows pgx.Rows) ([]source.Listing, error) {
	var listings []source.Listing
	for rows.Next() {
		var l source.Listing
		if err := rows.Scan(&l.ID, &l.Name, &l.City, &l.CreatedAt, &l.OwnerName, &l.OwnerEmail); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate listings: %w", err)
	}
	return listings, nil
}
