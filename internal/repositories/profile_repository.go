package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UnknownUserName is the fallback display name when a profile is missing.
const UnknownUserName = "Unknown user"

// ProfileLookup resolves display names for user ids. Profiles are owned by
// the platform backend; this service only reads them.
type ProfileLookup interface {
	DisplayName(ctx context.Context, userID int) (string, error)
	DisplayNames(ctx context.Context, userIDs []int) (map[int]string, error)
}

// ProfileRepo is a sqlx implementation of ProfileLookup.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// DisplayName resolves one user's display name, falling back to
// UnknownUserName on a miss.
func (r *ProfileRepo) DisplayName(ctx context.Context, userID int) (string, error) {
	names, err := r.DisplayNames(ctx, []int{userID})
	if err != nil {
		return "", err
	}
	return names[userID], nil
}

// DisplayNames resolves display names in bulk. Every requested id is present
// in the result; misses map to UnknownUserName.
func (r *ProfileRepo) DisplayNames(ctx context.Context, userIDs []int) (map[int]string, error) {
	result := make(map[int]string, len(userIDs))
	for _, id := range userIDs {
		result[id] = UnknownUserName
	}
	if len(userIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT id, display_name FROM profiles WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	rows := []struct {
		ID          int    `db:"id"`
		DisplayName string `db:"display_name"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	for _, row := range rows {
		if row.DisplayName != "" {
			result[row.ID] = row.DisplayName
		}
	}
	return result, nil
}
