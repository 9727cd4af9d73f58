package data

import (
	"context"
	"database/sql"
	"fmt"
)

// ShareRepo answers capability queries against the child_shares table. The
// owning parent is stored as a share row like any other caregiver.
type ShareRepo struct {
	DB *sql.DB
}

// NewShareRepo creates a new ShareRepo.
func NewShareRepo(db *sql.DB) *ShareRepo {
	return &ShareRepo{DB: db}
}

// CanRead reports whether the user has a sharing relationship on the child.
func (r *ShareRepo) CanRead(ctx context.Context, userID, childID string) (bool, error) {
	var allowed bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM child_shares
			WHERE child_id = $1 AND user_id = $2
		)
	`, childID, userID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check share: %w", err)
	}
	return allowed, nil
}

// Sharers returns every user with a sharing relationship on the child,
// owner included.
func (r *ShareRepo) Sharers(ctx context.Context, childID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_id FROM child_shares
		WHERE child_id = $1
		ORDER BY user_id
	`, childID)
	if err != nil {
		return nil, fmt.Errorf("list sharers: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sharer: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sharers: %w", err)
	}
	return users, nil
}

// Grant records a sharing relationship. Re-granting updates the role.
func (r *ShareRepo) Grant(ctx context.Context, childID, userID, role string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO child_shares (child_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (child_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, childID, userID, role)
	if err != nil {
		return fmt.Errorf("grant share: %w", err)
	}
	return nil
}
