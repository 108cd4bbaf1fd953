package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository is the role assignment store: it maps an identity to the
// role names currently assigned to it.
type RoleRepository interface {
	GetRoles(ctx context.Context, userID string) ([]string, error)
	Assign(ctx context.Context, userID string, roles ...string) error
	// Revoke removes assignments. Tokens already issued keep their snapshot.
	Revoke(ctx context.Context, userID string, roles ...string) error
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	const query = `
        SELECT role FROM user_roles
        WHERE user_id=$1
        ORDER BY role`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *roleRepository) Assign(ctx context.Context, userID string, roles ...string) error {
	const query = `
        INSERT INTO user_roles (user_id, role)
        VALUES ($1, $2)
        ON CONFLICT (user_id, role) DO NOTHING`

	for _, role := range roles {
		if _, err := r.pool.Exec(ctx, query, userID, role); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *roleRepository) Revoke(ctx context.Context, userID string, roles ...string) error {
	if len(roles) == 0 {
		return nil
	}
	const query = `
        DELETE FROM user_roles
        WHERE user_id=$1 AND role = ANY($2)`

	_, err := r.pool.Exec(ctx, query, userID, roles)
	return mapError(err)
}
