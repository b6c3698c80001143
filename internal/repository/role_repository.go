package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// RoleRepository manages the role store.
type RoleRepository interface {
	FindByName(ctx context.Context, name domain.Role) (*domain.RoleRecord, error)
	// FindOrCreate returns the role row, inserting it when missing.
	FindOrCreate(ctx context.Context, name domain.Role) (*domain.RoleRecord, error)
	List(ctx context.Context) ([]domain.RoleRecord, error)
}

type roleRepository struct {
	db DBTX
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(db DBTX) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByName(ctx context.Context, name domain.Role) (*domain.RoleRecord, error) {
	const query = `SELECT id, name, created_at FROM roles WHERE name=$1`
	return scanRole(r.db.QueryRow(ctx, query, string(name)))
}

func (r *roleRepository) FindOrCreate(ctx context.Context, name domain.Role) (*domain.RoleRecord, error) {
	if _, err := domain.ParseRole(string(name)); err != nil {
		return nil, err
	}
	const query = `
        INSERT INTO roles (id, name, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, name, created_at`
	return scanRole(r.db.QueryRow(ctx, query, uuid.NewString(), string(name), time.Now().UTC()))
}

func (r *roleRepository) List(ctx context.Context) ([]domain.RoleRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.RoleRecord
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func scanRole(row pgx.Row) (*domain.RoleRecord, error) {
	var (
		role domain.RoleRecord
		name string
	)
	if err := row.Scan(&role.ID, &name, &role.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	role.Name = domain.Role(name)
	return &role, nil
}
