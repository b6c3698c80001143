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

// UserRepository defines persistence access for accounts and their credential records.
type UserRepository interface {
	// Create stores the user and links its roles. ID and timestamps are filled in when empty.
	Create(ctx context.Context, user *domain.User) error
	// Update writes name, email, password hash and status.
	Update(ctx context.Context, user *domain.User) error
	// SetRoles replaces the user's role links.
	SetRoles(ctx context.Context, userID string, roles domain.RoleSet) error
	Delete(ctx context.Context, id string) error
	// GetByID returns the user with its roles expanded.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
	Count(ctx context.Context) (int, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const selectUserWithRoles = `
        SELECT u.id, u.name, u.email, u.password_hash, u.status, u.created_at, u.updated_at,
               COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
        FROM users u
        LEFT JOIN user_roles ur ON ur.user_id = u.id
        LEFT JOIN roles r ON r.id = ur.role_id`

const linkRoles = `
        INSERT INTO user_roles (user_id, role_id)
        SELECT $1, id FROM roles WHERE name = ANY($2)`

// storableID reports whether id can match a row. users.id is a UUID column, so any other
// string is an unknown user rather than a query error.
func storableID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}

	const query = `
        INSERT INTO users (id, name, email, password_hash, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			user.ID,
			user.Name,
			user.Email,
			user.PasswordHash,
			string(user.Status),
			user.CreatedAt,
			user.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return insertRoleLinks(ctx, tx, user.ID, user.Roles)
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	if !storableID(user.ID) {
		return domain.ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()

	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, status=$4, updated_at=$5
        WHERE id=$6`

	cmd, err := r.db.Exec(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Status),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) SetRoles(ctx context.Context, userID string, roles domain.RoleSet) error {
	if !storableID(userID) {
		return domain.ErrUserNotFound
	}
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE users SET updated_at=$1 WHERE id=$2`, time.Now().UTC(), userID)
		if err != nil {
			return fmt.Errorf("touch user: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1`, userID); err != nil {
			return fmt.Errorf("clear roles: %w", err)
		}
		return insertRoleLinks(ctx, tx, userID, roles)
	})
}

func insertRoleLinks(ctx context.Context, tx pgx.Tx, userID string, roles domain.RoleSet) error {
	if len(roles) == 0 {
		return nil
	}
	cmd, err := tx.Exec(ctx, linkRoles, userID, roles.Strings())
	if err != nil {
		return fmt.Errorf("link roles: %w", err)
	}
	if int(cmd.RowsAffected()) != len(roles) {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	if !storableID(id) {
		return domain.ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !storableID(id) {
		return nil, domain.ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, selectUserWithRoles+`
        WHERE u.id=$1
        GROUP BY u.id`, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUserWithRoles+`
        WHERE u.email=$1
        GROUP BY u.id`, email))
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, selectUserWithRoles+`
        GROUP BY u.id
        ORDER BY u.created_at, u.id
        LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(count), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		status string
		roles  []string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roles,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	parsed, err := domain.ParseRoles(roles)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user.ID, err)
	}
	user.Status = domain.UserStatus(status)
	user.Roles = parsed
	return &user, nil
}
