package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
)

const missingID = "6f1c2a4e-0000-4000-8000-0000000000ff"

func newUserRepoFixture(t *testing.T) (UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

func userColumns() []string {
	return []string{"id", "name", "email", "password_hash", "status", "created_at", "updated_at", "roles"}
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           "6f1c2a4e-0000-4000-8000-000000000001",
		Name:         "Alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$04$hash",
		Roles:        domain.NewRoleSet(domain.RoleCustomer),
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Status), u.CreatedAt, u.UpdatedAt, u.Roles.Strings(),
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Name, u.Email, u.PasswordHash, "ACTIVE", u.CreatedAt, u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(u.ID, []string{"customer"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_GeneratesID(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()
	u.ID = ""
	u.Roles = nil

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), u.Name, u.Email, u.PasswordHash, "ACTIVE", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_MissingRoleRollsBack(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO user_roles").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestUserRepository_GetByID_Success(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()
	u.Roles = domain.NewRoleSet(domain.RoleAdmin, domain.RoleCustomer)

	mock.ExpectQuery("SELECT u.id").WithArgs(u.ID).WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepoFixture(t)

	mock.ExpectQuery("SELECT u.id").WithArgs(missingID).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), missingID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_GetByID_UnknownStoredRole(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()

	rows := pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Name, u.Email, u.PasswordHash, "ACTIVE", u.CreatedAt, u.UpdatedAt, []string{"wizard"},
	)
	mock.ExpectQuery("SELECT u.id").WithArgs(u.ID).WillReturnRows(rows)

	_, err := repo.GetByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, domain.ErrUnknownRole)
}

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()

	mock.ExpectQuery("WHERE u.email").WithArgs(u.Email).WillReturnRows(userRow(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.Roles.Has(domain.RoleCustomer))
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	a := sampleUser()
	b := sampleUser()
	b.ID = "6f1c2a4e-0000-4000-8000-000000000002"
	b.Email = "b@x.com"
	b.Roles = nil

	rows := pgxmock.NewRows(userColumns()).
		AddRow(a.ID, a.Name, a.Email, a.PasswordHash, "ACTIVE", a.CreatedAt, a.UpdatedAt, []string{"customer"}).
		AddRow(b.ID, b.Name, b.Email, b.PasswordHash, "SUSPENDED", b.CreatedAt, b.UpdatedAt, []string{})
	mock.ExpectQuery("LIMIT").WithArgs(10, 0).WillReturnRows(rows)

	users, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, domain.UserStatusSuspended, users[1].Status)
	assert.Empty(t, users[1].Roles)
}

func TestUserRepository_Count(t *testing.T) {
	repo, mock := newUserRepoFixture(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestUserRepository_Update_NotFound(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	u := sampleUser()

	mock.ExpectExec("UPDATE users SET name").
		WithArgs(u.Name, u.Email, u.PasswordHash, "ACTIVE", pgxmock.AnyArg(), u.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.Update(context.Background(), u), domain.ErrUserNotFound)
}

func TestUserRepository_Update_DuplicateEmail(t *testing.T) {
	repo, mock := newUserRepoFixture(t)

	mock.ExpectExec("UPDATE users SET name").WillReturnError(&pgconn.PgError{Code: "23505"})

	assert.ErrorIs(t, repo.Update(context.Background(), sampleUser()), domain.ErrEmailTaken)
}

func TestUserRepository_SetRoles(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	id := sampleUser().ID

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET updated_at").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM user_roles").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(id, []string{"admin", "customer"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := repo.SetRoles(context.Background(), id, domain.NewRoleSet(domain.RoleCustomer, domain.RoleAdmin))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetRoles_UnknownUser(t *testing.T) {
	repo, mock := newUserRepoFixture(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET updated_at").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.SetRoles(context.Background(), missingID, domain.NewRoleSet(domain.RoleAdmin))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Delete(t *testing.T) {
	repo, mock := newUserRepoFixture(t)

	mock.ExpectExec("DELETE FROM users").WithArgs(sampleUser().ID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM users").WithArgs(missingID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM users").WithArgs(missingID).WillReturnError(errors.New("conn closed"))

	assert.NoError(t, repo.Delete(context.Background(), sampleUser().ID))
	assert.ErrorIs(t, repo.Delete(context.Background(), missingID), domain.ErrUserNotFound)
	assert.Error(t, repo.Delete(context.Background(), missingID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_MalformedIDIsNotFoundWithoutQuery(t *testing.T) {
	repo, mock := newUserRepoFixture(t)
	ctx := context.Background()

	for _, id := range []string{"ghost", "u-1", "", "6f1c2a4e-0000-4000-8000"} {
		t.Run(id, func(t *testing.T) {
			_, err := repo.GetByID(ctx, id)
			assert.ErrorIs(t, err, domain.ErrUserNotFound)
			assert.ErrorIs(t, repo.Update(ctx, &domain.User{ID: id, Status: domain.UserStatusActive}), domain.ErrUserNotFound)
			assert.ErrorIs(t, repo.SetRoles(ctx, id, domain.NewRoleSet(domain.RoleAdmin)), domain.ErrUserNotFound)
			assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrUserNotFound)
		})
	}

	// No expectations were registered: any statement reaching the pool fails here.
	assert.NoError(t, mock.ExpectationsWereMet())
}
