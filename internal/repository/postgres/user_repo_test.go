package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "name", "email", "pwd_hash", "created_at", "updated_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Name: "Alice", Email: "a@x.com", PwdHash: "h"}

	mock.ExpectQuery(`INSERT INTO users \(id, name, email, pwd_hash\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING created_at, updated_at`).
		WithArgs(u.ID, u.Name, u.Email, u.PwdHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.ID, u.Name, u.Email, u.PwdHash).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.ID, u.Name, u.Email, u.PwdHash).
		WillReturnError(errors.New("conn reset"))
	err = r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrStore)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_AssignsID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	now := time.Now().UTC()
	u := &model.User{Name: "Bob", Email: "b@x.com", PwdHash: "h"}

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), u.Name, u.Email, u.PwdHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(context.Background(), u))
	require.NotEqual(t, uuid.Nil, u.ID)
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name, email, pwd_hash, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "u", "u@x.com", "h", now, now))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "u@x.com", u.Email)

	mock.ExpectQuery(`SELECT id, name, email, pwd_hash, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(errors.New("timeout"))
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrStore)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name, email, pwd_hash, created_at, updated_at FROM users WHERE email=\$1`).
		WithArgs("u@x.com").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "u", "u@x.com", "h", now, now))
	u, err := r.GetByEmail(ctx, "u@x.com")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	mock.ExpectQuery(`SELECT .* FROM users WHERE email=\$1`).
		WithArgs("none@x.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "none@x.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Name: "n", Email: "e@x.com", PwdHash: "h2"}

	mock.ExpectQuery(`UPDATE users SET name=\$2, email=\$3, pwd_hash=\$4, updated_at=now\(\) WHERE id=\$1 RETURNING created_at, updated_at`).
		WithArgs(u.ID, u.Name, u.Email, u.PwdHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Update(ctx, u))

	mock.ExpectQuery(`UPDATE users`).
		WithArgs(u.ID, u.Name, u.Email, u.PwdHash).
		WillReturnError(pgx.ErrNoRows)
	require.ErrorIs(t, r.Update(ctx, u), errs.ErrNotFound)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs(u.ID, u.Name, u.Email, u.PwdHash).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Update(ctx, u), errs.ErrAlreadyExists)
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	ok, err := r.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	ok, err = r.Delete(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT id, name, email, pwd_hash, created_at, updated_at FROM users ORDER BY created_at, id LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 4).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(a, "a", "a@x.com", "h", now, now).
			AddRow(b, "b", "b@x.com", "h", now, now))

	users, total, err := r.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Equal(t, 7, total)
	require.Len(t, users, 2)
	require.Equal(t, b, users[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_List_CountError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).WillReturnError(errors.New("down"))
	_, _, err := r.List(context.Background(), 10, 0)
	require.ErrorIs(t, err, errs.ErrStore)
}

func TestNew_BadDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz", 4)
	require.ErrorContains(t, err, "parse dsn")
}
