package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/user"
)

const userColumns = `u.id, u.full_name, u.email, u.role, u.eco_score, u.carbon_saved, u.school_id, u.is_management, u.created_at,
	c.password_hash, c.last_login`

type (
	userRepository struct {
		exec core.DBExecutor
	}

	// userRow mirrors users LEFT JOIN user_credentials.
	userRow struct {
		ID           string       `db:"id"`
		FullName     string       `db:"full_name"`
		Email        null.String  `db:"email"`
		Role         string       `db:"role"`
		EcoScore     null.Int64   `db:"eco_score"`
		CarbonSaved  null.Float64 `db:"carbon_saved"`
		SchoolID     null.String  `db:"school_id"`
		IsManagement bool         `db:"is_management"`
		CreatedAt    time.Time    `db:"created_at"`
		PasswordHash null.Bytes   `db:"password_hash"`
		LastLogin    null.Time    `db:"last_login"`
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (r userRow) unmarshal() user.User {
	usr := user.User{
		ID:           r.ID,
		FullName:     r.FullName,
		Email:        r.Email.String,
		Role:         r.Role,
		EcoScore:     r.EcoScore.Int64,
		CarbonSaved:  r.CarbonSaved.Float64,
		SchoolID:     r.SchoolID.String,
		IsManagement: r.IsManagement,
		CreatedAt:    r.CreatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
	// accounts without credentials keep a nil hash
	if r.PasswordHash.Valid {
		usr.PasswordHash = r.PasswordHash.Bytes
	}
	return usr
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}

	var exists bool
	q := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND NOT (id = ANY($2::uuid[])))`
	if err := repo.exec.GetContext(ctx, &exists, q, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return user.User{}, user.ErrInvalidID
	}
	row := struct {
		ID           string       `db:"id"`
		FullName     string       `db:"full_name"`
		Email        null.String  `db:"email"`
		Role         string       `db:"role"`
		EcoScore     null.Int64   `db:"eco_score"`
		CarbonSaved  null.Float64 `db:"carbon_saved"`
		SchoolID     null.String  `db:"school_id"`
		IsManagement bool         `db:"is_management"`
		CreatedAt    time.Time    `db:"created_at"`
	}{
		ID:           usr.ID,
		FullName:     usr.FullName,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		EcoScore:     null.Int64From(usr.EcoScore),
		CarbonSaved:  null.Float64From(usr.CarbonSaved),
		SchoolID:     null.NewString(usr.SchoolID, usr.SchoolID != ""),
		IsManagement: usr.IsManagement,
		CreatedAt:    usr.CreatedAt.UTC(),
	}

	q := `INSERT INTO users (id, full_name, email, role, eco_score, carbon_saved, school_id, is_management, created_at)
	VALUES (:id, :full_name, :email, :role, :eco_score, :carbon_saved, :school_id, :is_management, :created_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.CreatedAt = row.CreatedAt
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		where string
		arg   string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		where, arg = "u.id = $1", filter.ID
	case filter.Email != "":
		where, arg = "u.email = $1", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM users u LEFT JOIN user_credentials c ON c.user_id = u.id WHERE ` + where
	if err := repo.exec.GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, "getting user")
	}
	return row.unmarshal(), nil
}

func (repo userRepository) SaveCredentials(ctx context.Context, usr user.User) error {
	q := `INSERT INTO user_credentials (user_id, password_hash, last_login) VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash, last_login = EXCLUDED.last_login`
	lastLogin := null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero())
	if _, err := repo.exec.ExecContext(ctx, q, usr.ID, usr.PasswordHash, lastLogin); err != nil {
		return errors.Wrap(err, "saving credentials")
	}
	return nil
}
