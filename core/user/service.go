package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	pkgerrors "github.com/pkg/errors"

	"github.com/tukerin/backend/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrInvalidID   = errors.New("missing or duplicate user id")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// SaveCredentials upserts the password hash and last login of usr.
		SaveCredentials(ctx context.Context, usr User) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		core.IsNotNil(repo, "repo"),
		core.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return pkgerrors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// CreateManager provisions a management account. nm must have been validated.
func (svc *Service) CreateManager(ctx context.Context, nm NewManager) (User, error) {
	if err := svc.checkUniqueness(ctx, nm.Email); err != nil {
		return User{}, err
	}

	usr := User{
		ID:           uuid.New().String(),
		FullName:     nm.FullName,
		Email:        nm.Email,
		Role:         nm.Role,
		SchoolID:     nm.SchoolID,
		IsManagement: true,
		CreatedAt:    NowFunc().UTC(),
	}
	if err := usr.SetPassword(nm.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, pkgerrors.Wrap(err, "creating user")
	}
	if err = svc.repo.SaveCredentials(ctx, usr); err != nil {
		return User{}, pkgerrors.Wrap(err, "saving credentials")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: core.CleanString(id, true /* lower */)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// HasManagementAccess reports whether the user carries the management flag.
// Lookup failures are logged and answered with false.
func (svc *Service) HasManagementAccess(ctx context.Context, id string) bool {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) != ErrNotFound {
			svc.logger.Error(fmt.Sprintf("checking management access: %v", err), err)
		}
		return false
	}
	return usr.IsManagement
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	if err := svc.repo.SaveCredentials(ctx, usr); err != nil {
		return User{}, pkgerrors.Wrap(err, "saving last login")
	}
	return usr, nil
}

// ResetPassword sets a new password on the account identified by email.
func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return pkgerrors.Wrap(err, "hashing password")
	}
	return svc.repo.SaveCredentials(ctx, usr)
}
