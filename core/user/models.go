package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/tukerin/backend/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

// IsRole reports whether role is one of AllRoles.
func IsRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	EcoScore     int64     `json:"eco_score"`
	CarbonSaved  float64   `json:"carbon_saved"` // kg
	SchoolID     string    `json:"school_id,omitempty"`
	IsManagement bool      `json:"is_management"`
	CreatedAt    time.Time `json:"created_at"` // UTC

	// credentials; only management accounts have some
	PasswordHash []byte    `json:"-"`
	LastLogin    time.Time `json:"-"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasCredentials() bool {
	return len(u.PasswordHash) > 0
}

// NewManager contains information needed to provision a management account.
type NewManager struct {
	FullName        string `json:"full_name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"omitempty,role"`
	SchoolID        string `json:"school_id" validate:"omitempty,uuid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nm *NewManager) Validate(validate *validator.Validate) error {
	nm.FullName = core.CleanString(nm.FullName)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Role = core.CleanString(nm.Role, true /* lower */)
	nm.SchoolID = core.CleanString(nm.SchoolID, true /* lower */)
	if nm.Role == "" {
		nm.Role = RoleAdmin
	}
	return validate.Struct(nm)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID    string
	Email string
}
