package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
	logsvc "github.com/tukerin/backend/services/logger"
	inmemdb "github.com/tukerin/backend/storage/database/inmem"
)

// WIB is Asia/Jakarta without depending on the host's tz database.
var WIB = time.FixedZone("WIB", 7*60*60)

func NewConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		Debug:           true,
		TestMode:        true,
		AppName:         "Tuker.in",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:5173",
		ExportDir:       ".",
		Location:        WIB,
		Server: core.ServerConfig{
			Host:                      ":8000",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 10 * time.Minute,
		},
	}
}

// NewLogger returns a logger writing to w; Rollbar reporting stays off.
func NewLogger(w io.Writer, conf *core.Config) core.Logger {
	if w == nil {
		w = io.Discard
	}
	return logsvc.NewRollbarLogger(log.New(w, "TEST : ", 0), conf)
}

func NewValidator() *validator.Validate {
	validate, _ := NewValidatorWithTranslator()
	return validate
}

// NewValidatorWithTranslator returns a validator and the translator its messages are registered on.
func NewValidatorWithTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func createUser(t *testing.T, repo user.Repository, usr user.User) user.User {
	t.Helper()
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, role, schoolID string,
	ecoScore int64,
	carbonSaved float64,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	return createUser(t, repo, user.User{
		ID:          uuid.New().String(),
		FullName:    name,
		Email:       email,
		Role:        role,
		EcoScore:    ecoScore,
		CarbonSaved: carbonSaved,
		SchoolID:    schoolID,
		CreatedAt:   tstamp,
	})
}

// CreateManager creates an admin with management access who can log in with pwd.
func CreateManager(t *testing.T, repo user.Repository, name, email, pwd string) user.User {
	usr := user.User{
		ID:           uuid.New().String(),
		FullName:     name,
		Email:        email,
		Role:         user.RoleAdmin,
		IsManagement: true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateManager() failed: %v", err)
	}
	usr = createUser(t, repo, usr)
	if err := repo.SaveCredentials(context.Background(), usr); err != nil {
		t.Fatalf("CreateManager() failed: %v", err)
	}
	return usr
}

func CreateSchool(t *testing.T, db *inmemdb.DB, name string, createdAt ...time.Time) management.School {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	return db.InsertSchool(management.School{Name: name, CreatedAt: tstamp})
}

// CreateActivity records an activity of usr; an empty usr.ID leaves the activity without user.
func CreateActivity(t *testing.T, db *inmemdb.DB, usr user.User, typ, desc string, createdAt time.Time) management.Activity {
	t.Helper()
	return db.InsertActivity(management.Activity{
		UserID:      null.NewString(usr.ID, usr.ID != ""),
		Type:        typ,
		Description: desc,
		CreatedAt:   createdAt.UTC(),
	})
}
