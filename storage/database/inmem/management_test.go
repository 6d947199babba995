package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
	inmemdb "github.com/tukerin/backend/storage/database/inmem"
	testutil "github.com/tukerin/backend/tests"
)

func TestManagementRepository_InsertNotifications(t *testing.T) {
	db := inmemdb.Open()
	repo := inmemdb.NewManagementRepository(db)
	usr := testutil.CreateUser(t, inmemdb.NewUserRepository(db), "Siti", "", user.RoleStudent, "", 0, 0)
	ctx := context.Background()

	// one bad row rejects the whole batch
	err := repo.InsertNotifications(ctx,
		management.Notification{ID: "n1", UserID: null.StringFrom(usr.ID)},
		management.Notification{ID: "n2", UserID: null.StringFrom("ghost")},
	)
	require.Error(t, err)
	assert.Empty(t, db.Notifications())

	err = repo.InsertNotifications(ctx, management.Notification{UserID: null.StringFrom(usr.ID)})
	require.Error(t, err)
	assert.Empty(t, db.Notifications())

	err = repo.InsertNotifications(ctx,
		management.Notification{ID: "n1", UserID: null.StringFrom(usr.ID)},
		management.Notification{ID: "n2"},
	)
	require.NoError(t, err)
	notifs := db.Notifications()
	require.Len(t, notifs, 2)
	assert.Equal(t, "n1", notifs[0].ID)
	assert.Equal(t, "n2", notifs[1].ID)

	require.NoError(t, repo.InsertNotifications(ctx))
	assert.Len(t, db.Notifications(), 2)
}

func TestManagementRepository_QueryRecipients(t *testing.T) {
	db := inmemdb.Open()
	repo := inmemdb.NewManagementRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	siti := testutil.CreateUser(t, usrRepo, "Siti", "siti@tuker.in", user.RoleStudent, "", 0, 0, base)
	joko := testutil.CreateUser(t, usrRepo, "Joko", "", user.RoleTeacher, "", 0, 0, base.Add(time.Minute))
	admin := testutil.CreateUser(t, usrRepo, "Ana", "", user.RoleAdmin, "", 0, 0, base.Add(2*time.Minute))

	tests := []struct {
		name  string
		roles []string
		want  []string
	}{
		{name: "everyone", want: []string{siti.ID, joko.ID, admin.ID}},
		{name: "students", roles: []string{user.RoleStudent}, want: []string{siti.ID}},
		{name: "staff", roles: []string{user.RoleTeacher, user.RoleAdmin}, want: []string{joko.ID, admin.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.QueryRecipients(context.Background(), tc.roles)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	rcpt, err := repo.GetRecipient(context.Background(), siti.ID)
	require.NoError(t, err)
	assert.Equal(t, management.Recipient{ID: siti.ID, FullName: "Siti", Email: null.StringFrom("siti@tuker.in")}, rcpt)

	rcpt, err = repo.GetRecipient(context.Background(), joko.ID)
	require.NoError(t, err)
	assert.False(t, rcpt.Email.Valid)

	_, err = repo.GetRecipient(context.Background(), "ghost")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestManagementRepository_QuerySchoolsWithUsers(t *testing.T) {
	db := inmemdb.Open()
	repo := inmemdb.NewManagementRepository(db)
	a := db.InsertSchool(management.School{ID: "a", Name: "A"})
	db.InsertSchool(management.School{ID: "b", Name: "B"})
	db.InsertSchool(management.School{ID: "c", Name: "C"})
	testutil.CreateUser(t, inmemdb.NewUserRepository(db), "Siti", "", user.RoleStudent, a.ID, 10, 1.5)

	got, err := repo.QuerySchoolsWithUsers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, []management.UserScore{{EcoScore: null.Int64From(10), CarbonSaved: null.Float64From(1.5)}}, got[0].Users)
	assert.Empty(t, got[1].Users)
}

func TestManagementRepository_FetchTable(t *testing.T) {
	repo := inmemdb.NewManagementRepository(inmemdb.Open())

	table, err := repo.FetchTable(context.Background(), management.DataSchools)
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, []string{"id", "name", "created_at"}, table.Columns)

	_, err = repo.FetchTable(context.Background(), management.DataType("notifications"))
	assert.Equal(t, management.ErrUnknownDataType, err)
}
