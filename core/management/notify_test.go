package management_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
	testutil "github.com/tukerin/backend/tests"
)

func TestNewNotification_Validate(t *testing.T) {
	validate := testutil.NewValidator()
	id := "0D6C0F93-2B4E-4B53-9E59-5A3A1E0E8F11"

	tests := []struct {
		name    string
		nn      management.NewNotification
		wantErr bool
	}{
		{
			name: "valid",
			nn:   management.NewNotification{UserID: id, Title: " Deadline ", Message: "Submit your sorting report"},
		},
		{
			name:    "missing user",
			nn:      management.NewNotification{Title: "Deadline", Message: "Submit"},
			wantErr: true,
		},
		{
			name:    "bad user id",
			nn:      management.NewNotification{UserID: "42", Title: "Deadline", Message: "Submit"},
			wantErr: true,
		},
		{
			name:    "blank title",
			nn:      management.NewNotification{UserID: id, Title: "   ", Message: "Submit"},
			wantErr: true,
		},
		{
			name:    "missing message",
			nn:      management.NewNotification{UserID: id, Title: "Deadline"},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.nn.Validate(validate)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(id), tc.nn.UserID)
			assert.Equal(t, "Deadline", tc.nn.Title)
		})
	}
}

func TestNewBroadcast_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	nb := management.NewBroadcast{Title: "Hi", Message: "Hello", Roles: []string{" Student", "teacher", "student", ""}}
	require.NoError(t, nb.Validate(validate))
	assert.Equal(t, []string{"student", "teacher"}, nb.Roles)

	nb = management.NewBroadcast{Title: "Hi", Message: "Hello"}
	require.NoError(t, nb.Validate(validate))
	assert.Empty(t, nb.Roles)

	nb = management.NewBroadcast{Title: "Hi", Message: "Hello", Roles: []string{"janitor"}}
	assert.Error(t, nb.Validate(validate))

	nb = management.NewBroadcast{Message: "Hello"}
	assert.Error(t, nb.Validate(validate))
}

func TestIntent_Summary(t *testing.T) {
	tests := []struct {
		intent management.Intent
		want   string
	}{
		{
			intent: management.Intent{Kind: management.IntentNotification, UserID: "u1", Title: "Deadline"},
			want:   `Send "Deadline" to user u1?`,
		},
		{
			intent: management.Intent{Kind: management.IntentNotification, UserID: "u1", Title: "Deadline", Deadline: "2024-03-02T10:00:00Z"},
			want:   `Send "Deadline" to user u1 (deadline 2024-03-02T10:00:00Z)?`,
		},
		{
			intent: management.Intent{Kind: management.IntentBroadcast, Title: "Hi"},
			want:   `Broadcast "Hi" to all users?`,
		},
		{
			intent: management.Intent{Kind: management.IntentBroadcast, Title: "Hi", Roles: []string{"student", "teacher"}},
			want:   `Broadcast "Hi" to users with role student, teacher?`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.intent.Summary())
		})
	}
}

func TestService_SendNotification(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Siti", "siti@tuker.in", user.RoleStudent, "", 0, 0)
	deadline := now.Add(24 * time.Hour)
	nn := management.NewNotification{UserID: usr.ID, Title: "Deadline", Message: "Submit your report", Deadline: &deadline}

	var asked management.Intent
	confirmer := management.ConfirmFunc(func(_ context.Context, intent management.Intent) (management.Decision, error) {
		asked = intent
		return management.Accepted, nil
	})
	notices := new(management.NoticeList)

	res, err := e.svc.SendNotification(context.Background(), nn, confirmer, notices)
	require.NoError(t, err)
	assert.Equal(t, management.SendResult{Sent: true, Recipients: 1}, res)
	assert.Equal(t, management.IntentNotification, asked.Kind)
	assert.Equal(t, "2024-03-02T03:00:00Z", asked.Deadline)

	notifs := e.db.Notifications()
	require.Len(t, notifs, 1)
	assert.Equal(t, usr.ID, notifs[0].UserID.String)
	assert.Equal(t, "Deadline", notifs[0].Title)
	assert.Equal(t, "Submit your report", notifs[0].Message)
	assert.False(t, notifs[0].IsRead)
	assert.True(t, notifs[0].Deadline.Time.Equal(deadline))
	assert.True(t, notifs[0].CreatedAt.Equal(now))

	assert.Equal(t, []management.Notice{
		{Level: management.NoticeSuccess, Title: "Notification sent!", Text: "The notification was sent to the user"},
	}, notices.Notices())
	assert.Empty(t, e.mailSvc.SentMessages())
}

func TestService_SendNotification_declined(t *testing.T) {
	confirmErr := errors.New("terminal closed")
	tests := []struct {
		name      string
		confirmer management.Confirmer
	}{
		{name: "declined", confirmer: management.Decide(management.Declined)},
		{name: "no confirmer", confirmer: nil},
		{
			name: "confirmer error",
			confirmer: management.ConfirmFunc(func(context.Context, management.Intent) (management.Decision, error) {
				return management.Accepted, confirmErr
			}),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := setup(t)
			usr := testutil.CreateUser(t, e.usrRepo, "Siti", "", user.RoleStudent, "", 0, 0)
			notices := new(management.NoticeList)

			nn := management.NewNotification{UserID: usr.ID, Title: "Deadline", Message: "Submit"}
			res, err := e.svc.SendNotification(context.Background(), nn, tc.confirmer, notices)
			require.NoError(t, err)
			assert.Equal(t, management.SendResult{}, res)
			assert.Empty(t, e.db.Notifications())
			assert.Empty(t, notices.Notices())
		})
	}
}

func TestService_SendNotification_insertFailure(t *testing.T) {
	e := setup(t, failing("InsertNotifications"))
	usr := testutil.CreateUser(t, e.usrRepo, "Siti", "", user.RoleStudent, "", 0, 0)
	notices := new(management.NoticeList)

	nn := management.NewNotification{UserID: usr.ID, Title: "Deadline", Message: "Submit"}
	res, err := e.svc.SendNotification(context.Background(), nn, management.Decide(management.Accepted), notices)
	require.Error(t, err)
	assert.Equal(t, management.SendResult{}, res)
	assert.Equal(t, management.ErrNotificationInsert, pkgerrors.Cause(err))
	assert.True(t, errors.Is(err, management.ErrNotificationInsert))

	var de *management.DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, errDown, de.Err)

	assert.Equal(t, []management.Notice{
		{Level: management.NoticeError, Title: "Failed to send", Text: "An error occurred while sending the notification"},
	}, notices.Notices())
	assert.Contains(t, e.logs.String(), "management.SendNotification")
}

func TestService_SendNotification_unknownUser(t *testing.T) {
	e := setup(t)

	nn := management.NewNotification{UserID: "0d6c0f93-2b4e-4b53-9e59-5a3a1e0e8f11", Title: "Deadline", Message: "Submit"}
	_, err := e.svc.SendNotification(context.Background(), nn, management.Decide(management.Accepted), nil)
	assert.Equal(t, management.ErrNotificationInsert, pkgerrors.Cause(err))
	assert.Empty(t, e.db.Notifications())
}

func TestService_SendNotification_email(t *testing.T) {
	e := setup(t)
	e.conf.NotifyByEmail = true
	core.ParseEmailTemplates(testutil.NewLogger(nil, e.conf), true)

	usr := testutil.CreateUser(t, e.usrRepo, "Siti", "siti@tuker.in", user.RoleStudent, "", 0, 0)
	deadline := time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC)
	nn := management.NewNotification{UserID: usr.ID, Title: "Deadline", Message: "Submit your report", Deadline: &deadline}

	_, err := e.svc.SendNotification(context.Background(), nn, management.Decide(management.Accepted), nil)
	require.NoError(t, err)

	sent := e.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "siti@tuker.in", sent[0].To[0].Address)
	assert.Equal(t, "Deadline", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Submit your report")
	// deadline is shown in local time
	assert.Contains(t, sent[0].TextContent, "02 Mar 2024 10:00")
}

func TestService_Broadcast(t *testing.T) {
	e := setup(t)
	var students []user.User
	for _, name := range []string{"Siti", "Budi", "Ayu"} {
		students = append(students, testutil.CreateUser(t, e.usrRepo, name, "", user.RoleStudent, "", 0, 0))
	}
	testutil.CreateUser(t, e.usrRepo, "Pak Joko", "", user.RoleTeacher, "", 0, 0)
	testutil.CreateManager(t, e.usrRepo, "Admin", "admin@tuker.in", "S3cure!pass")

	notices := new(management.NoticeList)
	nb := management.NewBroadcast{Title: "Eco week", Message: "Bring your bottles", Roles: []string{user.RoleStudent}}
	res, err := e.svc.Broadcast(context.Background(), nb, management.Decide(management.Accepted), notices)
	require.NoError(t, err)
	assert.Equal(t, management.SendResult{Sent: true, Recipients: 3}, res)

	notifs := e.db.Notifications()
	require.Len(t, notifs, 3)
	got := make(map[string]bool)
	for _, n := range notifs {
		assert.False(t, n.IsRead)
		assert.False(t, n.Deadline.Valid)
		assert.Equal(t, "Eco week", n.Title)
		got[n.UserID.String] = true
	}
	for _, s := range students {
		assert.True(t, got[s.ID], "student %s was not notified", s.FullName)
	}

	assert.Equal(t, []management.Notice{
		{Level: management.NoticeSuccess, Title: "Broadcast sent!", Text: "The notification was sent to 3 users"},
	}, notices.Notices())
}

func TestService_Broadcast_allUsers(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Siti", "", user.RoleStudent, "", 0, 0)
	testutil.CreateUser(t, e.usrRepo, "Pak Joko", "", user.RoleTeacher, "", 0, 0)

	res, err := e.svc.Broadcast(context.Background(), management.NewBroadcast{Title: "Hi", Message: "Hello"}, management.Decide(management.Accepted), nil)
	require.NoError(t, err)
	assert.Equal(t, management.SendResult{Sent: true, Recipients: 2}, res)
	assert.Len(t, e.db.Notifications(), 2)
}

func TestService_Broadcast_noRecipients(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Siti", "", user.RoleStudent, "", 0, 0)

	nb := management.NewBroadcast{Title: "Hi", Message: "Hello", Roles: []string{user.RoleTeacher}}
	res, err := e.svc.Broadcast(context.Background(), nb, management.Decide(management.Accepted), nil)
	require.NoError(t, err)
	assert.Equal(t, management.SendResult{Sent: true, Recipients: 0}, res)
	assert.Empty(t, e.db.Notifications())
}

func TestService_Broadcast_declined(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Siti", "", user.RoleStudent, "", 0, 0)

	var asked management.Intent
	confirmer := management.ConfirmFunc(func(_ context.Context, intent management.Intent) (management.Decision, error) {
		asked = intent
		return management.Declined, nil
	})
	nb := management.NewBroadcast{Title: "Hi", Message: "Hello", Roles: []string{user.RoleStudent}}
	res, err := e.svc.Broadcast(context.Background(), nb, confirmer, nil)
	require.NoError(t, err)
	assert.Equal(t, management.SendResult{}, res)
	assert.Equal(t, management.IntentBroadcast, asked.Kind)
	assert.Equal(t, []string{user.RoleStudent}, asked.Roles)
	assert.Empty(t, e.db.Notifications())
}

func TestService_Broadcast_failures(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		wantStep error
		want     management.Notice
	}{
		{
			name:     "recipients",
			op:       "QueryRecipients",
			wantStep: management.ErrRecipientResolution,
			want:     management.Notice{Level: management.NoticeError, Title: "Broadcast failed", Text: "Could not fetch the list of users"},
		},
		{
			name:     "insert",
			op:       "InsertNotifications",
			wantStep: management.ErrNotificationInsert,
			want:     management.Notice{Level: management.NoticeError, Title: "Broadcast failed", Text: "An error occurred while sending the broadcast"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := setup(t, failing(tc.op))
			testutil.CreateUser(t, e.usrRepo, "Siti", "", user.RoleStudent, "", 0, 0)
			notices := new(management.NoticeList)

			res, err := e.svc.Broadcast(context.Background(), management.NewBroadcast{Title: "Hi", Message: "Hello"}, management.Decide(management.Accepted), notices)
			require.Error(t, err)
			assert.Equal(t, management.SendResult{}, res)
			assert.Equal(t, tc.wantStep, pkgerrors.Cause(err))
			assert.Contains(t, err.Error(), errDown.Error())
			assert.Equal(t, []management.Notice{tc.want}, notices.Notices())
			assert.Empty(t, e.db.Notifications())
		})
	}
}

func TestService_Broadcast_email(t *testing.T) {
	e := setup(t)
	e.conf.NotifyByEmail = true
	core.ParseEmailTemplates(testutil.NewLogger(nil, e.conf), true)

	testutil.CreateUser(t, e.usrRepo, "Siti", "siti@tuker.in", user.RoleStudent, "", 0, 0)
	testutil.CreateUser(t, e.usrRepo, "Budi", "", user.RoleStudent, "", 0, 0)

	res, err := e.svc.Broadcast(context.Background(), management.NewBroadcast{Title: "Hi", Message: "Hello"}, management.Decide(management.Accepted), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipients)

	// Budi has no address
	sent := e.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "siti@tuker.in", sent[0].To[0].Address)
	assert.NotContains(t, sent[0].TextContent, "Deadline:")
}

func TestService_Broadcast_emailFollowsStoredRows(t *testing.T) {
	e := setup(t)
	e.conf.NotifyByEmail = true
	core.ParseEmailTemplates(testutil.NewLogger(nil, e.conf), true)

	emails := map[string]string{}
	for _, name := range []string{"Siti", "Budi", "Ani"} {
		usr := testutil.CreateUser(t, e.usrRepo, name, strings.ToLower(name)+"@tuker.in", user.RoleStudent, "", 0, 0)
		emails[usr.ID] = usr.Email
	}

	_, err := e.svc.Broadcast(context.Background(), management.NewBroadcast{Title: "Hi", Message: "Hello"}, management.Decide(management.Accepted), nil)
	require.NoError(t, err)

	// one mail per stored row, addressed to that row's user
	notifs := e.db.Notifications()
	sent := e.mailSvc.SentMessages()
	require.Len(t, notifs, 3)
	require.Len(t, sent, len(notifs))
	for i, notif := range notifs {
		assert.Equal(t, emails[notif.UserID.String], sent[i].To[0].Address)
		assert.Equal(t, notif.Title, sent[i].Subject)
	}
}
