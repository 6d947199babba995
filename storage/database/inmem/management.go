package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
)

// managementRepository reads across tables; locks are always taken in
// user, school, activity, notification order.
type managementRepository struct {
	db *DB
}

var _ management.Repository = (*managementRepository)(nil) // interface compliance check

func NewManagementRepository(db *DB) *managementRepository {
	return &managementRepository{db: db}
}

func (repo *managementRepository) CountUsers(context.Context) (int64, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	return int64(len(repo.db.user.table)), nil
}

func (repo *managementRepository) CountSchools(context.Context) (int64, error) {
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()
	return int64(len(repo.db.school.table)), nil
}

func (repo *managementRepository) CountActivities(context.Context) (int64, error) {
	repo.db.activity.RLock()
	defer repo.db.activity.RUnlock()
	return int64(len(repo.db.activity.table)), nil
}

func (repo *managementRepository) CountActivitiesSince(_ context.Context, since time.Time) (int64, error) {
	repo.db.activity.RLock()
	defer repo.db.activity.RUnlock()

	var n int64
	for _, act := range repo.db.activity.table {
		if !act.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (repo *managementRepository) CountPendingNotifications(_ context.Context, now time.Time) (int64, error) {
	repo.db.notification.RLock()
	defer repo.db.notification.RUnlock()

	var n int64
	for _, notif := range repo.db.notification.rows {
		if !notif.IsRead && notif.Deadline.Valid && !notif.Deadline.Time.Before(now) {
			n++
		}
	}
	return n, nil
}

func userScore(usr user.User) management.UserScore {
	return management.UserScore{
		EcoScore:    null.Int64From(usr.EcoScore),
		CarbonSaved: null.Float64From(usr.CarbonSaved),
	}
}

func (repo *managementRepository) QueryUserScores(context.Context) ([]management.UserScore, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	scores := make([]management.UserScore, 0, len(repo.db.user.table))
	for _, usr := range repo.db.user.query() {
		scores = append(scores, userScore(usr))
	}
	return scores, nil
}

func (repo *managementRepository) QuerySchoolsWithUsers(_ context.Context, limit int) ([]management.SchoolUsers, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()

	schools := repo.db.school.query()
	sort.SliceStable(schools, func(i, j int) bool { return schools[i].ID < schools[j].ID })
	if limit >= 0 && len(schools) > limit {
		schools = schools[:limit]
	}

	bySchool := make(map[string][]management.UserScore, len(schools))
	for _, usr := range repo.db.user.query() {
		if usr.SchoolID != "" {
			bySchool[usr.SchoolID] = append(bySchool[usr.SchoolID], userScore(usr))
		}
	}

	result := make([]management.SchoolUsers, 0, len(schools))
	for _, sch := range schools {
		result = append(result, management.SchoolUsers{School: sch, Users: bySchool[sch.ID]})
	}
	return result, nil
}

func (repo *managementRepository) QueryActivityFeed(_ context.Context, limit int) ([]management.ActivityRow, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()
	repo.db.activity.RLock()
	defer repo.db.activity.RUnlock()

	acts := repo.db.activity.query()
	// newest first
	for i, j := 0, len(acts)-1; i < j; i, j = i+1, j-1 {
		acts[i], acts[j] = acts[j], acts[i]
	}
	if limit >= 0 && len(acts) > limit {
		acts = acts[:limit]
	}

	rows := make([]management.ActivityRow, 0, len(acts))
	for _, act := range acts {
		row := management.ActivityRow{
			ID:          null.StringFrom(act.ID),
			UserID:      act.UserID,
			Type:        null.StringFrom(act.Type),
			Description: null.StringFrom(act.Description),
			CreatedAt:   null.NewTime(act.CreatedAt, !act.CreatedAt.IsZero()),
		}
		if usr, ok := repo.db.user.table[act.UserID.String]; act.UserID.Valid && ok {
			row.UserName = null.StringFrom(usr.FullName)
			if sch, ok := repo.db.school.table[usr.SchoolID]; ok {
				row.SchoolName = null.StringFrom(sch.Name)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func recipient(usr user.User) management.Recipient {
	return management.Recipient{
		ID:       usr.ID,
		FullName: usr.FullName,
		Email:    null.NewString(usr.Email, usr.Email != ""),
	}
}

func (repo *managementRepository) QueryRecipients(_ context.Context, roles []string) ([]management.Recipient, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	wanted := make(map[string]bool, len(roles))
	for _, r := range roles {
		wanted[r] = true
	}

	recipients := make([]management.Recipient, 0)
	for _, usr := range repo.db.user.query() {
		if len(wanted) == 0 || wanted[usr.Role] {
			recipients = append(recipients, recipient(usr))
		}
	}
	return recipients, nil
}

func (repo *managementRepository) GetRecipient(_ context.Context, id string) (management.Recipient, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	if usr, ok := repo.db.user.table[id]; ok {
		return recipient(*usr), nil
	}
	return management.Recipient{}, user.ErrNotFound
}

func (repo *managementRepository) InsertNotifications(_ context.Context, notifs ...management.Notification) error {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	repo.db.notification.Lock()
	defer repo.db.notification.Unlock()

	// check every row first; the batch is all or none
	for _, notif := range notifs {
		if notif.ID == "" {
			return errors.New("inserting notification: missing id")
		}
		if _, ok := repo.db.user.table[notif.UserID.String]; notif.UserID.Valid && !ok {
			return errors.Errorf("inserting notification %s: user %s does not exist", notif.ID, notif.UserID.String)
		}
	}
	for _, notif := range notifs {
		notif.CreatedAt = notif.CreatedAt.UTC()
		repo.db.notification.rows = append(repo.db.notification.rows, notif)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (repo *managementRepository) FetchTable(_ context.Context, dt management.DataType) (management.Table, error) {
	var table management.Table

	switch dt {
	case management.DataUsers:
		repo.db.user.RLock()
		defer repo.db.user.RUnlock()

		table.Columns = []string{"id", "full_name", "email", "role", "eco_score", "carbon_saved", "school_id", "is_management", "created_at"}
		for _, u := range repo.db.user.query() {
			table.Rows = append(table.Rows, []interface{}{
				u.ID, u.FullName, nullable(u.Email), u.Role, u.EcoScore, u.CarbonSaved, nullable(u.SchoolID), u.IsManagement, u.CreatedAt,
			})
		}
	case management.DataSchools:
		repo.db.school.RLock()
		defer repo.db.school.RUnlock()

		table.Columns = []string{"id", "name", "created_at"}
		for _, s := range repo.db.school.query() {
			table.Rows = append(table.Rows, []interface{}{s.ID, s.Name, s.CreatedAt})
		}
	case management.DataActivities:
		repo.db.activity.RLock()
		defer repo.db.activity.RUnlock()

		table.Columns = []string{"id", "user_id", "type", "description", "created_at"}
		for _, a := range repo.db.activity.query() {
			var userID interface{}
			if a.UserID.Valid {
				userID = a.UserID.String
			}
			table.Rows = append(table.Rows, []interface{}{a.ID, userID, a.Type, a.Description, a.CreatedAt})
		}
	default:
		return management.Table{}, management.ErrUnknownDataType
	}
	return table, nil
}
