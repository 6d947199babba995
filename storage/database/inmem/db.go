package inmemdb

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
)

type (
	// DB is an in-memory stand-in for the postgres store.
	DB struct {
		user         *userTable
		school       *schoolTable
		activity     *activityTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*management.School
	}

	activityTable struct {
		sync.RWMutex
		table map[string]*management.Activity
	}

	notificationTable struct {
		sync.RWMutex
		rows []management.Notification // insertion order
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		school:       &schoolTable{table: make(map[string]*management.School)},
		activity:     &activityTable{table: make(map[string]*management.Activity)},
		notification: &notificationTable{},
	}
}

// InsertSchool stores sch, assigning an id when it has none.
func (db *DB) InsertSchool(sch management.School) management.School {
	db.school.Lock()
	defer db.school.Unlock()

	if sch.ID == "" {
		sch.ID = uuid.New().String()
	}
	db.school.table[sch.ID] = &sch
	return sch
}

// InsertActivity stores act, assigning an id when it has none.
func (db *DB) InsertActivity(act management.Activity) management.Activity {
	db.activity.Lock()
	defer db.activity.Unlock()

	if act.ID == "" {
		act.ID = uuid.New().String()
	}
	db.activity.table[act.ID] = &act
	return act
}

// Notifications returns every stored notification in insertion order.
func (db *DB) Notifications() []management.Notification {
	db.notification.RLock()
	defer db.notification.RUnlock()

	notifs := make([]management.Notification, len(db.notification.rows))
	copy(notifs, db.notification.rows)
	return notifs
}

// Tables below are read in created_at order, ties broken by id, as the postgres exports are.

func (t *userTable) query() []user.User {
	users := make([]user.User, 0, len(t.table))
	for _, u := range t.table {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

func (t *schoolTable) query() []management.School {
	schools := make([]management.School, 0, len(t.table))
	for _, s := range t.table {
		schools = append(schools, *s)
	}
	sort.Slice(schools, func(i, j int) bool {
		if schools[i].CreatedAt.Equal(schools[j].CreatedAt) {
			return schools[i].ID < schools[j].ID
		}
		return schools[i].CreatedAt.Before(schools[j].CreatedAt)
	})
	return schools
}

func (t *activityTable) query() []management.Activity {
	acts := make([]management.Activity, 0, len(t.table))
	for _, a := range t.table {
		acts = append(acts, *a)
	}
	sort.Slice(acts, func(i, j int) bool {
		if acts[i].CreatedAt.Equal(acts[j].CreatedAt) {
			return acts[i].ID < acts[j].ID
		}
		return acts[i].CreatedAt.Before(acts[j].CreatedAt)
	})
	return acts
}
