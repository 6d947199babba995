package management

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// Activity types
const (
	ActivityOrder     = "order"
	ActivityShipment  = "shipment"
	ActivityReceived  = "received"
	ActivityCancelled = "cancelled"
)

// Exportable data types
const (
	DataUsers      DataType = "users"
	DataActivities DataType = "activities"
	DataSchools    DataType = "schools"
)

var AllDataTypes = []DataType{DataUsers, DataActivities, DataSchools}

const (
	unknownUser   = "Unknown"
	unknownSchool = "N/A"

	DefaultSchoolLimit     = 10
	DefaultActivityLimit   = 50
	DashboardActivityLimit = 20
	DashboardSchoolLimit   = DefaultSchoolLimit
)

type (
	School struct {
		ID        string    `json:"id" db:"id"`
		Name      string    `json:"name" db:"name"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	Activity struct {
		ID          string      `json:"id" db:"id"`
		UserID      null.String `json:"user_id" db:"user_id"`
		Type        string      `json:"type" db:"type"`
		Description string      `json:"description" db:"description"`
		CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	}

	Notification struct {
		ID        string      `json:"id" db:"id"`
		UserID    null.String `json:"user_id" db:"user_id"`
		Title     string      `json:"title" db:"title"`
		Message   string      `json:"message" db:"message"`
		Deadline  null.Time   `json:"deadline" db:"deadline"`
		IsRead    bool        `json:"is_read" db:"is_read"`
		CreatedAt time.Time   `json:"created_at" db:"created_at"`
	}

	// Stats is the headline record of the management dashboard.
	Stats struct {
		TotalUsers        int64   `json:"total_users"`
		TotalSchools      int64   `json:"total_schools"`
		TotalTransactions int64   `json:"total_transactions"`
		TotalEcoScore     int64   `json:"total_eco_score"`
		TotalCarbonSaved  float64 `json:"total_carbon_saved"`
		ActiveUsersToday  int64   `json:"active_users_today"`
		PendingApprovals  int64   `json:"pending_approvals"`
	}

	SchoolPerformance struct {
		SchoolID         string  `json:"school_id"`
		SchoolName       string  `json:"school_name"`
		TotalEcoScore    int64   `json:"eco_score"`
		TotalCarbonSaved float64 `json:"carbon_saved"`
		ActiveUsers      int     `json:"active_users"`
		TotalActivities  int     `json:"total_activities"` // always 0; not computed yet
	}

	UserActivity struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		UserName    string    `json:"user_name"`
		SchoolName  string    `json:"school_name"`
		Type        string    `json:"activity_type"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Dashboard struct {
		Stats      Stats               `json:"stats"`
		Schools    []SchoolPerformance `json:"schools"`
		Activities []UserActivity      `json:"activities"`
	}

	// UserScore is the per-user slice of the users table the aggregations need.
	UserScore struct {
		EcoScore    null.Int64   `db:"eco_score"`
		CarbonSaved null.Float64 `db:"carbon_saved"`
	}

	// SchoolUsers is a school with its users' scores inlined.
	SchoolUsers struct {
		School
		Users []UserScore
	}

	// ActivityRow is the typed projection of an activity joined to its user and school.
	// Join misses leave the nullable fields invalid.
	ActivityRow struct {
		ID          null.String `db:"id"`
		UserID      null.String `db:"user_id"`
		Type        null.String `db:"type"`
		Description null.String `db:"description"`
		CreatedAt   null.Time   `db:"created_at"`
		UserName    null.String `db:"user_name"`
		SchoolName  null.String `db:"school_name"`
	}

	Recipient struct {
		ID       string      `db:"id"`
		FullName string      `db:"full_name"`
		Email    null.String `db:"email"`
	}

	// Table is a row set in the store's column order.
	Table struct {
		Columns []string
		Rows    [][]interface{}
	}

	DataType string
)

func (s UserScore) eco() int64      { return s.EcoScore.Int64 }
func (s UserScore) carbon() float64 { return s.CarbonSaved.Float64 }
func (t Table) Empty() bool         { return len(t.Rows) == 0 }
func (dt DataType) String() string  { return string(dt) }

// TableName returns the store table backing dt.
func (dt DataType) TableName() string { return string(dt) }

// ParseDataType maps s onto one of AllDataTypes.
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, dt := range AllDataTypes {
		if string(dt) == s {
			return dt, nil
		}
	}
	return "", ErrUnknownDataType
}

// valid reports whether the projection carries the fields a feed entry cannot do without.
func (r ActivityRow) valid() bool {
	return r.ID.Valid && r.ID.String != "" && r.CreatedAt.Valid
}

func (r ActivityRow) toUserActivity() UserActivity {
	ua := UserActivity{
		ID:          r.ID.String,
		UserID:      r.UserID.String,
		UserName:    unknownUser,
		SchoolName:  unknownSchool,
		Type:        r.Type.String,
		Description: r.Description.String,
		CreatedAt:   r.CreatedAt.Time.UTC(),
	}
	if r.UserName.Valid && r.UserName.String != "" {
		ua.UserName = r.UserName.String
	}
	if r.SchoolName.Valid && r.SchoolName.String != "" {
		ua.SchoolName = r.SchoolName.String
	}
	return ua
}
