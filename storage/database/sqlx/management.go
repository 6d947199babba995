package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
)

// notificationBatchSize keeps a single INSERT well under postgres' 65535 bind parameters.
const notificationBatchSize = 1000

type managementRepository struct {
	db core.DB
}

var _ management.Repository = (*managementRepository)(nil) // interface compliance check

func NewManagementRepository(db core.DB) *managementRepository {
	return &managementRepository{db: db}
}

func (repo managementRepository) count(ctx context.Context, msg, q string, args ...interface{}) (int64, error) {
	var n int64
	if err := repo.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return n, nil
}

func (repo managementRepository) CountUsers(ctx context.Context) (int64, error) {
	return repo.count(ctx, "counting users", `SELECT COUNT(*) FROM users`)
}

func (repo managementRepository) CountSchools(ctx context.Context) (int64, error) {
	return repo.count(ctx, "counting schools", `SELECT COUNT(*) FROM schools`)
}

func (repo managementRepository) CountActivities(ctx context.Context) (int64, error) {
	return repo.count(ctx, "counting activities", `SELECT COUNT(*) FROM activities`)
}

func (repo managementRepository) CountActivitiesSince(ctx context.Context, since time.Time) (int64, error) {
	return repo.count(ctx, "counting activities", `SELECT COUNT(*) FROM activities WHERE created_at >= $1`, since.UTC())
}

func (repo managementRepository) CountPendingNotifications(ctx context.Context, now time.Time) (int64, error) {
	return repo.count(
		ctx, "counting pending notifications",
		`SELECT COUNT(*) FROM notifications WHERE is_read = FALSE AND deadline >= $1`, now.UTC(),
	)
}

func (repo managementRepository) QueryUserScores(ctx context.Context) ([]management.UserScore, error) {
	scores := make([]management.UserScore, 0)
	if err := repo.db.SelectContext(ctx, &scores, `SELECT eco_score, carbon_saved FROM users`); err != nil {
		return nil, errors.Wrap(err, "querying user scores")
	}
	return scores, nil
}

func (repo managementRepository) QuerySchoolsWithUsers(ctx context.Context, limit int) ([]management.SchoolUsers, error) {
	var schools []management.School
	q := `SELECT id, name, created_at FROM schools ORDER BY id LIMIT $1`
	if err := repo.db.SelectContext(ctx, &schools, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	if len(schools) == 0 {
		return []management.SchoolUsers{}, nil
	}

	ids := make([]string, 0, len(schools))
	for _, s := range schools {
		ids = append(ids, s.ID)
	}
	var members []struct {
		SchoolID string `db:"school_id"`
		management.UserScore
	}
	q = `SELECT school_id, eco_score, carbon_saved FROM users WHERE school_id = ANY($1::uuid[])`
	if err := repo.db.SelectContext(ctx, &members, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "querying school users")
	}

	bySchool := make(map[string][]management.UserScore, len(schools))
	for _, m := range members {
		bySchool[m.SchoolID] = append(bySchool[m.SchoolID], m.UserScore)
	}
	result := make([]management.SchoolUsers, 0, len(schools))
	for _, s := range schools {
		s.CreatedAt = s.CreatedAt.UTC()
		result = append(result, management.SchoolUsers{School: s, Users: bySchool[s.ID]})
	}
	return result, nil
}

func (repo managementRepository) QueryActivityFeed(ctx context.Context, limit int) ([]management.ActivityRow, error) {
	rows := make([]management.ActivityRow, 0)
	q := `SELECT a.id, a.user_id, a.type, a.description, a.created_at, u.full_name AS user_name, s.name AS school_name
	FROM activities a
	LEFT JOIN users u ON u.id = a.user_id
	LEFT JOIN schools s ON s.id = u.school_id
	ORDER BY a.created_at DESC
	LIMIT $1`
	if err := repo.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying activity feed")
	}
	return rows, nil
}

func (repo managementRepository) QueryRecipients(ctx context.Context, roles []string) ([]management.Recipient, error) {
	recipients := make([]management.Recipient, 0)
	q := `SELECT id, full_name, email FROM users`
	args := make([]interface{}, 0, 1)
	if len(roles) > 0 {
		q += ` WHERE role = ANY($1)`
		args = append(args, pq.Array(roles))
	}
	q += ` ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &recipients, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying recipients")
	}
	return recipients, nil
}

func (repo managementRepository) GetRecipient(ctx context.Context, id string) (management.Recipient, error) {
	var rcpt management.Recipient
	if err := repo.db.GetContext(ctx, &rcpt, `SELECT id, full_name, email FROM users WHERE id = $1`, id); err != nil {
		return management.Recipient{}, trapNoRowsErr(err, "getting recipient")
	}
	return rcpt, nil
}

// insertNotificationsQuery builds a multi-row INSERT for n notifications.
func insertNotificationsQuery(n int) string {
	const cols = 7
	var b strings.Builder
	b.WriteString(`INSERT INTO notifications (id, user_id, title, message, deadline, is_read, created_at) VALUES `)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 1; j <= cols; j++ {
			if j > 1 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*cols+j)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (repo managementRepository) InsertNotifications(ctx context.Context, notifs ...management.Notification) error {
	if len(notifs) == 0 {
		return nil
	}

	err := core.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		for start := 0; start < len(notifs); start += notificationBatchSize {
			end := start + notificationBatchSize
			if end > len(notifs) {
				end = len(notifs)
			}
			batch := notifs[start:end]

			args := make([]interface{}, 0, len(batch)*7)
			for _, n := range batch {
				deadline := n.Deadline
				if deadline.Valid {
					deadline = null.TimeFrom(deadline.Time.UTC())
				}
				args = append(args, n.ID, n.UserID, n.Title, n.Message, deadline, n.IsRead, n.CreatedAt.UTC())
			}
			if _, err := tx.ExecContext(ctx, insertNotificationsQuery(len(batch)), args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "inserting notifications")
	}
	return nil
}

func (repo managementRepository) FetchTable(ctx context.Context, dt management.DataType) (management.Table, error) {
	switch dt {
	case management.DataUsers, management.DataActivities, management.DataSchools:
	default:
		return management.Table{}, management.ErrUnknownDataType
	}

	// dt is one of the known tables, safe to inline
	rows, err := repo.db.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at, id`, pq.QuoteIdentifier(dt.TableName())))
	if err != nil {
		return management.Table{}, errors.Wrapf(err, "querying %s", dt)
	}
	defer func() { _ = rows.Close() }()

	var table management.Table
	if table.Columns, err = rows.Columns(); err != nil {
		return management.Table{}, errors.Wrapf(err, "reading %s columns", dt)
	}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return management.Table{}, errors.Wrapf(err, "scanning %s", dt)
		}
		table.Rows = append(table.Rows, vals)
	}
	if err = rows.Err(); err != nil {
		return management.Table{}, errors.Wrapf(err, "iterating %s", dt)
	}
	return table, nil
}
