package management

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kat-co/vala"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tukerin/backend/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrUnknownDataType     = errors.New("unknown data type")
	ErrRecipientResolution = errors.New("could not resolve recipients")
	ErrNotificationInsert  = errors.New("could not insert notifications")
)

type (
	// Repository is the gateway to the remote store. Read methods never filter
	// beyond what their name says; callers own defaults and ordering of results.
	Repository interface {
		CountUsers(ctx context.Context) (int64, error)
		CountSchools(ctx context.Context) (int64, error)
		CountActivities(ctx context.Context) (int64, error)
		CountActivitiesSince(ctx context.Context, since time.Time) (int64, error)
		// CountPendingNotifications counts unread notifications whose deadline is on/after now.
		CountPendingNotifications(ctx context.Context, now time.Time) (int64, error)
		QueryUserScores(ctx context.Context) ([]UserScore, error)
		// QuerySchoolsWithUsers returns up to limit schools ordered by id.
		QuerySchoolsWithUsers(ctx context.Context, limit int) ([]SchoolUsers, error)
		// QueryActivityFeed returns up to limit activities, newest first.
		QueryActivityFeed(ctx context.Context, limit int) ([]ActivityRow, error)
		// QueryRecipients returns every user when roles is empty, else users whose role is in roles.
		QueryRecipients(ctx context.Context, roles []string) ([]Recipient, error)
		GetRecipient(ctx context.Context, id string) (Recipient, error)
		// InsertNotifications writes every notification in a single batch; all or none.
		InsertNotifications(ctx context.Context, notifs ...Notification) error
		FetchTable(ctx context.Context, dt DataType) (Table, error)
	}

	Service struct {
		repo    Repository
		logger  core.Logger
		mailSvc core.EmailService
		conf    *core.Config
	}

	// DispatchError tells which step of a notification dispatch failed.
	// errors.Cause returns the step (ErrRecipientResolution or ErrNotificationInsert).
	DispatchError struct {
		Step error
		Err  error
	}
)

func (e *DispatchError) Error() string { return e.Step.Error() + ": " + e.Err.Error() }
func (e *DispatchError) Cause() error  { return e.Step }
func (e *DispatchError) Unwrap() error { return e.Step }

func NewService(repo Repository, logger core.Logger, mailSvc core.EmailService, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		core.IsNotNil(repo, "repo"),
		core.IsNotNil(logger, "logger"),
		core.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()
	return &Service{repo: repo, logger: logger, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) logError(op string, err error) {
	svc.logger.Error(fmt.Sprintf("management.%s: %v", op, err), err)
}

func (svc *Service) location() *time.Location {
	if svc.conf.Location != nil {
		return svc.conf.Location
	}
	return time.UTC
}

// midnight returns the start of t's day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Stats gathers the dashboard headline figures. Any failing sub-query yields a zeroed record.
func (svc *Service) Stats(ctx context.Context) Stats {
	var (
		stats  Stats
		scores []UserScore
		now    = NowFunc()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = svc.repo.CountUsers(gctx)
		return pkgerrors.Wrap(err, "counting users")
	})
	g.Go(func() (err error) {
		stats.TotalSchools, err = svc.repo.CountSchools(gctx)
		return pkgerrors.Wrap(err, "counting schools")
	})
	g.Go(func() (err error) {
		stats.TotalTransactions, err = svc.repo.CountActivities(gctx)
		return pkgerrors.Wrap(err, "counting activities")
	})
	g.Go(func() (err error) {
		scores, err = svc.repo.QueryUserScores(gctx)
		return pkgerrors.Wrap(err, "querying user scores")
	})
	g.Go(func() (err error) {
		stats.ActiveUsersToday, err = svc.repo.CountActivitiesSince(gctx, midnight(now, svc.location()))
		return pkgerrors.Wrap(err, "counting today's activities")
	})
	g.Go(func() (err error) {
		stats.PendingApprovals, err = svc.repo.CountPendingNotifications(gctx, now)
		return pkgerrors.Wrap(err, "counting pending notifications")
	})

	if err := g.Wait(); err != nil {
		svc.logError("Stats", err)
		return Stats{}
	}

	for _, s := range scores {
		stats.TotalEcoScore += s.eco()
		stats.TotalCarbonSaved += s.carbon()
	}
	return stats
}

// SchoolPerformance ranks up to limit schools by their users' summed eco score.
func (svc *Service) SchoolPerformance(ctx context.Context, limit int) []SchoolPerformance {
	if limit <= 0 {
		limit = DefaultSchoolLimit
	}

	schools, err := svc.repo.QuerySchoolsWithUsers(ctx, limit)
	if err != nil {
		svc.logError("SchoolPerformance", pkgerrors.Wrap(err, "querying schools"))
		return []SchoolPerformance{}
	}
	if len(schools) > limit {
		schools = schools[:limit]
	}

	perf := make([]SchoolPerformance, 0, len(schools))
	for _, school := range schools {
		sp := SchoolPerformance{
			SchoolID:    school.ID,
			SchoolName:  school.Name,
			ActiveUsers: len(school.Users),
		}
		for _, u := range school.Users {
			sp.TotalEcoScore += u.eco()
			sp.TotalCarbonSaved += u.carbon()
		}
		perf = append(perf, sp)
	}

	sort.SliceStable(perf, func(i, j int) bool { return perf[i].TotalEcoScore > perf[j].TotalEcoScore })
	return perf
}

// Activities returns up to limit of the most recent activities with their user and school names.
func (svc *Service) Activities(ctx context.Context, limit int) []UserActivity {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	rows, err := svc.repo.QueryActivityFeed(ctx, limit)
	if err != nil {
		svc.logError("Activities", pkgerrors.Wrap(err, "querying activities"))
		return []UserActivity{}
	}

	feed := make([]UserActivity, 0, len(rows))
	for _, row := range rows {
		if len(feed) == limit {
			break
		}
		if !row.valid() {
			svc.logger.Warn(fmt.Sprintf("management.Activities: skipping malformed activity row %q", row.ID.String))
			continue
		}
		feed = append(feed, row.toUserActivity())
	}
	return feed
}

// Dashboard loads stats, the school ranking and the recent activity feed concurrently.
func (svc *Service) Dashboard(ctx context.Context) Dashboard {
	var (
		dash Dashboard
		g    errgroup.Group
	)
	g.Go(func() error {
		dash.Stats = svc.Stats(ctx)
		return nil
	})
	g.Go(func() error {
		dash.Schools = svc.SchoolPerformance(ctx, DashboardSchoolLimit)
		return nil
	})
	g.Go(func() error {
		dash.Activities = svc.Activities(ctx, DashboardActivityLimit)
		return nil
	})
	_ = g.Wait()
	return dash
}
