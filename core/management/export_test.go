package management_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
	testutil "github.com/tukerin/backend/tests"
)

func TestEncodeCSV(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, testutil.WIB)
	table := management.Table{
		Columns: []string{"id", "name", "score", "ratio", "active", "note", "created_at"},
		Rows: [][]interface{}{
			{"s1", "SMA 1", int64(12), 0.5, true, nil, created},
			{"s2", `Say "hi", world`, int64(0), 1.25, false, null.StringFrom("x"), null.TimeFrom(created)},
			{"s3", []byte("raw"), 7, float32(2), false, null.String{}, null.Time{}},
		},
	}

	want := strings.Join([]string{
		"id,name,score,ratio,active,note,created_at",
		`"s1","SMA 1",12,0.5,true,,"2024-03-01T03:00:00Z"`,
		`"s2","Say "hi", world",0,1.25,false,"x","2024-03-01T03:00:00Z"`,
		`"s3","raw",7,2,false,,`,
	}, "\n")
	assert.Equal(t, want, management.EncodeCSV(table))
}

func TestEncodeCSV_headerOnly(t *testing.T) {
	assert.Equal(t, "id,name", management.EncodeCSV(management.Table{Columns: []string{"id", "name"}}))
}

func TestExportFilename(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 5, 123456789, testutil.WIB)
	assert.Equal(t, "users_2024-03-01T03:00:05.123Z.csv", management.ExportFilename(management.DataUsers, ts))
}

func TestParseDataType(t *testing.T) {
	for _, dt := range management.AllDataTypes {
		got, err := management.ParseDataType(" " + strings.ToUpper(string(dt)))
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	_, err := management.ParseDataType("notifications")
	assert.Equal(t, management.ErrUnknownDataType, err)
}

func TestService_Export(t *testing.T) {
	e := setup(t)
	sch := testutil.CreateSchool(t, e.db, "SMA 1", now.Add(-time.Hour))
	siti := testutil.CreateUser(t, e.usrRepo, "Siti", "siti@tuker.in", user.RoleStudent, sch.ID, 120, 4.5, now.Add(-2*time.Hour))
	testutil.CreateUser(t, e.usrRepo, "Budi", "", user.RoleTeacher, "", 30, 0, now.Add(-time.Hour))
	testutil.CreateActivity(t, e.db, siti, management.ActivityOrder, "Ordered a bin", now)

	tests := []struct {
		dt         management.DataType
		wantRows   int
		wantHeader string
		wantLine   string
	}{
		{
			dt:         management.DataUsers,
			wantRows:   2,
			wantHeader: "id,full_name,email,role,eco_score,carbon_saved,school_id,is_management,created_at",
			wantLine:   `"` + siti.ID + `","Siti","siti@tuker.in","student",120,4.5,"` + sch.ID + `",false,"2024-03-01T01:00:00Z"`,
		},
		{
			dt:         management.DataSchools,
			wantRows:   1,
			wantHeader: "id,name,created_at",
			wantLine:   `"` + sch.ID + `","SMA 1","2024-03-01T02:00:00Z"`,
		},
		{
			dt:         management.DataActivities,
			wantRows:   1,
			wantHeader: "id,user_id,type,description,created_at",
		},
	}
	for _, tc := range tests {
		t.Run(string(tc.dt), func(t *testing.T) {
			notices := new(management.NoticeList)
			var buf bytes.Buffer

			res, err := e.svc.Export(context.Background(), tc.dt, &buf, notices)
			require.NoError(t, err)
			assert.Equal(t, management.ExportResult{
				Exported: true,
				Filename: management.ExportFilename(tc.dt, now),
				Rows:     tc.wantRows,
			}, res)

			lines := strings.Split(buf.String(), "\n")
			require.Len(t, lines, tc.wantRows+1)
			assert.Equal(t, tc.wantHeader, lines[0])
			if tc.wantLine != "" {
				assert.Equal(t, tc.wantLine, lines[1])
			}
			assert.Equal(t, []management.Notice{
				{Level: management.NoticeSuccess, Title: "Export complete!", Text: string(tc.dt) + " data exported"},
			}, notices.Notices())
		})
	}
}

func TestService_Export_nullCells(t *testing.T) {
	e := setup(t)
	budi := testutil.CreateUser(t, e.usrRepo, "Budi", "", user.RoleTeacher, "", 30, 0, now)
	testutil.CreateActivity(t, e.db, user.User{}, management.ActivityReceived, "Orphan", now)

	var buf bytes.Buffer
	_, err := e.svc.Export(context.Background(), management.DataUsers, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, `"`+budi.ID+`","Budi",,"teacher",30,0,,false,"2024-03-01T03:00:00Z"`, strings.Split(buf.String(), "\n")[1])

	buf.Reset()
	_, err = e.svc.Export(context.Background(), management.DataActivities, &buf, nil)
	require.NoError(t, err)
	line := strings.Split(buf.String(), "\n")[1]
	assert.True(t, strings.HasSuffix(line, `,,"received","Orphan","2024-03-01T03:00:00Z"`), line)
}

func TestService_Export_empty(t *testing.T) {
	e := setup(t)
	notices := new(management.NoticeList)
	var buf bytes.Buffer

	res, err := e.svc.Export(context.Background(), management.DataSchools, &buf, notices)
	require.NoError(t, err)
	assert.Equal(t, management.ExportResult{}, res)
	assert.Zero(t, buf.Len())
	assert.Equal(t, []management.Notice{
		{Level: management.NoticeInfo, Title: "No data", Text: "No data to export"},
	}, notices.Notices())
}

func TestService_Export_unknownType(t *testing.T) {
	e := setup(t)
	notices := new(management.NoticeList)

	_, err := e.svc.Export(context.Background(), management.DataType("notifications"), new(bytes.Buffer), notices)
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	fields, ok := core.FieldErrors(err, core.NewTranslator())
	require.True(t, ok)
	assert.Contains(t, fields, "type")
	assert.Empty(t, notices.Notices())
}

func TestService_Export_fetchFailure(t *testing.T) {
	e := setup(t, failing("FetchTable"))
	notices := new(management.NoticeList)
	var buf bytes.Buffer

	// an unreadable table exports like an empty one
	res, err := e.svc.Export(context.Background(), management.DataUsers, &buf, notices)
	require.NoError(t, err)
	assert.Equal(t, management.ExportResult{}, res)
	assert.Zero(t, buf.Len())
	assert.Equal(t, []management.Notice{
		{Level: management.NoticeInfo, Title: "No data", Text: "No data to export"},
	}, notices.Notices())
	assert.Contains(t, e.logs.String(), "management.Export: fetching users: "+errDown.Error())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDown }

func TestService_Export_writeFailure(t *testing.T) {
	e := setup(t)
	testutil.CreateManager(t, e.usrRepo, "Ada", "ada@tuker.in", "S3cure!pass")
	notices := new(management.NoticeList)

	res, err := e.svc.Export(context.Background(), management.DataUsers, failingWriter{}, notices)
	require.Error(t, err)
	assert.Equal(t, errDown, errors.Cause(err))
	assert.Equal(t, management.ExportResult{}, res)
	assert.Equal(t, []management.Notice{
		{Level: management.NoticeError, Title: "Export failed", Text: "An error occurred while exporting data"},
	}, notices.Notices())
}
