package management

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/tukerin/backend/core"
)

const exportTimeLayout = "2006-01-02T15:04:05.000Z"

type ExportResult struct {
	Exported bool   `json:"exported"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
}

// ExportFilename names an export of dt taken at t.
func ExportFilename(dt DataType, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", dt, t.UTC().Format(exportTimeLayout))
}

// EncodeCSV renders t as comma-separated lines: a header of column names, then one line per row.
// Strings are wrapped in double quotes as they are; embedded quotes and commas are NOT escaped.
func EncodeCSV(t Table) string {
	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, strings.Join(t.Columns, ","))
	for _, row := range t.Rows {
		vals := make([]string, 0, len(row))
		for _, val := range row {
			vals = append(vals, formatValue(val))
		}
		lines = append(lines, strings.Join(vals, ","))
	}
	return strings.Join(lines, "\n")
}

func formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return `"` + v + `"`
	case []byte:
		return `"` + string(v) + `"`
	case time.Time:
		return `"` + v.UTC().Format(time.RFC3339) + `"`
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return ""
		}
		return formatValue(dv)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isDataType(dt DataType) bool {
	for _, t := range AllDataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// Export writes the whole dt table to w as CSV. An empty table writes nothing and
// reports Exported=false with an informational notice; so does a table that cannot be read.
// Only a failing w is returned as an error.
func (svc *Service) Export(ctx context.Context, dt DataType, w io.Writer, noticer Noticer) (ExportResult, error) {
	if noticer == nil {
		noticer = discardNotices
	}
	if !isDataType(dt) {
		return ExportResult{}, core.NewValidationError(
			ErrUnknownDataType,
			core.FieldError{Field: "type", Error: fmt.Sprintf("%s: %q", ErrUnknownDataType, dt)},
		)
	}

	table, err := svc.repo.FetchTable(ctx, dt)
	if err != nil {
		svc.logError("Export", pkgerrors.Wrapf(err, "fetching %s", dt))
		table = Table{}
	}
	if table.Empty() {
		noticer.Notice(Notice{Level: NoticeInfo, Title: "No data", Text: "No data to export"})
		return ExportResult{}, nil
	}

	if _, err = io.WriteString(w, EncodeCSV(table)); err != nil {
		err = pkgerrors.Wrap(err, "writing csv")
		svc.logError("Export", err)
		noticer.Notice(Notice{Level: NoticeError, Title: "Export failed", Text: "An error occurred while exporting data"})
		return ExportResult{}, err
	}
	noticer.Notice(Notice{Level: NoticeSuccess, Title: "Export complete!", Text: fmt.Sprintf("%s data exported", dt)})

	return ExportResult{
		Exported: true,
		Filename: ExportFilename(dt, NowFunc()),
		Rows:     len(table.Rows),
	}, nil
}
