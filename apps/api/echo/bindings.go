package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tukerin/backend/core"
)

var limitParam = "limit"

// Limit binds the optional `limit` query param; 0 lets the service pick its default.
type Limit struct {
	Value int
}

func (l *Limit) Bind(ctx echo.Context) error {
	val := strings.TrimSpace(ctx.QueryParam(limitParam))
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: limitParam, Error: "must be a positive integer"})
	}
	l.Value = n
	return nil
}
