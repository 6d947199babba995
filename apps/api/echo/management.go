package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
)

const noticeHeader = "X-Notice"

type managementApi struct {
	svc      *management.Service
	usrSvc   *user.Service
	logger   core.Logger
	validate *validator.Validate
}

func registerManagementAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := managementApi{
		svc:      s.MgmtSvc,
		usrSvc:   s.UserSvc,
		logger:   s.Logger,
		validate: s.Validate,
	}

	mg := g.Group("/management", jwt)
	mg.GET("/access/:id", api.checkAccess)

	// dashboard endpoints
	dg := mg.Group("", managementMiddleware(api.usrSvc))
	dg.GET("/stats", api.stats)
	dg.GET("/schools", api.schools)
	dg.GET("/activities", api.activities)
	dg.GET("/dashboard", api.dashboard)
	dg.GET("/roles", api.roles)
	dg.POST("/notifications", api.sendNotification)
	dg.POST("/broadcasts", api.broadcast)
	dg.GET("/exports/:type", api.export)
}

// Handlers

func (api *managementApi) checkAccess(ctx echo.Context) error {
	hasAccess := api.usrSvc.HasManagementAccess(ctx.Request().Context(), ctx.Param("id"))
	return ctx.JSON(http.StatusOK, AccessResponse{HasAccess: hasAccess})
}

func (api *managementApi) stats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Stats(ctx.Request().Context()))
}

func (api *managementApi) schools(ctx echo.Context) error {
	limit := new(Limit)
	if err := limit.Bind(ctx); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.SchoolPerformance(ctx.Request().Context(), limit.Value))
}

func (api *managementApi) activities(ctx echo.Context) error {
	limit := new(Limit)
	if err := limit.Bind(ctx); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.Activities(ctx.Request().Context(), limit.Value))
}

func (api *managementApi) dashboard(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Dashboard(ctx.Request().Context()))
}

// roles lists the options of the broadcast role filter.
func (api *managementApi) roles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *managementApi) sendNotification(ctx echo.Context) error {
	var data NotificationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotificationRequest")
	}
	if err := data.NewNotification.Validate(api.validate); err != nil {
		return err
	}

	api.logAction(ctx, "sending notification to "+data.UserID, data.Confirm)
	notices := new(management.NoticeList)
	res, err := api.svc.SendNotification(ctx.Request().Context(), data.NewNotification, management.Decide(toDecision(data.Confirm)), notices)
	if err != nil {
		return dispatchFailed(ctx, err, notices)
	}
	return ctx.JSON(http.StatusOK, DispatchResponse{SendResult: res, Notices: notices.Notices()})
}

func (api *managementApi) broadcast(ctx echo.Context) error {
	var data BroadcastRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BroadcastRequest")
	}
	if err := data.NewBroadcast.Validate(api.validate); err != nil {
		return err
	}

	api.logAction(ctx, "broadcasting "+data.intentSummary(), data.Confirm)
	notices := new(management.NoticeList)
	res, err := api.svc.Broadcast(ctx.Request().Context(), data.NewBroadcast, management.Decide(toDecision(data.Confirm)), notices)
	if err != nil {
		return dispatchFailed(ctx, err, notices)
	}
	return ctx.JSON(http.StatusOK, DispatchResponse{SendResult: res, Notices: notices.Notices()})
}

func (api *managementApi) export(ctx echo.Context) error {
	dt, err := management.ParseDataType(ctx.Param("type"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "type", Error: err.Error()})
	}

	notices := new(management.NoticeList)
	var buf bytes.Buffer
	res, err := api.svc.Export(ctx.Request().Context(), dt, &buf, notices)
	if err != nil {
		return errors.Wrapf(err, "exporting %s", dt)
	}

	for _, n := range notices.Notices() {
		ctx.Response().Header().Add(noticeHeader, n.Text)
	}
	if !res.Exported {
		return ctx.NoContent(http.StatusNoContent)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+res.Filename+`"`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// logAction records which manager asked for a write, and what they decided.
func (api *managementApi) logAction(ctx echo.Context, action string, confirm bool) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return
	}
	api.logger.Info(fmt.Sprintf("%s: %s (%s)", usr.Email, action, toDecision(confirm)), usr)
}

// dispatchFailed answers a failed dispatch with its notices; other errors go to the error handler.
func dispatchFailed(ctx echo.Context, err error, notices *management.NoticeList) error {
	var dErr *management.DispatchError
	if !errors.As(err, &dErr) {
		return errors.Wrap(err, "dispatching notification")
	}
	return ctx.JSON(http.StatusInternalServerError, DispatchResponse{
		Notices: notices.Notices(),
		Error:   errors.Cause(err).Error(),
	})
}

// toDecision maps the `confirm` flag posted by the dashboard once its dialog is closed.
func toDecision(confirm bool) management.Decision {
	if confirm {
		return management.Accepted
	}
	return management.Declined
}

type (
	AccessResponse struct {
		HasAccess bool `json:"has_access"`
	}

	NotificationRequest struct {
		management.NewNotification
		Confirm bool `json:"confirm"`
	}

	BroadcastRequest struct {
		management.NewBroadcast
		Confirm bool `json:"confirm"`
	}

	DispatchResponse struct {
		management.SendResult
		Notices []management.Notice `json:"notices"`
		Error   string              `json:"error,omitempty"`
	}
)

func (br BroadcastRequest) intentSummary() string {
	if len(br.Roles) == 0 {
		return "to all users"
	}
	return "to " + strings.Join(br.Roles, ", ")
}
