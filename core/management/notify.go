package management

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tukerin/backend/core"
)

const notificationTemplate = "notification"

type (
	// NewNotification targets a single user.
	NewNotification struct {
		UserID   string     `json:"user_id" validate:"required,uuid"`
		Title    string     `json:"title" validate:"required,notblank"`
		Message  string     `json:"message" validate:"required,notblank"`
		Deadline *time.Time `json:"deadline"`
	}

	// NewBroadcast targets every user, or only those whose role is in Roles.
	NewBroadcast struct {
		Title   string   `json:"title" validate:"required,notblank"`
		Message string   `json:"message" validate:"required,notblank"`
		Roles   []string `json:"roles" validate:"dive,oneof=student teacher admin"`
	}

	SendResult struct {
		Sent       bool `json:"sent"`
		Recipients int  `json:"recipients"`
	}

	notificationMailData struct {
		Name     string
		Title    string
		Message  string
		Deadline string
	}
)

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.UserID = core.CleanString(nn.UserID, true /* lower */)
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	return validate.Struct(nn)
}

func (nn NewNotification) intent() Intent {
	it := Intent{Kind: IntentNotification, UserID: nn.UserID, Title: nn.Title, Message: nn.Message}
	if nn.Deadline != nil {
		it.Deadline = nn.Deadline.UTC().Format(time.RFC3339)
	}
	return it
}

func (nb *NewBroadcast) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Message = core.CleanString(nb.Message)

	roles := make([]string, 0, len(nb.Roles))
	seen := make(map[string]bool, len(nb.Roles))
	for _, r := range nb.Roles {
		r = core.CleanString(r, true /* lower */)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	nb.Roles = roles
	return validate.Struct(nb)
}

func (nb NewBroadcast) intent() Intent {
	return Intent{Kind: IntentBroadcast, Title: nb.Title, Message: nb.Message, Roles: nb.Roles}
}

// confirmed asks confirmer about intent. A failing confirmer counts as a decline.
func (svc *Service) confirmed(ctx context.Context, confirmer Confirmer, intent Intent) bool {
	if confirmer == nil {
		return false
	}
	decision, err := confirmer.Confirm(ctx, intent)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("management: confirming %s: %v", intent.Kind, err))
		return false
	}
	return decision == Accepted
}

// SendNotification inserts one unread notification for nn.UserID once confirmer accepts it.
// A declined confirmation is not an error: the result simply reports Sent=false.
// nn must have been validated.
func (svc *Service) SendNotification(ctx context.Context, nn NewNotification, confirmer Confirmer, noticer Noticer) (SendResult, error) {
	if noticer == nil {
		noticer = discardNotices
	}
	if !svc.confirmed(ctx, confirmer, nn.intent()) {
		return SendResult{}, nil
	}

	notif := Notification{
		ID:        uuid.New().String(),
		UserID:    null.StringFrom(nn.UserID),
		Title:     nn.Title,
		Message:   nn.Message,
		IsRead:    false,
		CreatedAt: NowFunc().UTC(),
	}
	if nn.Deadline != nil {
		notif.Deadline = null.TimeFrom(nn.Deadline.UTC())
	}

	if err := svc.repo.InsertNotifications(ctx, notif); err != nil {
		svc.logError("SendNotification", err)
		noticer.Notice(Notice{Level: NoticeError, Title: "Failed to send", Text: "An error occurred while sending the notification"})
		return SendResult{}, &DispatchError{Step: ErrNotificationInsert, Err: err}
	}
	noticer.Notice(Notice{Level: NoticeSuccess, Title: "Notification sent!", Text: "The notification was sent to the user"})

	if svc.conf.NotifyByEmail {
		rcpt, err := svc.repo.GetRecipient(ctx, nn.UserID)
		if err != nil {
			svc.logError("SendNotification", pkgerrors.Wrap(err, "getting recipient"))
		} else {
			svc.mailNotifications([]Recipient{rcpt}, []Notification{notif})
		}
	}
	return SendResult{Sent: true, Recipients: 1}, nil
}

// Broadcast inserts one unread notification per resolved recipient once confirmer accepts it.
// Failures to resolve recipients and to insert notifications are reported as distinct steps.
// nb must have been validated.
func (svc *Service) Broadcast(ctx context.Context, nb NewBroadcast, confirmer Confirmer, noticer Noticer) (SendResult, error) {
	if noticer == nil {
		noticer = discardNotices
	}
	if !svc.confirmed(ctx, confirmer, nb.intent()) {
		return SendResult{}, nil
	}

	recipients, err := svc.repo.QueryRecipients(ctx, nb.Roles)
	if err != nil {
		svc.logError("Broadcast", err)
		noticer.Notice(Notice{Level: NoticeError, Title: "Broadcast failed", Text: "Could not fetch the list of users"})
		return SendResult{}, &DispatchError{Step: ErrRecipientResolution, Err: err}
	}

	now := NowFunc().UTC()
	notifs := make([]Notification, 0, len(recipients))
	for _, rcpt := range recipients {
		notifs = append(notifs, Notification{
			ID:        uuid.New().String(),
			UserID:    null.StringFrom(rcpt.ID),
			Title:     nb.Title,
			Message:   nb.Message,
			IsRead:    false,
			CreatedAt: now,
		})
	}

	if err = svc.repo.InsertNotifications(ctx, notifs...); err != nil {
		svc.logError("Broadcast", err)
		noticer.Notice(Notice{Level: NoticeError, Title: "Broadcast failed", Text: "An error occurred while sending the broadcast"})
		return SendResult{}, &DispatchError{Step: ErrNotificationInsert, Err: err}
	}
	noticer.Notice(Notice{
		Level: NoticeSuccess,
		Title: "Broadcast sent!",
		Text:  fmt.Sprintf("The notification was sent to %d users", len(recipients)),
	})

	if svc.conf.NotifyByEmail && len(notifs) > 0 {
		svc.mailNotifications(recipients, notifs)
	}
	return SendResult{Sent: true, Recipients: len(recipients)}, nil
}

// mailNotifications emails a copy of every stored notification to its recipient, when
// the recipient has an address.
func (svc *Service) mailNotifications(recipients []Recipient, notifs []Notification) {
	byID := make(map[string]Recipient, len(recipients))
	for _, rcpt := range recipients {
		byID[strings.ToLower(rcpt.ID)] = rcpt
	}

	messages := make([]*core.EmailMessage, 0, len(notifs))
	for _, notif := range notifs {
		// uuids compare case-insensitively
		rcpt, ok := byID[strings.ToLower(notif.UserID.String)]
		if !ok || !rcpt.Email.Valid || rcpt.Email.String == "" {
			continue
		}

		var deadline string
		if notif.Deadline.Valid {
			deadline = notif.Deadline.Time.In(svc.location()).Format("02 Jan 2006 15:04")
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: rcpt.FullName, Address: rcpt.Email.String}},
			Subject:      notif.Title,
			TemplateName: notificationTemplate,
			TemplateData: notificationMailData{
				Name:     rcpt.FullName,
				Title:    notif.Title,
				Message:  notif.Message,
				Deadline: deadline,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}
