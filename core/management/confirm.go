package management

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Intent kinds
const (
	IntentNotification = "notification"
	IntentBroadcast    = "broadcast"
)

// Decisions
const (
	Declined Decision = iota
	Accepted
)

// Notice levels
const (
	NoticeInfo    = "info"
	NoticeSuccess = "success"
	NoticeError   = "error"
)

type (
	// Intent describes a pending write so a human can accept or decline it.
	Intent struct {
		Kind     string
		UserID   string
		Title    string
		Message  string
		Deadline string // RFC3339, empty when unset
		Roles    []string
	}

	Decision int

	// Confirmer asks a human whether an Intent may be carried out.
	Confirmer interface {
		Confirm(ctx context.Context, intent Intent) (Decision, error)
	}

	ConfirmFunc func(ctx context.Context, intent Intent) (Decision, error)

	// Notice is a dismissable message for the human driving the operation.
	Notice struct {
		Level string `json:"level"`
		Title string `json:"title"`
		Text  string `json:"text"`
	}

	Noticer interface {
		Notice(n Notice)
	}

	NoticeFunc func(n Notice)

	// NoticeList collects notices; safe for concurrent use.
	NoticeList struct {
		mu      sync.Mutex
		notices []Notice
	}
)

var (
	_ Confirmer = ConfirmFunc(nil)
	_ Noticer   = NoticeFunc(nil)
	_ Noticer   = (*NoticeList)(nil)
)

func (f ConfirmFunc) Confirm(ctx context.Context, intent Intent) (Decision, error) {
	return f(ctx, intent)
}

// Decide returns a Confirmer answering every intent with d.
func Decide(d Decision) Confirmer {
	return ConfirmFunc(func(context.Context, Intent) (Decision, error) { return d, nil })
}

func (d Decision) String() string {
	if d == Accepted {
		return "accepted"
	}
	return "declined"
}

// Summary renders the intent as a confirmation question.
func (i Intent) Summary() string {
	var b strings.Builder
	switch i.Kind {
	case IntentBroadcast:
		target := "all users"
		if len(i.Roles) > 0 {
			target = "users with role " + strings.Join(i.Roles, ", ")
		}
		fmt.Fprintf(&b, "Broadcast %q to %s", i.Title, target)
	default:
		fmt.Fprintf(&b, "Send %q to user %s", i.Title, i.UserID)
	}
	if i.Deadline != "" {
		fmt.Fprintf(&b, " (deadline %s)", i.Deadline)
	}
	b.WriteString("?")
	return b.String()
}

func (f NoticeFunc) Notice(n Notice) { f(n) }

func (l *NoticeList) Notice(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

// Notices returns a copy of the collected notices.
func (l *NoticeList) Notices() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	notices := make([]Notice, len(l.notices))
	copy(notices, l.notices)
	return notices
}

// discardNotices is used when the caller passes no Noticer.
var discardNotices = NoticeFunc(func(Notice) {})
