package datatable

import (
	"fmt"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

// NotificationKind classifies a notification for display.
type NotificationKind int

const (
	NotifySuccess NotificationKind = iota
	NotifyError
	// NotifyValidation carries a field bag; the render layer shows it next to
	// the offending inputs instead of as a toast.
	NotifyValidation
)

func (k NotificationKind) String() string {
	switch k {
	case NotifySuccess:
		return "success"
	case NotifyError:
		return "error"
	case NotifyValidation:
		return "validation"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// RefreshMessage is shown for every failure that is not a validation error.
const RefreshMessage = "Something went wrong, please refresh the page"

// Notification is a user-visible outcome of a mutating call.
type Notification struct {
	Kind    NotificationKind
	Message string
	Fields  map[string][]string
}

// Notifier receives notifications. It must not block.
type Notifier func(Notification)

// NotificationFromError converts a failed mutating call into a notification.
func NotificationFromError(err error) Notification {
	if fields := domain.ValidationFields(err); len(fields) > 0 {
		return Notification{Kind: NotifyValidation, Fields: fields}
	}
	return Notification{Kind: NotifyError, Message: RefreshMessage}
}

// SuccessNotification reports a completed bulk action.
func SuccessNotification(action string, affected int) Notification {
	noun := "items"
	if affected == 1 {
		noun = "item"
	}
	return Notification{Kind: NotifySuccess, Message: fmt.Sprintf("%s applied to %d %s", action, affected, noun)}
}
