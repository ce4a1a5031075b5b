package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dayplanner/internal/core"
)

// Message is a single notification.
type Message struct {
	Title string
	Body  string
	// Urgent asks the transport to break through focus modes when it can.
	Urgent bool
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// MultiNotifier fans a message out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers msg to every notifier and joins their errors.
func (m *MultiNotifier) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOpNotifier does nothing.
type NoOpNotifier struct{}

func (NoOpNotifier) Send(context.Context, Message) error {
	return nil
}

// ScheduleAlert builds the alert for an unsuccessful schedule. It returns
// false for successful results.
func ScheduleAlert(res core.ScheduleResult) (Message, bool) {
	if res.Success {
		return Message{}, false
	}
	title := fmt.Sprintf("Plan for %s needs attention", res.Date)
	switch res.Reason {
	case core.ReasonCapacityExceeded:
		title = fmt.Sprintf("Plan for %s does not fit", res.Date)
	case core.ReasonCycleDetected:
		title = fmt.Sprintf("Plan for %s has circular dependencies", res.Date)
	}

	var b strings.Builder
	b.WriteString(res.Message)
	if res.ShortfallMinutes != nil {
		fmt.Fprintf(&b, "\nShort by %d min.", *res.ShortfallMinutes)
	}
	for _, s := range res.Suggestions {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return Message{Title: title, Body: b.String(), Urgent: res.Reason == core.ReasonCapacityExceeded}, true
}
