// Package notify turns domain events into member notifications and
// acknowledges each delivery on the matching communication topic.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/events"
	"github.com/segyhp/jaryq-library/pkg/utils"
)

const dueDateLayout = "02.01.2006"

// Sender delivers a text message to a phone number
type Sender interface {
	Send(ctx context.Context, mobileNumber, text string) error
}

// LogSender only logs the message. Used until an SMS provider is wired.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, mobileNumber, text string) error {
	slog.InfoContext(ctx, "sms sent", "to", utils.MaskPhone(mobileNumber), "text", text)
	return nil
}

func LoanText(msg domain.LoanMessage) string {
	return fmt.Sprintf("%s until %s, %s", msg.BookName, msg.DueDate.Format(dueDateLayout), msg.MemberFullName)
}

func MemberText(msg domain.MemberMessage) string {
	return fmt.Sprintf("%s - %s", msg.CardNumber, msg.MemberFullName)
}

type Notifier struct {
	sender    Sender
	publisher events.Publisher
	clock     clock.Clock
}

func NewNotifier(sender Sender, publisher events.Publisher, clk clock.Clock) *Notifier {
	return &Notifier{
		sender:    sender,
		publisher: publisher,
		clock:     clk,
	}
}

// Register subscribes the notifier to every topic it handles
func (n *Notifier) Register(c *events.Consumer) {
	c.Handle(domain.TopicLoanCreated, n.HandleLoan)
	c.Handle(domain.TopicLoanDue, n.HandleLoan)
	c.Handle(domain.TopicMemberCreated, n.HandleMember)
}

// HandleLoan notifies the member about a new or due loan
func (n *Notifier) HandleLoan(ctx context.Context, event events.Event) error {
	var msg domain.LoanMessage
	if err := event.Decode(&msg); err != nil {
		return fmt.Errorf("failed to decode loan message: %w", err)
	}

	slog.InfoContext(ctx, "notifying member about loan", "topic", event.Topic, "isbn", msg.BookISBN, "iin", msg.MemberIIN)
	if err := n.sender.Send(ctx, msg.MobileNumber, LoanText(msg)); err != nil {
		return fmt.Errorf("failed to send loan notification: %w", err)
	}

	return n.ack(ctx, domain.TopicLoanCommunication, domain.LoanCommunication{
		BookISBN:  msg.BookISBN,
		MemberIIN: msg.MemberIIN,
	})
}

// HandleMember notifies a new member about their card number
func (n *Notifier) HandleMember(ctx context.Context, event events.Event) error {
	var msg domain.MemberMessage
	if err := event.Decode(&msg); err != nil {
		return fmt.Errorf("failed to decode member message: %w", err)
	}

	slog.InfoContext(ctx, "notifying member about account", "iin", msg.MemberIIN)
	if err := n.sender.Send(ctx, msg.MobileNumber, MemberText(msg)); err != nil {
		return fmt.Errorf("failed to send member notification: %w", err)
	}

	return n.ack(ctx, domain.TopicMemberCommunication, domain.MemberCommunication{MemberIIN: msg.MemberIIN})
}

func (n *Notifier) ack(ctx context.Context, topic string, payload interface{}) error {
	event, err := events.NewEvent(ctx, topic, payload, n.clock.Now())
	if err != nil {
		return err
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}
