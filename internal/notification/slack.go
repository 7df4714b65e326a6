package notification

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier sends messages to a single Slack channel via a bot token.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier authenticates a Slack client with token and targets
// channel for every Send call.
func NewSlackNotifier(token, channel string) (*SlackNotifier, error) {
	client := slack.New(token)
	if _, err := client.AuthTest(); err != nil {
		return nil, fmt.Errorf("authenticating slack client: %w", err)
	}
	return &SlackNotifier{client: client, channel: channel}, nil
}

// Send posts subject/message as a single Slack message, ignoring recipient
// (Slack notifications always target the configured channel).
func (s *SlackNotifier) Send(ctx context.Context, _, subject, message string) error {
	text := fmt.Sprintf("*%s*\n%s", subject, message)
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("posting slack message: %w", err)
	}
	return nil
}

// Channel identifies this notifier as "slack".
func (s *SlackNotifier) Channel() string { return "slack" }
