// Package notification fans execution events out to Slack and Telegram,
// formatting each domain.ExecutionEvent into a human-readable subject and
// message and dispatching it through a bounded worker pool so a slow or
// failing provider never blocks the simulator.
package notification

import "context"

// Notifier sends a formatted message to one recipient on one channel.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, message string) error
	Channel() string
}

// Registry holds the configured notifiers by channel name.
type Registry struct {
	notifiers map[string]Notifier
}

// NewRegistry builds a Registry from the given notifiers, keyed by channel.
func NewRegistry(notifiers ...Notifier) *Registry {
	r := &Registry{notifiers: make(map[string]Notifier, len(notifiers))}
	for _, n := range notifiers {
		r.notifiers[n.Channel()] = n
	}
	return r
}

// Get returns the notifier registered for channel, if any.
func (r *Registry) Get(channel string) (Notifier, bool) {
	n, ok := r.notifiers[channel]
	return n, ok
}
