// Package notify hands account messages (confirmation keys, reset links) to
// whatever channel delivers them. Delivery itself lives outside this service.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Kind names the message template a consumer should render.
type Kind string

const (
	KindEmailConfirmation Kind = "email_confirmation"
	KindPasswordReset     Kind = "password_reset"
)

// Message is one outbound notification.
type Message struct {
	Kind     Kind   `json:"kind"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	To       string `json:"to"`
	// Key is the confirmation key or the reset token.
	Key string `json:"key"`
	// UID is set for password resets only.
	UID string `json:"uid,omitempty"`
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log. Used in development, where the key
// is read off the console.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("kind", string(msg.Kind)),
		zap.Int64("user_id", msg.UserID),
		zap.String("to", msg.To),
		zap.String("key", msg.Key),
	}
	if msg.UID != "" {
		fields = append(fields, zap.String("uid", msg.UID))
	}
	n.log.Info("notification", fields...)
	return nil
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

// Messages returns a copy of everything recorded.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Last returns the most recent message of kind.
func (r *Recorder) Last(kind Kind) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Kind == kind {
			return r.msgs[i], true
		}
	}
	return Message{}, false
}
