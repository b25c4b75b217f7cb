package adapter

import (
	"context"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

// Content is the rendered message for one channel. Title is only meaningful
// for push.
type Content struct {
	Title string
	Body  string
}

// Outcome reports one provider call. Ordinary delivery rejections are
// returned as a failed Outcome, not as an error; only transport or
// configuration problems surface as errors from Send.
type Outcome struct {
	Success   bool
	MessageID string
	Error     string
	Provider  string
}

// Channel is a swappable delivery adapter. The dispatcher is agnostic to the
// concrete provider behind it.
type Channel interface {
	Name() model.Channel
	Send(ctx context.Context, address string, content Content) (Outcome, error)
}
