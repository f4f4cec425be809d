package bot

import (
	"context"
	"errors"
)

var ErrNoPusher = errors.New("no transport can push to this conversation")

// RoutingPusher sends Telegram conversations through the Telegram poller and
// everything else through LINE. Either side may be nil.
type RoutingPusher struct {
	Line     Pusher
	Telegram Pusher
}

func (p RoutingPusher) Push(ctx context.Context, conversationID, text string) error {
	target := p.Line
	if IsTelegramConversation(conversationID) {
		target = p.Telegram
	}
	if target == nil {
		return ErrNoPusher
	}
	return target.Push(ctx, conversationID, text)
}
