// Package bot connects chat platforms to the resolver.
package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/resolver"
	"go.uber.org/zap"
)

type EventKind string

const (
	EventMessage EventKind = "message"
	EventOther   EventKind = "other"
)

// Event is a platform-neutral inbound event. ReplyHandle is whatever the
// platform needs to answer this particular event.
type Event struct {
	Kind        EventKind
	Identity    models.ConversationIdentity
	Text        string
	ReplyHandle string
}

// Replier answers one inbound event.
type Replier interface {
	Reply(ctx context.Context, replyHandle, text string) error
}

// Pusher sends an unsolicited message to a conversation.
type Pusher interface {
	Push(ctx context.Context, conversationID, text string) error
}

type Resolver interface {
	Resolve(ctx context.Context, msg resolver.Message) (string, bool)
}

type Bot struct {
	resolver Resolver
	logger   *zap.Logger
}

func New(r Resolver, logger *zap.Logger) *Bot {
	return &Bot{
		resolver: r,
		logger:   logger,
	}
}

// HandleEvent sends at most one reply for ev.
func (b *Bot) HandleEvent(ctx context.Context, ev Event, replier Replier) {
	if ev.Kind != EventMessage || strings.TrimSpace(ev.Text) == "" {
		return
	}

	requestID := uuid.New().String()
	logger := b.logger.With(
		zap.String("request_id", requestID),
		zap.String("conversation_id", ev.Identity.ID),
		zap.String("conversation_kind", string(ev.Identity.Kind)))

	reply, ok := b.resolver.Resolve(ctx, resolver.Message{
		Identity: ev.Identity,
		Text:     ev.Text,
	})
	if !ok {
		logger.Debug("Message out of scope, ignoring")
		return
	}

	if err := replier.Reply(ctx, ev.ReplyHandle, reply); err != nil {
		logger.Error("Failed to send reply", zap.Error(err))
		return
	}
	logger.Info("Reply sent", zap.Int("reply_length", len([]rune(reply))))
}
