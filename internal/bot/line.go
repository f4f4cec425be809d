package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/xaenox/slimday-bot/internal/models"
	"go.uber.org/zap"
)

// LineMessenger is the part of the LINE Messaging API the bot uses.
// *messaging_api.MessagingApiAPI satisfies it.
type LineMessenger interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
}

func NewLineMessenger(channelToken string) (LineMessenger, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	return api, nil
}

// LineWebhook receives LINE webhook callbacks.
type LineWebhook struct {
	secret    string
	messenger LineMessenger
	bot       *Bot
	logger    *zap.Logger

	wg sync.WaitGroup
}

func NewLineWebhook(channelSecret string, messenger LineMessenger, b *Bot, logger *zap.Logger) *LineWebhook {
	return &LineWebhook{
		secret:    channelSecret,
		messenger: messenger,
		bot:       b,
		logger:    logger,
	}
}

// ServeHTTP verifies the signature and acknowledges right away. Events are
// handled in the background, one goroutine each.
func (h *LineWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cb, err := webhook.ParseRequest(h.secret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Rejected LINE webhook with invalid signature",
				zap.String("remote_addr", r.RemoteAddr))
		} else {
			h.logger.Error("Failed to parse LINE webhook", zap.Error(err))
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	for _, raw := range cb.Events {
		ev, ok := lineEvent(raw)
		if !ok {
			continue
		}
		h.wg.Add(1)
		go func(ev Event) {
			defer h.wg.Done()
			h.bot.HandleEvent(ctx, ev, h)
		}(ev)
	}

	w.WriteHeader(http.StatusOK)
}

// Wait blocks until every event accepted so far has been handled.
func (h *LineWebhook) Wait() {
	h.wg.Wait()
}

func (h *LineWebhook) Reply(_ context.Context, replyToken, text string) error {
	_, err := h.messenger.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(text),
	})
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}

func (h *LineWebhook) Push(_ context.Context, conversationID, text string) error {
	_, err := h.messenger.PushMessage(&messaging_api.PushMessageRequest{
		To:       conversationID,
		Messages: textMessages(text),
	}, "")
	if err != nil {
		return fmt.Errorf("line push to %s: %w", conversationID, err)
	}
	return nil
}

func textMessages(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		&messaging_api.TextMessage{Text: text},
	}
}

func lineEvent(raw webhook.EventInterface) (Event, bool) {
	var msg webhook.MessageEvent
	switch e := raw.(type) {
	case webhook.MessageEvent:
		msg = e
	case *webhook.MessageEvent:
		msg = *e
	default:
		return Event{Kind: EventOther}, false
	}

	identity, ok := lineIdentity(msg.Source)
	if !ok {
		return Event{}, false
	}

	var text string
	switch m := msg.Message.(type) {
	case webhook.TextMessageContent:
		text = m.Text
	case *webhook.TextMessageContent:
		text = m.Text
	default:
		return Event{}, false
	}

	return Event{
		Kind:        EventMessage,
		Identity:    identity,
		Text:        text,
		ReplyHandle: msg.ReplyToken,
	}, true
}

// lineIdentity picks the conversation scope: the group or room when there
// is one, otherwise the user.
func lineIdentity(source webhook.SourceInterface) (models.ConversationIdentity, bool) {
	switch s := source.(type) {
	case webhook.UserSource:
		return models.ConversationIdentity{Kind: models.KindDirect, ID: s.UserId}, s.UserId != ""
	case *webhook.UserSource:
		return models.ConversationIdentity{Kind: models.KindDirect, ID: s.UserId}, s.UserId != ""
	case webhook.GroupSource:
		return models.ConversationIdentity{Kind: models.KindGroup, ID: s.GroupId}, s.GroupId != ""
	case *webhook.GroupSource:
		return models.ConversationIdentity{Kind: models.KindGroup, ID: s.GroupId}, s.GroupId != ""
	case webhook.RoomSource:
		return models.ConversationIdentity{Kind: models.KindRoom, ID: s.RoomId}, s.RoomId != ""
	case *webhook.RoomSource:
		return models.ConversationIdentity{Kind: models.KindRoom, ID: s.RoomId}, s.RoomId != ""
	}
	return models.ConversationIdentity{}, false
}
