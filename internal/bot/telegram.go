package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/slimday-bot/internal/assistant"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/resolver"
	"go.uber.org/zap"
)

// TelegramIDPrefix keeps Telegram chat ids apart from LINE ids in storage.
const TelegramIDPrefix = "tg:"

// TelegramAPI is the subset of *tgbotapi.BotAPI used by the poller.
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type TelegramPoller struct {
	api    TelegramAPI
	bot    *Bot
	logger *zap.Logger

	wg sync.WaitGroup
}

func NewTelegramAPI(token string) (TelegramAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func NewTelegramPoller(api TelegramAPI, b *Bot, logger *zap.Logger) *TelegramPoller {
	return &TelegramPoller{
		api:    api,
		bot:    b,
		logger: logger,
	}
}

// Start long-polls for updates until ctx is cancelled. Each message is
// handled in its own goroutine; Start waits for them before returning.
func (p *TelegramPoller) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := p.api.GetUpdatesChan(u)
	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			message := update.Message
			if message == nil {
				message = update.ChannelPost
			}
			if message == nil {
				continue
			}
			ev, ok := telegramEvent(message)
			if !ok {
				continue
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.bot.HandleEvent(context.WithoutCancel(ctx), ev, p)
			}()
		}
	}
}

// Reply answers in the chat of the triggering message. The handle is
// "<chatID>:<messageID>".
func (p *TelegramPoller) Reply(_ context.Context, replyHandle, text string) error {
	chatPart, msgPart, _ := strings.Cut(replyHandle, ":")
	chatID, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram reply handle %q: %w", replyHandle, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if messageID, err := strconv.Atoi(msgPart); err == nil {
		msg.ReplyToMessageID = messageID
	}
	if _, err := p.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Push sends to a conversation id produced by telegramEvent.
func (p *TelegramPoller) Push(_ context.Context, conversationID, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimPrefix(conversationID, TelegramIDPrefix), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram conversation id %q: %w", conversationID, err)
	}
	if _, err := p.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func telegramEvent(message *tgbotapi.Message) (Event, bool) {
	if message.Chat == nil {
		return Event{}, false
	}

	var kind models.ConversationKind
	switch {
	case message.Chat.IsPrivate():
		kind = models.KindDirect
	case message.Chat.IsGroup(), message.Chat.IsSuperGroup():
		kind = models.KindGroup
	case message.Chat.IsChannel():
		kind = models.KindRoom
	default:
		return Event{}, false
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if message.IsCommand() {
		text = commandText(message)
		// a slash command is addressed to the bot even in groups
		if kind.IsMultiParty() {
			text = resolver.CommandMarker + text
		}
	}

	return Event{
		Kind: EventMessage,
		Identity: models.ConversationIdentity{
			Kind: kind,
			ID:   TelegramIDPrefix + strconv.FormatInt(message.Chat.ID, 10),
		},
		Text:        text,
		ReplyHandle: fmt.Sprintf("%d:%d", message.Chat.ID, message.MessageID),
	}, true
}

// telegramCommands maps slash commands onto the chat vocabulary.
var telegramCommands = map[string]string{
	"start":     "開始",
	"restart":   "重新開始",
	"help":      "說明",
	"status":    "狀態",
	"menu":      "今天菜單",
	"today":     "今天菜單",
	"companion": "陪伴",
	"debug":     "debug",
}

// commandText rewrites "/day 12" to "第12天" and "/ask ..." to "請問...".
// Unknown commands keep their name, so they fall through to the FAQ and the
// fallback guide like any other text.
func commandText(message *tgbotapi.Message) string {
	name := strings.ToLower(message.Command())
	args := strings.TrimSpace(message.CommandArguments())

	switch name {
	case "day":
		return "第" + args + "天"
	case "ask":
		return assistant.Trigger + args
	}
	if text, ok := telegramCommands[name]; ok {
		return text
	}
	return strings.TrimSpace(name + " " + args)
}

// IsTelegramConversation reports whether id was issued by the Telegram poller.
func IsTelegramConversation(id string) bool {
	return strings.HasPrefix(id, TelegramIDPrefix)
}
