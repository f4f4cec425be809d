// Package resolver turns one inbound message into exactly one reply.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/slimday-bot/internal/assistant"
	"github.com/xaenox/slimday-bot/internal/clock"
	"github.com/xaenox/slimday-bot/internal/faq"
	"github.com/xaenox/slimday-bot/internal/knowledge"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/state"
	"github.com/xaenox/slimday-bot/internal/textnorm"
	"go.uber.org/zap"
)

// CommandMarker must prefix messages in group and room conversations.
const CommandMarker = "#"

type Message struct {
	Identity models.ConversationIdentity
	Text     string
}

type Deps struct {
	Tables *knowledge.Tables
	Clock  *clock.Clock
	States state.Store
	FAQ    *faq.Matcher
	AI     *assistant.Gateway
	Logger *zap.Logger
}

type Resolver struct {
	tables *knowledge.Tables
	clock  *clock.Clock
	states state.Store
	faq    *faq.Matcher
	ai     *assistant.Gateway
	logger *zap.Logger
}

func New(deps Deps) *Resolver {
	return &Resolver{
		tables: deps.Tables,
		clock:  deps.Clock,
		states: deps.States,
		faq:    deps.FAQ,
		ai:     deps.AI,
		logger: deps.Logger,
	}
}

// ScopeFilter returns the text the bot should act on. Group and room
// messages are only considered when they start with the command marker,
// which is stripped. ok is false when the message must be ignored.
func ScopeFilter(kind models.ConversationKind, text string) (string, bool) {
	if !kind.IsMultiParty() {
		return text, true
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, CommandMarker) {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, CommandMarker))
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Resolve produces the reply for msg. ok is false when the message is
// silently dropped. Failures inside any branch, panics included, become
// GenericErrorMessage.
func (r *Resolver) Resolve(ctx context.Context, msg Message) (reply string, ok bool) {
	text, ok := ScopeFilter(msg.Identity.Kind, msg.Text)
	if !ok {
		return "", false
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recovered from panic while resolving message",
				zap.Any("panic", p),
				zap.Stack("stack"),
				zap.String("conversation_id", msg.Identity.ID))
			reply, ok = GenericErrorMessage, true
		}
	}()

	reply, err := r.resolve(ctx, msg.Identity, text)
	if err != nil {
		r.logger.Error("Failed to resolve message",
			zap.Error(err),
			zap.String("conversation_id", msg.Identity.ID),
			zap.String("conversation_kind", string(msg.Identity.Kind)))
		return GenericErrorMessage, true
	}
	return reply, true
}

func (r *Resolver) resolve(ctx context.Context, id models.ConversationIdentity, text string) (string, error) {
	cmd := Classify(textnorm.Fold(text))

	r.logger.Debug("Message classified",
		zap.String("conversation_id", id.ID),
		zap.Stringer("command", cmd.Kind))

	switch cmd.Kind {
	case CmdHelp:
		return r.tables.Guides().Help, nil
	case CmdStatus:
		return r.status(ctx, id), nil
	case CmdDebug:
		return r.debug(ctx, id), nil
	case CmdStart:
		return r.start(ctx, id), nil
	case CmdRestart:
		return r.restart(ctx, id), nil
	case CmdSetDay:
		return r.setDay(ctx, id, cmd.Day), nil
	case CmdTodayMenu:
		return r.todayMenu(ctx, id), nil
	case CmdCompanion:
		return r.companion(ctx, id), nil
	case CmdTimeSlot:
		return r.timeSlot(ctx, id, cmd.Slot), nil
	case CmdAskAI:
		return r.ai.Ask(ctx, id.Key(), questionText(text))
	}

	if answer, ok := r.faq.Match(text); ok {
		return answer, nil
	}
	return r.tables.Guides().Fallback, nil
}

// questionText drops anything before the trigger, such as punctuation that
// normalization ignored when classifying.
func questionText(text string) string {
	if i := strings.Index(text, assistant.Trigger); i >= 0 {
		return text[i:]
	}
	return text
}

// currentDay returns the program day, or false when no program was started.
func (r *Resolver) currentDay(ctx context.Context, id models.ConversationIdentity) (int, bool) {
	start, ok := r.states.EnsureStart(ctx, id.Key())
	if !ok {
		return 0, false
	}
	return r.clock.CurrentDay(start), true
}

func (r *Resolver) start(ctx context.Context, id models.ConversationIdentity) string {
	if day, ok := r.currentDay(ctx, id); ok {
		return alreadyStartedReply(day, r.tables.DayType(day))
	}
	r.states.SetStart(ctx, id.Key(), r.clock.Today())
	r.logger.Info("Program started", zap.String("conversation_id", id.ID))
	return startedReply(r.tables.DayType(1), r.tables.Companion(1))
}

func (r *Resolver) restart(ctx context.Context, id models.ConversationIdentity) string {
	r.states.SetStart(ctx, id.Key(), r.clock.Today())
	r.logger.Info("Program restarted", zap.String("conversation_id", id.ID))
	return restartedReply(r.tables.DayType(1), r.tables.Companion(1))
}

func (r *Resolver) setDay(ctx context.Context, id models.ConversationIdentity, day int) string {
	if day < 1 || day > models.ProgramDays {
		return fmt.Sprintf(DayOutOfRangeFormat, models.ProgramDays)
	}
	r.states.SetStart(ctx, id.Key(), r.clock.StartForDay(day))
	r.logger.Info("Program day set",
		zap.String("conversation_id", id.ID),
		zap.Int("day", day))
	return setDayReply(day, r.tables.DayType(day), r.tables.Companion(day))
}

func (r *Resolver) todayMenu(ctx context.Context, id models.ConversationIdentity) string {
	day, ok := r.currentDay(ctx, id)
	if !ok {
		return NotStartedMessage
	}
	dt := r.tables.DayType(day)
	return todayMenuReply(day, dt, r.tables.PushTemplate(dt), r.tables.Companion(day))
}

func (r *Resolver) companion(ctx context.Context, id models.ConversationIdentity) string {
	day, ok := r.currentDay(ctx, id)
	if !ok {
		return NotStartedMessage
	}
	return r.tables.Companion(day)
}

func (r *Resolver) timeSlot(ctx context.Context, id models.ConversationIdentity, slot string) string {
	day, ok := r.currentDay(ctx, id)
	if !ok {
		return NotStartedMessage
	}
	content, ok := r.tables.SlotContent(r.tables.DayType(day), slot)
	if !ok {
		return slotMissingReply(day, slot)
	}
	return slotReply(day, slot, content)
}

func (r *Resolver) status(ctx context.Context, id models.ConversationIdentity) string {
	start, ok := r.states.EnsureStart(ctx, id.Key())
	if !ok {
		return NotStartedMessage
	}
	day := r.clock.CurrentDay(start)
	return statusReply(clock.FormatDate(start), day, r.clock.RawDay(start), r.tables.DayType(day))
}

func (r *Resolver) debug(ctx context.Context, id models.ConversationIdentity) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔧 debug\nkind: %s\nid: %s", id.Kind, id.ID)

	if start, ok := r.states.EnsureStart(ctx, id.Key()); ok {
		day := r.clock.CurrentDay(start)
		dt := r.tables.DayType(day)
		fmt.Fprintf(&sb, "\nstart: %s (day %d, raw %d)",
			clock.FormatDate(start), day, r.clock.RawDay(start))
		fmt.Fprintf(&sb, "\ntype: %s slots: %s", dt, strings.Join(r.tables.Slots(dt), " "))
	} else {
		sb.WriteString("\nstart: none")
	}

	fmt.Fprintf(&sb, "\ntoday: %s %s", clock.FormatDate(r.clock.Today()), r.clock.Location())
	fmt.Fprintf(&sb, "\nai: configured=%t cooldown=%s",
		r.ai.Configured(), r.ai.CooldownRemaining(id.Key()).Round(time.Second))

	stats := r.tables.Stats()
	fmt.Fprintf(&sb, "\nknowledge: faq=%d menus=%d push=%d companions=%d day_types=%d",
		r.faq.Len(), stats.Menus, stats.PushTemplates, stats.Companions, stats.DayTypes)
	return sb.String()
}
