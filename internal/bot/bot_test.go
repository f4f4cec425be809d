package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/resolver"
	"go.uber.org/zap"
)

type echoResolver struct {
	mu   sync.Mutex
	seen []resolver.Message
}

func (r *echoResolver) Resolve(_ context.Context, msg resolver.Message) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	text, ok := resolver.ScopeFilter(msg.Identity.Kind, msg.Text)
	if !ok {
		return "", false
	}
	return "echo:" + text, true
}

func (r *echoResolver) messages() []resolver.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]resolver.Message(nil), r.seen...)
}

type sentReply struct {
	handle string
	text   string
}

type recordingReplier struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (r *recordingReplier) Reply(_ context.Context, handle, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sentReply{handle: handle, text: text})
	return r.err
}

func (r *recordingReplier) Push(_ context.Context, id, text string) error {
	return r.Reply(context.Background(), id, text)
}

func (r *recordingReplier) sent() []sentReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentReply(nil), r.replies...)
}

func TestHandleEvent_RepliesOnce(t *testing.T) {
	res := &echoResolver{}
	rep := &recordingReplier{}
	b := New(res, zap.NewNop())

	b.HandleEvent(context.Background(), Event{
		Kind:        EventMessage,
		Identity:    models.ConversationIdentity{Kind: models.KindDirect, ID: "U1"},
		Text:        "說明",
		ReplyHandle: "token-1",
	}, rep)

	require.Len(t, rep.sent(), 1)
	assert.Equal(t, sentReply{handle: "token-1", text: "echo:說明"}, rep.sent()[0])
}

func TestHandleEvent_IgnoresNonMessagesAndBlankText(t *testing.T) {
	res := &echoResolver{}
	rep := &recordingReplier{}
	b := New(res, zap.NewNop())
	id := models.ConversationIdentity{Kind: models.KindDirect, ID: "U1"}

	b.HandleEvent(context.Background(), Event{Kind: EventOther, Identity: id, Text: "hi"}, rep)
	b.HandleEvent(context.Background(), Event{Kind: EventMessage, Identity: id, Text: "  "}, rep)

	assert.Empty(t, res.messages())
	assert.Empty(t, rep.sent())
}

func TestHandleEvent_DroppedMessageGetsNoReply(t *testing.T) {
	res := &echoResolver{}
	rep := &recordingReplier{}
	b := New(res, zap.NewNop())

	b.HandleEvent(context.Background(), Event{
		Kind:     EventMessage,
		Identity: models.ConversationIdentity{Kind: models.KindGroup, ID: "C1"},
		Text:     "今天好累",
	}, rep)

	assert.Len(t, res.messages(), 1)
	assert.Empty(t, rep.sent())
}

func TestHandleEvent_ReplyFailureIsAbsorbed(t *testing.T) {
	rep := &recordingReplier{err: errors.New("token expired")}
	b := New(&echoResolver{}, zap.NewNop())

	assert.NotPanics(t, func() {
		b.HandleEvent(context.Background(), Event{
			Kind:     EventMessage,
			Identity: models.ConversationIdentity{Kind: models.KindDirect, ID: "U1"},
			Text:     "狀態",
		}, rep)
	})
	assert.Len(t, rep.sent(), 1)
}

func TestRoutingPusher(t *testing.T) {
	line := &recordingReplier{}
	tg := &recordingReplier{}
	p := RoutingPusher{Line: line, Telegram: tg}

	require.NoError(t, p.Push(context.Background(), "U1", "a"))
	require.NoError(t, p.Push(context.Background(), "tg:42", "b"))

	assert.Equal(t, []sentReply{{handle: "U1", text: "a"}}, line.sent())
	assert.Equal(t, []sentReply{{handle: "tg:42", text: "b"}}, tg.sent())

	err := RoutingPusher{Line: line}.Push(context.Background(), "tg:1", "c")
	assert.ErrorIs(t, err, ErrNoPusher)
}
