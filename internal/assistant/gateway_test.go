package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []Request
	deadline bool
}

func (f *fakeBackend) Answer(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	_, f.deadline = ctx.Deadline()
	return f.answer, f.err
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestGateway(backend Backend) (*Gateway, *fakeNow) {
	now := &fakeNow{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	g := NewGateway(backend, Options{Now: now.Now}, zap.NewNop())
	return g, now
}

func TestAsk_PassesQuestionAndPolicy(t *testing.T) {
	backend := &fakeBackend{answer: "• 多喝水 [S1]"}
	g, _ := newTestGateway(backend)

	answer, err := g.Ask(context.Background(), "U1", "請問腸道健康跟什麼有關係？")
	require.NoError(t, err)
	assert.Equal(t, "• 多喝水 [S1]", answer)

	require.Len(t, backend.requests, 1)
	assert.Equal(t, "腸道健康跟什麼有關係？", backend.requests[0].Question)
	assert.Equal(t, AnswerPolicy, backend.requests[0].SystemPolicy)
	assert.True(t, backend.deadline, "backend call must be bounded")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	backend := &fakeBackend{answer: "x"}
	g, _ := newTestGateway(backend)

	for _, text := range []string{"請問", "請問   ", "  請問", "請問？", "請問!!", "請問 ， 。"} {
		answer, err := g.Ask(context.Background(), "U1", text)
		require.NoError(t, err)
		assert.Equal(t, UsageHintMessage, answer, "input %q", text)
	}
	assert.Equal(t, 0, backend.calls())
	assert.Zero(t, g.CooldownRemaining("U1"), "usage hint must not spend the cooldown")
}

func TestAsk_QuestionKeepsItsPunctuation(t *testing.T) {
	backend := &fakeBackend{answer: "answer"}
	g, _ := newTestGateway(backend)

	_, err := g.Ask(context.Background(), "U1", "請問？咖啡可以喝嗎？")
	require.NoError(t, err)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, "？咖啡可以喝嗎？", backend.requests[0].Question)
}

func TestAsk_NotConfigured(t *testing.T) {
	g := NewGateway(nil, Options{}, zap.NewNop())
	assert.False(t, g.Configured())

	answer, err := g.Ask(context.Background(), "U1", "請問可以喝咖啡嗎")
	require.NoError(t, err)
	assert.Equal(t, NotConfiguredMessage, answer)
}

func TestAsk_Cooldown(t *testing.T) {
	backend := &fakeBackend{answer: "answer"}
	g, now := newTestGateway(backend)
	ctx := context.Background()

	first, err := g.Ask(ctx, "U1", "請問腸道健康跟什麼有關係？")
	require.NoError(t, err)
	assert.Equal(t, "answer", first)

	now.Advance(5 * time.Second)
	second, err := g.Ask(ctx, "U1", "請問腸道健康跟什麼有關係？")
	require.NoError(t, err)
	assert.Equal(t, CooldownMessage, second)
	assert.Equal(t, 1, backend.calls())

	// the rejected call did not move the window: 20s after the first call it reopens
	now.Advance(15 * time.Second)
	third, err := g.Ask(ctx, "U1", "請問可以喝咖啡嗎")
	require.NoError(t, err)
	assert.Equal(t, "answer", third)
	assert.Equal(t, 2, backend.calls())

	// and the accepted call reset it
	now.Advance(19 * time.Second)
	fourth, err := g.Ask(ctx, "U1", "請問可以喝咖啡嗎")
	require.NoError(t, err)
	assert.Equal(t, CooldownMessage, fourth)
	assert.Equal(t, 2, backend.calls())
}

func TestAsk_CooldownMessageNamesConfiguredWindow(t *testing.T) {
	assert.Contains(t, CooldownMessage, "20 秒")

	backend := &fakeBackend{answer: "answer"}
	now := &fakeNow{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	g := NewGateway(backend, Options{Cooldown: 45 * time.Second, Now: now.Now}, zap.NewNop())
	assert.Contains(t, g.CooldownMessage(), "45 秒")

	_, err := g.Ask(context.Background(), "U1", "請問一")
	require.NoError(t, err)
	now.Advance(30 * time.Second)
	answer, err := g.Ask(context.Background(), "U1", "請問二")
	require.NoError(t, err)
	assert.Equal(t, g.CooldownMessage(), answer)
	assert.Equal(t, 1, backend.calls())
}

func TestAsk_CooldownIsPerConversation(t *testing.T) {
	backend := &fakeBackend{answer: "answer"}
	g, _ := newTestGateway(backend)

	_, err := g.Ask(context.Background(), "U1", "請問一")
	require.NoError(t, err)
	answer, err := g.Ask(context.Background(), "U2", "請問二")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.Equal(t, 2, backend.calls())
}

func TestAsk_FailedCallStillSpendsCooldown(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	g, now := newTestGateway(backend)

	_, err := g.Ask(context.Background(), "U1", "請問一")
	require.Error(t, err)

	now.Advance(time.Second)
	answer, err := g.Ask(context.Background(), "U1", "請問一")
	require.NoError(t, err)
	assert.Equal(t, CooldownMessage, answer)
	assert.Equal(t, 1, backend.calls())
}

func TestAsk_RateLimitedIsTranslated(t *testing.T) {
	backend := &fakeBackend{err: ErrRateLimited}
	g, _ := newTestGateway(backend)

	answer, err := g.Ask(context.Background(), "U1", "請問一")
	require.NoError(t, err)
	assert.Equal(t, RateLimitedMessage, answer)
}

func TestAsk_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	g, _ := newTestGateway(&fakeBackend{err: boom})

	_, err := g.Ask(context.Background(), "U1", "請問一")
	assert.ErrorIs(t, err, boom)
}

func TestAsk_EmptyAnswerBecomesNotFound(t *testing.T) {
	g, _ := newTestGateway(&fakeBackend{answer: "  "})

	answer, err := g.Ask(context.Background(), "U1", "請問一")
	require.NoError(t, err)
	assert.Equal(t, NotFoundMessage, answer)
}

func TestAsk_ConcurrentDuplicatesOnlyOnePasses(t *testing.T) {
	backend := &fakeBackend{answer: "answer"}
	g, _ := newTestGateway(backend)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Ask(context.Background(), "U1", "請問一")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, backend.calls())
}

type warmingBackend struct {
	fakeBackend
	warmErr error
	warmed  int
}

func (w *warmingBackend) Warm(context.Context) error {
	w.warmed++
	return w.warmErr
}

func TestWarm(t *testing.T) {
	backend := &warmingBackend{}
	g, _ := newTestGateway(backend)
	g.Warm(context.Background())
	assert.Equal(t, 1, backend.warmed)

	backend.warmErr = errors.New("embeddings down")
	g.Warm(context.Background())
	assert.Equal(t, 2, backend.warmed)

	// backends without a warm-up step and the unconfigured gateway are no-ops
	plain, _ := newTestGateway(&fakeBackend{})
	plain.Warm(context.Background())
	NewGateway(nil, Options{}, zap.NewNop()).Warm(context.Background())
}
