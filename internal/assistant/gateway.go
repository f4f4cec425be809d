// Package assistant routes "請問" questions to the LLM backend behind a
// per-conversation cooldown.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/slimday-bot/internal/textnorm"
	"go.uber.org/zap"
)

// Trigger is the prefix that turns a message into an AI question.
const Trigger = "請問"

const (
	DefaultCooldown = 20 * time.Second
	DefaultTimeout  = 20 * time.Second
)

// ErrRateLimited is returned by a Backend when the provider throttles us.
var ErrRateLimited = errors.New("ai backend rate limited")

// User-facing replies. Tests compare them verbatim.
const (
	UsageHintMessage     = "請在「請問」後面加上你的問題，例如：請問可以喝咖啡嗎？"
	NotConfiguredMessage = "AI 小幫手目前尚未設定，請先使用「說明」查看其他功能。"
	RateLimitedMessage   = "目前詢問的人太多了，請稍後再試一次 🙏"
	NotFoundMessage      = "參考資料中沒有找到相關內容，建議諮詢你的專屬顧問。"
)

const cooldownMessageFormat = "AI 小幫手正在思考上一個問題，請等 %d 秒後再問一次 🙏"

// CooldownMessage is the wait reply under DefaultCooldown. A gateway built
// with another cooldown names its own window, see Gateway.CooldownMessage.
var CooldownMessage = cooldownMessage(DefaultCooldown)

func cooldownMessage(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf(cooldownMessageFormat, secs)
}

// AnswerPolicy pins how the backend must answer.
const AnswerPolicy = `你是「45 天纖體計畫」的問答小幫手，請使用繁體中文回答。
規則：
1. 只能根據提供的參考資料回答，不要使用參考資料以外的知識。
2. 如果參考資料中找不到依據，請直接回答：「參考資料中沒有找到相關內容，建議諮詢你的專屬顧問。」
3. 以條列方式回答，每一個條列點的結尾都必須標註來源標籤，例如 [S1]，標籤必須對應提供的參考資料片段。
4. 不提供醫療診斷；涉及疾病或用藥時提醒使用者諮詢醫師。`

// Request is one question for the backend.
type Request struct {
	SystemPolicy string
	Question     string
}

// Backend answers a question from the knowledge base.
type Backend interface {
	Answer(ctx context.Context, req Request) (string, error)
}

// Warmer is implemented by backends that can prepare before the first
// question arrives.
type Warmer interface {
	Warm(ctx context.Context) error
}

type Options struct {
	Cooldown time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

// Gateway enforces the cooldown in front of a Backend.
type Gateway struct {
	backend  Backend
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	waitMessage string

	mu       sync.Mutex
	lastCall map[string]time.Time
}

// NewGateway wraps backend. A nil backend means no knowledge base is
// configured; Ask then answers with NotConfiguredMessage.
func NewGateway(backend Backend, opts Options, logger *zap.Logger) *Gateway {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		backend:  backend,
		cooldown: opts.Cooldown,
		timeout:  opts.Timeout,
		now:      opts.Now,
		logger:   logger,
		lastCall: make(map[string]time.Time),

		waitMessage: cooldownMessage(opts.Cooldown),
	}
}

func (g *Gateway) Configured() bool {
	return g.backend != nil
}

// CooldownMessage is the reply sent while a conversation is cooling down.
func (g *Gateway) CooldownMessage() string {
	return g.waitMessage
}

// Warm lets the backend prepare, when it knows how. Failures are logged;
// the backend retries on the next question.
func (g *Gateway) Warm(ctx context.Context) {
	w, ok := g.backend.(Warmer)
	if !ok {
		return
	}
	start := g.now()
	if err := w.Warm(ctx); err != nil {
		g.logger.Warn("Failed to warm AI backend", zap.Error(err))
		return
	}
	g.logger.Info("AI backend warmed", zap.Duration("took", g.now().Sub(start)))
}

// Ask answers text, which still carries the trigger prefix. A question that
// normalizes to nothing, such as bare punctuation, gets the usage hint. Only
// backend failures other than rate limiting are returned as errors.
func (g *Gateway) Ask(ctx context.Context, conversationID, text string) (string, error) {
	question := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), Trigger))
	if textnorm.Normalize(question) == "" {
		return UsageHintMessage, nil
	}
	if g.backend == nil {
		return NotConfiguredMessage, nil
	}
	if !g.acquire(conversationID) {
		g.logger.Info("AI request rejected by cooldown",
			zap.String("conversation_id", conversationID))
		return g.waitMessage, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := g.now()
	answer, err := g.backend.Answer(ctx, Request{
		SystemPolicy: AnswerPolicy,
		Question:     question,
	})
	if errors.Is(err, ErrRateLimited) {
		g.logger.Warn("AI backend rate limited",
			zap.Error(err),
			zap.String("conversation_id", conversationID))
		return RateLimitedMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("ai backend: %w", err)
	}

	g.logger.Info("AI answer generated",
		zap.String("conversation_id", conversationID),
		zap.Duration("latency", g.now().Sub(start)))

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return NotFoundMessage, nil
	}
	return answer, nil
}

// acquire claims the conversation's slot. The timestamp is written before
// the backend is called and is left alone when the claim is refused.
func (g *Gateway) acquire(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastCall[conversationID]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastCall[conversationID] = now
	return true
}

// CooldownRemaining is how long the conversation must still wait.
func (g *Gateway) CooldownRemaining(conversationID string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastCall[conversationID]
	if !ok {
		return 0
	}
	remaining := g.cooldown - g.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
