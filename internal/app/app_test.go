package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/slimday-bot/internal/assistant"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/resolver"
	"github.com/xaenox/slimday-bot/pkg/config"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{Driver: driver},
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "state.db")},
		Program: config.ProgramConfig{Timezone: "Asia/Taipei"},
	}
}

func TestNew_WiresResolverWithoutAI(t *testing.T) {
	a, err := New(testConfig(t, config.DriverMemory), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	reply, ok := a.Resolver().Resolve(context.Background(), resolver.Message{
		Identity: models.ConversationIdentity{Kind: models.KindDirect, ID: "U1"},
		Text:     "請問可以喝咖啡嗎",
	})
	require.True(t, ok)
	assert.Equal(t, assistant.NotConfiguredMessage, reply)
}

func TestNew_SQLitePersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t, config.DriverSQLite)
	msg := resolver.Message{
		Identity: models.ConversationIdentity{Kind: models.KindDirect, ID: "U1"},
		Text:     "第12天",
	}

	first, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	_, ok := first.Resolver().Resolve(context.Background(), msg)
	require.True(t, ok)
	require.NoError(t, first.Close())

	second, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	reply, ok := second.Resolver().Resolve(context.Background(), resolver.Message{
		Identity: msg.Identity,
		Text:     "狀態",
	})
	require.True(t, ok)
	assert.Contains(t, reply, "第 12 天")
}

func TestNew_RejectsBadSettings(t *testing.T) {
	cfg := testConfig(t, config.DriverMemory)
	cfg.Program.Timezone = "Nowhere/Special"
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(t, "mongo")
	_, err = New(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestHandler_HealthAndWebhookRouting(t *testing.T) {
	a, err := New(testConfig(t, config.DriverMemory), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	h := a.Handler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, LineWebhookPath, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
