package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/slimday-bot/internal/models"
	"go.uber.org/zap"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	tables := Load("", zap.NewNop())

	assert.Equal(t, models.DayPrep, tables.DayType(1))
	assert.Equal(t, models.DayProteinConsecutive, tables.DayType(4))
	assert.Equal(t, models.DaySlimFirst, tables.DayType(6))
	assert.Equal(t, models.DayMetabolic, tables.DayType(45))
	assert.NotEmpty(t, tables.FAQ())
	assert.NotEmpty(t, tables.Guides().Help)
	assert.NotEmpty(t, tables.PushTemplate(models.DayPrep))

	content, ok := tables.SlotContent(models.DayPrep, "08:00")
	assert.True(t, ok)
	assert.NotEmpty(t, content)
}

func TestDayType_UnmappedDaysAreSlim(t *testing.T) {
	tables := Load("", zap.NewNop())
	assert.Equal(t, models.DaySlim, tables.DayType(8))
}

func TestDayType_ClampsOutOfRange(t *testing.T) {
	tables := Load("", zap.NewNop())
	assert.Equal(t, tables.DayType(1), tables.DayType(0))
	assert.Equal(t, tables.DayType(1), tables.DayType(-7))
	assert.Equal(t, tables.DayType(45), tables.DayType(300))
}

func TestCompanion_FallsBackToDefault(t *testing.T) {
	tables := Load("", zap.NewNop())
	assert.Contains(t, tables.Companion(1), "第一天")
	assert.Equal(t, tables.Guides().CompanionDefault, tables.Companion(8))
}

func TestSlots_OnlyThoseWithContentInDayOrder(t *testing.T) {
	tables := Load("", zap.NewNop())
	slots := tables.Slots(models.DayProteinSingle)
	assert.Equal(t, []string{"08:00", "12:00", "15:00", "18:00"}, slots)
}

func TestLoad_DirectoryOverridesAndMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, faqFile),
		[]byte(`[{"keywords":["蘋果"],"answer":"可以吃"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, menusFile), []byte(`{not json`), 0o644))

	tables := Load(dir, zap.NewNop())

	require.Len(t, tables.FAQ(), 1)
	assert.Equal(t, "可以吃", tables.FAQ()[0].Answer)

	_, ok := tables.SlotContent(models.DayPrep, "08:00")
	assert.False(t, ok, "malformed menus should leave the table empty")
	assert.Equal(t, 0, tables.Stats().Menus)

	// files the directory does not have come from the embedded defaults
	assert.Equal(t, models.DayPrep, tables.DayType(1))
}
