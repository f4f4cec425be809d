// Package knowledge holds the static lookup tables the bot answers from.
// Tables are loaded once at startup and never change afterwards.
package knowledge

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xaenox/slimday-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed data/*.json
var defaults embed.FS

const (
	dayTypesFile      = "day_types.json"
	menusFile         = "menus.json"
	pushTemplatesFile = "push_templates.json"
	companionFile     = "companion.json"
	faqFile           = "faq.json"
	guidesFile        = "guides.json"
)

// Guides are the fixed explanatory texts.
type Guides struct {
	Help             string `json:"help"`
	Fallback         string `json:"fallback"`
	CompanionDefault string `json:"companion_default"`
}

var defaultGuides = Guides{
	Help:             "輸入「開始」開始計畫，輸入「今日菜單」查看今天的內容。",
	Fallback:         "輸入「說明」查看所有指令。",
	CompanionDefault: "今天也要好好照顧自己。",
}

type Tables struct {
	dayTypes      map[int]models.DayType
	menus         map[models.DayType]map[string]string
	pushTemplates map[models.DayType]string
	companions    map[int]string
	faq           []models.FAQItem
	guides        Guides
}

// Stats reports table sizes, used by the debug command.
type Stats struct {
	DayTypes      int
	Menus         int
	PushTemplates int
	Companions    int
	FAQ           int
}

// Load reads every table from dir, falling back to the embedded defaults for
// files dir does not have. An empty dir uses only the defaults. A file that
// cannot be parsed leaves its table empty and is logged; Load never fails.
func Load(dir string, logger *zap.Logger) *Tables {
	l := loader{dir: dir, logger: logger}

	t := &Tables{
		dayTypes:      map[int]models.DayType{},
		menus:         map[models.DayType]map[string]string{},
		pushTemplates: map[models.DayType]string{},
		companions:    map[int]string{},
		guides:        defaultGuides,
	}

	var rawDayTypes map[string]string
	if l.read(dayTypesFile, &rawDayTypes) {
		for k, v := range rawDayTypes {
			day, err := strconv.Atoi(k)
			if err != nil {
				logger.Warn("Skipping non-numeric day in day types", zap.String("day", k))
				continue
			}
			t.dayTypes[day] = models.ParseDayType(v)
		}
	}

	var rawMenus map[string]map[string]string
	if l.read(menusFile, &rawMenus) {
		for k, slots := range rawMenus {
			t.menus[models.DayType(k)] = slots
		}
	}

	var rawPush map[string]string
	if l.read(pushTemplatesFile, &rawPush) {
		for k, v := range rawPush {
			t.pushTemplates[models.DayType(k)] = v
		}
	}

	var rawCompanions map[string]string
	if l.read(companionFile, &rawCompanions) {
		for k, v := range rawCompanions {
			day, err := strconv.Atoi(k)
			if err != nil {
				logger.Warn("Skipping non-numeric day in companion messages", zap.String("day", k))
				continue
			}
			t.companions[day] = v
		}
	}

	var faq []models.FAQItem
	if l.read(faqFile, &faq) {
		t.faq = faq
	}

	var guides Guides
	if l.read(guidesFile, &guides) {
		if guides.Help != "" {
			t.guides.Help = guides.Help
		}
		if guides.Fallback != "" {
			t.guides.Fallback = guides.Fallback
		}
		if guides.CompanionDefault != "" {
			t.guides.CompanionDefault = guides.CompanionDefault
		}
	}

	logger.Info("Knowledge tables loaded",
		zap.String("dir", dir),
		zap.Int("day_types", len(t.dayTypes)),
		zap.Int("menus", len(t.menus)),
		zap.Int("faq_items", len(t.faq)))

	return t
}

type loader struct {
	dir    string
	logger *zap.Logger
}

func (l loader) read(name string, v any) bool {
	data, source, err := l.open(name)
	if err != nil {
		l.logger.Warn("Failed to read knowledge file, using empty table",
			zap.Error(err),
			zap.String("file", name))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		l.logger.Warn("Malformed knowledge file, using empty table",
			zap.Error(err),
			zap.String("file", name),
			zap.String("source", source))
		return false
	}
	return true
}

func (l loader) open(name string) ([]byte, string, error) {
	if l.dir != "" {
		path := filepath.Join(l.dir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, fmt.Errorf("read %s: %w", path, err)
		}
	}
	data, err := defaults.ReadFile("data/" + name)
	if err != nil {
		return nil, "embedded", fmt.Errorf("read embedded %s: %w", name, err)
	}
	return data, "embedded", nil
}

// DayType returns the scripted type of a program day; unmapped days are SLIM.
func (t *Tables) DayType(day int) models.DayType {
	if dt, ok := t.dayTypes[models.ClampDay(day)]; ok {
		return dt
	}
	return models.DaySlim
}

func (t *Tables) SlotContent(dt models.DayType, slot string) (string, bool) {
	content, ok := t.menus[dt][slot]
	if !ok || content == "" {
		return "", false
	}
	return content, true
}

// Slots lists the time slots that have content for a day type, in day order.
func (t *Tables) Slots(dt models.DayType) []string {
	var slots []string
	for _, slot := range models.TimeSlots {
		if _, ok := t.SlotContent(dt, slot); ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

func (t *Tables) PushTemplate(dt models.DayType) string {
	return t.pushTemplates[dt]
}

// Companion returns the companion line for a day, or the generic one.
func (t *Tables) Companion(day int) string {
	if msg, ok := t.companions[models.ClampDay(day)]; ok && msg != "" {
		return msg
	}
	return t.guides.CompanionDefault
}

func (t *Tables) FAQ() []models.FAQItem {
	return t.faq
}

func (t *Tables) Guides() Guides {
	return t.guides
}

func (t *Tables) Stats() Stats {
	return Stats{
		DayTypes:      len(t.dayTypes),
		Menus:         len(t.menus),
		PushTemplates: len(t.pushTemplates),
		Companions:    len(t.companions),
		FAQ:           len(t.faq),
	}
}
