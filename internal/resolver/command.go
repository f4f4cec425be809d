package resolver

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xaenox/slimday-bot/internal/assistant"
	"github.com/xaenox/slimday-bot/internal/models"
)

type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdHelp
	CmdStatus
	CmdDebug
	CmdStart
	CmdRestart
	CmdSetDay
	CmdTodayMenu
	CmdCompanion
	CmdTimeSlot
	CmdAskAI
)

var commandNames = map[CommandKind]string{
	CmdNone:      "none",
	CmdHelp:      "help",
	CmdStatus:    "status",
	CmdDebug:     "debug",
	CmdStart:     "start",
	CmdRestart:   "restart",
	CmdSetDay:    "set_day",
	CmdTodayMenu: "today_menu",
	CmdCompanion: "companion",
	CmdTimeSlot:  "time_slot",
	CmdAskAI:     "ask_ai",
}

func (k CommandKind) String() string {
	return commandNames[k]
}

// Command is the result of classifying one message. Day is set for
// CmdSetDay (and may be out of range), Slot for CmdTimeSlot.
type Command struct {
	Kind CommandKind
	Day  int
	Slot string
}

// Phrases are compared against folded text, so only canonical spellings
// need to be listed here.
var (
	helpPhrases      = []string{"help", "說明", "使用說明", "指令", "幫助"}
	statusPhrases    = []string{"狀態", "status"}
	debugPhrases     = []string{"debug", "除錯"}
	startPhrases     = []string{"開始", "start"}
	restartPhrases   = []string{"重新開始", "restart"}
	todayMenuPhrases = []string{"今天菜單", "菜單", "今天吃什麼", "今天是哪一天", "今天第幾天", "今天是第幾天"}
	companionPhrases = []string{"陪伴", "陪伴提醒", "今天提醒", "打氣", "鼓勵我"}
)

var setDayPattern = regexp.MustCompile(`^第\s*(\d+)\s*天$`)

// Classify maps folded text to a command. Checks run in a fixed order and
// the first hit wins.
func Classify(folded string) Command {
	switch {
	case folded == "":
		return Command{Kind: CmdNone}
	case oneOf(folded, helpPhrases):
		return Command{Kind: CmdHelp}
	case oneOf(folded, statusPhrases):
		return Command{Kind: CmdStatus}
	case oneOf(folded, debugPhrases):
		return Command{Kind: CmdDebug}
	case oneOf(folded, startPhrases):
		return Command{Kind: CmdStart}
	case oneOf(folded, restartPhrases):
		return Command{Kind: CmdRestart}
	}

	if m := setDayPattern.FindStringSubmatch(folded); m != nil {
		day, err := strconv.Atoi(m[1])
		if err != nil {
			day = -1
		}
		return Command{Kind: CmdSetDay, Day: day}
	}

	switch {
	case oneOf(folded, todayMenuPhrases):
		return Command{Kind: CmdTodayMenu}
	case oneOf(folded, companionPhrases):
		return Command{Kind: CmdCompanion}
	case models.IsTimeSlot(folded):
		return Command{Kind: CmdTimeSlot, Slot: folded}
	case strings.HasPrefix(folded, assistant.Trigger):
		return Command{Kind: CmdAskAI}
	}

	return Command{Kind: CmdNone}
}

func oneOf(s string, phrases []string) bool {
	for _, p := range phrases {
		if s == p {
			return true
		}
	}
	return false
}
