package models

// ProgramDays is the length of the program.
const ProgramDays = 45

// ClampDay forces a day number into [1, ProgramDays].
func ClampDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > ProgramDays {
		return ProgramDays
	}
	return day
}

type DayType string

const (
	DayPrep               DayType = "PREP"
	DayProteinConsecutive DayType = "PROTEIN_CONSECUTIVE"
	DayProteinSingle      DayType = "PROTEIN_SINGLE"
	DaySlimFirst          DayType = "SLIM_FIRST"
	DaySlim               DayType = "SLIM"
	DayMetabolic          DayType = "METABOLIC"
)

var dayTypeLabels = map[DayType]string{
	DayPrep:               "準備期",
	DayProteinConsecutive: "連續蛋白日",
	DayProteinSingle:      "單日蛋白日",
	DaySlimFirst:          "第一個纖體日",
	DaySlim:               "纖體日",
	DayMetabolic:          "代謝穩定期",
}

// ParseDayType returns DaySlim for anything it does not recognise.
func ParseDayType(s string) DayType {
	t := DayType(s)
	if _, ok := dayTypeLabels[t]; ok {
		return t
	}
	return DaySlim
}

// Label returns the display name shown to users.
func (t DayType) Label() string {
	if label, ok := dayTypeLabels[t]; ok {
		return label
	}
	return dayTypeLabels[DaySlim]
}

// TimeSlots are the recognised schedule labels, in order of the day.
var TimeSlots = []string{
	"07:00", "08:00", "10:00", "12:00", "14:00",
	"15:00", "17:00", "18:00", "20:00", "21:00",
}

func IsTimeSlot(s string) bool {
	for _, slot := range TimeSlots {
		if slot == s {
			return true
		}
	}
	return false
}
