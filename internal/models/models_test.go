package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampDay(t *testing.T) {
	assert.Equal(t, 1, ClampDay(-3))
	assert.Equal(t, 1, ClampDay(0))
	assert.Equal(t, 17, ClampDay(17))
	assert.Equal(t, ProgramDays, ClampDay(ProgramDays+1))
}

func TestParseDayType(t *testing.T) {
	assert.Equal(t, DayPrep, ParseDayType("PREP"))
	assert.Equal(t, DayMetabolic, ParseDayType("METABOLIC"))
	assert.Equal(t, DaySlim, ParseDayType("prep"))
	assert.Equal(t, DaySlim, ParseDayType(""))
	assert.Equal(t, "纖體日", DayType("NOPE").Label())
	assert.Equal(t, "準備期", DayPrep.Label())
}

func TestIsTimeSlot(t *testing.T) {
	assert.Len(t, TimeSlots, 10)
	assert.True(t, IsTimeSlot("07:00"))
	assert.True(t, IsTimeSlot("21:00"))
	assert.False(t, IsTimeSlot("7:00"))
	assert.False(t, IsTimeSlot("13:00"))
}

func TestConversationKind(t *testing.T) {
	assert.False(t, KindDirect.IsMultiParty())
	assert.True(t, KindGroup.IsMultiParty())
	assert.True(t, KindRoom.IsMultiParty())

	k, ok := ParseConversationKind("room")
	assert.True(t, ok)
	assert.Equal(t, KindRoom, k)

	_, ok = ParseConversationKind("channel")
	assert.False(t, ok)
}
