package resolver

import (
	"fmt"
	"strings"

	"github.com/xaenox/slimday-bot/internal/models"
)

const (
	GenericErrorMessage = "系統發生了一點問題，請稍後再傳一次訊息 🙏"
	NotStartedMessage   = "你還沒有開始計畫喔！請先輸入「開始」，我會從今天開始幫你計算天數。"
	DayOutOfRangeFormat = "天數需要在 1 到 %d 之間，例如：第12天"
)

func dayHeading(day int, dt models.DayType) string {
	return fmt.Sprintf("第 %d 天（%s）", day, dt.Label())
}

func startedReply(dt models.DayType, companion string) string {
	return fmt.Sprintf("🎉 計畫開始！今天是%s\n\n💬 %s\n\n輸入「今日菜單」查看今天的安排。",
		dayHeading(1, dt), companion)
}

func alreadyStartedReply(day int, dt models.DayType) string {
	return fmt.Sprintf("你已經在計畫中了，今天是%s。\n如果想從第 1 天重新來過，請輸入「重新開始」。",
		dayHeading(day, dt))
}

func restartedReply(dt models.DayType, companion string) string {
	return fmt.Sprintf("🔄 已重新開始！今天是%s\n\n💬 %s", dayHeading(1, dt), companion)
}

func setDayReply(day int, dt models.DayType, companion string) string {
	return fmt.Sprintf("✅ 已設定：今天是%s\n\n💬 %s", dayHeading(day, dt), companion)
}

func todayMenuReply(day int, dt models.DayType, template, companion string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 今天是%s", dayHeading(day, dt))
	if template != "" {
		fmt.Fprintf(&sb, "\n\n%s", template)
	}
	fmt.Fprintf(&sb, "\n\n💬 %s", companion)
	fmt.Fprintf(&sb, "\n\n⏰ 可查詢的時段：%s\n輸入時間（例如 12:00）查看該時段的內容。",
		strings.Join(models.TimeSlots, "、"))
	return sb.String()
}

func slotReply(day int, slot, content string) string {
	return fmt.Sprintf("⏰ 第 %d 天 %s\n%s", day, slot, content)
}

func slotMissingReply(day int, slot string) string {
	return fmt.Sprintf("第 %d 天的 %s 沒有安排內容，輸入「今日菜單」查看今天的完整安排。", day, slot)
}

func statusReply(start string, day, rawDay int, dt models.DayType) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 目前進度\n開始日期：%s\n今天是%s\n計畫共 %d 天", start, dayHeading(day, dt), models.ProgramDays)
	if rawDay > models.ProgramDays {
		sb.WriteString("\n🎊 你已經完成整個計畫了！")
	}
	return sb.String()
}
