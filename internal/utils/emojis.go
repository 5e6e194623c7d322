package utils

import "coachboard/internal/database"

func GetLevelEmoji(level database.Level) string {
	switch level {
	case database.LevelLow:
		return "🟢"
	case database.LevelMedium:
		return "🟡"
	case database.LevelHigh:
		return "🔴"
	default:
		return "⚪"
	}
}

func GetMoodEmoji(mood float64) string {
	switch {
	case mood <= 0:
		return "❔"
	case mood < 4:
		return "😞"
	case mood < 7:
		return "😐"
	default:
		return "😊"
	}
}

func GetTaskStatusEmoji(task database.Task, overdue bool) string {
	switch {
	case task.Completed:
		return "✅"
	case overdue:
		return "⏰"
	default:
		return "⬜"
	}
}

func GetPlanName(status database.SubscriptionStatus) string {
	if name, ok := database.SubscriptionNames[status]; ok {
		return name
	}
	return string(status)
}
