package services

import (
	"fmt"
	"time"

	"github.com/playerhoods/match-system/models"
)

// GameTypeLabel возвращает человекочитаемое название типа игры для
// писем и выдачи API.
func GameTypeLabel(gameType models.GameType, mode *models.DoublesMode) string {
	switch gameType {
	case models.GameTypeSingles:
		return "Singles"
	case models.GameTypePractice:
		return "Practice"
	case models.GameTypeDoubles:
		if mode == nil {
			return "Doubles"
		}
		switch *mode {
		case models.DoublesModeMens:
			return "Men's doubles"
		case models.DoublesModeWomens:
			return "Women's doubles"
		case models.DoublesModeMixed:
			return "Mixed doubles"
		case models.DoublesModeOpen:
			return "Doubles (open)"
		default:
			return "Doubles"
		}
	default:
		return string(gameType)
	}
}

func formatMatchDate(t time.Time) string {
	return t.Format("Mon, Jan 2")
}

func formatTimeRange(start time.Time, durationMinutes int) string {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return fmt.Sprintf("%s–%s", start.Format("15:04"), end.Format("15:04"))
}
