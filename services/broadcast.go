package services

import (
	"context"
	"log/slog"

	"github.com/playerhoods/match-system/models"
)

// Типы событий live-канала.
const (
	EventRosterUpdated  = "ROSTER_UPDATED"
	EventMatchFormed    = "MATCH_FORMED"
	EventMatchUpdated   = "MATCH_UPDATED"
	EventMatchCancelled = "MATCH_CANCELLED"
)

// RosterBroadcaster рассылает событие всем подписчикам матча.
// Реализуется websocket-хабом из пакета live.
type RosterBroadcaster interface {
	BroadcastToMatch(matchID int, eventType string, payload interface{})
}

// notifyOnRisingEdge запускает рассылку уведомлений, если матч только
// что перешёл из "не собран" в "собран". Срабатывает строго по фронту:
// уже собранный матч повторных рассылок не получает, а после распада и
// повторного сбора рассылка уходит снова. Ошибка рассылки никогда не
// влияет на исход вызвавшей её операции.
func notifyOnRisingEdge(
	ctx context.Context,
	logger *slog.Logger,
	notifier FormationNotifier,
	broadcaster RosterBroadcaster,
	matchID int,
	before, after models.FormationStatus,
) {
	if before.IsFormed || !after.IsFormed {
		return
	}

	if broadcaster != nil {
		broadcaster.BroadcastToMatch(matchID, EventMatchFormed, after)
	}

	if notifier == nil {
		return
	}
	if _, err := notifier.NotifyIfFormed(ctx, matchID); err != nil {
		logger.Error("formation notification failed",
			slog.Int("match_id", matchID), slog.Any("error", err))
	}
}
