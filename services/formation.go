package services

import (
	"context"
	"fmt"

	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/repositories"
)

// EvaluateFormation — чистая функция трёх сигналов готовности.
// Матч заполнен, когда подтверждённые участники вместе с гостями
// закрывают требуемое количество мест (гость занимает место на корте
// наравне с участником), и собран, когда он заполнен и оба сигнала —
// время и площадка — зафиксированы. MissingSignals нужен только для
// пользовательских сообщений.
func EvaluateFormation(match *models.Match, confirmedCount, guestCount int) models.FormationStatus {
	status := models.FormationStatus{
		ConfirmedCount: confirmedCount,
		GuestCount:     guestCount,
		RequiredCount:  match.RequiredCount,
	}

	status.IsFull = confirmedCount+guestCount >= match.RequiredCount

	if match.TimeStatus != models.StatusFinalized {
		status.MissingSignals = append(status.MissingSignals, models.SignalTime)
	}
	if match.VenueStatus != models.StatusFinalized {
		status.MissingSignals = append(status.MissingSignals, models.SignalVenue)
	}

	status.IsFormed = status.IsFull && len(status.MissingSignals) == 0
	return status
}

// FormationEvaluator пересчитывает статус готовности из текущего
// состояния хранилища. Результат никогда не кэшируется между
// вызовами — каждый пересчёт читает счётчики заново.
type FormationEvaluator struct {
	participantRepo repositories.ParticipantRepository
	guestRepo       repositories.GuestRepository
}

func NewFormationEvaluator(
	participantRepo repositories.ParticipantRepository,
	guestRepo repositories.GuestRepository,
) *FormationEvaluator {
	return &FormationEvaluator{
		participantRepo: participantRepo,
		guestRepo:       guestRepo,
	}
}

func (e *FormationEvaluator) Evaluate(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) (models.FormationStatus, error) {
	confirmed, err := e.participantRepo.CountByMatchAndState(ctx, exec, match.ID, models.StateConfirmed)
	if err != nil {
		return models.FormationStatus{}, fmt.Errorf("failed to count confirmed participants: %w", err)
	}

	guests, err := e.guestRepo.CountByMatch(ctx, exec, match.ID)
	if err != nil {
		return models.FormationStatus{}, fmt.Errorf("failed to count guests: %w", err)
	}

	return EvaluateFormation(match, confirmed, guests), nil
}
