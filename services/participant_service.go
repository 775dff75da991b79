package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/repositories"
)

// ParticipantService — машина состояний участника. Каждый реальный
// переход пишет строку участника и ровно одну запись истории в одной
// транзакции, после коммита пересчитывает готовность матча и по
// фронту "не собран → собран" запускает рассылку.
type ParticipantService interface {
	Signup(ctx context.Context, matchID, currentUserID int) (*models.Participant, error)
	Withdraw(ctx context.Context, matchID, currentUserID int) (*models.Participant, error)
	UpdateParticipantState(ctx context.Context, participantID int, newState models.ParticipantState, currentUserID int) (*models.Participant, error)
	GetParticipantHistory(ctx context.Context, participantID int) ([]*models.ParticipantHistory, error)
}

type participantService struct {
	tx              TxBeginner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	historyRepo     repositories.ParticipantHistoryRepository
	evaluator       *FormationEvaluator
	notifier        FormationNotifier
	broadcaster     RosterBroadcaster
	logger          *slog.Logger
}

func NewParticipantService(
	tx TxBeginner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	historyRepo repositories.ParticipantHistoryRepository,
	evaluator *FormationEvaluator,
	notifier FormationNotifier,
	broadcaster RosterBroadcaster,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		historyRepo:     historyRepo,
		evaluator:       evaluator,
		notifier:        notifier,
		broadcaster:     broadcaster,
		logger:          logger,
	}
}

// withMatchTx выполняет переход внутри транзакции: блокирует строку
// матча, замеряет готовность до и после, коммитит и только потом
// дёргает live-канал и нотификатор. Если fn сообщает changed=false
// (no-op), пост-обработка не выполняется.
func (s *participantService) withMatchTx(
	ctx context.Context,
	matchID int,
	fn func(tx Tx, match *models.Match) (*models.Participant, bool, error),
) (*models.Participant, error) {
	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", matchID, err)
	}

	before, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	participant, changed, err := fn(tx, match)
	if err != nil {
		return nil, err
	}

	after, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit participant transition: %w", err)
	}

	if changed {
		if s.broadcaster != nil {
			s.broadcaster.BroadcastToMatch(matchID, EventRosterUpdated, after)
		}
		notifyOnRisingEdge(ctx, s.logger, s.notifier, s.broadcaster, matchID, before, after)
	}
	return participant, nil
}

// recordTransition обновляет состояние участника и добавляет запись
// истории в той же транзакции — либо применяется всё, либо ничего.
func (s *participantService) recordTransition(ctx context.Context, tx Tx, p *models.Participant, newState models.ParticipantState, actorID *int) error {
	oldState := p.State
	if err := s.participantRepo.UpdateState(ctx, tx, p.ID, newState); err != nil {
		return fmt.Errorf("failed to update participant %d state: %w", p.ID, err)
	}
	p.State = newState

	history := &models.ParticipantHistory{
		ParticipantID: p.ID,
		OldState:      &oldState,
		NewState:      newState,
		ChangedBy:     actorID,
	}
	if err := s.historyRepo.Append(ctx, tx, history); err != nil {
		return fmt.Errorf("failed to append history for participant %d: %w", p.ID, err)
	}
	return nil
}

// Signup создаёт заявку в состоянии pending. Повторная запись после
// удаления возвращает существующую строку в pending, дубликата не
// возникает.
func (s *participantService) Signup(ctx context.Context, matchID, currentUserID int) (*models.Participant, error) {
	return s.withMatchTx(ctx, matchID, func(tx Tx, match *models.Match) (*models.Participant, bool, error) {
		if match.Status != models.MatchStatusActive {
			return nil, false, ErrMatchNotActive
		}

		existing, err := s.participantRepo.FindByMatchAndUser(ctx, tx, matchID, currentUserID)
		if err != nil && !errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, false, fmt.Errorf("failed to check existing participation: %w", err)
		}

		if existing == nil {
			participant := &models.Participant{
				MatchID: matchID,
				UserID:  currentUserID,
				State:   models.StatePending,
			}
			if err := s.participantRepo.Create(ctx, tx, participant); err != nil {
				if errors.Is(err, repositories.ErrParticipantConflict) {
					// Конкурирующая запись успела первой.
					return nil, false, ErrAlreadyParticipating
				}
				return nil, false, fmt.Errorf("failed to create participant: %w", err)
			}
			history := &models.ParticipantHistory{
				ParticipantID: participant.ID,
				OldState:      nil,
				NewState:      models.StatePending,
				ChangedBy:     &currentUserID,
			}
			if err := s.historyRepo.Append(ctx, tx, history); err != nil {
				return nil, false, fmt.Errorf("failed to append signup history: %w", err)
			}
			return participant, true, nil
		}

		if existing.State != models.StateRemoved {
			return nil, false, ErrAlreadyParticipating
		}

		if err := s.recordTransition(ctx, tx, existing, models.StatePending, &currentUserID); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	})
}

// Withdraw переводит собственную строку актора в removed из любого
// состояния. Повторный вызов на уже удалённой строке — no-op, записи
// истории не добавляется.
func (s *participantService) Withdraw(ctx context.Context, matchID, currentUserID int) (*models.Participant, error) {
	return s.withMatchTx(ctx, matchID, func(tx Tx, match *models.Match) (*models.Participant, bool, error) {
		if match.Status != models.MatchStatusActive {
			return nil, false, ErrMatchNotActive
		}

		participant, err := s.participantRepo.FindByMatchAndUser(ctx, tx, matchID, currentUserID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return nil, false, ErrParticipantNotFound
			}
			return nil, false, fmt.Errorf("failed to find participation: %w", err)
		}

		if participant.State == models.StateRemoved {
			return participant, false, nil
		}

		if err := s.recordTransition(ctx, tx, participant, models.StateRemoved, &currentUserID); err != nil {
			return nil, false, err
		}
		return participant, true, nil
	})
}

// GetParticipantHistory возвращает журнал переходов одного участника в
// хронологическом порядке: когда записался, когда подтверждён и т.д.
func (s *participantService) GetParticipantHistory(ctx context.Context, participantID int) ([]*models.ParticipantHistory, error) {
	if _, err := s.participantRepo.FindByID(ctx, nil, participantID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant %d: %w", participantID, err)
	}

	history, err := s.historyRepo.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for participant %d: %w", participantID, err)
	}
	return history, nil
}

// UpdateParticipantState — операция организатора: confirm (из pending
// или waitlisted), waitlist (из pending) или remove (из любого
// состояния). Перевод в pending снаружи не разрешён.
func (s *participantService) UpdateParticipantState(ctx context.Context, participantID int, newState models.ParticipantState, currentUserID int) (*models.Participant, error) {
	existing, err := s.participantRepo.FindByID(ctx, nil, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant %d: %w", participantID, err)
	}

	return s.withMatchTx(ctx, existing.MatchID, func(tx Tx, match *models.Match) (*models.Participant, bool, error) {
		if match.Status != models.MatchStatusActive {
			return nil, false, ErrMatchNotActive
		}
		if match.OrganizerID != currentUserID {
			return nil, false, ErrForbiddenOperation
		}

		// Перечитываем под блокировкой матча: состояние могло уйти
		// вперёд между предварительным чтением и транзакцией.
		participant, err := s.participantRepo.FindByID(ctx, tx, participantID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return nil, false, ErrParticipantNotFound
			}
			return nil, false, fmt.Errorf("failed to find participant %d: %w", participantID, err)
		}

		switch newState {
		case models.StateConfirmed:
			if participant.State != models.StatePending && participant.State != models.StateWaitlisted {
				return nil, false, ErrInvalidStateTransition
			}
		case models.StateWaitlisted:
			if participant.State != models.StatePending {
				return nil, false, ErrInvalidStateTransition
			}
		case models.StateRemoved:
			if participant.State == models.StateRemoved {
				return participant, false, nil
			}
		default:
			return nil, false, ErrInvalidStateTransition
		}

		if err := s.recordTransition(ctx, tx, participant, newState, &currentUserID); err != nil {
			return nil, false, err
		}
		return participant, true, nil
	})
}
