package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/repositories"
)

type CreateMatchInput struct {
	GameType        models.GameType        `json:"game_type"`
	DoublesMode     *models.DoublesMode    `json:"doubles_mode,omitempty"`
	CourtCount      int                    `json:"court_count"`
	RequiredCount   int                    `json:"required_count"`
	TimeStatus      models.FinalizedStatus `json:"time_status"`
	VenueStatus     models.FinalizedStatus `json:"venue_status"`
	ScheduledAt     *time.Time             `json:"scheduled_at,omitempty"`
	DurationMinutes *int                   `json:"duration_minutes,omitempty"`
	Venue           *string                `json:"venue,omitempty"`
}

// UpdateMatchInput — частичное обновление: nil-поле не трогается.
type UpdateMatchInput struct {
	GameType        *models.GameType        `json:"game_type,omitempty"`
	DoublesMode     *models.DoublesMode     `json:"doubles_mode,omitempty"`
	CourtCount      *int                    `json:"court_count,omitempty"`
	RequiredCount   *int                    `json:"required_count,omitempty"`
	TimeStatus      *models.FinalizedStatus `json:"time_status,omitempty"`
	VenueStatus     *models.FinalizedStatus `json:"venue_status,omitempty"`
	ScheduledAt     *time.Time              `json:"scheduled_at,omitempty"`
	DurationMinutes *int                    `json:"duration_minutes,omitempty"`
	Venue           *string                 `json:"venue,omitempty"`
}

// MatchDetails — матч вместе с ростером, производным статусом
// готовности и журналом переходов, в одном ответе для UI.
type MatchDetails struct {
	Match        *models.Match                `json:"match"`
	Participants []*models.Participant        `json:"participants"`
	Guests       []*models.GuestParticipation `json:"guests"`
	Formation    models.FormationStatus       `json:"formation"`
	History      []*models.ParticipantHistory `json:"history"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, input CreateMatchInput, organizerID int) (*models.Match, error)
	GetMatchDetails(ctx context.Context, id int) (*MatchDetails, error)
	ListActiveMatches(ctx context.Context, limit, offset int) ([]*models.Match, error)
	UpdateMatch(ctx context.Context, id int, input UpdateMatchInput, currentUserID int) (*models.Match, error)
	CancelMatch(ctx context.Context, id int, currentUserID int) error
}

type matchService struct {
	tx              TxBeginner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	historyRepo     repositories.ParticipantHistoryRepository
	guestRepo       repositories.GuestRepository
	userRepo        repositories.UserRepository
	evaluator       *FormationEvaluator
	notifier        FormationNotifier
	broadcaster     RosterBroadcaster
	logger          *slog.Logger
}

func NewMatchService(
	tx TxBeginner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	historyRepo repositories.ParticipantHistoryRepository,
	guestRepo repositories.GuestRepository,
	userRepo repositories.UserRepository,
	evaluator *FormationEvaluator,
	notifier FormationNotifier,
	broadcaster RosterBroadcaster,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		historyRepo:     historyRepo,
		guestRepo:       guestRepo,
		userRepo:        userRepo,
		evaluator:       evaluator,
		notifier:        notifier,
		broadcaster:     broadcaster,
		logger:          logger,
	}
}

func validateMatchFields(gameType models.GameType, doublesMode *models.DoublesMode, courtCount, requiredCount int) error {
	switch gameType {
	case models.GameTypeSingles, models.GameTypeDoubles, models.GameTypePractice:
	default:
		return ErrMatchInvalidGameType
	}
	if doublesMode != nil && gameType != models.GameTypeDoubles {
		return ErrMatchInvalidDoublesMode
	}
	if doublesMode != nil {
		switch *doublesMode {
		case models.DoublesModeMens, models.DoublesModeWomens, models.DoublesModeMixed, models.DoublesModeOpen:
		default:
			return ErrMatchInvalidDoublesMode
		}
	}
	if courtCount < 1 {
		return ErrMatchInvalidCourtCount
	}
	if requiredCount < 2 {
		return ErrMatchInvalidRequiredCount
	}
	return nil
}

// CreateMatch создаёт матч и в той же транзакции записывает
// организатора подтверждённым участником с записью истории.
func (s *matchService) CreateMatch(ctx context.Context, input CreateMatchInput, organizerID int) (*models.Match, error) {
	if input.CourtCount == 0 {
		input.CourtCount = 1
	}
	if input.TimeStatus == "" {
		input.TimeStatus = models.StatusTentative
	}
	if input.VenueStatus == "" {
		input.VenueStatus = models.StatusTentative
	}
	if err := validateMatchFields(input.GameType, input.DoublesMode, input.CourtCount, input.RequiredCount); err != nil {
		return nil, err
	}

	match := &models.Match{
		OrganizerID:     organizerID,
		Status:          models.MatchStatusActive,
		GameType:        input.GameType,
		DoublesMode:     input.DoublesMode,
		CourtCount:      input.CourtCount,
		RequiredCount:   input.RequiredCount,
		TimeStatus:      input.TimeStatus,
		VenueStatus:     input.VenueStatus,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Venue:           input.Venue,
	}

	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.Create(ctx, tx, match); err != nil {
		if errors.Is(err, repositories.ErrMatchOrganizerInvalid) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	organizer := &models.Participant{
		MatchID: match.ID,
		UserID:  organizerID,
		State:   models.StateConfirmed,
	}
	if err := s.participantRepo.Create(ctx, tx, organizer); err != nil {
		return nil, fmt.Errorf("failed to enroll organizer: %w", err)
	}
	history := &models.ParticipantHistory{
		ParticipantID: organizer.ID,
		OldState:      nil,
		NewState:      models.StateConfirmed,
		ChangedBy:     &organizerID,
	}
	if err := s.historyRepo.Append(ctx, tx, history); err != nil {
		return nil, fmt.Errorf("failed to append organizer history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match creation: %w", err)
	}
	return match, nil
}

func (s *matchService) GetMatchDetails(ctx context.Context, id int) (*MatchDetails, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}

	if organizer, err := s.userRepo.GetByID(ctx, match.OrganizerID); err == nil {
		match.Organizer = organizer
	}

	participants, err := s.participantRepo.ListByMatch(ctx, id, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	guests, err := s.guestRepo.ListParticipationsByMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}

	formation, err := s.evaluator.Evaluate(ctx, nil, match)
	if err != nil {
		return nil, err
	}

	history, err := s.historyRepo.ListByMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return &MatchDetails{
		Match:        match,
		Participants: participants,
		Guests:       guests,
		Formation:    formation,
		History:      history,
	}, nil
}

func (s *matchService) ListActiveMatches(ctx context.Context, limit, offset int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusActive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list active matches: %w", err)
	}
	return matches, nil
}

// UpdateMatch — правка любого поля организатором. Изменение
// required_count или финализация времени/площадки может собрать матч
// без единого перехода участника, поэтому фронт готовности проверяется
// и здесь.
func (s *matchService) UpdateMatch(ctx context.Context, id int, input UpdateMatchInput, currentUserID int) (*models.Match, error) {
	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	if match.OrganizerID != currentUserID {
		return nil, ErrForbiddenOperation
	}
	if match.Status != models.MatchStatusActive {
		return nil, ErrMatchNotActive
	}

	before, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	if input.GameType != nil {
		match.GameType = *input.GameType
	}
	if input.DoublesMode != nil {
		match.DoublesMode = input.DoublesMode
	}
	if match.GameType != models.GameTypeDoubles && input.DoublesMode == nil {
		// Смена типа игры с doubles сбрасывает режим.
		match.DoublesMode = nil
	}
	if input.CourtCount != nil {
		match.CourtCount = *input.CourtCount
	}
	if input.RequiredCount != nil {
		match.RequiredCount = *input.RequiredCount
	}
	if input.TimeStatus != nil {
		match.TimeStatus = *input.TimeStatus
	}
	if input.VenueStatus != nil {
		match.VenueStatus = *input.VenueStatus
	}
	if input.ScheduledAt != nil {
		match.ScheduledAt = input.ScheduledAt
	}
	if input.DurationMinutes != nil {
		match.DurationMinutes = input.DurationMinutes
	}
	if input.Venue != nil {
		match.Venue = input.Venue
	}

	if err := validateMatchFields(match.GameType, match.DoublesMode, match.CourtCount, match.RequiredCount); err != nil {
		return nil, err
	}

	if err := s.matchRepo.Update(ctx, tx, match); err != nil {
		return nil, err
	}

	after, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match update: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMatch(id, EventMatchUpdated, after)
	}
	notifyOnRisingEdge(ctx, s.logger, s.notifier, s.broadcaster, id, before, after)

	return match, nil
}

// CancelMatch необратим: реактивации нет, строки участников отмена не
// трогает — они остаются для аудита.
func (s *matchService) CancelMatch(ctx context.Context, id int, currentUserID int) error {
	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	if match.OrganizerID != currentUserID {
		return ErrForbiddenOperation
	}
	if match.Status == models.MatchStatusCancelled {
		return nil
	}

	if err := s.matchRepo.UpdateStatus(ctx, tx, id, models.MatchStatusCancelled); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match cancellation: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMatch(id, EventMatchCancelled, nil)
	}
	return nil
}
