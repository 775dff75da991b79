package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/repositories"
)

type AddGuestInput struct {
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name,omitempty"`
}

// GuestService — шлюз допуска гостей: авторизация, нормализация email
// и атомарный find-or-create + insert. Дубликат добавления отсекается
// unique constraint-ом БД, а не предварительной проверкой, поэтому из
// двух одновременных вызовов ровно один успешен.
type GuestService interface {
	AddGuest(ctx context.Context, matchID int, input AddGuestInput, currentUserID int) (*models.GuestParticipation, error)
	RemoveGuest(ctx context.Context, participationID int, currentUserID int) error
}

type guestService struct {
	tx              TxBeginner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	guestRepo       repositories.GuestRepository
	evaluator       *FormationEvaluator
	notifier        FormationNotifier
	broadcaster     RosterBroadcaster
	logger          *slog.Logger
}

func NewGuestService(
	tx TxBeginner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	guestRepo repositories.GuestRepository,
	evaluator *FormationEvaluator,
	notifier FormationNotifier,
	broadcaster RosterBroadcaster,
	logger *slog.Logger,
) GuestService {
	return &guestService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		guestRepo:       guestRepo,
		evaluator:       evaluator,
		notifier:        notifier,
		broadcaster:     broadcaster,
		logger:          logger,
	}
}

// normalizeGuestEmail приводит email к нижнему регистру, чтобы
// дедупликация не зависела от регистра.
func normalizeGuestEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrGuestEmailInvalid
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrGuestEmailInvalid
	}
	return email, nil
}

func (s *guestService) AddGuest(ctx context.Context, matchID int, input AddGuestInput, currentUserID int) (*models.GuestParticipation, error) {
	email, err := normalizeGuestEmail(input.Email)
	if err != nil {
		return nil, err
	}

	var displayName *string
	if input.DisplayName != nil {
		trimmed := strings.TrimSpace(*input.DisplayName)
		if trimmed != "" {
			displayName = &trimmed
		}
	}

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
	if match.Status != models.MatchStatusActive {
		return nil, ErrMatchNotActive
	}

	// Гостя может добавить организатор или подтверждённый участник.
	if match.OrganizerID != currentUserID {
		participant, err := s.participantRepo.FindByMatchAndUser(ctx, tx, matchID, currentUserID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return nil, ErrForbiddenOperation
			}
			return nil, fmt.Errorf("failed to check inviter participation: %w", err)
		}
		if participant.State != models.StateConfirmed {
			return nil, ErrForbiddenOperation
		}
	}

	before, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	guest, err := s.guestRepo.FindOrCreateByEmail(ctx, tx, email, displayName)
	if err != nil {
		return nil, err
	}

	participation := &models.GuestParticipation{
		MatchID:   matchID,
		GuestID:   guest.ID,
		InvitedBy: currentUserID,
	}
	if err := s.guestRepo.CreateParticipation(ctx, tx, participation); err != nil {
		if errors.Is(err, repositories.ErrGuestParticipationConflict) {
			return nil, ErrGuestAlreadyInMatch
		}
		return nil, err
	}
	participation.Guest = guest

	after, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit guest admission: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMatch(matchID, EventRosterUpdated, after)
	}
	notifyOnRisingEdge(ctx, s.logger, s.notifier, s.broadcaster, matchID, before, after)

	return participation, nil
}

func (s *guestService) RemoveGuest(ctx context.Context, participationID int, currentUserID int) error {
	participation, err := s.guestRepo.FindParticipationByID(ctx, participationID)
	if err != nil {
		if errors.Is(err, repositories.ErrGuestParticipationNotFound) {
			return ErrGuestNotFound
		}
		return fmt.Errorf("failed to find guest participation %d: %w", participationID, err)
	}

	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, participation.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to lock match %d: %w", participation.MatchID, err)
	}
	if match.Status != models.MatchStatusActive {
		return ErrMatchNotActive
	}

	// Убрать гостя может организатор или тот, кто его пригласил.
	if match.OrganizerID != currentUserID && participation.InvitedBy != currentUserID {
		return ErrForbiddenOperation
	}

	if err := s.guestRepo.DeleteParticipation(ctx, tx, participationID); err != nil {
		if errors.Is(err, repositories.ErrGuestParticipationNotFound) {
			return ErrGuestNotFound
		}
		return err
	}

	after, err := s.evaluator.Evaluate(ctx, tx, match)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit guest removal: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMatch(participation.MatchID, EventRosterUpdated, after)
	}
	return nil
}
