package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/repositories"
)

// Одновременных SMTP-сессий на одну рассылку.
const maxConcurrentSends = 4

// NotificationReport — итог рассылки. Отказ отдельного адресата — не
// ошибка операции: он учитывается в Failed и только логируется.
type NotificationReport struct {
	IsFormed bool `json:"is_formed"`
	Sent     int  `json:"sent"`
	Failed   int  `json:"failed"`
	Total    int  `json:"total"`
}

// FormationNotifier вызывается после каждого перехода, который мог
// перевести матч в состояние "собран".
type FormationNotifier interface {
	NotifyIfFormed(ctx context.Context, matchID int) (*NotificationReport, error)
}

type formationNotifier struct {
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	guestRepo       repositories.GuestRepository
	userRepo        repositories.UserRepository
	evaluator       *FormationEvaluator
	sender          FormationEmailSender
	publicURL       string
	logger          *slog.Logger
}

func NewFormationNotifier(
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	guestRepo repositories.GuestRepository,
	userRepo repositories.UserRepository,
	evaluator *FormationEvaluator,
	sender FormationEmailSender,
	publicURL string,
	logger *slog.Logger,
) FormationNotifier {
	return &formationNotifier{
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		guestRepo:       guestRepo,
		userRepo:        userRepo,
		evaluator:       evaluator,
		sender:          sender,
		publicURL:       publicURL,
		logger:          logger,
	}
}

// NotifyIfFormed заново проверяет готовность матча и, если он собран,
// отправляет по одному письму каждому подтверждённому участнику с
// известным адресом. Участники без адреса молча пропускаются; "собран,
// но уведомлять некого" — валидный исход, не ошибка.
func (n *formationNotifier) NotifyIfFormed(ctx context.Context, matchID int) (*NotificationReport, error) {
	match, err := n.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d for notification: %w", matchID, err)
	}

	formation, err := n.evaluator.Evaluate(ctx, nil, match)
	if err != nil {
		return nil, err
	}
	if !formation.IsFormed {
		return &NotificationReport{IsFormed: false}, nil
	}

	confirmed := models.StateConfirmed
	participants, err := n.participantRepo.ListByMatch(ctx, matchID, &confirmed, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed participants: %w", err)
	}

	guests, err := n.guestRepo.ListParticipationsByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guest participations: %w", err)
	}

	organizerName := "Organizer"
	if organizer, err := n.userRepo.GetByID(ctx, match.OrganizerID); err == nil {
		organizerName = organizer.DisplayName
	}

	type recipient struct {
		email string
		name  string
	}

	recipients := make([]recipient, 0, len(participants))
	names := make([]string, 0, len(participants)+len(guests))
	for _, p := range participants {
		name := "Player"
		if p.User != nil && p.User.DisplayName != "" {
			name = p.User.DisplayName
		}
		names = append(names, name)

		// Участник без адреса пропускается — это не ошибка.
		if p.User == nil || p.User.Email == "" {
			n.logger.Info("no email for confirmed participant",
				slog.Int("match_id", matchID), slog.Int("participant_id", p.ID))
			continue
		}
		recipients = append(recipients, recipient{email: p.User.Email, name: name})
	}
	for _, gp := range guests {
		if gp.Guest != nil {
			names = append(names, gp.Guest.Label())
		}
	}

	data := FormationEmailData{
		MatchDate:        "TBD",
		Venue:            "TBD",
		GameTypeLabel:    GameTypeLabel(match.GameType, match.DoublesMode),
		OrganizerName:    organizerName,
		MatchURL:         fmt.Sprintf("%s/matches/%d", n.publicURL, match.ID),
		ParticipantNames: names,
	}
	if match.ScheduledAt != nil {
		duration := models.DefaultDurationMinutes(match.GameType)
		if match.DurationMinutes != nil {
			duration = *match.DurationMinutes
		}
		data.MatchDate = formatMatchDate(*match.ScheduledAt)
		data.MatchTimeRange = formatTimeRange(*match.ScheduledAt, duration)
	}
	if match.Venue != nil && *match.Venue != "" {
		data.Venue = *match.Venue
	}

	report := &NotificationReport{IsFormed: true, Total: len(recipients)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for _, rcpt := range recipients {
		rcpt := rcpt
		g.Go(func() error {
			perRecipient := data
			perRecipient.RecipientName = rcpt.name
			if err := n.sender.SendFormationEmail(rcpt.email, perRecipient); err != nil {
				// Отказ одного адресата не блокирует остальных.
				n.logger.Warn("formation email failed",
					slog.Int("match_id", matchID), slog.Any("error", err))
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	n.logger.Info("formation notifications dispatched",
		slog.Int("match_id", matchID),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Int("total", report.Total))

	return report, nil
}
