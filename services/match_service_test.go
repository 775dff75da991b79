package services

import (
	"context"
	"errors"
	"testing"

	"github.com/playerhoods/match-system/models"
)

func TestCreateMatchDefaultsAndOrganizerEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")

	match, err := env.matches.CreateMatch(ctx, CreateMatchInput{
		GameType:      models.GameTypeSingles,
		RequiredCount: 2,
	}, organizer.ID)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	if match.Status != models.MatchStatusActive {
		t.Errorf("status = %s, want active", match.Status)
	}
	if match.CourtCount != 1 {
		t.Errorf("court_count = %d, want default 1", match.CourtCount)
	}
	if match.TimeStatus != models.StatusTentative || match.VenueStatus != models.StatusTentative {
		t.Errorf("signal statuses = (%s, %s), want tentative", match.TimeStatus, match.VenueStatus)
	}

	// Организатор сразу подтверждён, с первой записью истории.
	p, err := env.partRepo.FindByMatchAndUser(ctx, nil, match.ID, organizer.ID)
	if err != nil {
		t.Fatalf("organizer not enrolled: %v", err)
	}
	if p.State != models.StateConfirmed {
		t.Errorf("organizer state = %s, want confirmed", p.State)
	}
	history, _ := env.historyRepo.ListByParticipant(ctx, p.ID)
	if len(history) != 1 || history[0].OldState != nil || history[0].NewState != models.StateConfirmed {
		t.Errorf("organizer history = %+v, want single nil->confirmed entry", history)
	}
}

func TestCreateMatchValidation(t *testing.T) {
	mode := models.DoublesModeMixed
	badMode := models.DoublesMode("juniors")

	tests := []struct {
		name    string
		input   CreateMatchInput
		wantErr error
	}{
		{
			name:    "unknown game type",
			input:   CreateMatchInput{GameType: "squash", RequiredCount: 2},
			wantErr: ErrMatchInvalidGameType,
		},
		{
			name:    "doubles mode on singles",
			input:   CreateMatchInput{GameType: models.GameTypeSingles, DoublesMode: &mode, RequiredCount: 2},
			wantErr: ErrMatchInvalidDoublesMode,
		},
		{
			name:    "unknown doubles mode",
			input:   CreateMatchInput{GameType: models.GameTypeDoubles, DoublesMode: &badMode, RequiredCount: 4},
			wantErr: ErrMatchInvalidDoublesMode,
		},
		{
			name:    "required count below minimum",
			input:   CreateMatchInput{GameType: models.GameTypeDoubles, RequiredCount: 1},
			wantErr: ErrMatchInvalidRequiredCount,
		},
		{
			name:    "negative court count",
			input:   CreateMatchInput{GameType: models.GameTypeDoubles, CourtCount: -1, RequiredCount: 4},
			wantErr: ErrMatchInvalidCourtCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			organizer := env.store.addUser("Org", "org@example.com")
			if _, err := env.matches.CreateMatch(context.Background(), tt.input, organizer.ID); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetMatchDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")
	player := env.store.addUser("Player", "player@example.com")
	match := env.createMatch(t, organizer.ID, 4, models.StatusTentative, models.StatusTentative)

	if _, err := env.participants.Signup(ctx, match.ID, player.ID); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := env.guests.AddGuest(ctx, match.ID, AddGuestInput{Email: "guest@example.com"}, organizer.ID); err != nil {
		t.Fatalf("AddGuest: %v", err)
	}

	details, err := env.matches.GetMatchDetails(ctx, match.ID)
	if err != nil {
		t.Fatalf("GetMatchDetails: %v", err)
	}
	if details.Match.Organizer == nil || details.Match.Organizer.ID != organizer.ID {
		t.Errorf("organizer not attached to match")
	}
	if len(details.Participants) != 2 {
		t.Errorf("participants = %d, want 2 (organizer + player)", len(details.Participants))
	}
	if len(details.Guests) != 1 {
		t.Errorf("guests = %d, want 1", len(details.Guests))
	}
	if details.Formation.ConfirmedCount != 1 || details.Formation.GuestCount != 1 {
		t.Errorf("formation counts = (%d, %d), want (1, 1)",
			details.Formation.ConfirmedCount, details.Formation.GuestCount)
	}
	// Запись организатора + запись игрока.
	if len(details.History) != 2 {
		t.Errorf("history entries = %d, want 2", len(details.History))
	}

	if _, err := env.matches.GetMatchDetails(ctx, 404404); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("missing match err = %v, want ErrMatchNotFound", err)
	}
}

func TestListActiveMatchesExcludesCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")

	active := env.createMatch(t, organizer.ID, 4, models.StatusTentative, models.StatusTentative)
	cancelled := env.createMatch(t, organizer.ID, 4, models.StatusTentative, models.StatusTentative)
	if err := env.matches.CancelMatch(ctx, cancelled.ID, organizer.ID); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}

	matches, err := env.matches.ListActiveMatches(ctx, 20, 0)
	if err != nil {
		t.Fatalf("ListActiveMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != active.ID {
		t.Errorf("active matches = %v, want only match %d", matches, active.ID)
	}
}

func TestUpdateMatchAuthorizationAndPartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")
	other := env.store.addUser("Other", "other@example.com")
	match := env.createMatch(t, organizer.ID, 4, models.StatusTentative, models.StatusTentative)

	venue := "Court 1"
	if _, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{Venue: &venue}, other.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Errorf("non-organizer UpdateMatch err = %v, want ErrForbiddenOperation", err)
	}

	updated, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{Venue: &venue}, organizer.ID)
	if err != nil {
		t.Fatalf("UpdateMatch: %v", err)
	}
	if updated.Venue == nil || *updated.Venue != venue {
		t.Errorf("venue = %v, want %q", updated.Venue, venue)
	}
	// Нетронутые поля сохраняются.
	if updated.RequiredCount != 4 || updated.GameType != models.GameTypeDoubles {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	bad := 1
	if _, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{RequiredCount: &bad}, organizer.ID); !errors.Is(err, ErrMatchInvalidRequiredCount) {
		t.Errorf("required_count=1 err = %v, want ErrMatchInvalidRequiredCount", err)
	}
}

func TestUpdateMatchClearsDoublesModeOnGameTypeChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")

	mode := models.DoublesModeMixed
	match, err := env.matches.CreateMatch(ctx, CreateMatchInput{
		GameType:      models.GameTypeDoubles,
		DoublesMode:   &mode,
		RequiredCount: 4,
	}, organizer.ID)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	singles := models.GameTypeSingles
	updated, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{GameType: &singles}, organizer.ID)
	if err != nil {
		t.Fatalf("UpdateMatch: %v", err)
	}
	if updated.DoublesMode != nil {
		t.Errorf("doubles_mode = %v after switch to singles, want nil", *updated.DoublesMode)
	}
}

func TestUpdateMatchCanFormTheMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")
	player := env.store.addUser("Player", "player@example.com")
	// Мест хватает, но время и площадка не зафиксированы.
	match := env.createMatch(t, organizer.ID, 2, models.StatusTentative, models.StatusTentative)

	p, err := env.participants.Signup(ctx, match.ID, player.ID)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := env.participants.UpdateParticipantState(ctx, p.ID, models.StateConfirmed, organizer.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if env.notifier.callCount() != 0 {
		t.Fatalf("notifier fired while signals were tentative")
	}

	// Финализация обоих сигналов собирает матч без переходов участников.
	finalized := models.StatusFinalized
	if _, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{
		TimeStatus:  &finalized,
		VenueStatus: &finalized,
	}, organizer.ID); err != nil {
		t.Fatalf("UpdateMatch: %v", err)
	}
	if got := env.notifier.callCount(); got != 1 {
		t.Errorf("notifier calls = %d, want 1", got)
	}
	if got := env.broadcaster.countByType(EventMatchFormed); got != 1 {
		t.Errorf("MATCH_FORMED broadcasts = %d, want 1", got)
	}
}

func TestUpdateMatchRequiredCountDropFormsMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")
	second := env.store.addUser("Second", "second@example.com")
	third := env.store.addUser("Third", "third@example.com")
	// Оба сигнала зафиксированы, но подтверждено 3 из 4 мест.
	match := env.createMatch(t, organizer.ID, 4, models.StatusFinalized, models.StatusFinalized)

	for _, user := range []*models.User{second, third} {
		p, err := env.participants.Signup(ctx, match.ID, user.ID)
		if err != nil {
			t.Fatalf("Signup: %v", err)
		}
		if _, err := env.participants.UpdateParticipantState(ctx, p.ID, models.StateConfirmed, organizer.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	before, err := env.evaluator.Evaluate(ctx, nil, match)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if before.IsFull || before.IsFormed {
		t.Fatalf("formation = %+v before edit, want neither full nor formed", before)
	}
	if env.notifier.callCount() != 0 {
		t.Fatalf("notifier fired before the match was full")
	}
	historyBefore, _ := env.historyRepo.ListByMatch(ctx, match.ID)

	// Снижение required_count с 4 до 3 собирает матч без единого
	// перехода участника.
	lowered := 3
	updated, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{RequiredCount: &lowered}, organizer.ID)
	if err != nil {
		t.Fatalf("UpdateMatch: %v", err)
	}

	after, err := env.evaluator.Evaluate(ctx, nil, updated)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !after.IsFull || !after.IsFormed {
		t.Errorf("formation = %+v after edit, want full and formed", after)
	}
	if after.ConfirmedCount != 3 || after.RequiredCount != 3 {
		t.Errorf("counts = (%d of %d), want (3 of 3)", after.ConfirmedCount, after.RequiredCount)
	}
	if got := env.notifier.callCount(); got != 1 {
		t.Errorf("notifier calls = %d, want 1", got)
	}
	if got := env.broadcaster.countByType(EventMatchFormed); got != 1 {
		t.Errorf("MATCH_FORMED broadcasts = %d, want 1", got)
	}

	// Строки участников не тронуты: состояния прежние, истории не
	// прибавилось.
	for _, user := range []*models.User{organizer, second, third} {
		p, err := env.partRepo.FindByMatchAndUser(ctx, nil, match.ID, user.ID)
		if err != nil {
			t.Fatalf("FindByMatchAndUser: %v", err)
		}
		if p.State != models.StateConfirmed {
			t.Errorf("participant %d state = %s after match edit, want confirmed", p.ID, p.State)
		}
	}
	historyAfter, _ := env.historyRepo.ListByMatch(ctx, match.ID)
	if len(historyAfter) != len(historyBefore) {
		t.Errorf("history grew on match edit: %d -> %d", len(historyBefore), len(historyAfter))
	}
}

func TestCancelMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := env.store.addUser("Org", "org@example.com")
	other := env.store.addUser("Other", "other@example.com")
	match := env.createMatch(t, organizer.ID, 4, models.StatusTentative, models.StatusTentative)

	if err := env.matches.CancelMatch(ctx, match.ID, other.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Errorf("non-organizer CancelMatch err = %v, want ErrForbiddenOperation", err)
	}

	if err := env.matches.CancelMatch(ctx, match.ID, organizer.ID); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}
	got, err := env.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.MatchStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	// Повторная отмена идемпотентна и не шлёт повторного события.
	if err := env.matches.CancelMatch(ctx, match.ID, organizer.ID); err != nil {
		t.Errorf("repeated CancelMatch: %v", err)
	}
	if got := env.broadcaster.countByType(EventMatchCancelled); got != 1 {
		t.Errorf("MATCH_CANCELLED broadcasts = %d, want 1", got)
	}

	venue := "Court 1"
	if _, err := env.matches.UpdateMatch(ctx, match.ID, UpdateMatchInput{Venue: &venue}, organizer.ID); !errors.Is(err, ErrMatchNotActive) {
		t.Errorf("UpdateMatch on cancelled err = %v, want ErrMatchNotActive", err)
	}
}
