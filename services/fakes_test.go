package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/repositories"
)

// fakeTx удовлетворяет Tx, не выполняя никаких SQL-операций. Фейковые
// репозитории игнорируют executor, поэтому SQL-методы никогда не
// вызываются.
type fakeTx struct{}

func (fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (fakeTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (fakeTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeTxBeginner struct{}

func (fakeTxBeginner) BeginTx(ctx context.Context) (Tx, error) { return fakeTx{}, nil }

// fakeStore — общее in-memory состояние фейковых репозиториев.
// Все мутации под мьютексом, чтобы тесты на гонки были честными.
type fakeStore struct {
	mu sync.Mutex

	matches        map[int]*models.Match
	participants   map[int]*models.Participant
	history        []*models.ParticipantHistory
	guests         map[int]*models.Guest
	participations map[int]*models.GuestParticipation
	users          map[int]*models.User

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches:        make(map[int]*models.Match),
		participants:   make(map[int]*models.Participant),
		guests:         make(map[int]*models.Guest),
		participations: make(map[int]*models.GuestParticipation),
		users:          make(map[int]*models.User),
		nextID:         1,
	}
}

func (s *fakeStore) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *fakeStore) addUser(name, email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: s.id(), DisplayName: name, Email: email, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

func copyParticipant(p *models.Participant) *models.Participant {
	c := *p
	return &c
}

// --- MatchRepository ---

type fakeMatchRepo struct{ store *fakeStore }

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	match.ID = r.store.id()
	match.CreatedAt = time.Now()
	match.UpdatedAt = match.CreatedAt
	r.store.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeMatchRepo) Update(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.matches[match.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	match.UpdatedAt = time.Now()
	r.store.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	return nil
}

func (r *fakeMatchRepo) ListByStatus(ctx context.Context, status models.MatchStatus, limit, offset int) ([]*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	matches := make([]*models.Match, 0)
	for _, m := range r.store.matches {
		if m.Status == status {
			matches = append(matches, copyMatch(m))
		}
	}
	return matches, nil
}

// --- ParticipantRepository ---

type fakeParticipantRepo struct{ store *fakeStore }

func (r *fakeParticipantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.participants {
		if existing.MatchID == p.MatchID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.store.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.store.participants[p.ID] = copyParticipant(p)
	return nil
}

func (r *fakeParticipantRepo) FindByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	return copyParticipant(p), nil
}

func (r *fakeParticipantRepo) FindByMatchAndUser(ctx context.Context, exec repositories.SQLExecutor, matchID, userID int) (*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.participants {
		if p.MatchID == matchID && p.UserID == userID {
			return copyParticipant(p), nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, id int, state models.ParticipantState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.State = state
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakeParticipantRepo) ListByMatch(ctx context.Context, matchID int, stateFilter *models.ParticipantState, includeUser bool) ([]*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	participants := make([]*models.Participant, 0)
	for _, p := range r.store.participants {
		if p.MatchID != matchID {
			continue
		}
		if stateFilter != nil && p.State != *stateFilter {
			continue
		}
		c := copyParticipant(p)
		if includeUser {
			if u, ok := r.store.users[p.UserID]; ok {
				c.User = u
			}
		}
		participants = append(participants, c)
	}
	return participants, nil
}

func (r *fakeParticipantRepo) CountByMatchAndState(ctx context.Context, exec repositories.SQLExecutor, matchID int, state models.ParticipantState) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, p := range r.store.participants {
		if p.MatchID == matchID && p.State == state {
			count++
		}
	}
	return count, nil
}

// --- ParticipantHistoryRepository ---

type fakeHistoryRepo struct{ store *fakeStore }

func (r *fakeHistoryRepo) Append(ctx context.Context, exec repositories.SQLExecutor, h *models.ParticipantHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	h.ID = r.store.id()
	h.ChangedAt = time.Now()
	c := *h
	r.store.history = append(r.store.history, &c)
	return nil
}

func (r *fakeHistoryRepo) ListByParticipant(ctx context.Context, participantID int) ([]*models.ParticipantHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entries := make([]*models.ParticipantHistory, 0)
	for _, h := range r.store.history {
		if h.ParticipantID == participantID {
			c := *h
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

func (r *fakeHistoryRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.ParticipantHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entries := make([]*models.ParticipantHistory, 0)
	for _, h := range r.store.history {
		p, ok := r.store.participants[h.ParticipantID]
		if ok && p.MatchID == matchID {
			c := *h
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

// --- GuestRepository ---

type fakeGuestRepo struct{ store *fakeStore }

func (r *fakeGuestRepo) FindOrCreateByEmail(ctx context.Context, exec repositories.SQLExecutor, email string, displayName *string) (*models.Guest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, g := range r.store.guests {
		if g.Email == email {
			if g.DisplayName == nil && displayName != nil {
				g.DisplayName = displayName
			}
			c := *g
			return &c, nil
		}
	}
	g := &models.Guest{ID: r.store.id(), Email: email, DisplayName: displayName}
	r.store.guests[g.ID] = g
	c := *g
	return &c, nil
}

func (r *fakeGuestRepo) CreateParticipation(ctx context.Context, exec repositories.SQLExecutor, gp *models.GuestParticipation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.participations {
		if existing.MatchID == gp.MatchID && existing.GuestID == gp.GuestID {
			return repositories.ErrGuestParticipationConflict
		}
	}
	gp.ID = r.store.id()
	gp.CreatedAt = time.Now()
	c := *gp
	c.Guest = nil
	r.store.participations[gp.ID] = &c
	return nil
}

func (r *fakeGuestRepo) FindParticipationByID(ctx context.Context, id int) (*models.GuestParticipation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	gp, ok := r.store.participations[id]
	if !ok {
		return nil, repositories.ErrGuestParticipationNotFound
	}
	c := *gp
	if g, ok := r.store.guests[gp.GuestID]; ok {
		gc := *g
		c.Guest = &gc
	}
	return &c, nil
}

func (r *fakeGuestRepo) ListParticipationsByMatch(ctx context.Context, matchID int) ([]*models.GuestParticipation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	participations := make([]*models.GuestParticipation, 0)
	for _, gp := range r.store.participations {
		if gp.MatchID != matchID {
			continue
		}
		c := *gp
		if g, ok := r.store.guests[gp.GuestID]; ok {
			gc := *g
			c.Guest = &gc
		}
		participations = append(participations, &c)
	}
	return participations, nil
}

func (r *fakeGuestRepo) CountByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, gp := range r.store.participations {
		if gp.MatchID == matchID {
			count++
		}
	}
	return count, nil
}

func (r *fakeGuestRepo) DeleteParticipation(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.participations[id]; !ok {
		return repositories.ErrGuestParticipationNotFound
	}
	delete(r.store.participations, id)
	return nil
}

// --- UserRepository ---

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = r.store.id()
	user.CreatedAt = time.Now()
	c := *user
	r.store.users[user.ID] = &c
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) ListByIDs(ctx context.Context, ids []int) ([]*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.store.users[id]; ok {
			c := *u
			users = append(users, &c)
		}
	}
	return users, nil
}

// --- Заглушки live-канала и почты ---

type broadcastRecord struct {
	MatchID   int
	EventType string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

func (b *fakeBroadcaster) BroadcastToMatch(matchID int, eventType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{MatchID: matchID, EventType: eventType})
}

func (b *fakeBroadcaster) countByType(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, e := range b.events {
		if e.EventType == eventType {
			count++
		}
	}
	return count
}

type sentEmail struct {
	To   string
	Data FormationEmailData
}

type fakeEmailSender struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]bool
}

func (s *fakeEmailSender) SendFormationEmail(toEmail string, data FormationEmailData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[toEmail] {
		return errTestSMTP
	}
	s.sent = append(s.sent, sentEmail{To: toEmail, Data: data})
	return nil
}

var errTestSMTP = &smtpError{}

type smtpError struct{}

func (*smtpError) Error() string { return "smtp unavailable" }

// fakeNotifier считает вызовы NotifyIfFormed — этого достаточно для
// проверки срабатывания по фронту "не собран → собран".
type fakeNotifier struct {
	mu    sync.Mutex
	calls []int
}

func (n *fakeNotifier) NotifyIfFormed(ctx context.Context, matchID int) (*NotificationReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, matchID)
	return &NotificationReport{IsFormed: true}, nil
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// --- Тестовое окружение ---

type testEnv struct {
	store       *fakeStore
	matchRepo   *fakeMatchRepo
	partRepo    *fakeParticipantRepo
	historyRepo *fakeHistoryRepo
	guestRepo   *fakeGuestRepo
	userRepo    *fakeUserRepo
	evaluator   *FormationEvaluator
	broadcaster *fakeBroadcaster
	notifier    *fakeNotifier

	participants ParticipantService
	guests       GuestService
	matches      MatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	env := &testEnv{
		store:       store,
		matchRepo:   &fakeMatchRepo{store: store},
		partRepo:    &fakeParticipantRepo{store: store},
		historyRepo: &fakeHistoryRepo{store: store},
		guestRepo:   &fakeGuestRepo{store: store},
		userRepo:    &fakeUserRepo{store: store},
		broadcaster: &fakeBroadcaster{},
		notifier:    &fakeNotifier{},
	}
	env.evaluator = NewFormationEvaluator(env.partRepo, env.guestRepo)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := fakeTxBeginner{}

	env.participants = NewParticipantService(tx, env.matchRepo, env.partRepo, env.historyRepo, env.evaluator, env.notifier, env.broadcaster, logger)
	env.guests = NewGuestService(tx, env.matchRepo, env.partRepo, env.guestRepo, env.evaluator, env.notifier, env.broadcaster, logger)
	env.matches = NewMatchService(tx, env.matchRepo, env.partRepo, env.historyRepo, env.guestRepo, env.userRepo, env.evaluator, env.notifier, env.broadcaster, logger)
	return env
}

// createMatch создаёт активный матч через сервис, чтобы организатор был
// записан подтверждённым, как в проде.
func (env *testEnv) createMatch(t *testing.T, organizerID, requiredCount int, timeStatus, venueStatus models.FinalizedStatus) *models.Match {
	t.Helper()
	match, err := env.matches.CreateMatch(context.Background(), CreateMatchInput{
		GameType:      models.GameTypeDoubles,
		RequiredCount: requiredCount,
		TimeStatus:    timeStatus,
		VenueStatus:   venueStatus,
	}, organizerID)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	return match
}

func (env *testEnv) participantState(t *testing.T, id int) models.ParticipantState {
	t.Helper()
	p, err := env.partRepo.FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("FindByID(%d): %v", id, err)
	}
	return p.State
}
