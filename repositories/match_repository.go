package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/playerhoods/match-system/models"
)

var (
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchOrganizerInvalid = errors.New("match organizer conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	ListByStatus(ctx context.Context, status models.MatchStatus, limit, offset int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, organizer_id, status, game_type, doubles_mode, court_count, required_count,
		time_status, venue_status, scheduled_at, duration_minutes, venue, created_at, updated_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (organizer_id, status, game_type, doubles_mode, court_count, required_count,
			time_status, venue_status, scheduled_at, duration_minutes, venue)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.OrganizerID,
		match.Status,
		match.GameType,
		match.DoublesMode,
		match.CourtCount,
		match.RequiredCount,
		match.TimeStatus,
		match.VenueStatus,
		match.ScheduledAt,
		match.DurationMinutes,
		match.Venue,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23503" && pqErr.Constraint == "matches_organizer_id_fkey" {
				return ErrMatchOrganizerInvalid
			}
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) scanMatch(rowScanner interface {
	Scan(dest ...interface{}) error
}, m *models.Match) error {
	return rowScanner.Scan(
		&m.ID,
		&m.OrganizerID,
		&m.Status,
		&m.GameType,
		&m.DoublesMode,
		&m.CourtCount,
		&m.RequiredCount,
		&m.TimeStatus,
		&m.VenueStatus,
		&m.ScheduledAt,
		&m.DurationMinutes,
		&m.Venue,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
}

func (r *postgresMatchRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Match, error) {
	m := &models.Match{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanMatch(row, m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns)
	return r.findOne(ctx, nil, query, id)
}

// GetByIDForUpdate блокирует строку матча до конца транзакции, чтобы
// конкурирующие переходы по одному матчу сериализовались на стороне БД.
func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1 FOR UPDATE`, matchColumns)
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		UPDATE matches
		SET game_type = $1, doubles_mode = $2, court_count = $3, required_count = $4,
			time_status = $5, venue_status = $6, scheduled_at = $7, duration_minutes = $8,
			venue = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.GameType,
		match.DoublesMode,
		match.CourtCount,
		match.RequiredCount,
		match.TimeStatus,
		match.VenueStatus,
		match.ScheduledAt,
		match.DurationMinutes,
		match.Venue,
		match.ID,
	).Scan(&match.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}
	return nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	query := `UPDATE matches SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListByStatus(ctx context.Context, status models.MatchStatus, limit, offset int) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf(`SELECT %s FROM matches WHERE status = $1 ORDER BY scheduled_at ASC NULLS LAST, id ASC`, matchColumns))
	args := []interface{}{status}
	if limit > 0 {
		queryBuilder.WriteString(" LIMIT $2 OFFSET $3")
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := r.scanMatch(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}
