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
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrParticipantConflict     = errors.New("participant conflict: user already has a row for this match")
	ErrParticipantUserInvalid  = errors.New("participant user conflict or invalid")
	ErrParticipantMatchInvalid = errors.New("participant match conflict or invalid")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	FindByMatchAndUser(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participant, error)
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.ParticipantState) error
	ListByMatch(ctx context.Context, matchID int, stateFilter *models.ParticipantState, includeUser bool) ([]*models.Participant, error)
	CountByMatchAndState(ctx context.Context, exec SQLExecutor, matchID int, state models.ParticipantState) (int, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	query := `
		INSERT INTO participants (match_id, user_id, state)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.MatchID,
		p.UserID,
		p.State,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "participants_match_id_user_id_key" {
					return ErrParticipantConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "participants_user_id_fkey":
					return ErrParticipantUserInvalid
				case "participants_match_id_fkey":
					return ErrParticipantMatchInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participant) error {
	return rowScanner.Scan(
		&p.ID,
		&p.MatchID,
		&p.UserID,
		&p.State,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanParticipant(row, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `SELECT id, match_id, user_id, state, created_at, updated_at FROM participants WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresParticipantRepository) FindByMatchAndUser(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participant, error) {
	query := `SELECT id, match_id, user_id, state, created_at, updated_at FROM participants WHERE match_id = $1 AND user_id = $2`
	return r.findOne(ctx, exec, query, matchID, userID)
}

func (r *postgresParticipantRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.ParticipantState) error {
	query := `UPDATE participants SET state = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to update participant state: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ListByMatch(ctx context.Context, matchID int, stateFilter *models.ParticipantState, includeUser bool) ([]*models.Participant, error) {
	var queryBuilder strings.Builder
	args := []interface{}{matchID}
	argCounter := 2

	queryBuilder.WriteString(`
		SELECT
			p.id, p.match_id, p.user_id, p.state, p.created_at, p.updated_at`)
	if includeUser {
		queryBuilder.WriteString(`,
			COALESCE(u.id, 0), COALESCE(u.display_name, ''), COALESCE(u.email, '')`)
	}
	queryBuilder.WriteString(`
		FROM participants p`)
	if includeUser {
		queryBuilder.WriteString(`
		LEFT JOIN users u ON p.user_id = u.id`)
	}
	queryBuilder.WriteString(" WHERE p.match_id = $1")

	if stateFilter != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND p.state = $%d", argCounter))
		args = append(args, *stateFilter)
		argCounter++
	}
	queryBuilder.WriteString(" ORDER BY p.created_at ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by match: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		var u models.User
		scanDest := []interface{}{&p.ID, &p.MatchID, &p.UserID, &p.State, &p.CreatedAt, &p.UpdatedAt}
		if includeUser {
			scanDest = append(scanDest, &u.ID, &u.DisplayName, &u.Email)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		if includeUser && u.ID > 0 {
			p.User = &u
		}
		participants = append(participants, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) CountByMatchAndState(ctx context.Context, exec SQLExecutor, matchID int, state models.ParticipantState) (int, error) {
	query := `SELECT COUNT(*) FROM participants WHERE match_id = $1 AND state = $2`
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID, state).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants for match %d: %w", matchID, err)
	}
	return count, nil
}
