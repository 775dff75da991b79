package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/playerhoods/match-system/models"
)

var ErrHistoryParticipantInvalid = errors.New("history participant conflict or invalid")

// ParticipantHistoryRepository — append-only журнал. Записи никогда не
// изменяются и не удаляются.
type ParticipantHistoryRepository interface {
	Append(ctx context.Context, exec SQLExecutor, h *models.ParticipantHistory) error
	ListByParticipant(ctx context.Context, participantID int) ([]*models.ParticipantHistory, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.ParticipantHistory, error)
}

type postgresParticipantHistoryRepository struct {
	db *sql.DB
}

func NewPostgresParticipantHistoryRepository(db *sql.DB) ParticipantHistoryRepository {
	return &postgresParticipantHistoryRepository{db: db}
}

func (r *postgresParticipantHistoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantHistoryRepository) Append(ctx context.Context, exec SQLExecutor, h *models.ParticipantHistory) error {
	query := `
		INSERT INTO participant_history (participant_id, old_state, new_state, changed_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, changed_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		h.ParticipantID,
		h.OldState,
		h.NewState,
		h.ChangedBy,
	).Scan(&h.ID, &h.ChangedAt)

	if err != nil {
		return fmt.Errorf("failed to append participant history: %w", err)
	}
	return nil
}

func (r *postgresParticipantHistoryRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.ParticipantHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participant history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ParticipantHistory, 0)
	for rows.Next() {
		var h models.ParticipantHistory
		if err := rows.Scan(&h.ID, &h.ParticipantID, &h.OldState, &h.NewState, &h.ChangedAt, &h.ChangedBy); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, &h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return entries, nil
}

func (r *postgresParticipantHistoryRepository) ListByParticipant(ctx context.Context, participantID int) ([]*models.ParticipantHistory, error) {
	query := `
		SELECT id, participant_id, old_state, new_state, changed_at, changed_by
		FROM participant_history
		WHERE participant_id = $1
		ORDER BY changed_at ASC, id ASC`
	return r.list(ctx, query, participantID)
}

func (r *postgresParticipantHistoryRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.ParticipantHistory, error) {
	query := `
		SELECT h.id, h.participant_id, h.old_state, h.new_state, h.changed_at, h.changed_by
		FROM participant_history h
		JOIN participants p ON h.participant_id = p.id
		WHERE p.match_id = $1
		ORDER BY h.changed_at ASC, h.id ASC`
	return r.list(ctx, query, matchID)
}
