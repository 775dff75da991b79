package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/playerhoods/match-system/models"
)

var (
	ErrGuestNotFound                = errors.New("guest not found")
	ErrGuestParticipationNotFound   = errors.New("guest participation not found")
	ErrGuestParticipationConflict   = errors.New("guest participation conflict: guest already added to this match")
	ErrGuestParticipationFKViolated = errors.New("guest participation references invalid match, guest or inviter")
)

type GuestRepository interface {
	// FindOrCreateByEmail возвращает глобальную запись гостя по email,
	// создавая её при отсутствии. Email ожидается уже нормализованным.
	// Upsert атомарен — гонка двух вызовов даёт одну строку.
	FindOrCreateByEmail(ctx context.Context, exec SQLExecutor, email string, displayName *string) (*models.Guest, error)
	CreateParticipation(ctx context.Context, exec SQLExecutor, gp *models.GuestParticipation) error
	FindParticipationByID(ctx context.Context, id int) (*models.GuestParticipation, error)
	ListParticipationsByMatch(ctx context.Context, matchID int) ([]*models.GuestParticipation, error)
	CountByMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error)
	DeleteParticipation(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresGuestRepository struct {
	db *sql.DB
}

func NewPostgresGuestRepository(db *sql.DB) GuestRepository {
	return &postgresGuestRepository{db: db}
}

func (r *postgresGuestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGuestRepository) FindOrCreateByEmail(ctx context.Context, exec SQLExecutor, email string, displayName *string) (*models.Guest, error) {
	// ON CONFLICT DO UPDATE вместо DO NOTHING, чтобы RETURNING отдавал
	// строку и в случае, когда гость уже существует. Имя обновляется,
	// только если раньше его не было.
	query := `
		INSERT INTO guests (email, display_name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE
			SET display_name = COALESCE(guests.display_name, EXCLUDED.display_name)
		RETURNING id, email, display_name`

	g := &models.Guest{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, email, displayName).
		Scan(&g.ID, &g.Email, &g.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create guest by email: %w", err)
	}
	return g, nil
}

func (r *postgresGuestRepository) CreateParticipation(ctx context.Context, exec SQLExecutor, gp *models.GuestParticipation) error {
	query := `
		INSERT INTO guest_participations (match_id, guest_id, invited_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		gp.MatchID,
		gp.GuestID,
		gp.InvitedBy,
	).Scan(&gp.ID, &gp.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "guest_participations_match_id_guest_id_key" {
					return ErrGuestParticipationConflict
				}
			case "23503": // foreign_key_violation
				return ErrGuestParticipationFKViolated
			}
		}
		return fmt.Errorf("failed to create guest participation: %w", err)
	}
	return nil
}

func (r *postgresGuestRepository) FindParticipationByID(ctx context.Context, id int) (*models.GuestParticipation, error) {
	query := `
		SELECT gp.id, gp.match_id, gp.guest_id, gp.invited_by, gp.created_at,
			g.id, g.email, g.display_name
		FROM guest_participations gp
		JOIN guests g ON gp.guest_id = g.id
		WHERE gp.id = $1`

	gp := &models.GuestParticipation{}
	g := &models.Guest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&gp.ID, &gp.MatchID, &gp.GuestID, &gp.InvitedBy, &gp.CreatedAt,
		&g.ID, &g.Email, &g.DisplayName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGuestParticipationNotFound
		}
		return nil, fmt.Errorf("failed to find guest participation: %w", err)
	}
	gp.Guest = g
	return gp, nil
}

func (r *postgresGuestRepository) ListParticipationsByMatch(ctx context.Context, matchID int) ([]*models.GuestParticipation, error) {
	query := `
		SELECT gp.id, gp.match_id, gp.guest_id, gp.invited_by, gp.created_at,
			g.id, g.email, g.display_name
		FROM guest_participations gp
		JOIN guests g ON gp.guest_id = g.id
		WHERE gp.match_id = $1
		ORDER BY gp.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guest participations: %w", err)
	}
	defer rows.Close()

	participations := make([]*models.GuestParticipation, 0)
	for rows.Next() {
		var gp models.GuestParticipation
		var g models.Guest
		if err := rows.Scan(
			&gp.ID, &gp.MatchID, &gp.GuestID, &gp.InvitedBy, &gp.CreatedAt,
			&g.ID, &g.Email, &g.DisplayName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan guest participation row: %w", err)
		}
		gp.Guest = &g
		participations = append(participations, &gp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guest participation rows: %w", err)
	}
	return participations, nil
}

func (r *postgresGuestRepository) CountByMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error) {
	query := `SELECT COUNT(*) FROM guest_participations WHERE match_id = $1`
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count guest participations for match %d: %w", matchID, err)
	}
	return count, nil
}

func (r *postgresGuestRepository) DeleteParticipation(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM guest_participations WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete guest participation: %w", err)
	}
	return checkAffectedRows(result, ErrGuestParticipationNotFound)
}
