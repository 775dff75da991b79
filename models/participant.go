package models

import "time"

// ParticipantState представляет статусы участника, соответствующие ENUM в БД.
type ParticipantState string

const (
	StatePending    ParticipantState = "pending"
	StateConfirmed  ParticipantState = "confirmed"
	StateWaitlisted ParticipantState = "waitlisted"
	StateRemoved    ParticipantState = "removed"
)

// Participant — связь зарегистрированного пользователя с одним матчем.
// На пару (match, user) существует не более одной строки: повторная
// запись после удаления возвращает существующую строку в pending.
type Participant struct {
	ID        int              `json:"id" db:"id"`
	MatchID   int              `json:"match_id" db:"match_id"`
	UserID    int              `json:"user_id" db:"user_id"`
	State     ParticipantState `json:"state" db:"state"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`

	User *User `json:"user,omitempty" db:"-"`
}

// ParticipantHistory — append-only журнал переходов состояний.
// OldState == nil для самой первой записи участника,
// ChangedBy == nil для системных переходов.
type ParticipantHistory struct {
	ID            int               `json:"id" db:"id"`
	ParticipantID int               `json:"participant_id" db:"participant_id"`
	OldState      *ParticipantState `json:"old_state,omitempty" db:"old_state"`
	NewState      ParticipantState  `json:"new_state" db:"new_state"`
	ChangedAt     time.Time         `json:"changed_at" db:"changed_at"`
	ChangedBy     *int              `json:"changed_by,omitempty" db:"changed_by"`
}
