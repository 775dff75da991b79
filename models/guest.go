package models

import "time"

// Guest — приглашённый без аккаунта, идентифицируется email-ом.
// Одна глобальная запись на email (email нормализуется к нижнему
// регистру при записи).
type Guest struct {
	ID          int     `json:"id" db:"id"`
	Email       string  `json:"email" db:"email"`
	DisplayName *string `json:"display_name,omitempty" db:"display_name"`
}

// Label возвращает имя для отображения, с откатом на email.
func (g *Guest) Label() string {
	if g.DisplayName != nil && *g.DisplayName != "" {
		return *g.DisplayName
	}
	return g.Email
}

// GuestParticipation связывает гостя с матчем. Пара (match, guest)
// уникальна — дубликат отклоняется на уровне constraint-а БД.
type GuestParticipation struct {
	ID        int       `json:"id" db:"id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	GuestID   int       `json:"guest_id" db:"guest_id"`
	InvitedBy int       `json:"invited_by" db:"invited_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Guest *Guest `json:"guest,omitempty" db:"-"`
}
