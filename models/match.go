package models

import "time"

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
type MatchStatus string

const (
	MatchStatusActive    MatchStatus = "active"
	MatchStatusCancelled MatchStatus = "cancelled"
)

type GameType string

const (
	GameTypeSingles  GameType = "singles"
	GameTypeDoubles  GameType = "doubles"
	GameTypePractice GameType = "practice"
)

// DoublesMode имеет смысл только при GameType = doubles.
type DoublesMode string

const (
	DoublesModeMens   DoublesMode = "mens"
	DoublesModeWomens DoublesMode = "womens"
	DoublesModeMixed  DoublesMode = "mixed"
	DoublesModeOpen   DoublesMode = "open"
)

// FinalizedStatus — статус готовности независимого сигнала (время, площадка).
type FinalizedStatus string

const (
	StatusTentative FinalizedStatus = "tentative"
	StatusFinalized FinalizedStatus = "finalized"
)

// Match представляет запланированную игровую сессию.
type Match struct {
	ID              int             `json:"id" db:"id"`
	OrganizerID     int             `json:"organizer_id" db:"organizer_id"`
	Status          MatchStatus     `json:"status" db:"status"`
	GameType        GameType        `json:"game_type" db:"game_type"`
	DoublesMode     *DoublesMode    `json:"doubles_mode,omitempty" db:"doubles_mode"`
	CourtCount      int             `json:"court_count" db:"court_count"`
	RequiredCount   int             `json:"required_count" db:"required_count"`
	TimeStatus      FinalizedStatus `json:"time_status" db:"time_status"`
	VenueStatus     FinalizedStatus `json:"venue_status" db:"venue_status"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty" db:"scheduled_at"`
	DurationMinutes *int            `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Venue           *string         `json:"venue,omitempty" db:"venue"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer *User `json:"organizer,omitempty" db:"-"`
}

// DefaultDurationMinutes возвращает длительность по умолчанию для типа игры.
func DefaultDurationMinutes(gameType GameType) int {
	if gameType == GameTypeSingles {
		return 60
	}
	return 90
}

// FormationSignal — один из независимых сигналов готовности матча.
type FormationSignal string

const (
	SignalTime  FormationSignal = "time"
	SignalVenue FormationSignal = "venue"
)

// FormationStatus — производное состояние готовности. Никогда не
// персистится, пересчитывается по запросу.
type FormationStatus struct {
	ConfirmedCount int               `json:"confirmed_count"`
	GuestCount     int               `json:"guest_count"`
	RequiredCount  int               `json:"required_count"`
	IsFull         bool              `json:"is_full"`
	IsFormed       bool              `json:"is_formed"`
	MissingSignals []FormationSignal `json:"missing_signals,omitempty"`
}
