package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы
	ErrMatchNotFound       = errors.New("match not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrGuestNotFound       = errors.New("guest participation not found")
	ErrUserNotFound        = errors.New("user not found")

	// Бизнес-правила и переходы состояний
	ErrMatchNotActive         = errors.New("match is cancelled and no longer accepts changes")
	ErrAlreadyParticipating   = errors.New("user already participates in this match")
	ErrGuestAlreadyInMatch    = errors.New("guest is already added to this match")
	ErrInvalidStateTransition = errors.New("requested participant state transition is not allowed")

	// Ошибки валидации
	ErrMatchInvalidGameType      = errors.New("invalid game type")
	ErrMatchInvalidDoublesMode   = errors.New("doubles mode is only valid for doubles matches")
	ErrMatchInvalidRequiredCount = errors.New("match required count must be at least 2")
	ErrMatchInvalidCourtCount    = errors.New("match court count must be at least 1")
	ErrGuestEmailInvalid         = errors.New("guest email is missing or invalid")

	// Ошибки авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Ошибки аутентификации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
)
