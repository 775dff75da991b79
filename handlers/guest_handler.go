package handlers

import (
	"net/http"

	"github.com/playerhoods/match-system/middleware"
	"github.com/playerhoods/match-system/services"
)

type GuestHandler struct {
	guestService services.GuestService
}

func NewGuestHandler(guestService services.GuestService) *GuestHandler {
	return &GuestHandler{guestService: guestService}
}

// AddGuest godoc
// @Summary Добавить гостя в матч
// @Tags guests
// @Description Доступно организатору и подтверждённым участникам. Гость дедуплицируется по email.
// @Security BearerAuth
// @Router /matches/{matchID}/guests [post]
func (h *GuestHandler) AddGuest(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.AddGuestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participation, err := h.guestService.AddGuest(r.Context(), matchID, input, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"guest_participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RemoveGuest godoc
// @Summary Убрать гостя из матча
// @Tags guests
// @Description Доступно организатору и пригласившему участнику.
// @Security BearerAuth
// @Router /guests/{participationID} [delete]
func (h *GuestHandler) RemoveGuest(w http.ResponseWriter, r *http.Request) {
	participationID, err := getIDFromURL(r, "participationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.guestService.RemoveGuest(r.Context(), participationID, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
