package handlers

import (
	"errors"
	"net/http"

	"github.com/playerhoods/match-system/middleware"
	"github.com/playerhoods/match-system/models"
	"github.com/playerhoods/match-system/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(participantService services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService}
}

// Signup godoc
// @Summary Записаться на матч (состояние pending)
// @Tags participants
// @Security BearerAuth
// @Router /matches/{matchID}/signup [post]
func (h *ParticipantHandler) Signup(w http.ResponseWriter, r *http.Request) {
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

	participant, err := h.participantService.Signup(r.Context(), matchID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Withdraw godoc
// @Summary Сняться с матча (переход в removed)
// @Tags participants
// @Security BearerAuth
// @Router /matches/{matchID}/signup [delete]
func (h *ParticipantHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
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

	participant, err := h.participantService.Withdraw(r.Context(), matchID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// History godoc
// @Summary Журнал переходов участника (когда записался, когда подтверждён)
// @Tags participants
// @Produce json
// @Param participantID path int true "Participant ID"
// @Router /participants/{participantID}/history [get]
func (h *ParticipantHandler) History(w http.ResponseWriter, r *http.Request) {
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	history, err := h.participantService.GetParticipantHistory(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateState godoc
// @Summary Перевести участника в новое состояние (только организатор)
// @Tags participants
// @Description Допустимые целевые состояния: confirmed, waitlisted, removed.
// @Security BearerAuth
// @Router /participants/{participantID}/state [patch]
func (h *ParticipantHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		State models.ParticipantState `json:"state"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.State == "" {
		badRequestResponse(w, r, errors.New("state is required"))
		return
	}

	participant, err := h.participantService.UpdateParticipantState(r.Context(), participantID, input.State, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
