package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/playerhoods/match-system/live"
	"github.com/playerhoods/match-system/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: ограничить список origin-ов перед выходом в прод
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub          *live.Hub
	matchService services.MatchService
}

func NewWebSocketHandler(hub *live.Hub, matchService services.MatchService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, matchService: matchService}
}

// ServeWs подключает клиента к live-комнате матча. Перед апгрейдом
// проверяем, что матч существует, чтобы не плодить пустые комнаты.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.matchService.GetMatchDetails(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for match %d: %v", matchID, err)
		return
	}

	client := &live.Client{
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		MatchID: matchID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
