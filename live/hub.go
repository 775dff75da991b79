package live

import (
	"encoding/json"
	"log"
	"sync"
)

// Event — сообщение live-канала матча.
type Event struct {
	Type    string      `json:"type"`               // Тип события, например "ROSTER_UPDATED", "MATCH_FORMED"
	Payload interface{} `json:"payload,omitempty"`  // Полезная нагрузка (данные события)
	MatchID int         `json:"match_id,omitempty"` // ID матча (комнаты), к которому относится событие
}

// Hub держит по комнате на матч и рассылает события всем подписчикам
// комнаты. Сервисы дёргают BroadcastToMatch после каждого перехода.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[int]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[int]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.MatchID]; !ok {
				h.rooms[client.MatchID] = make(map[*Client]bool)
			}
			h.rooms[client.MatchID][client] = true
			log.Printf("Client registered to match %d. Total clients in room: %d", client.MatchID, len(h.rooms[client.MatchID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if roomClients, ok := h.rooms[client.MatchID]; ok {
				if _, okClient := roomClients[client]; okClient {
					client.Mu.Lock()
					if !client.IsClosed {
						close(client.Send)
						client.IsClosed = true
					}
					client.Mu.Unlock()
					delete(roomClients, client)
					if len(roomClients) == 0 {
						delete(h.rooms, client.MatchID)
						log.Printf("Room for match %d closed as it's empty.", client.MatchID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToMatch отправляет событие всем клиентам комнаты матча.
// Медленный клиент с переполненным каналом пропускается, рассылка не
// блокируется.
func (h *Hub) BroadcastToMatch(matchID int, eventType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[matchID]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(Event{Type: eventType, Payload: payload, MatchID: matchID})
	if err != nil {
		log.Printf("Error marshalling event for match %d: %v", matchID, err)
		return
	}

	for client := range roomClients {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("Client's send channel full or closed for match %d. Skipping.", matchID)
		}
		client.Mu.Unlock()
	}
}
