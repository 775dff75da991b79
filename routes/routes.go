package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"

	"github.com/playerhoods/match-system/handlers"
	"github.com/playerhoods/match-system/middleware"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	Match       *handlers.MatchHandler
	Participant *handlers.ParticipantHandler
	Guest       *handlers.GuestHandler
	WebSocket   *handlers.WebSocketHandler
}

func SetupRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Post("/auth/register", h.Auth.Register)
	router.Post("/auth/login", h.Auth.Login)

	// Live-канал матча (подписка на события комнаты).
	router.Get("/ws/matches/{matchID}", h.WebSocket.ServeWs)

	router.Route("/matches", func(r chi.Router) {
		// Публичные маршруты для просмотра матчей
		r.Get("/", h.Match.List)
		r.Get("/{matchID}", h.Match.Get)

		// Защищённые маршруты
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate([]byte(jwtSecret)))

			r.Post("/", h.Match.Create)
			r.Patch("/{matchID}", h.Match.Update)
			r.Delete("/{matchID}", h.Match.Cancel)

			r.Post("/{matchID}/signup", h.Participant.Signup)
			r.Delete("/{matchID}/signup", h.Participant.Withdraw)

			r.Post("/{matchID}/guests", h.Guest.AddGuest)
		})
	})

	// Журнал переходов публичен, как и детали матча.
	router.Get("/participants/{participantID}/history", h.Participant.History)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate([]byte(jwtSecret)))

		r.Patch("/participants/{participantID}/state", h.Participant.UpdateState)
		r.Delete("/guests/{participationID}", h.Guest.RemoveGuest)
	})

	return router
}
