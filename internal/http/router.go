package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/openboard/server/internal/auth"
	"github.com/openboard/server/internal/http/handlers"
	"github.com/openboard/server/internal/middleware"
	"github.com/openboard/server/internal/repo"
)

// Handlers bundles the endpoint handlers wired in main.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Guest   *handlers.GuestHandler
	Message *handlers.MessageHandler
	Admin   *handlers.AdminHandler
	QQ      *handlers.QQHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, tokens *auth.TokenService, users repo.UserRepo) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/send-otp", h.Auth.HandleSendOTP)
		r.Post("/verify-otp", h.Auth.HandleVerifyOTP)
		r.Post("/login-password", h.Auth.HandleLoginPassword)
		r.Post("/reset-password", h.Auth.HandleResetPassword)
		r.Post("/logout", h.Auth.HandleLogout)
		r.Post("/guest-create", h.Guest.HandleCreate)

		r.Get("/messages", h.Message.HandleList)
		r.Post("/messages", h.Message.HandleCreate)
		r.Put("/messages", h.Message.HandleModerate)

		// Routes requiring a valid session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens))
			r.Get("/me", h.Auth.HandleMe)
			r.Post("/set-password", h.Auth.HandleSetPassword)
			r.Post("/bind-qq", h.QQ.HandleBind)
			r.Post("/unbind-qq", h.QQ.HandleUnbind)
		})

		// Admin routes: role is re-fetched from the users table per request
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens))
			r.Use(middleware.RequireAdmin(users))
			r.Get("/admin/users", h.Admin.HandleListUsers)
			r.Post("/admin/users", h.Admin.HandleUserAction)
		})
	})

	return r
}
