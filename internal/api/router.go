package api

import (
	"net/http"
	"time"

	"tasklane/internal/api/handler"
	"tasklane/internal/api/middleware"
	"tasklane/internal/app/service"
	"tasklane/internal/common/security"
	"tasklane/internal/domain/repository"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	tokens *security.TokenIssuer,
	userRepo repository.UserRepository,
	authService *service.AuthService,
	taskService *service.TaskService,
	transferService *service.TransferService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(public chi.Router) {
			authHandler.RegisterRoutes(public)
		})

		// Task routes: Verifier parses "Authorization: Bearer T" into the
		// context, Authenticator turns it into a resolved user or a 401.
		taskHandler := handler.NewTaskHandler(taskService, transferService)
		v1.Route("/tasks", func(tasks chi.Router) {
			tasks.Use(jwtauth.Verifier(tokens.JWTAuth()))
			tasks.Use(middleware.Authenticator(userRepo))
			taskHandler.RegisterRoutes(tasks)
		})
	})

	return r
}
