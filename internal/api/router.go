package api

import (
	"net/http"
	"time"

	"innovate_api/internal/api/docs"
	"innovate_api/internal/api/handler"
	"innovate_api/internal/api/middleware"
	"innovate_api/internal/app/service"
	"innovate_api/internal/common/security"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/platform/cache"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Dependencies struct {
	AuthService        *service.AuthService
	UserService        *service.UserService
	PhaseService       *service.PhaseService
	TeamService        *service.TeamService
	SubmissionService  *service.SubmissionService
	ScoringService     *service.ScoringService
	LeaderboardService *service.LeaderboardService
	TicketService      *service.TicketService
	AnalyticsService   *service.AnalyticsService

	Denylist           cache.TokenDenylist
	AuthLimiter        *middleware.IPRateLimiter
	CORSAllowedOrigins []string
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	origins := deps.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Verifier only parses the bearer token; Authenticator decides whether it is required.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Write(docs.OpenAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	auth := middleware.NewAuth(deps.Denylist)
	authHandler := handler.NewAuthHandler(deps.AuthService)
	teamHandler := handler.NewTeamHandler(deps.TeamService)
	submissionHandler := handler.NewSubmissionHandler(deps.SubmissionService)
	judgeHandler := handler.NewJudgeHandler(deps.ScoringService, deps.SubmissionService)
	ticketHandler := handler.NewTicketHandler(deps.TicketService)
	publicHandler := handler.NewPublicHandler(deps.PhaseService, deps.LeaderboardService)
	adminHandler := handler.NewAdminHandler(handler.AdminServices{
		Users:     deps.UserService,
		Teams:     deps.TeamService,
		Phase:     deps.PhaseService,
		Tickets:   deps.TicketService,
		Scoring:   deps.ScoringService,
		Analytics: deps.AnalyticsService,
	})

	// Public
	publicHandler.RegisterRoutes(r)
	ticketHandler.RegisterPublicRoutes(r)

	r.Route("/auth", func(ar chi.Router) {
		ar.Group(func(public chi.Router) {
			if deps.AuthLimiter != nil {
				public.Use(deps.AuthLimiter.Middleware)
			}
			authHandler.RegisterPublicRoutes(public)
		})
		ar.Group(func(private chi.Router) {
			private.Use(auth.Authenticator)
			authHandler.RegisterRoutes(private)
		})
	})

	// Authenticated
	r.Group(func(p chi.Router) {
		p.Use(auth.Authenticator)

		teamHandler.RegisterRoutes(p)
		submissionHandler.RegisterRoutes(p)
		ticketHandler.RegisterRoutes(p)

		p.Group(func(judge chi.Router) {
			judge.Use(middleware.RequireRole(model.RoleJudge, model.RoleAdmin))
			judgeHandler.RegisterRoutes(judge)
		})

		p.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireRole(model.RoleAdmin))
			adminHandler.RegisterRoutes(admin)
		})
	})

	return r
}
