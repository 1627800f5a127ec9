package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dalgayunus/iTicket/api/controllers"
	"github.com/dalgayunus/iTicket/api/middleware"
	"github.com/dalgayunus/iTicket/internal/auth"
	"github.com/dalgayunus/iTicket/internal/categories"
	"github.com/dalgayunus/iTicket/internal/events"
	"github.com/dalgayunus/iTicket/internal/orders"
	"github.com/dalgayunus/iTicket/internal/promos"
	"github.com/dalgayunus/iTicket/internal/reviews"
	"github.com/dalgayunus/iTicket/internal/tickets"
	"github.com/dalgayunus/iTicket/internal/users"
	"github.com/dalgayunus/iTicket/internal/wallet"
	"github.com/dalgayunus/iTicket/pkg/auth/session"
	"github.com/dalgayunus/iTicket/pkg/config"
	"github.com/dalgayunus/iTicket/pkg/db"
	"github.com/dalgayunus/iTicket/pkg/logger"
	"github.com/dalgayunus/iTicket/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              *db.Client
	Redis           *redis.Client
	SessionChecker  session.AccessSessionChecker
	AuthService     auth.Service
	RegisterService auth.RegisterService
	UserRepo        *users.Repository
	CategoryService categories.Service
	EventService    events.Service
	TicketService   tickets.Service
	OrderService    orders.Service
	PromoService    promos.Service
	WalletService   wallet.Service
	ReviewService   reviews.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		// Catalog browsing needs no account.
		r.Route("/v1", func(r chi.Router) {
			r.Get("/categories", controllers.CategoryList(deps.CategoryService, logg))
			r.Get("/categories/{categoryId}", controllers.CategoryGet(deps.CategoryService, logg))
			r.Get("/events", controllers.EventList(deps.EventService, logg))
			r.Get("/events/{eventId}", controllers.EventGet(deps.EventService, logg))
			r.Get("/events/{eventId}/ticket-types", controllers.TierList(deps.TicketService, logg))
			r.Get("/ticket-types/discounted", controllers.TierListDiscounted(deps.TicketService, logg))
			r.Get("/events/{eventId}/reviews", controllers.ReviewList(deps.ReviewService, logg))
			r.Get("/promos/check", controllers.PromoCheck(deps.PromoService, logg))
		})
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.RegisterService, deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthService, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Get("/v1/me", controllers.UserProfile(deps.UserRepo, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.CapPlaceOrders, logg))

			r.Route("/v1/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCreate(deps.OrderService, logg))
				r.Get("/", controllers.OrderList(deps.OrderService, logg))
				r.Get("/{orderId}", controllers.OrderGet(deps.OrderService, logg))
				r.Post("/{orderId}/promo", controllers.OrderApplyPromo(deps.OrderService, logg))
				r.Post("/{orderId}/confirm", controllers.OrderConfirm(deps.OrderService, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.OrderService, logg))
			})

			r.Route("/v1/wallet", func(r chi.Router) {
				r.Get("/", controllers.WalletBalance(deps.WalletService, logg))
				r.Post("/deposit", controllers.WalletDeposit(deps.WalletService, deps.DB, logg))
			})

			r.Post("/v1/events/{eventId}/reviews", controllers.ReviewSubmit(deps.ReviewService, logg))
			r.Delete("/v1/reviews/{reviewId}", controllers.ReviewDelete(deps.ReviewService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.CapManageEvents, logg))

			r.Route("/v1/organizer/events", func(r chi.Router) {
				r.Post("/", controllers.EventCreate(deps.EventService, logg))
				r.Get("/", controllers.EventListMine(deps.EventService, logg))
				r.Patch("/{eventId}", controllers.EventUpdate(deps.EventService, logg))
				r.Delete("/{eventId}", controllers.EventDelete(deps.EventService, logg))
				r.Post("/{eventId}/publish", controllers.EventPublish(deps.EventService, logg))
				r.Post("/{eventId}/unpublish", controllers.EventUnpublish(deps.EventService, logg))
				r.Post("/{eventId}/ticket-types", controllers.TierCreate(deps.TicketService, logg))
			})
			r.Route("/v1/organizer/ticket-types", func(r chi.Router) {
				r.Patch("/{tierId}", controllers.TierUpdate(deps.TicketService, logg))
				r.Delete("/{tierId}", controllers.TierDelete(deps.TicketService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.CapManagePromos, logg))

			r.Route("/v1/promos", func(r chi.Router) {
				r.Post("/", controllers.PromoCreate(deps.PromoService, logg))
				r.Get("/", controllers.PromoList(deps.PromoService, logg))
				r.Get("/{promoId}", controllers.PromoGet(deps.PromoService, logg))
				r.Patch("/{promoId}", controllers.PromoUpdate(deps.PromoService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.CapManageCategories, logg))

			r.Post("/v1/categories", controllers.CategoryCreate(deps.CategoryService, logg))
			r.Delete("/v1/categories/{categoryId}", controllers.CategoryDelete(deps.CategoryService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.CapManageUsers, logg))

			r.Route("/v1/admin", func(r chi.Router) {
				r.Get("/users/{userId}", controllers.UserGet(deps.UserRepo, logg))
				r.Patch("/users/{userId}/role", controllers.UserSetRole(deps.UserRepo, logg))
				r.Patch("/users/{userId}/active", controllers.UserSetActive(deps.UserRepo, logg))
				r.Post("/orders/{orderId}/returned", controllers.OrderMarkReturned(deps.OrderService, logg))
			})
		})
	})

	return r
}
