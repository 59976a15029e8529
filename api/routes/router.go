package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sigmalabbd/labstore-backend/api/controllers"
	"github.com/sigmalabbd/labstore-backend/api/middleware"
	"github.com/sigmalabbd/labstore-backend/internal/admins"
	cartsvc "github.com/sigmalabbd/labstore-backend/internal/cart"
	"github.com/sigmalabbd/labstore-backend/internal/catalog"
	comparesvc "github.com/sigmalabbd/labstore-backend/internal/compare"
	draftsvc "github.com/sigmalabbd/labstore-backend/internal/drafts"
	ordersvc "github.com/sigmalabbd/labstore-backend/internal/orders"
	prefsvc "github.com/sigmalabbd/labstore-backend/internal/preferences"
	quotesvc "github.com/sigmalabbd/labstore-backend/internal/quotes"
	recentsvc "github.com/sigmalabbd/labstore-backend/internal/recent"
	"github.com/sigmalabbd/labstore-backend/internal/rbac"
	"github.com/sigmalabbd/labstore-backend/pkg/auth/session"
	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/db"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	KV       kv.Pinger
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer

	Cart        cartsvc.Service
	Compare     comparesvc.Service
	Recent      recentsvc.Service
	Drafts      draftsvc.Service
	Preferences prefsvc.Service
	Catalog     catalog.Service
	Orders      ordersvc.Service
	Quotes      quotesvc.Service
	Admins      admins.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.KV))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, logg))

		r.Post("/session", controllers.SessionIssue(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Cart, logg))
			r.Post("/", controllers.CartAddItem(d.Cart, d.Catalog, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateQuantity(d.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(d.Cart, logg))
			r.Delete("/", controllers.CartClear(d.Cart, logg))
		})

		r.Route("/compare", func(r chi.Router) {
			r.Get("/", controllers.CompareFetch(d.Compare, logg))
			r.Post("/", controllers.CompareAdd(d.Compare, d.Catalog, logg))
			r.Post("/toggle", controllers.CompareToggle(d.Compare, d.Catalog, logg))
			r.Get("/{productId}", controllers.CompareContains(d.Compare, logg))
			r.Delete("/{productId}", controllers.CompareRemove(d.Compare, logg))
			r.Delete("/", controllers.CompareClear(d.Compare, logg))
			r.Post("/modal/open", controllers.CompareModalOpen(d.Compare, logg))
			r.Post("/modal/close", controllers.CompareModalClose(d.Compare, logg))
		})

		r.Route("/recently-viewed", func(r chi.Router) {
			r.Get("/", controllers.RecentlyViewedList(d.Recent, logg))
			r.Post("/", controllers.RecentlyViewedAdd(d.Recent, d.Catalog, logg))
			r.Delete("/", controllers.RecentlyViewedClear(d.Recent, logg))
		})

		r.Route("/preferences/grid-density", func(r chi.Router) {
			r.Get("/", controllers.DensityFetch(d.Preferences, logg))
			r.Put("/", controllers.DensityUpdate(d.Preferences, logg))
			r.Post("/toggle", controllers.DensityToggle(d.Preferences, logg))
		})
		r.Post("/viewport", controllers.Viewport(d.Preferences, logg))

		r.Get("/categories", controllers.CategoriesList(d.Catalog, logg))
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(d.Catalog, logg))
			r.Get("/{slug}", controllers.ProductBySlug(d.Catalog, logg))
		})

		r.Post("/checkout", controllers.Checkout(d.Orders, logg))
		r.Post("/quotes", controllers.QuoteCreate(d.Quotes, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", controllers.AdminLogin(d.Admins, logg))
			r.Post("/refresh", controllers.AdminRefresh(d.Admins, logg))
			r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).
				Post("/logout", controllers.AdminLogout(d.Admins, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))

			r.With(middleware.RequirePermission(rbac.PermAdminsManage, logg)).
				Post("/admins", controllers.AdminCreate(d.Admins, logg))

			r.Route("/products", func(r chi.Router) {
				r.With(middleware.RequirePermission(rbac.PermProductsWrite, logg)).
					Post("/", controllers.AdminProductCreate(d.Catalog, logg))
				r.With(middleware.RequirePermission(rbac.PermProductsWrite, logg)).
					Put("/{productId}", controllers.AdminProductUpdate(d.Catalog, logg))
				r.With(middleware.RequirePermission(rbac.PermProductsWrite, logg)).
					Delete("/{productId}", controllers.AdminProductDelete(d.Catalog, logg))

				r.Route("/{productId}/draft", func(r chi.Router) {
					r.Use(middleware.RequirePermission(rbac.PermDraftsWrite, logg))
					r.Get("/", controllers.DraftFetch(d.Drafts, logg))
					r.Get("/status", controllers.DraftStatus(d.Drafts, logg))
					r.Put("/", controllers.DraftSave(d.Drafts, logg))
					r.Post("/autosave", controllers.DraftAutoSave(d.Drafts, logg))
					r.Delete("/", controllers.DraftDiscard(d.Drafts, logg))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.RequirePermission(rbac.PermOrdersRead, logg)).
					Get("/", controllers.AdminOrdersList(d.Orders, logg))
				r.With(middleware.RequirePermission(rbac.PermOrdersRead, logg)).
					Get("/{orderId}", controllers.AdminOrderDetail(d.Orders, logg))
				r.With(middleware.RequirePermission(rbac.PermOrdersWrite, logg)).
					Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(d.Orders, logg))
			})

			r.Route("/quotes", func(r chi.Router) {
				r.With(middleware.RequirePermission(rbac.PermQuotesRead, logg)).
					Get("/", controllers.AdminQuotesList(d.Quotes, logg))
				r.With(middleware.RequirePermission(rbac.PermQuotesRead, logg)).
					Get("/{quoteId}", controllers.AdminQuoteDetail(d.Quotes, logg))
				r.With(middleware.RequirePermission(rbac.PermQuotesWrite, logg)).
					Patch("/{quoteId}/status", controllers.AdminQuoteUpdateStatus(d.Quotes, logg))
			})
		})
	})

	return r
}
