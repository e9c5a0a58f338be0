package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/crowdprice-backend/internal/health"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/handler"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
)

const (
	jsonBodyLimitBytes  = 1 << 20
	imageBodyOverhead   = 64 << 10
	defaultImageMaxBody = 5 << 20
)

type Dependencies struct {
	UserHandler       *handler.UserHandler
	ProductHandler    *handler.ProductHandler
	PriceHandler      *handler.PriceHandler
	PostHandler       *handler.PostHandler
	Tokens            middleware.TokenParser
	Users             middleware.UserLookup
	CORSOrigins       []string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	MaxImageBytes     int64
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	requireAuth := middleware.AuthMiddleware(dep.Tokens, dep.Users)
	imageBody := dep.MaxImageBytes
	if imageBody <= 0 {
		imageBody = defaultImageMaxBody
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	jsonBody := middleware.BodyLimit(jsonBodyLimitBytes)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Use(jsonBody)
			r.With(authLimiter).Post("/signup", dep.UserHandler.Signup)
			r.With(authLimiter).Post("/signin", dep.UserHandler.Signin)
			r.With(requireAuth).Get("/me", dep.UserHandler.Me)
		})

		r.Route("/product", func(r chi.Router) {
			r.Get("/", dep.ProductHandler.List)
			r.Get("/search", dep.ProductHandler.Search)
			r.Get("/rankings", dep.PriceHandler.Rankings)
			r.Get("/{id}", dep.ProductHandler.GetByID)
			r.Get("/{id}/fetchprices", dep.PriceHandler.FetchPrices)
			r.Get("/{id}/fetchposts", dep.PostHandler.ListByProduct)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.With(jsonBody).Post("/addproduct", dep.ProductHandler.Create)
				r.With(jsonBody).Post("/{id}/requestprice", dep.PriceHandler.RequestPrice)
				r.With(jsonBody).Post("/{id}/addpost", dep.PostHandler.Create)
				r.With(middleware.BodyLimit(imageBody+imageBodyOverhead)).Post("/{id}/image", dep.ProductHandler.UploadImage)
			})
		})

		r.Route("/post", func(r chi.Router) {
			r.Use(requireAuth, jsonBody)
			r.Post("/{id}/like", dep.PostHandler.Like)
			r.Post("/{id}/dislike", dep.PostHandler.Dislike)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
