// Package http is the API delivery layer: routing, payload validation, and
// mapping of service errors onto HTTP responses.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/linkcut/linkcut/internal/entity"
	"github.com/linkcut/linkcut/internal/service"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// Shorten creates a shortened version of the provided original URL,
	// optionally under a caller-supplied custom code.
	Shorten(ctx context.Context, input service.CreateURL) (*entity.URL, error)

	// Resolve retrieves the active URL record for a short code and emits a
	// click event when click is non-nil.
	Resolve(ctx context.Context, shortCode string, click *service.ClickInfo) (*entity.URL, error)

	// Deactivate disables the URL, making it no longer functional.
	Deactivate(ctx context.Context, shortCode string) error

	// Stats retrieves the URL record together with its click count.
	Stats(ctx context.Context, shortCode string) (*entity.URLStats, error)
}

// getValidate initializes a validator instance for incoming request payloads.
// Field names in validation errors follow the json tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleShortenURL(urlSvc, validate))

			r.Route("/{shortCode}", func(r chi.Router) {
				r.Delete("/", handleDeactivateURL(urlSvc))
				r.Get("/stats", handleGetURLStats(urlSvc))
			})
		})
	})

	// The redirect lives at the root so short links stay short.
	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
