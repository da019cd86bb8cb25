package web

import (
	"context"
	"errors"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/skybi/inbox/internal/api/schema"
	"github.com/skybi/inbox/internal/api/web/session"
	"github.com/skybi/inbox/internal/config"
	"github.com/skybi/inbox/internal/mail"
	"github.com/skybi/inbox/internal/metrics"
	"golang.org/x/oauth2"
	"net/http"
	"time"
)

var shutdownTimeout = 5 * time.Second

// Service represents the inbox web service
type Service struct {
	server *http.Server
	router chi.Router

	Config   *config.Config
	Sessions session.Storage
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	oauth2Config    *oauth2.Config
	idTokenVerifier *oidc.IDTokenVerifier
	mail            *mail.Client

	writer *schema.Writer
}

// Initialize discovers the identity provider and builds the HTTP router
func (service *Service) Initialize(ctx context.Context) error {
	if service.Sessions == nil {
		return errors.New("no session storage configured")
	}
	if service.Metrics == nil || service.Gatherer == nil {
		return errors.New("no metrics configured")
	}

	// Create the HTTP schema writer
	service.writer = &schema.Writer{
		InternalErrorHook: func(err error) {
			log.Error().Err(err).Msg("the web service experienced an unexpected error")
		},
	}

	// Create the OIDC provider & ID token verifier
	provider, err := oidc.NewProvider(ctx, service.Config.ProviderURL())
	if err != nil {
		return err
	}
	service.idTokenVerifier = provider.Verifier(&oidc.Config{
		ClientID: service.Config.ClientID,
	})

	// Create the OAuth2 config
	service.oauth2Config = &oauth2.Config{
		ClientID:     service.Config.ClientID,
		ClientSecret: service.Config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  service.Config.RedirectURL(),
		Scopes:       append([]string{oidc.ScopeOpenID}, service.Config.Scopes...),
	}

	service.mail = mail.NewClient(service.Config.MessagesEndpoint)

	service.router = service.buildRouter()
	service.server = &http.Server{
		Addr:              service.Config.ListenAddress,
		Handler:           service.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (service *Service) buildRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(hlog.NewHandler(log.Logger))
	router.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	router.Use(hlog.AccessHandler(func(request *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(request).Debug().
			Str("method", request.Method).
			Str("path", request.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("handled request")
	}))
	router.Use(middleware.RedirectSlashes)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{service.Config.CORSOrigin()},
		AllowedMethods:   []string{http.MethodHead, http.MethodGet},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	router.NotFound(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusNotFound, schema.ErrNotFound)
	})
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusMethodNotAllowed, schema.ErrMethodNotAllowed)
	})

	// Register the login flow endpoints
	router.Get("/", service.EndpointHome)
	router.Get("/login", service.EndpointLogin)
	router.Get("/auth", service.EndpointAuthCallback)
	router.Get("/logout", service.EndpointLogout)

	// Register the protected endpoints
	router.With(service.MiddlewareVerifySession).Get("/emails", service.EndpointEmails)

	router.Handle("/metrics", promhttp.HandlerFor(service.Gatherer, promhttp.HandlerOpts{}))
	return router
}

// Handler returns the HTTP handler serving all endpoints; Initialize has to be called first
func (service *Service) Handler() http.Handler {
	return service.router
}

// Startup starts up the web service and blocks until it is shut down; Initialize has to be called first
func (service *Service) Startup() error {
	return service.server.ListenAndServe()
}

// Shutdown gracefully shuts down the web service
func (service *Service) Shutdown() {
	if service.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := service.server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("could not gracefully shut down the web service")
		service.server.Close()
	}
}
