package chi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	apierrors "github.com/nkkko/pushreg/internal/api/errors"
	"github.com/nkkko/pushreg/internal/api/models"
	"github.com/nkkko/pushreg/internal/api/response"
	"github.com/nkkko/pushreg/internal/api/validation"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/logging"
	"github.com/nkkko/pushreg/internal/metrics"
	"github.com/nkkko/pushreg/internal/telemetry"
	"github.com/nkkko/pushreg/pkg/proto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure ChiAPI implements domain.APIEngine
var _ domain.APIEngine = (*ChiAPI)(nil)

// Config contains API configuration
type Config struct {
	// Server address
	Addr string

	// Timeouts
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	// Maximum accepted request body in bytes
	MaxBodySize int64

	// Expose /metrics on the API router
	MetricsEnabled bool
	MetricsPath    string

	// Service name used for request spans
	ServiceName string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxBodySize:    1 << 20,
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
		ServiceName:    "pushreg",
	}
}

// ChiAPI handles HTTP endpoints using Chi router
type ChiAPI struct {
	config   Config
	router   *chi.Mux
	server   *http.Server
	registry Registry
	deleter  OwnerDeleter
	ready    atomic.Bool
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewChiAPI creates a new API instance with Chi router
func NewChiAPI(config Config, registry Registry, deleter OwnerDeleter) *ChiAPI {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaults.MaxBodySize
	}
	if config.MetricsPath == "" {
		config.MetricsPath = defaults.MetricsPath
	}
	if config.ServiceName == "" {
		config.ServiceName = defaults.ServiceName
	}

	a := &ChiAPI{
		config:   config,
		registry: registry,
		deleter:  deleter,
		logger:   log.With().Str("component", "api-chi").Logger(),
		metrics:  metrics.GetMetrics(),
	}
	a.router = a.newRouter()
	return a
}

// Handler returns the HTTP handler serving the API
func (a *ChiAPI) Handler() http.Handler {
	return a.router
}

// newRouter builds the middleware chain and routes
func (a *ChiAPI) newRouter() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.HTTPMiddleware(a.config.ServiceName))
	r.Use(logging.HTTPMiddleware())
	r.Use(a.metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.config.RequestTimeout))
	r.Use(middleware.RequestSize(a.config.MaxBodySize))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	a.registerRoutes(r)
	return r
}

// Start runs the API server until ctx is cancelled or the listener fails
func (a *ChiAPI) Start(ctx context.Context) error {
	a.logger.Info().Str("addr", a.config.Addr).Msg("Starting API server with Chi router")

	listener, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return err
	}

	a.server = &http.Server{
		Handler:      a.router,
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.ready.Store(true)
	a.logger.Info().Str("addr", listener.Addr().String()).Msg("API server started")

	select {
	case err := <-serveErr:
		a.ready.Store(false)
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops the API server
func (a *ChiAPI) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down API server")
	a.ready.Store(false)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (a *ChiAPI) registerRoutes(r chi.Router) {
	// Health checks
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !a.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if a.config.MetricsEnabled {
		r.Handle(a.config.MetricsPath, promhttp.Handler())
	}

	r.Route("/v1/owners/{owner}", func(r chi.Router) {
		r.Delete("/", a.handleDeleteOwner)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", a.handleCreateSubscription)
			r.Get("/", a.handleListSubscriptions)
			r.Delete("/", a.handleRevokeAll)

			r.Patch("/{id}", a.handleUpdateSubscription)
			r.Delete("/{id}", a.handleRevokeSubscription)
		})
	})
}

// pathParam returns the named path segment decoded exactly once. chi routes
// on RawPath when the request carries one, and on the decoded Path otherwise.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

// ownerParam returns the decoded owner path segment
func ownerParam(r *http.Request) (domain.Owner, error) {
	owner, err := pathParam(r, "owner")
	if err != nil || owner == "" {
		return "", apierrors.ValidationError("invalid_owner", "Owner is required")
	}
	return domain.Owner(owner), nil
}

// idParam returns the decoded subscription id path segment
func idParam(r *http.Request) (domain.SubscriptionID, error) {
	id, err := pathParam(r, "id")
	if err != nil || id == "" {
		return "", apierrors.ValidationError("missing_id", "Subscription ID is required")
	}
	return domain.SubscriptionID(id), nil
}

// fail logs unexpected errors and writes the error response
func (a *ChiAPI) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	apiErr := apierrors.FromError(err)
	logger := logging.FromContext(r.Context())
	if apiErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
	} else {
		logger.Debug().Err(err).Msg(msg)
	}
	response.Error(w, r, apiErr)
}

// handleCreateSubscription registers a new push subscription
func (a *ChiAPI) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req models.CreateSubscriptionRequest
	if err := validation.ParseAndValidate(r, &req); err != nil {
		a.fail(w, r, err, "Invalid create subscription request")
		return
	}

	sub, err := a.registry.Save(r.Context(), owner, req.ToDomain())
	if err != nil {
		a.fail(w, r, err, "Failed to create subscription")
		return
	}

	response.JSON(w, r, http.StatusCreated, models.SubscriptionFromDomain(sub))
}

// handleListSubscriptions lists live subscriptions, or fetches the ones named by ?ids=
func (a *ChiAPI) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var subs []domain.Subscription
	if query := r.URL.Query(); query.Has("ids") {
		var raw []string
		for _, value := range query["ids"] {
			raw = append(raw, strings.Split(value, ",")...)
		}
		subs, err = a.registry.Get(r.Context(), owner, models.ParseIDs(raw))
	} else {
		subs, err = a.registry.List(r.Context(), owner)
	}
	if err != nil {
		a.fail(w, r, err, "Failed to read subscriptions")
		return
	}

	response.JSON(w, r, http.StatusOK, models.SubscriptionsFromDomain(subs))
}

// handleUpdateSubscription changes the expiry and/or types of a subscription.
// Expiry is applied first; a rejected expiry leaves the types untouched.
func (a *ChiAPI) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req models.UpdateSubscriptionRequest
	if err := validation.ParseAndValidate(r, &req); err != nil {
		a.fail(w, r, err, "Invalid update subscription request")
		return
	}

	result := proto.UpdateSubscriptionResponse{ID: string(id)}

	if req.Expires != nil {
		expiresAt, err := a.registry.UpdateExpireTime(r.Context(), owner, id, *req.Expires)
		if err != nil {
			a.fail(w, r, err, "Failed to update subscription expiry")
			return
		}
		result.ExpiresAt = &expiresAt
	}

	if req.Types != nil {
		types := req.DomainTypes()
		if err := a.registry.UpdateTypes(r.Context(), owner, id, types); err != nil {
			a.fail(w, r, err, "Failed to update subscription types")
			return
		}
		result.Types = types.Strings()
	}

	response.JSON(w, r, http.StatusOK, result)
}

// handleRevokeSubscription revokes one subscription
func (a *ChiAPI) handleRevokeSubscription(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if err := a.registry.Revoke(r.Context(), owner, id); err != nil {
		a.fail(w, r, err, "Failed to revoke subscription")
		return
	}

	response.JSON(w, r, http.StatusOK, proto.RevokeResponse{Revoked: true})
}

// handleRevokeAll revokes every subscription of the owner
func (a *ChiAPI) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if err := a.registry.RevokeAll(r.Context(), owner); err != nil {
		a.fail(w, r, err, "Failed to revoke subscriptions")
		return
	}

	response.JSON(w, r, http.StatusOK, proto.RevokeResponse{Revoked: true})
}

// handleDeleteOwner runs the account cleanup steps for the owner
func (a *ChiAPI) handleDeleteOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if a.deleter == nil {
		response.Error(w, r, apierrors.NotFoundError("deletion_disabled", "Account deletion is not configured"))
		return
	}

	if err := a.deleter.Run(r.Context(), owner); err != nil {
		a.fail(w, r, err, "Account deletion failed")
		return
	}

	response.JSON(w, r, http.StatusOK, proto.DeleteOwnerResponse{
		Owner: string(owner),
		Steps: a.deleter.Steps(),
	})
}
