// Package fiber mounts the warden JSON API on a gofiber/fiber/v3 app.
package fiber

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/metrics"
	"github.com/lborres/warden/services"
)

const defaultServiceName = "warden"

type Adapter struct {
	app     *fiber.App
	logger  *slog.Logger
	metrics *metrics.Metrics
	service string
}

var _ core.HTTPAdapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithLogger sets the logger used for unexpected handler errors.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records request and auth outcome metrics and serves them on
// GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithServiceName sets the name reported by GET /health.
func WithServiceName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.service = name
		}
	}
}

func New(app *fiber.App, opts ...Option) *Adapter {
	a := &Adapter{
		app:     app,
		logger:  slog.Default(),
		service: defaultServiceName,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes binds every endpoint in h to its handler under h.BasePath,
// plus the health and metrics routes at the root.
func (a *Adapter) RegisterRoutes(h core.Handlers) error {
	handlers := a.operations(h)

	// Resolve every endpoint before touching the router so a bad endpoint
	// list leaves the app unchanged.
	bound := make([]fiber.Handler, len(h.Endpoints))
	for i, ep := range h.Endpoints {
		handler, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}
		if ep.Protected && h.Verifier == nil {
			return fmt.Errorf("protected endpoint %s %s needs an access token verifier", ep.Method, ep.Path)
		}
		bound[i] = handler
	}

	if a.metrics != nil {
		a.app.Use(a.recordRequests)
		a.app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))
	}
	a.app.Get("/health", a.health)

	api := a.app.Group(h.BasePath)
	for i, ep := range h.Endpoints {
		methods := []string{ep.Method}
		if ep.Protected {
			api.Add(methods, ep.Path, a.requireAuth(h.Verifier), bound[i])
		} else {
			api.Add(methods, ep.Path, bound[i])
		}
	}

	return nil
}

func (a *Adapter) operations(h core.Handlers) map[string]fiber.Handler {
	return map[string]fiber.Handler{
		services.OpRegister:       a.register(h.Auth),
		services.OpLogin:          a.login(h.Auth),
		services.OpRefreshToken:   a.refresh(h.Auth),
		services.OpLogout:         a.logout(h.Auth),
		services.OpChangePassword: a.changePassword(h.Auth),
		services.OpGetCurrentUser: a.getCurrentUser(h.Users),
		services.OpUpdateProfile:  a.updateProfile(h.Users),
		services.OpGetUserByID:    a.getUserByID(h.Users),
		services.OpSearchUsers:    a.searchUsers(h.Users),
	}
}

func (a *Adapter) health(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"service": a.service,
	})
}
