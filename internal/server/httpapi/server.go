// Package httpapi exposes the services as a JSON REST API on a chi router.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/graph"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type UserService interface {
	UserResolver
	Get(ctx context.Context, cu models.CurrentUser) (*models.User, error)
	IssueToken(ctx context.Context, cu models.CurrentUser) (string, error)
}

type AccountService interface {
	List(ctx context.Context, cu models.CurrentUser) ([]models.Account, error)
	ListWithIdentities(ctx context.Context, cu models.CurrentUser) ([]models.AccountWithIdentities, error)
	Get(ctx context.Context, cu models.CurrentUser, id string) (*models.AccountWithIdentities, error)
	Create(ctx context.Context, cu models.CurrentUser, in services.CreateAccountInput) (*models.AccountWithIdentities, error)
	Update(ctx context.Context, cu models.CurrentUser, id string, in services.UpdateAccountInput) (*models.Account, error)
	Delete(ctx context.Context, cu models.CurrentUser, id string) error
	DeleteUnlinked(ctx context.Context, cu models.CurrentUser) (int64, error)
	BulkImport(ctx context.Context, cu models.CurrentUser, rows []map[string]any) (*services.BulkResult, error)
}

type IdentityService interface {
	List(ctx context.Context, cu models.CurrentUser) ([]models.Identity, error)
	ListWithAccounts(ctx context.Context, cu models.CurrentUser) ([]models.IdentityWithAccounts, error)
	Get(ctx context.Context, cu models.CurrentUser, id string) (*models.IdentityWithAccounts, error)
	Create(ctx context.Context, cu models.CurrentUser, in services.CreateIdentityInput) (*models.Identity, error)
	Update(ctx context.Context, cu models.CurrentUser, id string, in services.UpdateIdentityInput) (*models.Identity, error)
	Delete(ctx context.Context, cu models.CurrentUser, id string) error
}

type ConnectionService interface {
	Link(ctx context.Context, cu models.CurrentUser, accountID, identityID string) (*models.Connection, error)
	Unlink(ctx context.Context, cu models.CurrentUser, accountID, identityID string) error
}

type GraphService interface {
	Project(ctx context.Context, cu models.CurrentUser) (graph.Graph, graph.Summary, error)
}

type AnalysisService interface {
	Analyze(ctx context.Context, cu models.CurrentUser) (string, error)
}

// Services bundles the business layer the API is built on.
type Services struct {
	Users       UserService
	Accounts    AccountService
	Identities  IdentityService
	Connections ConnectionService
	Graph       GraphService
	Analysis    AnalysisService
}

// Options configures the listener and the cross-cutting middleware.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// RateCounter enables the AI rate limiter when non-nil.
	RateCounter Counter
	RateLimit   int
	RateWindow  time.Duration
}

type Server struct {
	opts    Options
	svc     Services
	logger  logging.Logger
	metrics *Metrics
	handler http.Handler
}

func NewServer(opts Options, svc Services, l logging.Logger) *Server {
	s := &Server{
		opts:    opts,
		svc:     svc,
		logger:  l.With("module", "http_server"),
		metrics: NewMetrics(),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(s.api)
	r.Route("/api", s.api)

	return r
}

func (s *Server) api(r chi.Router) {
	r.Get("/enums/categories", s.listCategories)
	r.Get("/enums/identitytypes", s.listIdentityTypes)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(s.svc.Users, s.logger))

		r.Get("/users/default", s.getUser)
		r.Post("/users/token", s.issueToken)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.listAccounts)
			r.Post("/", s.createAccount)
			r.Get("/map", s.mapAccounts)
			r.Post("/bulk", s.bulkImport)
			r.Delete("/unlinked", s.deleteUnlinked)
			r.Get("/{id}", s.getAccount)
			r.Patch("/{id}", s.updateAccount)
			r.Delete("/{id}", s.deleteAccount)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Get("/", s.listIdentities)
			r.Post("/", s.createIdentity)
			r.Get("/map", s.mapIdentities)
			r.Get("/{id}", s.getIdentity)
			r.Patch("/{id}", s.updateIdentity)
			r.Delete("/{id}", s.deleteIdentity)
		})

		r.Post("/connections/add/{accountId}", s.link)
		r.Post("/connections/remove/{accountId}", s.unlink)

		r.Get("/graph", s.getGraph)

		r.Group(func(r chi.Router) {
			if s.opts.RateCounter != nil {
				r.Use(RateLimit(s.opts.RateCounter, "ai-analyze", s.opts.RateLimit, s.opts.RateWindow, s.metrics, s.logger))
			}
			r.Get("/ai/analyze", s.analyze)
		})
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		errc <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errc
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
