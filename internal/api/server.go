package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/roundrobin"
	"github.com/TimurManjosov/hostmatch/internal/routing"
	"github.com/TimurManjosov/hostmatch/internal/store"
	"github.com/TimurManjosov/hostmatch/internal/telemetry"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	requestTimeout     = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Store          store.Store
	Matcher        *matching.Matcher
	Logger         zerolog.Logger
	MatchTimeout   time.Duration // deadline per evaluation
	RateLimitPerIP int           // requests per minute, 0 disables limiting
	TieBreakSeed   string        // default seed for lead host selection
}

type Server struct {
	store        store.Store
	matcher      *matching.Matcher
	selector     *roundrobin.Selector
	dispatcher   *routing.Dispatcher
	validate     *validator.Validate
	log          zerolog.Logger
	matchTimeout time.Duration
	rateLimit    int
}

func NewServer(opts Options) *Server {
	timeout := opts.MatchTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Server{
		store:        opts.Store,
		matcher:      opts.Matcher,
		selector:     roundrobin.NewSelector(opts.Matcher, opts.TieBreakSeed, opts.Logger),
		dispatcher:   routing.NewDispatcher(opts.Matcher, opts.Logger),
		validate:     newValidator(),
		log:          opts.Logger,
		matchTimeout: timeout,
		rateLimit:    opts.RateLimitPerIP,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Get("/teams/{teamID}/attributes", s.handleListAttributes)
		r.Post("/match", s.handleMatch)
		r.Post("/queries/validate", s.handleValidateQuery)
		r.Post("/hosts/filter", s.handleFilterHosts)
		r.Post("/forms/route", s.handleRouteForm)
	})

	return r
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check: store unreachable")
			ServiceUnavailableError(w, r, "store unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// evalContext bounds one evaluation by the configured match timeout.
func (s *Server) evalContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.matchTimeout)
}
