// Package dashboard serves the Form D filings page, its JSON API and the
// optional chat panel.
package dashboard

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"formdwatch/internal/chat"
	"formdwatch/internal/config"
	"formdwatch/internal/logger"
	"formdwatch/internal/metrics"
	"formdwatch/internal/models"
	"formdwatch/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// FilingFetcher runs one fetch for a date range.
type FilingFetcher interface {
	FetchFilings(ctx context.Context, r models.DateRange) (*models.FilingResult, error)
}

// Server wires the routes to the fetcher, the session store and the assistant.
type Server struct {
	fetcher   FilingFetcher
	store     *session.Store
	assistant *chat.Assistant
	binder    *formBinder
	limiter   *limiter.Limiter
	page      *template.Template
	logger    *logger.Logger
	today     func() models.DateRange
	cfg       config.Config
}

// NewServer creates a dashboard. assistant may be nil, which hides the chat panel.
func NewServer(cfg config.Config, fetcher FilingFetcher, store *session.Store, assistant *chat.Assistant, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Discard()
	}

	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	var lim *limiter.Limiter

	if cfg.Server.FetchRateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(cfg.Server.FetchRateLimit)
		if err != nil {
			return nil, err
		}

		lim = limiter.New(memory.NewStore(), rate)
	}

	return &Server{
		limiter:   lim,
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		assistant: assistant,
		binder:    newFormBinder(),
		page:      page,
		logger:    log.With("component", "dashboard"),
		today:     models.Today,
	}, nil
}

// Handler returns the full route tree, gzip-compressed.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", s.route("index", s.withSession(s.handleIndex))).Methods(http.MethodGet)
	r.Handle("/filings", s.route("filings", s.withSession(s.handleFetch))).Methods(http.MethodPost)
	apiMethods := []string{http.MethodGet}
	if len(s.cfg.Server.CORSOrigins) > 0 {
		apiMethods = append(apiMethods, http.MethodOptions)
	}

	r.Handle("/api/filings", s.route("api_filings", s.apiMiddleware(http.HandlerFunc(s.handleAPIFilings)))).
		Methods(apiMethods...)
	r.Handle("/healthz", s.route("healthz", http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)

	if s.chatEnabled() {
		r.Handle("/chat", s.route("chat", s.withSession(s.handleChat))).Methods(http.MethodPost)
		r.Handle("/chat/reset", s.route("chat_reset", s.withSession(s.handleChatReset))).Methods(http.MethodPost)
	}

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, metrics.Handler()).Methods(http.MethodGet)
	}

	return gziphandler.GzipHandler(r)
}

// NewHTTPServer builds an http.Server for the configured address.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		ErrorLog:          s.logger.StdLogger(slog.LevelWarn),
	}
}

// apiMiddleware adds CORS, when origins are configured, and the fetch rate limit.
func (s *Server) apiMiddleware(h http.Handler) http.Handler {
	if s.limiter != nil {
		h = limitermw.NewMiddleware(s.limiter,
			limitermw.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, apiError{Error: MsgRateLimited, Kind: KindRateLimited})
			}),
		).Handler(h)
	}

	if len(s.cfg.Server.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet},
		}).Handler(h)
	}

	return h
}

// allowFetch consumes one unit of the caller's fetch budget.
func (s *Server) allowFetch(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}

	lctx, err := s.limiter.Get(r.Context(), s.limiter.GetIPKey(r))
	if err != nil {
		s.logger.Warn("rate limiter failed", "error", err)
		return true
	}

	return !lctx.Reached
}

func (s *Server) chatEnabled() bool {
	return s.cfg.Chat.Enabled && s.assistant != nil
}

func (s *Server) route(name string, h http.Handler) http.Handler {
	return metrics.Instrument(name, h)
}

// withSession resolves the visitor's session from the cookie, creating one
// when it is missing or expired. The cookie is reissued on every request so
// its lifetime slides with the server-side idle timeout.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *session.State)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(s.cfg.Server.CookieName); err == nil {
			id = c.Value
		}

		st, created := s.store.GetOrCreate(id)
		if created {
			s.logger.Debug("session created", "session", st.ID())
		}

		http.SetCookie(w, &http.Cookie{
			Name:     s.cfg.Server.CookieName,
			Value:    st.ID(),
			Path:     "/",
			MaxAge:   int(s.cfg.Server.SessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		next(w, r, st)
	})
}
