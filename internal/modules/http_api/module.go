package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/card"
	"github.com/mikey-austin/kodi_playlists/internal/metrics"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// Defaults for the HTTP module.
const (
	DefaultListen    = "127.0.0.1:8089"
	DefaultRateLimit = 2.0
	DefaultBurst     = 5
	requestTimeout   = 15 * time.Second
)

// Config configures the HTTP API.
type Config struct {
	Listen string
	// RateLimit is the sustained rate of mutating requests per client IP,
	// in requests per second.
	RateLimit float64
	Burst     int
}

// Module exposes cards over HTTP.
type Module struct {
	log     *zap.Logger
	config  Config
	cards   map[string]*card.Card
	limiter *ipLimiter
	handler http.Handler
}

// NewModule builds the router for cards.
func NewModule(log *zap.Logger, cfg Config, cards []*card.Card) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	byID := make(map[string]*card.Card, len(cards))
	for _, c := range cards {
		if _, dup := byID[c.ID()]; dup {
			return nil, errors.New("duplicate card id " + c.ID())
		}
		byID[c.ID()] = c
	}

	m := &Module{
		log:     log,
		config:  cfg,
		cards:   byID,
		limiter: newIPLimiter(cfg.RateLimit, cfg.Burst),
	}
	m.handler = m.routes()
	return m, nil
}

// Handler returns the HTTP handler.
func (m *Module) Handler() http.Handler {
	return m.handler
}

// Run serves HTTP until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           m.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go m.limiter.runCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		m.log.Info("http api listening", zap.String("listen", m.config.Listen))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Module) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(m.countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/cards", func(r chi.Router) {
		r.Get("/", m.listCards)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/entries", m.entries)
			r.Get("/entries/{index}/request", m.preview)
			r.Get("/debug", m.debug)
			r.Get("/state", m.state)
			r.Group(func(r chi.Router) {
				r.Use(m.limiter.middleware(m.log))
				r.Post("/entries/{index}/play", m.play)
				r.Post("/play", m.playByName)
				r.Post("/system/{action}", m.system)
			})
		})
	})
	return r
}

func (m *Module) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
	})
}

// cardSummary is one element of GET /api/cards.
type cardSummary struct {
	ID    string       `json:"id"`
	State kp.CardState `json:"state"`
}

func (m *Module) listCards(w http.ResponseWriter, _ *http.Request) {
	ids := make([]string, 0, len(m.cards))
	for id := range m.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]cardSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, cardSummary{ID: id, State: card.StateView(m.cards[id])})
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *Module) entries(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, kp.EntriesReply{
		Title:   c.Title(),
		Hint:    c.Hint(),
		Entries: card.EntryViews(c.Entries()),
	})
}

func (m *Module) preview(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	call, err := c.Preview(index)
	if err != nil {
		writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card.CallView(call))
}

func (m *Module) play(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	err := c.Play(r.Context(), index)
	metrics.CardPlaysTotal.WithLabelValues(c.ID(), metrics.StatusOf(err)).Inc()
	if err != nil {
		writeCardError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (m *Module) playByName(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	var body kp.PlayBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, kp.CodeInvalid, "invalid body")
		return
	}
	var err error
	switch {
	case body.Index != nil:
		err = c.Play(r.Context(), *body.Index)
	case strings.TrimSpace(body.Name) != "":
		err = c.PlayByName(r.Context(), body.Name)
	default:
		writeError(w, http.StatusBadRequest, kp.CodeInvalid, "index or name required")
		return
	}
	metrics.CardPlaysTotal.WithLabelValues(c.ID(), metrics.StatusOf(err)).Inc()
	if err != nil {
		writeCardError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (m *Module) system(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	if err := c.System(r.Context(), chi.URLParam(r, "action")); err != nil {
		writeCardError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (m *Module) debug(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, kp.DebugReply{
		Enabled: c.Config().DebugEnabled(),
		Records: card.DebugViews(c.DebugHistory()),
	})
}

func (m *Module) state(w http.ResponseWriter, r *http.Request) {
	c, ok := m.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, card.StateView(c))
}

func (m *Module) lookup(w http.ResponseWriter, r *http.Request) (*card.Card, bool) {
	id := chi.URLParam(r, "id")
	c, ok := m.cards[id]
	if !ok {
		writeError(w, http.StatusNotFound, kp.CodeNotFound, "unknown card "+id)
	}
	return c, ok
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, kp.CodeInvalid, "index must be an integer")
		return 0, false
	}
	return index, true
}

func writeCardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, card.ErrNoEntry):
		writeError(w, http.StatusNotFound, kp.CodeNotFound, err.Error())
	case errors.Is(err, card.ErrBusy):
		writeError(w, http.StatusConflict, kp.CodeConflict, err.Error())
	case errors.Is(err, card.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, kp.CodeInvalid, err.Error())
	case errors.Is(err, card.ErrIncomplete):
		writeError(w, http.StatusServiceUnavailable, kp.CodeUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, kp.CodeUnavailable, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]kp.ReplyError{"error": {Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
