// Package admin serves the management console: a live dashboard, the
// Prometheus scrape endpoint, and the blocklist mutation endpoints. It only
// ever reads snapshots of the core's state — nothing here runs on, or can
// block, the request hot path.
package admin

import (
	_ "embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vivianshong/cacheproxy/internal/blocklist"
	"github.com/vivianshong/cacheproxy/internal/cache"
	"github.com/vivianshong/cacheproxy/internal/reqlog"
	"github.com/vivianshong/cacheproxy/internal/stats"
)

//go:embed dashboard.html
var dashboardHTML string

// PageData is everything the dashboard template renders.
type PageData struct {
	Stats      stats.Snapshot
	CacheBytes int64
	CacheKeys  []string
	Blocked    []string
	Logs       []reqlog.Entry
}

// truncate is a helper function for the template.
func truncate(s string, length int) string {
	if len(s) > length {
		return s[:length] + "..."
	}
	return s
}

// Server is the management console. All fields must be set before Router
// is called.
type Server struct {
	Stats     *stats.Stats
	Cache     *cache.Cache
	Blocklist *blocklist.List
	ReqLog    *reqlog.Log
	Metrics   *Metrics
	Logger    zerolog.Logger

	tmpl *template.Template
}

// Router builds the chi router for the console: the dashboard at /, the
// Prometheus endpoint at /metrics, and POST /block and /unblock.
func (s *Server) Router() http.Handler {
	s.tmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
		"truncate": truncate,
	}).Parse(dashboardHTML))

	r := chi.NewRouter()
	r.Get("/", s.handleDashboard)
	r.Method("GET", "/metrics", promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	r.Post("/block", s.handleBlock)
	r.Post("/unblock", s.handleUnblock)
	return r
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Stats:      s.Stats.Snapshot(),
		CacheBytes: s.Cache.TotalBytes(),
		CacheKeys:  s.Cache.Keys(),
		Blocked:    s.Blocklist.Hosts(),
		Logs:       s.ReqLog.Recent(),
	}
	if err := s.tmpl.Execute(w, data); err != nil {
		s.Logger.Error().Err(err).Msg("template error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.FormValue("host"))
	if host != "" {
		s.Blocklist.Block(host)
		s.Logger.Info().Str("host", host).Msg("host blocked")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.FormValue("host"))
	if host != "" {
		s.Blocklist.Unblock(host)
		s.Logger.Info().Str("host", host).Msg("host unblocked")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
