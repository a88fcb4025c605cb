package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripstack/internal/manager"
)

// StateFn reports the orchestrator's current run state and whether the run
// is degraded. Kept as a function so the server does not reach back into
// the orchestrator.
type StateFn func() (state string, degraded bool)

// Router exposes the launcher's local status endpoints:
//
//	GET /healthz  liveness of the launcher itself
//	GET /status   run state plus a snapshot of every managed process
//	GET /metrics  Prometheus metrics
type Router struct {
	mgr   *manager.Manager
	state StateFn
}

func NewRouter(mgr *manager.Manager, state StateFn) *Router {
	return &Router{mgr: mgr, state: state}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return g
}

// NewServer starts a standalone status server on addr. Callers shut it
// down via the returned http.Server.
func NewServer(addr string, mgr *manager.Manager, state StateFn) *http.Server {
	r := NewRouter(mgr, state)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type statusResp struct {
	State     string          `json:"state"`
	Degraded  bool            `json:"degraded"`
	Processes []processStatus `json:"processes"`
}

type processStatus struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	State     string    `json:"state"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
}

func (r *Router) handleStatus(c *gin.Context) {
	state, degraded := r.state()
	resp := statusResp{State: state, Degraded: degraded}
	for _, st := range r.mgr.Statuses() {
		resp.Processes = append(resp.Processes, processStatus{
			Name:      st.Name,
			PID:       st.PID,
			State:     string(st.State),
			Running:   st.Running,
			StartedAt: st.StartedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}
