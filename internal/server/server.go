// Package server exposes the operator surface: the status query, the rollout
// control triggers, and the Prometheus scrape endpoint. It reads from the
// control loops and forwards triggers to the gate; it never holds state of
// its own.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/ratelimit"
	"github.com/danielpatrickdp/guardian/internal/rollout"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
)

// #region types

// Config bounds the status surface.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	// ActionHistory is how many recent actions the status query returns.
	ActionHistory int `yaml:"action_history"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{ListenAddr: ":8090", ActionHistory: 20}
}

// Server wires the HTTP surface to the two control loops.
type Server struct {
	config     Config
	supervisor *supervisor.Supervisor
	gate       *rollout.Gate
	killWindow *ratelimit.KillWindow
	store      *audit.Store
}

// statusResponse is the status query payload.
type statusResponse struct {
	GuardianState   string           `json:"guardian_state"`
	LastSeverity    string           `json:"last_severity"`
	LastSampleAt    time.Time        `json:"last_sample_at"`
	CooldownUntil   *time.Time       `json:"cooldown_until,omitempty"`
	KillWindowCount int              `json:"kill_window_count"`
	CanaryStage     string           `json:"canary_stage"`
	LastDecision    decisionResponse `json:"last_decision"`
	RecentActions   []actionResponse `json:"recent_actions"`
}

type decisionResponse struct {
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rationale string    `json:"rationale"`
	At        time.Time `json:"at"`
}

type actionResponse struct {
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type controlRequest struct {
	Rationale string `json:"rationale"`
}

// #endregion types

// #region server

// New builds the server around the live components.
func New(config Config, sup *supervisor.Supervisor, gate *rollout.Gate,
	killWindow *ratelimit.KillWindow, store *audit.Store) *Server {
	if config.ActionHistory < 1 {
		config.ActionHistory = DefaultConfig().ActionHistory
	}
	return &Server{
		config:     config,
		supervisor: sup,
		gate:       gate,
		killWindow: killWindow,
		store:      store,
	}
}

// Router builds the gin engine with every route attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	api.GET("/status", s.handleStatus)
	api.POST("/rollout/enable", s.handleControl(s.gate.EnableCanary))
	api.POST("/rollout/promote", s.handleControl(s.gate.Promote))
	api.POST("/rollout/rollback", s.handleControl(s.gate.Rollback))
	api.POST("/rollout/disable", s.handleControl(s.gate.Disable))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	return router
}

// ListenAndServe runs the HTTP surface until the listener fails.
func (s *Server) ListenAndServe() error {
	return s.Router().Run(s.config.ListenAddr)
}

// #endregion server

// #region handlers

func (s *Server) handleStatus(c *gin.Context) {
	status := s.supervisor.Status()

	entries, err := s.store.RecentActions(s.config.ActionHistory)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := statusResponse{
		GuardianState:   status.State.String(),
		LastSeverity:    status.LastSeverity.String(),
		LastSampleAt:    status.LastSampleAt,
		KillWindowCount: s.killWindow.Count(time.Now()),
		CanaryStage:     s.gate.Stage().String(),
		LastDecision:    toDecisionResponse(s.gate.LastDecision()),
		RecentActions:   make([]actionResponse, 0, len(entries)),
	}
	if !status.CooldownUntil.IsZero() {
		resp.CooldownUntil = &status.CooldownUntil
	}
	for _, e := range entries {
		resp.RecentActions = append(resp.RecentActions, actionResponse{
			Kind:      e.Kind,
			Target:    e.Target,
			Outcome:   e.Outcome,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// handleControl adapts one gate trigger to HTTP. Triggers are idempotent, so
// a refused trigger is still a 200 with the held decision in the body.
func (s *Server) handleControl(trigger func(rationale string) rollout.Decision) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req controlRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if req.Rationale == "" {
			req.Rationale = "operator trigger"
		}
		c.JSON(http.StatusOK, toDecisionResponse(trigger(req.Rationale)))
	}
}

func toDecisionResponse(d rollout.Decision) decisionResponse {
	return decisionResponse{
		Kind:      string(d.Kind),
		From:      d.From.String(),
		To:        d.To.String(),
		Rationale: d.Rationale,
		At:        d.At,
	}
}

// #endregion handlers
