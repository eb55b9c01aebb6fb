package adminhttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"maestro/internal/logger"
	"maestro/internal/memory"
	"maestro/internal/monitor"
	"maestro/internal/retrain"
	"maestro/internal/safety"

	"github.com/gin-gonic/gin"
)

// SafetyGate is the slice of the gate the API operates.
type SafetyGate interface {
	Halt(reason string) safety.Status
	Resume() safety.Status
	Status() safety.Status
}

// HistoryStore is the read side of the event memory.
type HistoryStore interface {
	SignalBatches(ctx context.Context, limit int) ([]memory.SignalBatch, error)
	Trades(ctx context.Context, limit int) ([]memory.Trade, error)
	Events(ctx context.Context, kind string, limit int) ([]memory.SystemEvent, error)
}

// ModelRegistry lists the model version lineage.
type ModelRegistry interface {
	History(ctx context.Context, limit int) ([]retrain.Version, error)
}

// StatusSource produces the composite runtime snapshot.
type StatusSource interface {
	Collect(ctx context.Context) monitor.Snapshot
}

// Router exposes the /api endpoints.
type Router struct {
	gate   SafetyGate
	memory HistoryStore
	models ModelRegistry
	status StatusSource
}

func NewRouter(gate SafetyGate, mem HistoryStore, models ModelRegistry, status StatusSource) *Router {
	return &Router{gate: gate, memory: mem, models: models, status: status}
}

// Register mounts the API routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.POST("/safety/halt", r.handleHalt)
	group.POST("/safety/resume", r.handleResume)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/trades", r.handleTrades)
	group.GET("/models", r.handleModels)
	group.GET("/events", r.handleEvents)
}

func (r *Router) handleStatus(c *gin.Context) {
	if r.status == nil {
		c.JSON(http.StatusOK, gin.H{"gate": r.gate.Status()})
		return
	}
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, r.status.Collect(reqCtx))
}

type haltRequest struct {
	Reason string `json:"reason"`
}

func (r *Router) handleHalt(c *gin.Context) {
	var req haltRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Errorf("[api] halt bind failed ip=%s err=%v", c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual halt via api"
	}
	st := r.gate.Halt(reason)
	logger.Warnf("[api] halt ip=%s reason=%q state=%s", c.ClientIP(), reason, st.State)
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleResume(c *gin.Context) {
	st := r.gate.Resume()
	logger.Infof("[api] resume ip=%s state=%s", c.ClientIP(), st.State)
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleDecisions(c *gin.Context) {
	limit := parseLimit(c, 100, 500)
	batches, err := r.memory.SignalBatches(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] decisions list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": batches, "count": len(batches)})
}

func (r *Router) handleTrades(c *gin.Context) {
	limit := parseLimit(c, 100, 500)
	trades, err := r.memory.Trades(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] trades list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (r *Router) handleModels(c *gin.Context) {
	if r.models == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry unavailable"})
		return
	}
	limit := parseLimit(c, 50, 500)
	versions, err := r.models.History(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] models list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": versions, "count": len(versions)})
}

func (r *Router) handleEvents(c *gin.Context) {
	limit := parseLimit(c, 100, 500)
	kind := strings.TrimSpace(c.Query("kind"))
	events, err := r.memory.Events(c.Request.Context(), kind, limit)
	if err != nil {
		logger.Errorf("[api] events list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func parseLimit(c *gin.Context, def, max int) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
