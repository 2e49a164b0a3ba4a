package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cazayus/wshub/internal/domain/lifecycle"
	"github.com/cazayus/wshub/internal/domain/properties"
	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// Handlers serves views of the hub and registry and the document routes
type Handlers struct {
	hub      *lifecycle.Hub
	registry *service.Registry
	catalog  *service.Catalog
	saver    *properties.Saver
}

// NewHandlers creates a new handler set
func NewHandlers(hub *lifecycle.Hub, registry *service.Registry, catalog *service.Catalog) *Handlers {
	return &Handlers{hub: hub, registry: registry, catalog: catalog}
}

// WithSaver runs the save pass after each document save
func (h *Handlers) WithSaver(saver *properties.Saver) *Handlers {
	h.saver = saver
	return h
}

// WorkspaceView describes one workspace
type WorkspaceView struct {
	ID       string          `json:"id"`
	State    lifecycle.State `json:"state"`
	OpenedAt time.Time       `json:"opened_at"`
	Services []string        `json:"services"`
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.hub != nil {
		body["hub"] = h.hub.Stats()
	}
	if h.registry != nil {
		body["service_registry"] = h.registry.Stats()
	}
	if h.catalog != nil {
		body["catalog"] = h.catalog.Tags()
	}
	c.JSON(http.StatusOK, body)
}

// ListWorkspaces lists the open workspaces, oldest first
func (h *Handlers) ListWorkspaces(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusOK, gin.H{"workspaces": []WorkspaceView{}})
		return
	}

	open := h.hub.Open()
	views := make([]WorkspaceView, 0, len(open))
	for _, ws := range open {
		views = append(views, h.view(ws, lifecycle.StateOpen))
	}

	c.JSON(http.StatusOK, gin.H{
		"workspaces": views,
		"observers":  h.hub.Observers(),
		"stats":      h.hub.Stats(),
	})
}

// GetWorkspace describes one workspace the hub has seen
func (h *Handlers) GetWorkspace(c *gin.Context) {
	ws, err := id.ParseWorkspaceID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var (
		state lifecycle.State
		ok    bool
	)
	if h.hub != nil {
		state, ok = h.hub.State(ws)
	}
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", id.ErrUnknownWorkspace, ws))
		return
	}

	c.JSON(http.StatusOK, h.view(ws, state))
}

func (h *Handlers) view(ws id.WorkspaceID, state lifecycle.State) WorkspaceView {
	v := WorkspaceView{
		ID:       ws.String(),
		State:    state,
		Services: []string{},
	}
	if opened, err := ws.Timestamp(); err == nil {
		v.OpenedAt = opened
	}
	if h.registry != nil {
		for _, tag := range h.registry.Tags(ws) {
			v.Services = append(v.Services, string(tag))
		}
	}
	return v
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, id.ErrInvalidWorkspaceID), errors.Is(err, properties.ErrNotProperties):
		return http.StatusBadRequest
	case errors.Is(err, id.ErrUnknownWorkspace), errors.Is(err, properties.ErrUnknownDocument),
		errors.Is(err, service.ErrUnknownTag):
		return http.StatusNotFound
	case errors.Is(err, properties.ErrDisposed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
