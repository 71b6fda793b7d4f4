package ownership

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cardhub/internal/catalog"
	"cardhub/pkg/models"
)

// Handler exposes the counts API. Reads are public; writes go through the
// protected group.
type Handler struct {
	Service *catalog.Service
}

func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/ownership", h.get)

	protected.PUT("/ownership", h.replace)
	protected.POST("/ownership/refresh", h.refresh)
	protected.PUT("/ownership/:id", h.setCount)
	protected.POST("/ownership/:id/acquire", h.acquire)
}

func (h *Handler) get(c *gin.Context) {
	snap := h.Service.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded"})
		return
	}
	c.JSON(http.StatusOK, view(snap))
}

type replaceReq struct {
	Counts map[string]int `json:"counts"`
}

func (h *Handler) replace(c *gin.Context) {
	var req replaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	for id, n := range req.Counts {
		if n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count for " + id + " must be >= 0"})
			return
		}
	}
	h.respond(c, func() (*catalog.Snapshot, error) {
		return h.Service.ReplaceOwnership(c.Request.Context(), models.OwnershipMap(req.Counts))
	})
}

type setCountReq struct {
	Count *int `json:"count"`
}

func (h *Handler) setCount(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var req setCountReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Count == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count required"})
		return
	}
	if *req.Count < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be >= 0"})
		return
	}
	h.respond(c, func() (*catalog.Snapshot, error) {
		return h.Service.SetCount(c.Request.Context(), id, *req.Count)
	})
}

type acquireReq struct {
	Delta int `json:"delta"`
}

func (h *Handler) acquire(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	req := acquireReq{Delta: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	h.respond(c, func() (*catalog.Snapshot, error) {
		return h.Service.Acquire(c.Request.Context(), id, req.Delta)
	})
}

func (h *Handler) refresh(c *gin.Context) {
	h.respond(c, func() (*catalog.Snapshot, error) {
		return h.Service.RefreshOwnership(c.Request.Context())
	})
}

func (h *Handler) respond(c *gin.Context, fn func() (*catalog.Snapshot, error)) {
	snap, err := fn()
	switch {
	case errors.Is(err, catalog.ErrNotLoaded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded"})
	case errors.Is(err, catalog.ErrUnknownCard):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
	default:
		c.JSON(http.StatusOK, view(snap))
	}
}

func view(snap *catalog.Snapshot) gin.H {
	counts := make(map[string]int, len(snap.Ownership))
	for id, n := range snap.Ownership {
		if _, known := snap.Catalog.Card(id); known {
			counts[id] = n
		}
	}
	return gin.H{
		"generation": snap.Generation,
		"persistent": snap.Persistent,
		"stats":      snap.Catalog.Stats(),
		"counts":     counts,
	}
}
