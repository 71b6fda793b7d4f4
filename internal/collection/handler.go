package collection

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cardhub/internal/catalog"
)

type Handler struct {
	Service *catalog.Service
	Preview bool   // default when the request does not say
	Locale  string // default collation locale
}

func NewHandler(svc *catalog.Service, preview bool, locale string) *Handler {
	return &Handler{Service: svc, Preview: preview, Locale: locale}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/catalog", h.list)
	rg.GET("/catalog/stats", h.stats)
	rg.GET("/catalog/diagnostics", h.diagnostics)
	rg.POST("/catalog/reload", h.reload)
	rg.GET("/cards/:id", h.getByID)
	rg.GET("/sources", h.sources)
}

type sectionView struct {
	catalog.Section
	Items []catalog.Projection `json:"items"`
}

func (h *Handler) list(c *gin.Context) {
	snap := h.snapshot(c)
	if snap == nil {
		return
	}

	q := catalog.Query{
		Text:      c.Query("q"),
		Source:    c.DefaultQuery("source", catalog.ScopeAll),
		Ownership: c.DefaultQuery("own", catalog.ScopeAll),
		Order:     c.DefaultQuery("order", catalog.OrderManifest),
		Locale:    c.DefaultQuery("locale", h.Locale),
	}
	if err := q.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preview := parseBool(c.Query("preview"), h.Preview)

	cards := catalog.Run(snap.Catalog, snap.Ownership, q)

	resp := gin.H{
		"generation": snap.Generation,
		"loaded_at":  snap.LoadedAt.Format(time.RFC3339),
		"preview":    preview,
		"stats":      snap.Catalog.Stats(),
		"total":      len(cards),
	}

	if parseBool(c.Query("group"), false) {
		expanded := parseSet(c.Query("expanded"))
		sections := catalog.Sections(snap.Catalog, cards, q.Source, expanded)
		views := make([]sectionView, 0, len(sections))
		for _, s := range sections {
			views = append(views, sectionView{
				Section: s,
				Items:   catalog.ProjectAll(s.Cards, snap.Ownership, preview),
			})
		}
		resp["sections"] = views
	} else {
		resp["items"] = catalog.ProjectAll(cards, snap.Ownership, preview)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getByID(c *gin.Context) {
	snap := h.snapshot(c)
	if snap == nil {
		return
	}
	card, ok := snap.Catalog.Card(strings.TrimSpace(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, catalog.Project(card, snap.Ownership, parseBool(c.Query("preview"), h.Preview)))
}

func (h *Handler) stats(c *gin.Context) {
	snap := h.snapshot(c)
	if snap == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": snap.Generation,
		"persistent": snap.Persistent,
		"stats":      snap.Catalog.Stats(),
		"sources":    snap.Catalog.Sources(),
	})
}

func (h *Handler) sources(c *gin.Context) {
	snap := h.snapshot(c)
	if snap == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": snap.Catalog.Sources()})
}

func (h *Handler) diagnostics(c *gin.Context) {
	resp := gin.H{"items": []catalog.Diagnostic{}}
	if snap := h.Service.Snapshot(); snap != nil {
		resp["generation"] = snap.Generation
		if snap.Diagnostics != nil {
			resp["items"] = snap.Diagnostics
		}
	}
	if at, err := h.Service.LastFailure(); err != nil {
		resp["last_error"] = err.Error()
		resp["last_error_at"] = at.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) reload(c *gin.Context) {
	snap, err := h.Service.Reload(c.Request.Context())
	if err != nil {
		body := gin.H{"error": err.Error()}
		if snap != nil {
			body["generation"] = snap.Generation
		}
		status := http.StatusBadGateway
		if errors.Is(err, catalog.ErrSuperseded) {
			status = http.StatusConflict
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation":  snap.Generation,
		"stats":       snap.Catalog.Stats(),
		"diagnostics": snap.Diagnostics,
	})
}

func (h *Handler) snapshot(c *gin.Context) *catalog.Snapshot {
	snap := h.Service.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded"})
		return nil
	}
	return snap
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

// parseSet reads "a,b" into a set.
func parseSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = true
		}
	}
	return out
}
