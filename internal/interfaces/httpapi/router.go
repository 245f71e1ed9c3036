package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"derivagg/internal/application/port"
)

type handler struct {
	reader    port.SnapshotReader
	refresher port.Refresher
	history   port.History
}

// NewRouter builds the read-only snapshot API. history may be nil.
func NewRouter(reader port.SnapshotReader, refresher port.Refresher, history port.History) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	h := &handler{reader: reader, refresher: refresher, history: history}

	r.GET("/healthz", h.health)

	v1 := r.Group("/api/v1/derivatives")
	v1.GET("", h.snapshot)
	v1.GET("/persisted", h.persisted)
	v1.POST("/refresh", h.refresh)
	v1.GET("/funding/:symbol/history", h.fundingHistory)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.reader.Snapshot())
}

// persisted 最近一次落盘的快照，与内存中的当前快照可能不同
func (h *handler) persisted(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history storage disabled"})
		return
	}
	snap, err := h.history.LatestSnapshot(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, snap)
	case errors.Is(err, port.ErrNoHistory):
		c.JSON(http.StatusNotFound, gin.H{"error": "history storage disabled"})
	case errors.Is(err, port.ErrNoSnapshot):
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot persisted yet"})
	default:
		log.Warn().Err(err).Msg("latest snapshot query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
	}
}

func (h *handler) refresh(c *gin.Context) {
	if h.refresher == nil || !h.refresher.ManualRefresh() {
		c.JSON(http.StatusConflict, gin.H{"error": "polling inactive"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh scheduled"})
}

func (h *handler) fundingHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history storage disabled"})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))

	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	points, err := h.history.FundingHistory(c.Request.Context(), symbol, limit)
	if err != nil {
		if errors.Is(err, port.ErrNoHistory) {
			c.JSON(http.StatusNotFound, gin.H{"error": "history storage disabled"})
			return
		}
		log.Warn().Err(err).Str("symbol", symbol).Msg("funding history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	if points == nil {
		points = []port.FundingPoint{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "points": points})
}
