// Package api holds the gin handlers for the entry service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dormwatch/internal/auth"
	"dormwatch/internal/config"
	"dormwatch/internal/entry"
	"dormwatch/internal/feed"
	"dormwatch/internal/metrics"
	"dormwatch/internal/store"
)

// DeviceStore is what device registration needs from the database.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
}

// Handler serves the entry endpoints and the live feed.
type Handler struct {
	svc     *entry.Service
	feed    feed.Feed
	devices DeviceStore
	db      *store.DB
	rdb     *store.Redis
	cfg     config.App
}

// New wires a handler. db and rdb may be nil; they only affect /healthz.
func New(svc *entry.Service, f feed.Feed, devices DeviceStore, db *store.DB, rdb *store.Redis, cfg config.App) *Handler {
	return &Handler{svc: svc, feed: f, devices: devices, db: db, rdb: rdb, cfg: cfg}
}

// InsertEntry handles one device scan: POST /entry {uid}.
func (h *Handler) InsertEntry(c *gin.Context) {
	var req struct {
		UID string `json:"uid"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.UID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "UID parameter is required"})
		return
	}

	res, err := h.svc.Scan(c.Request.Context(), req.UID)
	switch {
	case errors.Is(err, entry.ErrNotRegistered):
		c.JSON(http.StatusNotFound, res)
	case err != nil:
		log.Printf("scan failed for uid %s: %v", req.UID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

// LatestEntry replays the most recent scan result.
func (h *Handler) LatestEntry(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Latest())
}

// Updates streams scan results over SSE. One event is sent immediately on
// connect, then one per scan until the client disconnects.
func (h *Handler) Updates(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sub, err := h.feed.Subscribe(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "live feed unavailable"})
		return
	}
	defer sub.Close()

	metrics.FeedSubscribers.Inc()
	defer metrics.FeedSubscribers.Dec()

	writeEvent := func(payload []byte) bool {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	if initial, err := json.Marshal(h.svc.Latest()); err == nil {
		if !writeEvent(initial) {
			return
		}
	}

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			if !writeEvent(payload) {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// RegisterDevice registers a reader device and issues its token pair.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.devices.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "device registration failed"})
		return
	}

	tokens, err := auth.Issue(req.DeviceID, "device", h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	_ = h.devices.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// Healthz reports db and redis reachability.
func (h *Handler) Healthz(c *gin.Context) {
	// Redis only matters when the feed runs on it.
	redisHealthy := true
	if h.cfg.FeedBackend == "redis" {
		redisHealthy = h.rdb.Healthy(c.Request.Context())
	}
	dbHealthy := h.db != nil && h.db.Client != nil && h.db.Client.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}
