package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/notification"
	"furnace-scheduler/internal/parse"
	"furnace-scheduler/internal/scheduler"
	"furnace-scheduler/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *scheduler.Service
	store   store.Store
	webpush *webpush.Options
	hub     *notification.Hub
}

// NewHandler creates a new API handler. webpushOptions and hub may be nil when
// push notifications or live updates are switched off.
func NewHandler(svc *scheduler.Service, s store.Store, webpushOptions *webpush.Options, hub *notification.Hub) *Handler {
	return &Handler{
		svc:     svc,
		store:   s,
		webpush: webpushOptions,
		hub:     hub,
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

// respondError maps service and engine errors to status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrNotFound), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, scheduler.ErrValidation),
		errors.Is(err, engine.ErrInvalidDate),
		errors.Is(err, engine.ErrLineLimit),
		errors.Is(err, engine.ErrRuleNotFound),
		errors.Is(err, parse.ErrUnknownVoltage):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUnavailable),
		errors.Is(err, engine.ErrAnchorViolation),
		errors.Is(err, scheduler.ErrConflict):
		status = http.StatusConflict
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
