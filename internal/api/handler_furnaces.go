package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/parse"
	"furnace-scheduler/internal/scheduler"
)

// GetFurnaces lists the configured furnaces.
func (h *Handler) GetFurnaces(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Furnaces())
}

// GetBookings returns a furnace's bookings in start order.
func (h *Handler) GetBookings(c *gin.Context) {
	furnaceID := c.Param("furnace_id")
	bookings, violations, err := h.svc.Schedule(c.Request.Context(), furnaceID)
	if err != nil {
		respondError(c, err)
		return
	}

	problems := make([]string, len(violations))
	for i, v := range violations {
		problems[i] = v.String()
	}
	// Calendar display strings, e.g. "T-101 (220 kV)".
	serials := make(map[string][]string, len(bookings))
	for _, b := range bookings {
		summaries := make([]string, len(b.Lines))
		for i, l := range b.Lines {
			summaries[i] = parse.FormatSerialSummary(l)
		}
		serials[b.ID] = summaries
	}
	c.JSON(http.StatusOK, gin.H{
		"furnace_id": furnaceID,
		"bookings":   bookings,
		"serials":    serials,
		"violations": problems,
	})
}

// GetAvailability answers whether a booking could be placed, with the timeline it would get.
// Query: date=YYYY-MM-DD, voltage (e.g. "220 kV" or "high"), lines (default 1).
func (h *Handler) GetAvailability(c *gin.Context) {
	start, err := engine.ParseDate(c.Query("date"))
	if err != nil {
		badRequest(c)
		return
	}
	class := engine.VoltageLow
	if raw := c.Query("voltage"); raw != "" {
		if class, err = parse.ParseVoltage(raw); err != nil {
			badRequest(c)
			return
		}
	}
	lines := 1
	if raw := c.Query("lines"); raw != "" {
		if lines, err = strconv.Atoi(raw); err != nil || lines < 1 {
			badRequest(c)
			return
		}
	}

	tl, err := h.svc.Availability(c.Request.Context(), c.Param("furnace_id"), scheduler.AvailabilityQuery{
		StartDate: start,
		Class:     class,
		Lines:     lines,
	})
	switch {
	case errors.Is(err, engine.ErrUnavailable):
		c.JSON(http.StatusOK, gin.H{"available": false, "reason": err.Error(), "timeline": tl})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"available": true, "timeline": tl})
	}
}

type failureResponse struct {
	BookingID string `json:"booking_id"`
	Error     string `json:"error"`
}

// Harmonize re-derives a dual-line furnace's schedule.
func (h *Handler) Harmonize(c *gin.Context) {
	report, err := h.svc.Harmonize(c.Request.Context(), c.Param("furnace_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	changed := make([]string, len(report.Changed))
	for i, b := range report.Changed {
		changed[i] = b.ID
	}
	failures := make([]failureResponse, len(report.Failures))
	for i, f := range report.Failures {
		failures[i] = failureResponse{BookingID: f.BookingID, Error: f.Err.Error()}
	}
	c.JSON(http.StatusOK, gin.H{
		"global_class": report.GlobalClass,
		"changed":      changed,
		"failures":     failures,
	})
}

// ServeWS streams "bookings changed" events. Repeat ?furnace= to follow specific furnaces.
func (h *Handler) ServeWS(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not enabled"})
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, c.QueryArray("furnace")); err != nil {
		// The upgrader has already answered the client.
		c.Abort()
	}
}
