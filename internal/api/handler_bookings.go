package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/parse"
	"furnace-scheduler/internal/scheduler"
)

type lineRequest struct {
	Serial  string `json:"serial" binding:"required"`
	Voltage string `json:"voltage"`
}

// linesPayload accepts structured lines, legacy "SERIAL (220 kV)" summaries, or both.
type linesPayload struct {
	Lines   []lineRequest `json:"lines"`
	Serials []string      `json:"serials"`
}

// serialLines returns nil when the payload names no lines.
func (p linesPayload) serialLines() ([]engine.SerialLine, error) {
	if len(p.Lines)+len(p.Serials) == 0 {
		return nil, nil
	}
	out := make([]engine.SerialLine, 0, len(p.Lines)+len(p.Serials))
	for _, l := range p.Lines {
		line := engine.SerialLine{Serial: l.Serial, Voltage: engine.VoltageLow}
		if l.Voltage != "" {
			v, err := parse.ParseVoltage(l.Voltage)
			if err != nil {
				return nil, err
			}
			line.Voltage = v
		}
		out = append(out, line)
	}
	for _, raw := range p.Serials {
		line, err := parse.ParseSerialSummary(raw)
		if err != nil {
			return nil, err
		}
		if line.Voltage == 0 {
			line.Voltage = engine.VoltageLow
		}
		out = append(out, line)
	}
	return out, nil
}

type createBookingRequest struct {
	linesPayload
	ID         string      `json:"id"`
	StartDate  engine.Date `json:"start_date"`
	Registrant string      `json:"registrant"`
	Actor      string      `json:"actor"`
}

// CreateBooking registers a booking on a furnace.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StartDate.IsZero() {
		badRequest(c)
		return
	}
	lines, err := req.serialLines()
	if err != nil {
		respondError(c, err)
		return
	}

	b, err := h.svc.Register(c.Request.Context(), c.Param("furnace_id"), scheduler.RegisterRequest{
		ID:         req.ID,
		StartDate:  req.StartDate,
		Registrant: req.Registrant,
		Lines:      lines,
		Actor:      actorOf(req.Actor, req.Registrant),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GetBooking returns one booking.
func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.svc.Booking(c.Request.Context(), c.Param("furnace_id"), c.Param("booking_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type updateBookingRequest struct {
	linesPayload
	StartDate  *engine.Date `json:"start_date"`
	Registrant *string      `json:"registrant"`
	Actor      string       `json:"actor"`
}

// UpdateBooking moves a booking and/or replaces its serial lines.
func (h *Handler) UpdateBooking(c *gin.Context) {
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	lines, err := req.serialLines()
	if err != nil {
		respondError(c, err)
		return
	}

	b, err := h.svc.Edit(c.Request.Context(), c.Param("furnace_id"), c.Param("booking_id"), scheduler.EditRequest{
		StartDate:  req.StartDate,
		Registrant: req.Registrant,
		Lines:      lines,
		Actor:      req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type addLinesRequest struct {
	linesPayload
	Actor string `json:"actor"`
}

// AddLines adds serial lines to a booking on a dual-line furnace.
func (h *Handler) AddLines(c *gin.Context) {
	var req addLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	lines, err := req.serialLines()
	if err != nil {
		respondError(c, err)
		return
	}
	if len(lines) == 0 {
		badRequest(c)
		return
	}

	b, err := h.svc.AddLines(c.Request.Context(), c.Param("furnace_id"), c.Param("booking_id"), lines, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type statusRequest struct {
	Action    scheduler.StatusAction `json:"action" binding:"required,oneof=advance delay resume"`
	LineIndex int                    `json:"line_index" binding:"min=0"`
	Actor     string                 `json:"actor"`
}

// UpdateStatus advances a line's status or toggles its delay flag. line_index 0 targets every line.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	b, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("furnace_id"), c.Param("booking_id"), scheduler.StatusRequest{
		Action:    req.Action,
		LineIndex: req.LineIndex,
		Actor:     req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// DeleteBooking removes a booking and restores its neighbours.
func (h *Handler) DeleteBooking(c *gin.Context) {
	if _, err := h.svc.Delete(c.Request.Context(), c.Param("furnace_id"), c.Param("booking_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type previewRequest struct {
	FurnaceID         string       `json:"furnace_id"`
	StartDate         engine.Date  `json:"start_date"`
	Voltage           string       `json:"voltage"`
	ForcedPhase2Start *engine.Date `json:"forced_phase2_start"`
	ForceExact        bool         `json:"force_exact"`
	FirstHalfStart    bool         `json:"first_half_start"`
}

// PreviewTimeline computes a timeline without storing anything.
func (h *Handler) PreviewTimeline(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StartDate.IsZero() {
		badRequest(c)
		return
	}
	class := engine.VoltageLow
	if req.Voltage != "" {
		v, err := parse.ParseVoltage(req.Voltage)
		if err != nil {
			respondError(c, err)
			return
		}
		class = v
	}

	tl, err := h.svc.Preview(scheduler.PreviewRequest{
		FurnaceID:         req.FurnaceID,
		StartDate:         req.StartDate,
		Class:             class,
		ForcedPhase2Start: req.ForcedPhase2Start,
		ForceExact:        req.ForceExact,
		FirstHalfStart:    req.FirstHalfStart,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func actorOf(actor, fallback string) string {
	if actor != "" {
		return actor
	}
	return fallback
}
