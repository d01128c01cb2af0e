package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

type createGigRequest struct {
	ProjectID       string         `json:"project_id"`
	Type            string         `json:"type" binding:"required"`
	Booking         string         `json:"booking_type"`
	Skill           string         `json:"skill" binding:"required"`
	Genres          []string       `json:"genres"`
	Location        model.Location `json:"location"`
	StartsAt        time.Time      `json:"starts_at"`
	DurationMinutes int            `json:"duration_minutes"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
}

func gigTypeFromString(s string) (model.GigType, error) {
	switch s {
	case "urgent":
		return model.GigUrgent, nil
	case "planned":
		return model.GigPlanned, nil
	default:
		return 0, faults.Validationf("unknown gig type %q", s)
	}
}

func (s *Server) createGig(c *gin.Context) {
	var req createGigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	gt, err := gigTypeFromString(req.Type)
	if err != nil {
		writeErr(c, err)
		return
	}
	g := model.Gig{
		CreatorID: callerID(c),
		ProjectID: req.ProjectID,
		Type:      gt,
		Booking:   model.BookingType(req.Booking),
		Skill:     req.Skill,
		Genres:    req.Genres,
		Location:  req.Location,
		StartsAt:  req.StartsAt,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
		Amount:    model.Money{Amount: req.Amount, Currency: req.Currency},
	}
	g, sent, err := s.coordinator.CreateGig(c.Request.Context(), g)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gig": g, "offers_sent": sent})
}

func (s *Server) getGig(c *gin.Context) {
	g, err := s.coordinator.Gig(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) listResponses(c *gin.Context) {
	rs, err := s.coordinator.Responses(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) cancelGig(c *gin.Context) {
	g, err := s.coordinator.Cancel(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) extendSearch(c *gin.Context) {
	sent, err := s.coordinator.ExtendSearch(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers_sent": sent})
}

func (s *Server) acceptOffer(c *gin.Context) {
	g, err := s.coordinator.Accept(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type declineRequest struct {
	Message string `json:"message"`
}

func (s *Server) declineOffer(c *gin.Context) {
	var req declineRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.coordinator.Decline(c.Request.Context(), c.Param("id"), callerID(c), req.Message); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}
