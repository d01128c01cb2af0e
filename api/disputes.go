package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/dispute"
	"github.com/soundbridge/gigdispatch/core/faults"
)

type raiseDisputeRequest struct {
	GigID       string   `json:"gig_id" binding:"required"`
	Reason      string   `json:"reason" binding:"required"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

func (s *Server) raiseDispute(c *gin.Context) {
	var req raiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	d, err := s.resolver.Raise(c.Request.Context(), req.GigID, callerID(c), req.Reason, req.Description, req.Evidence)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (s *Server) getDispute(c *gin.Context) {
	d, err := s.resolver.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type respondDisputeRequest struct {
	CounterResponse string   `json:"counter_response" binding:"required"`
	CounterEvidence []string `json:"counter_evidence"`
}

func (s *Server) respondDispute(c *gin.Context) {
	var req respondDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	d, err := s.resolver.Respond(c.Request.Context(), c.Param("id"), callerID(c), req.CounterResponse, req.CounterEvidence)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) reviewDispute(c *gin.Context) {
	d, err := s.resolver.ForceReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type resolveDisputeRequest struct {
	Outcome      string `json:"outcome" binding:"required"`
	Notes        string `json:"notes"`
	SplitPercent int    `json:"split_percent"`
}

func (s *Server) resolveDispute(c *gin.Context) {
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	d, err := s.resolver.Resolve(c.Request.Context(), c.Param("id"), dispute.Outcome(req.Outcome), req.Notes, req.SplitPercent)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
