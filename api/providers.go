package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

func (s *Server) setAvailability(c *gin.Context) {
	var a model.Availability
	if err := c.ShouldBindJSON(&a); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	a, err := s.registry.SetAvailability(callerID(c), a)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) updateLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	if err := s.registry.UpdateLocation(callerID(c), req.Lat, req.Lng); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
