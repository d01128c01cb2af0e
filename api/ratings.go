package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

type submitRatingRequest struct {
	ProjectID string             `json:"project_id" binding:"required"`
	RateeID   string             `json:"ratee_id" binding:"required"`
	Scores    model.RatingScores `json:"scores"`
	Review    string             `json:"review"`
}

func (s *Server) submitRating(c *gin.Context) {
	var req submitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, faults.Validationf("invalid request: %v", err))
		return
	}
	r, err := s.ratings.Submit(c.Request.Context(), req.ProjectID, callerID(c), req.RateeID, req.Scores, req.Review)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) projectRatings(c *gin.Context) {
	pr, err := s.ratings.ProjectRatings(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, pr)
}

func (s *Server) userRating(c *gin.Context) {
	avgs, err := s.ratings.CategoryAverages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  c.Param("id"),
		"averages": avgs,
	})
}
