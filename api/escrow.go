package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/faults"
)

func (s *Server) escrow(c *gin.Context) {
	key := idempotencyKey(c)
	if key == "" {
		writeErr(c, faults.Validationf("Idempotency-Key header is required"))
		return
	}
	e, err := s.ledger.Escrow(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) release(c *gin.Context) {
	key := idempotencyKey(c)
	if key == "" {
		writeErr(c, faults.Validationf("Idempotency-Key header is required"))
		return
	}
	e, err := s.ledger.Release(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) refund(c *gin.Context) {
	key := idempotencyKey(c)
	if key == "" {
		writeErr(c, faults.Validationf("Idempotency-Key header is required"))
		return
	}
	var req refundRequest
	_ = c.ShouldBindJSON(&req)
	e, err := s.ledger.Refund(c.Request.Context(), c.Param("id"), key, req.Reason)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) listLedger(c *gin.Context) {
	entries, err := s.ledger.Journal(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
