// Package api exposes the dispatch, escrow, dispute and rating operations
// over HTTP. Identity comes from the bearer token; financial operations
// additionally require an Idempotency-Key header.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/availability"
	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/dispute"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/logger"
	"github.com/soundbridge/gigdispatch/core/rating"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	coordinator *dispatch.Coordinator
	registry    *availability.Registry
	ledger      *ledger.Ledger
	resolver    *dispute.Resolver
	ratings     *rating.Service
	tokens      *TokenManager
	log         logger.Logger
}

// NewServer creates a Server. All collaborators are mandatory.
func NewServer(coordinator *dispatch.Coordinator, registry *availability.Registry, ldg *ledger.Ledger, resolver *dispute.Resolver, ratings *rating.Service, tokens *TokenManager, log logger.Logger) (*Server, error) {
	if coordinator == nil || registry == nil || ldg == nil || resolver == nil || ratings == nil || tokens == nil {
		return nil, faults.Validationf("api: nil parameter provided to NewServer")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Server{
		coordinator: coordinator,
		registry:    registry,
		ledger:      ldg,
		resolver:    resolver,
		ratings:     ratings,
		tokens:      tokens,
		log:         log,
	}, nil
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router(production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(authRequired(s.tokens))
	{
		api.POST("/gigs", s.createGig)
		api.GET("/gigs/:id", s.getGig)
		api.GET("/gigs/:id/responses", s.listResponses)
		api.POST("/gigs/:id/cancel", s.cancelGig)
		api.POST("/gigs/:id/extend", s.extendSearch)
		api.POST("/gigs/:id/accept", s.acceptOffer)
		api.POST("/gigs/:id/decline", s.declineOffer)

		api.POST("/gigs/:id/escrow", s.escrow)
		api.POST("/gigs/:id/release", s.release)
		api.POST("/gigs/:id/refund", s.refund)
		api.GET("/gigs/:id/ledger", s.listLedger)

		api.PUT("/providers/availability", s.setAvailability)
		api.PUT("/providers/location", s.updateLocation)

		api.POST("/disputes", s.raiseDispute)
		api.GET("/disputes/:id", s.getDispute)
		api.POST("/disputes/:id/respond", s.respondDispute)

		api.POST("/ratings", s.submitRating)
		api.GET("/projects/:id/ratings", s.projectRatings)
		api.GET("/users/:id/rating", s.userRating)

		admin := api.Group("/")
		admin.Use(adminRequired())
		{
			admin.POST("/disputes/:id/review", s.reviewDispute)
			admin.POST("/disputes/:id/resolve", s.resolveDispute)
		}
	}
	return r
}
