package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ljhyeon/Fish-in-Water/internal/api/handler"
	"github.com/ljhyeon/Fish-in-Water/internal/api/middleware"
	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
	"github.com/ljhyeon/Fish-in-Water/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuctionSvc   *service.AuctionService
	BidSvc       *service.BidService
	LifecycleSvc *service.LifecycleService
	Sweeps       handler.SweepRunner
	Hub          *ws.Hub
	Clk          clock.Clock
	Cfg          *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	auctionH := handler.NewAuctionHandler(deps.AuctionSvc, deps.Clk)
	bidH := handler.NewBidHandler(deps.BidSvc)
	adminH := handler.NewAdminHandler(deps.LifecycleSvc, deps.Sweeps)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	writeRL := middleware.PerIPRateLimit(10) // listing writes
	bidRL := middleware.PerIPRateLimit(30)   // bidding

	api := r.Group("/api")
	{
		// ── Auctions ─────────────────────────────────────────────────────────
		auctions := api.Group("/auctions")
		{
			auctions.GET("", auctionH.ListAuctions)
			auctions.GET("/:id", auctionH.GetAuction)
			auctions.GET("/:id/live", bidH.GetLive)
			auctions.GET("/:id/next-bid", bidH.SuggestNextBid)
			auctions.GET("/:id/bids", bidH.ListBids)

			auctions.POST("", writeRL, auctionH.CreateAuction)
			auctions.PATCH("/:id", writeRL, auctionH.UpdateAuction)
			auctions.POST("/:id/bids", bidRL, bidH.PlaceBid)
			auctions.POST("/:id/payment", writeRL, auctionH.CompletePayment)
			auctions.POST("/:id/settlement", writeRL, auctionH.CompleteSettlement)
		}

		// ── Per-role projections ─────────────────────────────────────────────
		api.GET("/sellers/:id/auctions", auctionH.ListSellerAuctions)
		api.GET("/buyers/:id/auctions", auctionH.ListBuyerAuctions)

		// ── Admin lifecycle overrides ────────────────────────────────────────
		admin := api.Group("/admin")
		{
			admin.POST("/sweep", adminH.RunSweep)
			admin.POST("/auctions/:id/activate", adminH.ActivateAuction)
			admin.POST("/auctions/:id/close", adminH.CloseAuction)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws/auctions/:id", func(c *gin.Context) {
			id, err := uuid.Parse(c.Param("id"))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
				return
			}
			deps.Hub.ServeWs(c.Writer, c.Request, id)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://fishinwater.kr":     true,
				"https://www.fishinwater.kr": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
