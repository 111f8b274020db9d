package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	channelHttp "github.com/nekogravitycat/hotel-pms-backend/internal/channel/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	inventoryHttp "github.com/nekogravitycat/hotel-pms-backend/internal/inventory/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	ledgerHttp "github.com/nekogravitycat/hotel-pms-backend/internal/ledger/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	reservationHttp "github.com/nekogravitycat/hotel-pms-backend/internal/reservation/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	roomHttp "github.com/nekogravitycat/hotel-pms-backend/internal/room/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
	roomtypeHttp "github.com/nekogravitycat/hotel-pms-backend/internal/roomtype/http"
)

// Config holds the services the router exposes.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       *zap.Logger

	Operators    *auth.Directory
	JWTManager   *auth.JWTManager
	Catalog      roomtype.Service
	Calendar     *inventory.Calendar
	Rooms        *room.Tracker
	Ledger       *ledger.Ledger
	Reservations reservation.Service
	Channels     *channel.Synchronizer
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: Logs request information through zap.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:8081", // Swagger
			"http://localhost:5173",
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", channelHttp.SecretHeader}
	corsConfig.ExposeHeaders = []string{"Retry-After"}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// managerMiddleware: Further checks if the operator holds the manager role.
	managerMiddleware := auth.RequireRole(auth.RoleManager)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	authHandler := NewAuthHandler(cfg.Operators, cfg.JWTManager, cfg.Logger)
	roomtypeHandler := roomtypeHttp.NewHandler(cfg.Catalog)
	inventoryHandler := inventoryHttp.NewHandler(cfg.Calendar)
	roomHandler := roomHttp.NewHandler(cfg.Rooms)
	ledgerHandler := ledgerHttp.NewHandler(cfg.Ledger)
	reservationHandler := reservationHttp.NewHandler(cfg.Reservations, cfg.Ledger)
	channelHandler := channelHttp.NewHandler(cfg.Channels)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/me", authMiddleware, authHandler.Me)

		roomtypeHttp.RegisterRoutes(v1, roomtypeHandler, authMiddleware, managerMiddleware)
		inventoryHttp.RegisterRoutes(v1, inventoryHandler, authMiddleware, managerMiddleware)
		roomHttp.RegisterRoutes(v1, roomHandler, authMiddleware, managerMiddleware)
		ledgerHttp.RegisterRoutes(v1, ledgerHandler, authMiddleware)
		reservationHttp.RegisterRoutes(v1, reservationHandler, authMiddleware, managerMiddleware)
		channelHttp.RegisterRoutes(v1, channelHandler, authMiddleware, managerMiddleware)
	}

	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
