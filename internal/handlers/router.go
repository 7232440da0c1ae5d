package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"compras/internal/middleware"
)

// Router bundles everything the HTTP surface is built from.
type Router struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Directory    *DirectoryHandler
	Catalog      *CatalogHandler
	Budgets      *BudgetHandler
	Requests     *RequestHandler
	Reports      *ReportHandler
	Notification *NotificationHandler
	Realtime     *RealtimeHandler

	AllowedOrigins []string
	ServiceAPIKey  string
	// Ping reports database reachability for the health check. Optional.
	Ping func() error
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	allowAll := len(origins) == 0
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-API-Key"}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.ExposeHeaders = []string{"Content-Disposition", "X-Request-ID"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

// health reports liveness and, when configured, database reachability.
func (rt *Router) health(c *gin.Context) {
	if rt.Ping != nil {
		if err := rt.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Engine builds the Gin engine with middleware and every route mounted under /api.
func (rt *Router) Engine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(corsMiddleware(rt.AllowedOrigins))
	// The websocket upgrade needs the raw, hijackable writer.
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ws"})))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.GET("/health", rt.health)
	api.GET("/ws", rt.Realtime.Connect)

	// Public routes
	auth := api.Group("/auth")
	auth.POST("/login", rt.Auth.Login)
	auth.POST("/refresh", rt.Auth.Refresh)

	// Service-to-service routes
	internal := api.Group("/internal")
	internal.Use(middleware.RequireServiceKey(rt.ServiceAPIKey))
	internal.POST("/notifications/dispatch", rt.Notification.Dispatch)

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", rt.Auth.Logout)

	users := protected.Group("/users")
	users.GET("/me", rt.Users.GetMe)
	users.PATCH("/me", rt.Users.UpdateMe)
	users.GET("", rt.Users.ListUsers)
	users.POST("", rt.Users.CreateUser)
	users.GET("/:id", rt.Users.GetUser)
	users.PATCH("/:id", rt.Users.UpdateUser)

	protected.GET("/areas", rt.Directory.ListAreas)
	protected.PATCH("/areas/:id", rt.Directory.UpdateArea)
	protected.GET("/locations", rt.Directory.ListLocations)
	protected.PATCH("/locations/:id", rt.Directory.UpdateLocation)
	costCenters := protected.Group("/cost-centers")
	costCenters.GET("", rt.Directory.ListCostCenters)
	costCenters.POST("", rt.Directory.CreateCostCenter)
	costCenters.GET("/:id", rt.Directory.GetCostCenter)
	costCenters.PATCH("/:id", rt.Directory.UpdateCostCenter)

	budgetsRoot := protected.Group("/budgets")
	budgetsRoot.GET("/categories", rt.Catalog.ListCategories)
	budgetsRoot.GET("/categories/:id", rt.Catalog.GetCategory)
	budgetsRoot.PATCH("/categories/:id", rt.Catalog.UpdateCategory)
	budgetsRoot.GET("/items", rt.Catalog.ListItems)
	budgetsRoot.POST("/items", rt.Catalog.CreateItem)
	budgetsRoot.GET("/items/:id", rt.Catalog.GetItem)
	budgetsRoot.PATCH("/items/:id", rt.Catalog.UpdateItem)

	budgets := budgetsRoot.Group("/budgets")
	budgets.GET("", rt.Budgets.GetBudgets)
	budgets.POST("", rt.Budgets.CreateBudget)
	budgets.GET("/summary", rt.Budgets.GetSummary)
	budgets.GET("/export_excel", rt.Budgets.ExportExcel)
	budgets.POST("/copy_month", rt.Budgets.CopyMonth)
	budgets.POST("/project_from_previous_year", rt.Budgets.ProjectFromPreviousYear)
	budgets.POST("/close_month", rt.Budgets.CloseMonth)
	budgets.POST("/reopen_month", rt.Budgets.ReopenMonth)
	budgets.POST("/import_excel", rt.Budgets.ImportExcel)
	budgets.GET("/:id", rt.Budgets.GetBudget)
	budgets.PATCH("/:id", rt.Budgets.UpdateBudget)
	budgets.GET("/:id/history", rt.Budgets.GetBudgetHistory)

	requests := protected.Group("/requests/purchase-requests")
	requests.GET("", rt.Requests.ListRequests)
	requests.POST("", rt.Requests.CreateRequest)
	requests.GET("/:id", rt.Requests.GetRequest)
	requests.PUT("/:id", rt.Requests.UpdateRequest)
	requests.GET("/:id/comments", rt.Requests.ListComments)
	requests.POST("/:id/comments", rt.Requests.AddComment)
	requests.GET("/:id/attachments", rt.Requests.ListAttachments)
	requests.POST("/:id/attachments", rt.Requests.UploadAttachment)
	requests.GET("/:id/attachments/:attachmentId", rt.Requests.DownloadAttachment)
	requests.GET("/:id/history", rt.Requests.ListHistory)
	requests.POST("/:id/:action", rt.Requests.Transition)

	reports := protected.Group("/reports")
	reports.GET("/expenses-by-period", rt.Reports.ExpensesByPeriod)
	reports.GET("/budget-comparison", rt.Reports.BudgetComparison)
	reports.GET("/expenses-by-employee", rt.Reports.ExpensesByEmployee)
	reports.GET("/top-suppliers", rt.Reports.TopSuppliers)
	reports.GET("/dashboard", rt.Reports.Dashboard)

	protected.GET("/notifications", rt.Notification.ListMine)

	return router
}
