package server

import (
	"net/http"
	"time"

	"itsamatch-backend/handlers"
	"itsamatch-backend/middleware"
	"itsamatch-backend/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig configures the HTTP surface
type RouterConfig struct {
	PreferenceService *service.PreferenceService
	ConnectionString  string
	CORSOrigins       []string
	// LegacyRoutes enables the user-scoped /user/preferences routes
	LegacyRoutes bool
	// SnapshotService enables /admin/snapshots when set
	SnapshotService *service.SnapshotService
}

// NewRouter builds the gin engine with every route and middleware attached
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging())
	r.Use(middleware.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found", "code": "NOT_FOUND"})
	})

	systemHandler := handlers.NewSystemHandler(cfg.PreferenceService, cfg.ConnectionString)
	preferenceHandler := handlers.NewPreferenceHandler(cfg.PreferenceService)

	r.GET("/", systemHandler.Root)
	r.GET("/health", systemHandler.Health)
	r.GET("/test-connection", systemHandler.TestConnection)
	r.GET("/generic", systemHandler.ListPreferences)

	app := r.Group("/user/:user_id/app/:app_id")
	{
		app.POST("/preferences", preferenceHandler.CreatePreferences)
		app.GET("/preferences", preferenceHandler.GetPreferences)
		app.PUT("/preferences", preferenceHandler.UpsertPreferences)
		app.DELETE("/preferences", preferenceHandler.DeletePreferences)
	}

	if cfg.LegacyRoutes {
		userHandler := handlers.NewUserPreferenceHandler(cfg.PreferenceService)

		user := r.Group("/user/preferences")
		{
			user.POST("/", userHandler.CreateUserPreferences)
			user.GET("/:user_id", userHandler.GetUserPreferences)
			user.PUT("/:user_id", userHandler.UpdateUserPreferences)
			user.DELETE("/:user_id", userHandler.DeleteUserPreferences)
		}
	}

	if cfg.SnapshotService != nil {
		snapshotHandler := handlers.NewSnapshotHandler(cfg.SnapshotService)

		admin := r.Group("/admin/snapshots")
		{
			admin.GET("", snapshotHandler.ListSnapshots)
			admin.POST("", snapshotHandler.ExportSnapshot)
			admin.POST("/import", snapshotHandler.ImportSnapshot)
			admin.GET("/*path", snapshotHandler.GetSnapshot)
			admin.DELETE("/*path", snapshotHandler.DeleteSnapshot)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
