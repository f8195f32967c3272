package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"jobcard-service/internal/http/middleware"
)

// Фото до 50 МБ, в память кладём только первые 8 МБ, остальное во временный файл
const multipartMemoryLimit = 8 << 20

// NewRouter mediaRoot непустой, когда фото хранятся локально и раздаются по /media
func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, env string, mediaRoot string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = multipartMemoryLimit
	router.Use(gin.Recovery(), middleware.RequestLog(handler.log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if mediaRoot != "" {
		router.Static("/media", mediaRoot)
	}

	handler.Register(router, authMiddleware)
	return router
}
