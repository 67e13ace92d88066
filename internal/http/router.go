package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	APIPrefix    string
	StaticPrefix string
	OutputDir    string

	// AllowedOrigins is empty to allow every origin.
	AllowedOrigins []string

	AssetWaitTimeout  time.Duration
	AssetPollInterval time.Duration
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(handler *Handler, opts Options, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(log), gin.Recovery())

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	api := router.Group(opts.APIPrefix)

	// Forecast images.
	api.POST("/data/:plotType/:model", handler.GetImages)
	api.GET("/base-times/:model", handler.GetBaseTimes)
	api.GET("/valid-times/:model", handler.GetValidTimes)

	// Deprecated process-wide model selection.
	api.GET("/current-model", handler.GetCurrentModel)
	api.POST("/switch-model", handler.SwitchModel)

	// Legacy gallery.
	api.GET("/data/:variable/:base_time", handler.GetGallery)
	api.GET("/data/rand/init_random_image/:model", handler.GetSampleImage)

	// Rendered images.
	assets := &staticAssets{
		root:     opts.OutputDir,
		pending:  handler.images,
		timeout:  opts.AssetWaitTimeout,
		interval: opts.AssetPollInterval,
	}
	router.GET(opts.StaticPrefix+"/*filepath", assets.serve)
	router.HEAD(opts.StaticPrefix+"/*filepath", assets.serve)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
