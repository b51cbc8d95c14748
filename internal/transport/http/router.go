package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"image-pipeline-server/internal/platform/config"
	"image-pipeline-server/internal/platform/logging"
	"image-pipeline-server/internal/platform/observability"
)

// Mount serves a local directory read-only under Path.
type Mount struct {
	Path string
	Root string
}

// Options configures the HTTP router builder.
type Options struct {
	Config     *config.Config
	Logger     *logging.Logger
	StaticRoot string
	Mounts     []Mount
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	Root   *gin.RouterGroup
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with recovery, logging,
// observability, request deadline, CORS and static file middlewares.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	if strings.EqualFold(opts.Config.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.CustomRecovery(recoveryHandler(logger)))
	engine.Use(loggingMiddleware(logger))
	engine.Use(observabilityMiddleware())
	engine.Use(timeoutMiddleware(opts.Config.Server.RequestTimeout))

	_ = engine.SetTrustedProxies(nil)

	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	for _, m := range opts.Mounts {
		if m.Path == "" || m.Root == "" {
			continue
		}
		engine.Use(static.Serve(m.Path, static.LocalFile(m.Root, false)))
	}

	staticRoot := opts.StaticRoot
	if staticRoot == "" {
		staticRoot = opts.Config.Server.StaticDir
	}
	if staticRoot != "" {
		engine.Use(static.Serve("/", static.LocalFile(staticRoot, false)))
	}

	engine.NoRoute(func(c *gin.Context) {
		RespondStatus(c, http.StatusNotFound, "Not Found")
	})

	return &Router{
		Engine: engine,
		Root:   &engine.RouterGroup,
		API:    engine.Group("/api"),
	}, nil
}

// recoveryHandler turns a panic into 500 with the panic message.
func recoveryHandler(logger *logging.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.ErrorTag("HTTP", "panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		RespondStatus(c, http.StatusInternalServerError, fmt.Sprint(recovered))
		c.Abort()
	}
}

func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		if logger == nil {
			return
		}
		if len(c.Errors) > 0 {
			logger.WarnTag("HTTP", "%s %s -> %d (%s): %s",
				c.Request.Method, c.Request.URL.Path, status, duration, c.Errors.Last().Error())
			return
		}
		logger.InfoTag("HTTP", "%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, status, duration)
	}
}

func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		reqCtx, spanEnd := observability.StartSpan(c.Request.Context(), "http.server", path)
		var spanErr error
		c.Request = c.Request.WithContext(reqCtx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		spanEnd(spanErr)

		observability.RecordMetric(
			reqCtx,
			"http.requests",
			1,
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
				"status":    strconv.Itoa(c.Writer.Status()),
			},
		)
		observability.RecordMetric(
			reqCtx,
			"http.request.duration_ms",
			float64(duration.Milliseconds()),
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
			},
		)
	}
}
