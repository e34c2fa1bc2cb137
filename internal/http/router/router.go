package router

import (
	"net/http"

	apphttp "stego_gateway/internal/http"
	"stego_gateway/platform/apperr"
	"stego_gateway/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Endpoints advertised on GET /.
var endpoints = []string{"/health", "/test-python", "/api/encode", "/api/decode"}

type rootResponse struct {
	Message   string   `json:"message"`
	Endpoints []string `json:"endpoints"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// New builds the gin engine with shared middleware, operational endpoints
// and every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		app.Logger.WithContext(c.Request.Context()).Error("panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		httpkit.HandleError(c, apperr.Internal("internal server error"))
		c.Abort()
	}))
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	if app.Metrics != nil {
		engine.Use(app.Metrics.Middleware())
	}
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(httpkit.CORS(app.Config))

	engine.NoRoute(func(c *gin.Context) {
		httpkit.Error(c, http.StatusNotFound, "not found", nil)
	})

	engine.GET("/", func(c *gin.Context) {
		httpkit.OK(c, rootResponse{Message: "Steganography backend is running", Endpoints: endpoints})
	})
	engine.GET("/health", func(c *gin.Context) {
		httpkit.OK(c, healthResponse{Status: "healthy", Message: "gateway is running"})
	})
	if app.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}

	rc := &apphttp.RouterContext{
		Engine:        engine,
		API:           engine.Group("/api"),
		UploadLimiter: httpkit.NewConcurrencyLimiter(app.Config.GetMaxConcurrentUploads(), app.Logger),
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(rc)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}
