package server

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	Health         HealthChecker
	// Sandbox mounts the simulated checkout pages when the mock gateway is in use.
	Sandbox *SandboxHandler
}

var registerTagName sync.Once

// useJSONFieldNames makes validator errors speak in request field names.
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func NewRouter(
	orderHandler *OrderHandler,
	paymentHandler *PaymentHandler,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(recovery(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", couponHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", healthHandler(cfg.Health))

	orders := r.Group("/orders")
	{
		orders.POST("", orderHandler.Create)
		orders.GET("/:orderId", orderHandler.Get)
	}

	payments := r.Group("/payments")
	{
		payments.POST("", paymentHandler.Initiate)
		payments.POST("/callback", paymentHandler.Callback)
		payments.GET("/status/:orderId", paymentHandler.Status)
	}

	if cfg.Sandbox != nil {
		sandbox := r.Group("/sandbox/checkout")
		{
			sandbox.POST("/:orderId/pay", cfg.Sandbox.Pay)
			sandbox.POST("/:orderId/cancel", cfg.Sandbox.Cancel)
		}
	}

	return r
}
