package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"postapi/internal/constants"
	"postapi/internal/hashing"
	"postapi/internal/submission"
	"postapi/pkg/health"
	"postapi/pkg/middleware"
	"postapi/pkg/ratelimit"
	"postapi/pkg/tracing"
)

// newRouter mounts the operational endpoints and the intake API. Only the
// intake API is rate limited. Requires InitPipeline.
func (r *Runtime) newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if r.Config.Tracing.Enabled {
		router.Use(tracing.Gin(constants.ServiceName)...)
	}
	router.Use(middleware.Recovery(r.Logger), middleware.RequestID(), middleware.AccessLog(r.Logger))

	router.GET("/health", health.Handler(r.HealthRegistry()))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	intake := router.Group("")
	if limits := r.Config.API.RateLimit; limits.Enabled {
		cfg := ratelimit.FromConfig(limits)
		intake.Use(ratelimit.Middleware(cfg))
		r.Logger.Infow("Rate limiting enabled", "rps", cfg.RPS, "burst", cfg.Burst)
	}

	svc := submission.NewService(r.Queue, r.Providers, r.Processors, hashing.NewHasher(r.Config.Queue.HashExclusions...), r.Logger)
	submission.NewHandler(svc, r.Logger).RegisterRoutes(intake)

	return router
}
