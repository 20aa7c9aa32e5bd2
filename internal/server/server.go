// Package server is the HTTP boundary: gin handlers, operator identity and
// error envelopes over the domain services.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/config"
	kpidomain "github.com/stationops/pims/internal/kpi/domain"
	"github.com/stationops/pims/internal/observability/logger"
	"github.com/stationops/pims/internal/observability/metrics"
	"github.com/stationops/pims/internal/observability/tracing"
	outagedomain "github.com/stationops/pims/internal/outage/domain"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

type ServerParam struct {
	fx.In

	Cfg          config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Engine       *gin.Engine
	TotalizerSvc totalizerdomain.Service
	KPISvc       kpidomain.Service
	OutageSvc    outagedomain.Service
}

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	engine *gin.Engine

	totalizerSvc totalizerdomain.Service
	kpiSvc       kpidomain.Service
	outageSvc    outagedomain.Service

	submitLimiter *rateLimiter
}

// NewEngine builds the gin engine with the ambient middleware stack.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.GinMiddleware(cfg.ServiceName))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	return engine
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg:    p.Cfg,
		log:    p.Log.Named("server"),
		db:     p.DB,
		engine: p.Engine,

		totalizerSvc: p.TotalizerSvc,
		kpiSvc:       p.KPISvc,
		outageSvc:    p.OutageSvc,

		submitLimiter: newRateLimiter(60, time.Minute),
	}
}

// RegisterAPIRoutes wires every endpoint.
func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", s.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.Use(s.OperatorRequired())

	api.POST("/readings", s.WriterRequired(), s.SubmitReadings)
	api.POST("/readings/preview", s.PreviewKPIs)
	api.GET("/readings", s.ListReadings)

	api.GET("/kpis", s.GetKPIs)
	api.POST("/kpis/manual", s.WriterRequired(), s.SubmitManualKPIs)

	api.POST("/offsets", s.AdminRequired(), s.ConfigureOffset)
	api.GET("/offsets", s.ListOffsets)
	api.DELETE("/offsets/:id", s.AdminRequired(), s.DeleteOffset)

	api.POST("/baselines", s.AdminRequired(), s.ConfigureBaseline)
	api.GET("/baselines/:totalizer_id", s.ListBaselines)

	api.POST("/outages", s.WriterRequired(), s.RecordOutage)
	api.PUT("/outages/:id/close", s.WriterRequired(), s.CloseOutage)
	api.GET("/outages", s.ListOutages)
	api.GET("/outages/latest", s.LatestOutages)
	api.GET("/outages/:id", s.GetOutage)
}

// Health reports process liveness and database reachability.
func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
