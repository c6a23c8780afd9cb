package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	assetdomain "github.com/smallbiznis/lubeqc/internal/asset/domain"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/config"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/consumption/liveevents"
	inspectiondomain "github.com/smallbiznis/lubeqc/internal/inspection/domain"
	"github.com/smallbiznis/lubeqc/internal/observability"
	obsmiddleware "github.com/smallbiznis/lubeqc/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/lubeqc/internal/observability/metrics"
	obstracing "github.com/smallbiznis/lubeqc/internal/observability/tracing"
	"github.com/smallbiznis/lubeqc/internal/providers/email"
	"github.com/smallbiznis/lubeqc/internal/providers/pdf"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	clock          clock.Clock
	catalog        catalog.Provider
	consumptionSvc consumptiondomain.Service
	reportSvc      reportdomain.Service
	inspectionSvc  inspectiondomain.Service
	assetSvc       assetdomain.Service
	pdf            pdf.Provider
	email          email.Provider
	liveEvents     *liveevents.Hub
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Clock          clock.Clock
	Catalog        catalog.Provider
	ConsumptionSvc consumptiondomain.Service
	ReportSvc      reportdomain.Service
	InspectionSvc  inspectiondomain.Service
	AssetSvc       assetdomain.Service
	PDF            pdf.Provider
	Email          email.Provider      `optional:"true"`
	LiveEvents     *liveevents.Hub     `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		clock:          p.Clock,
		catalog:        p.Catalog,
		consumptionSvc: p.ConsumptionSvc,
		reportSvc:      p.ReportSvc,
		inspectionSvc:  p.InspectionSvc,
		assetSvc:       p.AssetSvc,
		pdf:            p.PDF,
		email:          p.Email,
		liveEvents:     p.LiveEvents,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/records", s.ListRecords)
	api.POST("/records", s.CreateRecord)
	api.PUT("/records/:id", s.UpdateRecord)
	api.DELETE("/records/:id", s.DeleteRecord)
	api.GET("/records/prefill", s.PrefillRecord)
	api.POST("/records/import", s.ImportRecords)
	api.GET("/records/export.csv", s.ExportRecordsCSV)
	api.GET("/records/export.xlsx", s.ExportRecordsXLSX)
	api.GET("/records/events", s.StreamRecordEvents)

	api.GET("/reports/:family", s.GetReport)
	api.GET("/reports/:family/pdf", s.GetReportPDF)

	api.GET("/lubricants", s.ListLubricants)

	api.GET("/assets", s.ListAssets)
	api.POST("/assets", s.UpsertAsset)
	api.GET("/assets/:name", s.GetAssetProfile)
	api.GET("/assets/:name/image", s.GetAssetImage)

	api.GET("/routes", s.ListRoutes)

	api.POST("/inspections", s.SubmitInspection)
	api.POST("/inspections/pdf", s.InspectionPDF)
	api.POST("/inspections/email", s.EmailInspection)
	api.GET("/inspections/draft", s.GetDraft)
	api.PUT("/inspections/draft", s.SaveDraft)
	api.DELETE("/inspections/draft", s.ClearDraft)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
