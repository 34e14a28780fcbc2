package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/observability"
	"github.com/aqw/HTCrystalBall/internal/preview"
	"github.com/aqw/HTCrystalBall/pkg/crystalapi"
)

// Server exposes read-only previews over the inventory held by store.
type Server struct {
	store   *inventory.Store
	engine  *preview.Engine
	metrics *observability.Registry
	log     zerolog.Logger
	router  *gin.Engine
}

func NewServer(store *inventory.Store, engine *preview.Engine, metrics *observability.Registry, logger zerolog.Logger) *Server {
	if metrics == nil {
		metrics = observability.Default
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{store: store, engine: engine, metrics: metrics, log: logger}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(withTracing(), requestLogger(logger, metrics))
	s.RegisterRoutes(router)
	s.router = router
	return s
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", s.health)
	router.GET("/v1/slots", s.listSlots)
	router.POST("/v1/slots/reload", s.reloadSlots)
	router.POST("/v1/preview", s.preview)
	router.GET("/v1/metrics", s.metricsJSON)
	router.GET("/v1/metrics/prometheus", s.metricsPrometheus)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains for up to five
// seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("slots", s.store.Source()).Msg("preview service listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, crystalapi.Response{Ok: true, Data: crystalapi.HealthResponse{Status: "ok"}})
}

func (s *Server) metricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) metricsPrometheus(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(s.metrics.RenderPrometheus()))
}

func writeError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, crystalapi.Response{Ok: false, Error: err.Error()})
}
