package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewRouter builds the echo instance with all routes registered.
func NewRouter(h *Handler, logger logging.Logger, bodyLimit string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if v.Error != nil {
				logger.Warn(ctx, "request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "error", v.Error)
				return nil
			}
			logger.Debug(ctx, "request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}

	e.GET("/health", h.HandleHealth)

	g := e.Group("/api")
	g.POST("/uploads", h.HandleStartUpload)
	g.GET("/uploads/status", h.HandleStatus)
	g.DELETE("/uploads", h.HandleCancelAll)
	g.DELETE("/uploads/files/:name", h.HandleCancelFile)

	g.GET("/containers/:container/categories", h.HandleListCategories)
	g.POST("/containers/:container/categories", h.HandleCreateCategory)

	return e
}

// Serve runs e on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string, logger logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
