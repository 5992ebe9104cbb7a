// Package api serves the local HTTP control surface: listing, renaming,
// closing and restoring spaces, plus health and metrics endpoints. It binds
// to loopback and is consumed by the CLI and the extension popup.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mocraimer/chrome-spaces/internal/application/usecase"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/infrastructure/browser/bridge"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// UseCases bundles the operations the API exposes.
type UseCases struct {
	List    *usecase.ListSpacesUseCase
	Rename  *usecase.RenameSpaceUseCase
	Close   *usecase.CloseSpaceUseCase
	Restore *usecase.RestoreArchivedUseCase
	Delete  *usecase.DeleteArchivedUseCase
}

// Server is the HTTP control API.
type Server struct {
	ctx      context.Context
	router   *gin.Engine
	usecases UseCases
}

// New builds the router. ctx carries the daemon logger into request handling.
func New(ctx context.Context, usecases UseCases) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		// The extension popup calls the API from a browser origin
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	s := &Server{ctx: ctx, router: router, usecases: usecases}
	s.registerRoutes()
	return s
}

// Handler returns the underlying HTTP handler, used directly in tests.
func (s *Server) Handler() http.Handler { return s.router }

// Serve runs the API at addr until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("control api listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.GET("/spaces", s.listSpaces)
	v1.POST("/spaces/:id/rename", s.renameSpace)
	v1.POST("/spaces/:id/close", s.closeSpace)
	v1.GET("/archive", s.listArchive)
	v1.POST("/archive/:id/restore", s.restoreArchived)
	v1.DELETE("/archive/:id", s.deleteArchived)
}

func (s *Server) listSpaces(c *gin.Context) {
	out, err := s.usecases.List.Execute(s.requestCtx(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listArchive(c *gin.Context) {
	out, err := s.usecases.List.Execute(s.requestCtx(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": out.Archived})
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) renameSpace(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	out, err := s.usecases.Rename.Execute(s.requestCtx(c), usecase.RenameSpaceInput{
		SpaceID: entity.SpaceID(c.Param("id")),
		Name:    req.Name,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) closeSpace(c *gin.Context) {
	err := s.usecases.Close.Execute(s.requestCtx(c), usecase.CloseSpaceInput{
		SpaceID: entity.SpaceID(c.Param("id")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) restoreArchived(c *gin.Context) {
	out, err := s.usecases.Restore.Execute(s.requestCtx(c), usecase.RestoreArchivedInput{
		SpaceID: entity.SpaceID(c.Param("id")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteArchived(c *gin.Context) {
	err := s.usecases.Delete.Execute(s.requestCtx(c), usecase.DeleteArchivedInput{
		SpaceID: entity.SpaceID(c.Param("id")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requestCtx carries the daemon logger but honors the request's cancellation.
func (s *Server) requestCtx(c *gin.Context) context.Context {
	return logging.WithContext(c.Request.Context(), *logging.FromContext(s.ctx))
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrSpaceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrNameRejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, bridge.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logging.FromContext(s.ctx).Error().Err(err).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
