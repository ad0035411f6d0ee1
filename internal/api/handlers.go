// Package api exposes the ingestion service over HTTP.
package api

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/dmitrijs2005/mediaingest/internal/filex"
	"github.com/dmitrijs2005/mediaingest/internal/ingest"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackMIME = "application/msgpack"

// Uploader is the ingest service as seen by the handlers.
type Uploader interface {
	Start(ctx context.Context, selection []models.RawFile, target models.UploadTarget, done func(*models.BatchResult, error)) error
	CancelUpload(name string) int
	Snapshot() ingest.Status
}

// Categories lists and creates archive categories.
type Categories interface {
	CreateCategory(ctx context.Context, containerID, name string) (*models.Category, error)
	ListCategories(ctx context.Context, containerID string) ([]*models.Category, error)
}

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	uploader   Uploader
	categories Categories
	checks     map[string]Pinger
	logger     logging.Logger
	// batchCtx outlives requests; batches keep running after the response.
	batchCtx context.Context
}

func NewHandler(batchCtx context.Context, uploader Uploader, categories Categories, checks map[string]Pinger, logger logging.Logger) *Handler {
	return &Handler{
		uploader:   uploader,
		categories: categories,
		checks:     checks,
		logger:     logger,
		batchCtx:   batchCtx,
	}
}

type startResponse struct {
	Accepted int    `json:"accepted"`
	Status   string `json:"status"`
}

// HandleStartUpload accepts a multipart selection and runs it as a batch in
// the background.
func (h *Handler) HandleStartUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}

	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}

	target := models.UploadTarget{
		ContainerID:       c.FormValue("container_id"),
		CurrentFolderID:   c.FormValue("folder_id"),
		ArchiveCategoryID: c.FormValue("category_id"),
		Actor:             c.FormValue("actor"),
	}
	if target.ContainerID == "" {
		return NewValidationError("container_id is required")
	}

	selection, cleanup, err := h.spool(headers)
	if err != nil {
		return NewInternalError("failed to buffer upload", err)
	}

	err = h.uploader.Start(h.batchCtx, selection, target, func(res *models.BatchResult, err error) {
		defer cleanup()
		ctx := context.Background()
		if err != nil {
			h.logger.Error(ctx, "upload batch failed", "error", err)
			return
		}
		h.logger.Info(ctx, "upload batch done", "summary", res.Summary, "uploaded", len(res.UploadedAssetIDs))
	})
	if err != nil {
		cleanup()
		return fromIngestError(err)
	}

	return c.JSON(http.StatusAccepted, startResponse{Accepted: len(selection), Status: "/api/uploads/status"})
}

// spool copies the request's parts to a private directory; the request's own
// temporary files are removed as soon as the handler returns.
func (h *Handler) spool(headers []*multipart.FileHeader) ([]models.RawFile, func(), error) {
	if len(headers) == 0 {
		return nil, func() {}, nil
	}

	dir, cleanup, err := filex.SpoolDir("mediaingest-upload-*")
	if err != nil {
		return nil, nil, err
	}

	out := make([]models.RawFile, 0, len(headers))
	for _, fh := range headers {
		path, err := spoolPart(dir, fh)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		raw, err := models.LocalFile(filepath.Base(fh.Filename), path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		out = append(out, raw)
	}
	return out, cleanup, nil
}

func spoolPart(dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path, _, err := filex.Spool(dir, "part-*", src)
	return path, err
}

// HandleStatus returns the live statuses as JSON, or msgpack with
// ?format=msgpack.
func (h *Handler) HandleStatus(c echo.Context) error {
	st := h.uploader.Snapshot()

	if c.QueryParam("format") == "msgpack" {
		data, err := msgpack.Marshal(st)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, msgpackMIME, data)
	}
	return c.JSON(http.StatusOK, st)
}

// HandleCancelFile aborts one in-flight transfer.
func (h *Handler) HandleCancelFile(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return NewValidationError("file name is required")
	}

	n := h.uploader.CancelUpload(name)
	if n == 0 {
		return NewNotFoundError("active upload", name)
	}
	return c.JSON(http.StatusOK, map[string]int{"cancelled": n})
}

// HandleCancelAll aborts every transfer and stops the running batch.
func (h *Handler) HandleCancelAll(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"cancelled": h.uploader.CancelUpload("")})
}

func (h *Handler) HandleListCategories(c echo.Context) error {
	list, err := h.categories.ListCategories(c.Request().Context(), c.Param("container"))
	if err != nil {
		return NewInternalError("failed to list categories", err)
	}
	if list == nil {
		list = []*models.Category{}
	}
	return c.JSON(http.StatusOK, list)
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleCreateCategory(c echo.Context) error {
	var req createCategoryRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name == "" {
		return NewValidationError("name is required")
	}

	cat, err := h.categories.CreateCategory(c.Request().Context(), c.Param("container"), req.Name)
	if err != nil {
		return NewInternalError("failed to create category", err)
	}
	return c.JSON(http.StatusCreated, cat)
}

// HandleHealth pings every dependency; any failure yields 503.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := http.StatusOK
	report := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(c.Request().Context()); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	return c.JSON(status, map[string]any{"status": state, "checks": report})
}
