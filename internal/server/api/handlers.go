package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"passiflora/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether the metadata store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers for the Passiflora API.
type Handler struct {
	accounts      *service.AccountService
	files         *service.FileService
	health        HealthChecker
	maxUploadSize int64
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(accounts *service.AccountService, files *service.FileService, health HealthChecker, maxUploadSize int64) *Handler {
	return &Handler{
		accounts:      accounts,
		files:         files,
		health:        health,
		maxUploadSize: maxUploadSize,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// HandleRegister handles POST /register.
func (h *Handler) HandleRegister(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	id, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// HandleListFiles handles GET /files/:user_id.
func (h *Handler) HandleListFiles(c echo.Context) error {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
	}

	files, err := h.files.List(c.Request().Context(), authorization(c), userID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, files)
}

// HandleUpload handles POST /files.
// Every part of the multipart body is stored as a separate file.
func (h *Handler) HandleUpload(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadSize)

	stored, err := h.files.Upload(req.Context(), authorization(c), &requestParts{req: req})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, stored)
}

// HandleDownload handles GET /files/:user_id/:file_id.
// The blob is streamed; it is never read fully into memory.
func (h *Handler) HandleDownload(c echo.Context) error {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
	}
	fileID, ok := pathID(c, "file_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file_id"})
	}

	dl, err := h.files.Download(c.Request().Context(), authorization(c), userID, fileID)
	if err != nil {
		return mapServiceError(c, err)
	}
	defer dl.Body.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, contentDisposition(dl.File.Name))
	if dl.Complete {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(*dl.File.Size, 10))
	}
	return c.Stream(http.StatusOK, dl.File.MimeType, dl.Body)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.health.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// requestParts opens the multipart reader on first use so the service can
// authenticate before the body is touched.
type requestParts struct {
	req *http.Request
	mr  *multipart.Reader
}

func (p *requestParts) NextPart() (*multipart.Part, error) {
	if p.mr == nil {
		mr, err := p.req.MultipartReader()
		if err != nil {
			return nil, err
		}
		p.mr = mr
	}
	return p.mr.NextPart()
}

func authorization(c echo.Context) string {
	return c.Request().Header.Get(echo.HeaderAuthorization)
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil
}

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", " ", "\n", " ")

// contentDisposition builds an attachment header carrying the stored
// display name as a quoted string.
func contentDisposition(name string) string {
	return `attachment; filename="` + dispositionEscaper.Replace(name) + `"`
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
	}

	var status int
	var msg string
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrBadRequest):
		status, msg = http.StatusBadRequest, "bad request"
	case errors.Is(err, service.ErrConflict):
		status, msg = http.StatusConflict, "conflict"
	default:
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	if public := service.PublicMessage(err); public != "" {
		msg = public
	}
	return c.JSON(status, echo.Map{"error": msg})
}
