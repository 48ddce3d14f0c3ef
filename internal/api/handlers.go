// Package api contains the HTTP handlers for the review service
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"image-review/backend/internal/auth"
	"image-review/backend/internal/backend"
	"image-review/backend/internal/review"
	"image-review/backend/pkg/models"
)

const (
	serviceName = "image-review"
	version     = "1.0.0"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Reviewer is the part of review.Service the handlers use.
type Reviewer interface {
	Next(ctx context.Context, reviewer string) (review.Presented, error)
	Decide(ctx context.Context, reviewer string, req review.TransitionRequest) (backend.Item, error)
}

// Handler contains HTTP handlers for the review REST API
type Handler struct {
	reviews Reviewer
	title   string
	logger  Logger
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(reviews Reviewer, title string, logger Logger) *Handler {
	return &Handler{reviews: reviews, title: title, logger: logger}
}

// Register mounts the routes. protect guards the reviewer endpoints.
func Register(e *echo.Echo, h *Handler, protect echo.MiddlewareFunc) {
	e.GET("/", h.Welcome)
	e.GET("/healthz", h.Health)
	e.GET("/image", h.Image, protect)
	e.POST("/move", h.Move, protect)
}

// Welcome returns the API title
// (GET /)
func (h *Handler) Welcome(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Welcome{Title: h.title})
}

// Health returns basic health status (always returns 200 OK)
// (GET /healthz)
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Health{Status: "ok", Service: serviceName, Version: version})
}

// Image presents a random pending item
// (GET /image)
func (h *Handler) Image(c echo.Context) error {
	ctx := c.Request().Context()

	p, err := h.reviews.Next(ctx, reviewerOf(c))
	if err != nil {
		return h.fail(c, "select image", err)
	}
	return c.JSON(http.StatusOK, models.Image{ImageURL: p.URL, ID: p.ID})
}

// Move records a reviewer decision
// (POST /move)
func (h *Handler) Move(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.MoveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Error{Error: "Invalid request body"})
	}

	item, err := h.reviews.Decide(ctx, reviewerOf(c), review.TransitionRequest{
		Action: req.Action,
		ItemID: req.UniqueID,
	})
	if err != nil {
		return h.fail(c, "move "+req.UniqueID, err)
	}
	return c.JSON(http.StatusOK, models.Message{Message: "File moved to " + item.Path})
}

// fail logs err with context and writes the public form of it.
func (h *Handler) fail(c echo.Context, op string, err error) error {
	status, msg := Classify(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", "op", op, "error", err)
	case status == http.StatusNotFound:
		h.logger.Warn("nothing to review", "op", op, "error", err)
	default:
		h.logger.Info("request rejected", "op", op, "status", status, "error", err)
	}
	return c.JSON(status, models.Error{Error: msg})
}

// Classify maps an error onto an HTTP status and a message safe to return to
// clients.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid or missing token"
	case errors.Is(err, review.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action. Must be one of: approve, delete, rework"
	case errors.Is(err, review.ErrMissingParameter):
		return http.StatusBadRequest, "Missing required parameter: action and uniqueID are required"
	case errors.Is(err, review.ErrEmptyQueue):
		return http.StatusNotFound, "No files found in pending folder"
	case errors.Is(err, review.ErrAllReserved):
		return http.StatusNotFound, "All pending files are currently being reviewed"
	case errors.Is(err, review.ErrItemNotFound):
		return http.StatusInternalServerError, "Item not found, it may have been moved already"
	case errors.Is(err, review.ErrTransitionConflict):
		return http.StatusInternalServerError, "A file with the same name already exists in the target folder"
	case errors.Is(err, review.ErrLinkResolution):
		return http.StatusInternalServerError, "Failed to create a shared link"
	default:
		return http.StatusInternalServerError, "Backend request failed"
	}
}

// ErrorHandler renders echo's own errors (unknown route, wrong method, rate
// limit, panics) in the same {"error": ...} shape.
func ErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := http.StatusText(status)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled error", "path", c.Request().URL.Path, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, models.Error{Error: msg})
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}

func reviewerOf(c echo.Context) string {
	id, _ := auth.CallerID(c.Request().Context())
	return id
}
