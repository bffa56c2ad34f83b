package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/blobstore"
	"github.com/hupe1980/kmeanslab/internal/registry"
	"github.com/hupe1980/kmeanslab/snapshot"
)

var (
	errRateLimited = errors.New("too many requests")
	errRunsBusy    = errors.New("too many concurrent runs")
)

// requestError marks malformed request bodies and parameters.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// statusOf maps an error onto its HTTP status code.
func statusOf(err error) int {
	var (
		fe *fiber.Error
		re *requestError
	)

	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &re):
		return fiber.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, snapshot.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errRateLimited), errors.Is(err, errRunsBusy), errors.Is(err, registry.ErrMemoryLimit):
		return fiber.StatusTooManyRequests
	case errors.Is(err, snapshot.ErrInvalidName):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrSnapshotsDisabled):
		return fiber.StatusServiceUnavailable
	}

	switch kmeanslab.KindOf(err) {
	case kmeanslab.KindConfiguration:
		return fiber.StatusBadRequest
	case kmeanslab.KindRuntime:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError is the fiber error handler. It writes the error envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusOf(err)

	if code >= fiber.StatusInternalServerError {
		s.logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
	})
}

func success(c *fiber.Ctx, body fiber.Map) error {
	if body == nil {
		body = fiber.Map{}
	}
	body["status"] = "success"
	return c.JSON(body)
}
