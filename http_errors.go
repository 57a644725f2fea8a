package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

const (
	internalErrorCode    = "internal_error"
	internalErrorMessage = "An unexpected server error occurred"
)

// NewErrorHandler returns the handler that every route and the bearer
// middleware report to. Errors of a known kind are written as their code and
// message, everything else becomes a generic 500. Details only go to the log.
func NewErrorHandler(logger Logger) router.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(ctx router.Context, err error) error {
		status, body := errorResponse(err)
		logFailure(logger, ctx.Method(), ctx.Path(), status, body, err)
		return ctx.JSON(status, body)
	}
}

// NewFiberErrorHandler renders errors raised by fiber itself, such as an
// unmatched route, with the same body as NewErrorHandler.
func NewFiberErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		status, body := errorResponse(err)
		logFailure(logger, c.Method(), c.Path(), status, body, err)
		return c.Status(status).JSON(body)
	}
}

func logFailure(logger Logger, method, path string, status int, body ErrorResponse, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error(
			"request failed",
			"path", path,
			"method", method,
			"error", err,
			"details", print.MaybePrettyJSON(errorDetails(err)),
		)
		return
	}
	logger.Info(
		"request rejected",
		"path", path,
		"method", method,
		"error", body.Error,
	)
}

func errorResponse(err error) (int, ErrorResponse) {
	if kind := KindOf(err); kind != KindUnknown {
		var richErr *goerrors.Error
		goerrors.As(err, &richErr)

		status := richErr.Code
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ErrorResponse{
			Error:            string(kind),
			ErrorDescription: richErr.Message,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < http.StatusInternalServerError {
		return fiberErr.Code, ErrorResponse{
			Error:            codeForStatus(fiberErr.Code),
			ErrorDescription: fiberErr.Message,
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:            internalErrorCode,
		ErrorDescription: internalErrorMessage,
	}
}

func errorDetails(err error) map[string]any {
	details := map[string]any{"error": err.Error()}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		details["category"] = richErr.Category
		details["text_code"] = richErr.TextCode
		if len(richErr.Metadata) > 0 {
			details["metadata"] = richErr.Metadata
		}
		if richErr.Source != nil {
			details["source"] = richErr.Source.Error()
		}
	}
	return details
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		return "bad_request"
	}
}
