package server

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zpam/spam-detect/pkg/apperr"
)

const requestIDHeader = "X-Request-ID"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

// errorHandler maps AppError and fiber errors onto ErrorResponse
func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		response := ErrorResponse{RequestID: requestID(c)}
		var status int

		var appErr *apperr.AppError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			response.Error = appErr.Message
			response.Code = appErr.Code
			response.Details = appErr.Details

			event := log.Warn()
			if status >= 500 {
				event = log.Error()
			}
			event.Str("request_id", response.RequestID).
				Str("error_code", appErr.Code).
				AnErr("cause", appErr.Err).
				Msg(appErr.Message)

		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			response.Error = fiberErr.Message
			response.Code = mapHTTPStatusToCode(fiberErr.Code)

		default:
			status = fiber.StatusInternalServerError
			response.Error = "An unexpected error occurred"
			response.Code = apperr.CodeInternalError

			log.Error().
				Str("request_id", response.RequestID).
				Err(err).
				Msg("unexpected error")
		}

		return c.Status(status).JSON(response)
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Locals("request_id", id)
		c.Set(requestIDHeader, id)
		return c.Next()
	}
}

// requestLogger logs every request once it has been handled
func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// let the error handler set the final status before logging
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				c.Status(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}

		event.
			Str("request_id", requestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0).
			Str("ip", c.IP()).
			Msg("request completed")

		return nil
	}
}

// recoverMiddleware turns panics into 500 responses
func recoverMiddleware(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", requestID(c)).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusInternalServerError:
		return apperr.CodeInternalError
	case fiber.StatusServiceUnavailable:
		return apperr.CodeModelUnavailable
	default:
		return "UNKNOWN_ERROR"
	}
}
