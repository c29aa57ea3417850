package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/thumbwatch/internal/pipeline"
)

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, msg)
}

// ErrBadGateway returns a 502 Bad Gateway error.
func ErrBadGateway(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadGateway, msg)
}

// ErrInternal returns a 500 Internal Server Error.
func ErrInternal(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// PipelineError maps an ingestion failure onto an HTTP error. Problems with
// the submitted reference are the caller's fault; everything else is ours or
// upstream's.
func PipelineError(err error) *echo.HTTPError {
	if pipeline.ClientError(err) {
		slog.Info("rejected submission", "error", err)
		if errors.Is(err, pipeline.ErrInvalidReference) {
			return ErrBadRequest("invalid YouTube video URL")
		}
		return ErrBadRequest("video is unavailable or has no metadata")
	}
	if errors.Is(err, pipeline.ErrUpstreamUnavailable) {
		slog.Warn("upstream unavailable", "error", err)
		return ErrBadGateway("YouTube is unavailable, try again later")
	}
	slog.Error("failed to process video", "error", err)
	return ErrInternal("failed to process video")
}
