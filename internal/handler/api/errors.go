package api

import (
	"context"
	"errors"

	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
	"StockPulse/internal/services/summarizer"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/queue"
)

// toAppError maps a use case error onto the HTTP error envelope.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var se *summarizer.Error
	if errors.As(err, &se) {
		switch {
		case errors.Is(se, summarizer.ErrContentBlocked):
			return xhttp.NewAppError("ERR_CONTENT_BLOCKED", "", se.Message, 422).WithError(err)
		case errors.Is(se, summarizer.ErrInvalidAPIKey):
			return xhttp.ServiceUnavailableError(se.Message).WithError(err)
		case errors.Is(se, summarizer.ErrQuotaExceeded):
			return xhttp.TooManyRequestsError(se.Message).WithError(err)
		case errors.Is(se, summarizer.ErrImagePayload):
			return xhttp.BadRequestError(se.Message).WithField("images").WithError(err)
		default:
			return xhttp.BadGatewayError(se.Message).WithError(err)
		}
	}

	switch {
	case errors.Is(err, domrepo.ErrStockNotFound):
		return xhttp.NotFoundError("Stock not found").WithError(err)
	case errors.Is(err, queue.ErrJobNotFound):
		return xhttp.NotFoundError("Summary job not found").WithError(err)
	case errors.Is(err, signal.ErrUnknownIndicator):
		return xhttp.NewAppError("ERR_UNKNOWN_INDICATOR", "indicators", err.Error(), 400).WithError(err)
	case errors.Is(err, usecase.ErrRateLimited):
		return xhttp.TooManyRequestsError("Too many summary requests. Try again shortly.").WithError(err)
	case errors.Is(err, domrepo.ErrUpstream):
		return xhttp.BadGatewayError("Stock data provider is unavailable").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "Request timed out", 504).WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}
