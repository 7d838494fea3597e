package api

import (
	"net/http"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type PreferencesHandler struct {
	prefs *usecase.PreferencesUseCase
	l     *applogger.Logger
}

func NewPreferencesHandler(prefs *usecase.PreferencesUseCase, l *applogger.Logger) *PreferencesHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &PreferencesHandler{prefs: prefs, l: l}
}

func (h *PreferencesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/preferences/:viewer/indicators")
	g.GET("", h.Get)
	g.POST("/:name/toggle", h.Toggle)
	g.DELETE("", h.Reset)
}

func (h *PreferencesHandler) Get(c echo.Context) error {
	req := &models.ViewerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	v, err := h.prefs.Get(c.Request().Context(), req.Viewer)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *PreferencesHandler) Toggle(c echo.Context) error {
	req := &models.ToggleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	v, err := h.prefs.Toggle(c.Request().Context(), req.Viewer, req.Indicator)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *PreferencesHandler) Reset(c echo.Context) error {
	req := &models.ViewerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	v, err := h.prefs.Reset(c.Request().Context(), req.Viewer)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *PreferencesHandler) fail(c echo.Context, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error("preferences request failed", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
