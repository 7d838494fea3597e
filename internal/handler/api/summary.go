package api

import (
	"net/http"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type SummaryHandler struct {
	uc *usecase.SummaryUseCase
	l  *applogger.Logger
}

func NewSummaryHandler(uc *usecase.SummaryUseCase, l *applogger.Logger) *SummaryHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SummaryHandler{uc: uc, l: l}
}

func (h *SummaryHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/stock/:id/summary", h.Summarize)
	g.GET("/summary/jobs/:id", h.Job)
}

// Summarize answers 200 with the summary, or 202 with the job when queued.
func (h *SummaryHandler) Summarize(c echo.Context) error {
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	images := make([]service.Image, len(req.Images))
	for i, img := range req.Images {
		images[i] = service.Image{MimeType: img.MimeType, Data: img.Data, Description: img.Description}
	}
	out, err := h.uc.Summarize(c.Request().Context(), usecase.SummaryCommand{
		StockID:    req.ID,
		Section:    req.Section,
		TimeRange:  req.TimeRange,
		Show50DMA:  models.Flag(req.Show50DMA),
		Show200DMA: models.Flag(req.Show200DMA),
		ShowVolume: models.Flag(req.ShowVolume),
		Images:     images,
		Viewer:     req.Viewer,
		Async:      req.Async,
	})
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.l.Error("summary failed",
				applogger.String("stock_id", req.ID),
				applogger.String("section", req.Section),
				applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	if out.Job != nil {
		return xhttp.AcceptedResponse(c, out.Job)
	}
	return xhttp.SuccessResponse(c, out.Result)
}

func (h *SummaryHandler) Job(c echo.Context) error {
	req := &models.SummaryJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.uc.JobStatus(c.Request().Context(), req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, st)
}
