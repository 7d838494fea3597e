package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chartReq struct {
	ID        string `param:"id" json:"id" validate:"required"`
	TimeRange string `query:"time_range" json:"time_range" default:"1y" validate:"oneof=1m 6m 1y 3y 5y max"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
}

func newCtx(t *testing.T, method, target, body string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	c := newCtx(t, http.MethodGet, "/stock/TCS/price-chart", "")
	c.SetParamNames("id")
	c.SetParamValues("TCS")

	var req chartReq
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "TCS", req.ID)
	assert.Equal(t, "1y", req.TimeRange)
	assert.Equal(t, 100, req.Limit)
}

func TestReadAndValidateRequest_Errors(t *testing.T) {
	c := newCtx(t, http.MethodGet, "/stock/x/price-chart?time_range=2w&limit=9000", "")

	var req chartReq
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_REQUIRED", byField["id"].Code)
	assert.Equal(t, "ERR_ONEOF", byField["time_range"].Code)
	assert.Equal(t, "ERR_LTE", byField["limit"].Code)
	assert.Equal(t, "500", byField["limit"].Params["max"])
}

func TestReadAndValidateRequest_BadBody(t *testing.T) {
	c := newCtx(t, http.MethodPost, "/x", "{not json")
	var req chartReq
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c := newCtx(t, http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, NotFoundError("Stock not found")))
	rec := c.Response().Writer.(*httptest.ResponseRecorder)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_NOT_FOUND"`)

	c = newCtx(t, http.MethodPost, "/", "")
	wrapped := fmt.Errorf("summarize: %w", BadRequestError("Too many images").WithField("images"))
	require.NoError(t, AppErrorResponse(c, wrapped))
	rec = c.Response().Writer.(*httptest.ResponseRecorder)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"images"`)

	c = newCtx(t, http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, assert.AnError))
	rec = c.Response().Writer.(*httptest.ResponseRecorder)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAppErrorConstructors(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	tests := map[string]struct {
		err    *AppError
		code   string
		status int
	}{
		"not found":   {NotFoundError("x"), "ERR_NOT_FOUND", http.StatusNotFound},
		"bad request": {BadRequestError("x"), "ERR_BAD_REQUEST", http.StatusBadRequest},
		"rate":        {TooManyRequestsError("x"), "ERR_RATE_LIMITED", http.StatusTooManyRequests},
		"upstream":    {BadGatewayError("x"), "ERR_UPSTREAM", http.StatusBadGateway},
		"unavailable": {ServiceUnavailableError("x"), "ERR_UNAVAILABLE", http.StatusServiceUnavailable},
		"internal":    {InternalError("x"), "ERR_INTERNAL", http.StatusInternalServerError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			err := tt.err.WithError(cause)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, "x: dial tcp: refused", err.Error())
		})
	}
}
