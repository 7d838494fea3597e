package ws

import (
	"context"
	"net/http"

	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler upgrades /api/ws requests into live sessions.
type Handler struct {
	hub      *Hub
	stocks   *usecase.StocksUseCase
	prefs    *usecase.PreferencesUseCase
	opts     Options
	upgrader websocket.Upgrader
	l        *applogger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHandler(hub *Hub, stocks *usecase.StocksUseCase, prefs *usecase.PreferencesUseCase, opts Options, l *applogger.Logger) *Handler {
	if l == nil {
		l = applogger.Nop()
	}
	opts.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		hub:    hub,
		stocks: stocks,
		prefs:  prefs,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origin checks belong to the CORS config in front of us
			CheckOrigin: func(*http.Request) bool { return true },
		},
		l:      l,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ws", h.Serve)
}

type connectRequest struct {
	Viewer string `query:"viewer" validate:"omitempty,max=64"`
}

// Serve runs one session until the socket closes. Without a viewer id the
// session id doubles as the viewer key.
func (h *Handler) Serve(c echo.Context) error {
	req := &connectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}

	id := uuid.NewString()
	viewer := req.Viewer
	if viewer == "" {
		viewer = id
	}
	cl := &Client{
		id:   id,
		conn: conn,
		hub:  h.hub,
		opts: h.opts,
		l:    h.l.With(applogger.String("session", id)),
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
	cl.session = usecase.NewLiveSession(h.ctx, viewer, h.stocks, h.prefs, h.hub.metrics, cl.enqueue, h.l)

	h.hub.add(cl)
	cl.l.Debug("live session opened", applogger.String("viewer", viewer))

	go cl.writePump()
	cl.session.Start()
	cl.readPump()

	cl.session.Close()
	h.hub.remove(cl)
	cl.l.Debug("live session closed")
	return nil
}

// Shutdown cancels every session's fetches and closes the sockets.
func (h *Handler) Shutdown() {
	h.cancel()
	h.hub.CloseAll()
}
