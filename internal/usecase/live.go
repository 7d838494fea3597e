package usecase

import (
	"context"
	"errors"
	"sync"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
	applogger "StockPulse/pkg/logger"
)

// ViewTracker hands out increasing epochs. Only the latest epoch is fresh.
type ViewTracker struct {
	mu    sync.Mutex
	epoch uint64
}

// Begin starts a new request and returns its epoch.
func (v *ViewTracker) Begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.epoch++
	return v.epoch
}

// Fresh reports whether epoch is still the latest.
func (v *ViewTracker) Fresh(epoch uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.epoch == epoch
}

func (v *ViewTracker) Current() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.epoch
}

// Live message and command types.
const (
	LiveView   = "view"
	LiveToggle = "toggle"
	LiveRange  = "range"
	LiveBack   = "back"

	LiveBoard  = "board"
	LiveStock  = "stock"
	LiveChart  = "chart"
	LiveMask   = "mask"
	LiveUpdate = "update"
	LiveError  = "error"
)

// LiveCommand is one message from a viewer.
type LiveCommand struct {
	Type      string `json:"type" validate:"required,oneof=view toggle range back"`
	StockID   string `json:"stockId" validate:"required_if=Type view,max=64"`
	Indicator string `json:"indicator" validate:"required_if=Type toggle,max=32"`
	TimeRange string `json:"timeRange" validate:"required_if=Type range,omitempty,oneof=1m 6m 1y 3y 5y max"`
}

// LiveMessage is one message to a viewer. Epoch ties a response to the
// view request that caused it.
type LiveMessage struct {
	Type    string         `json:"type"`
	Epoch   uint64         `json:"epoch"`
	StockID string         `json:"stockId,omitempty"`
	Data    any            `json:"data,omitempty"`
	Error   *LiveErrorBody `json:"error,omitempty"`
}

type LiveErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LiveSession is one viewer's live view. Switching stock starts a new
// epoch; responses for older epochs are dropped whole, never merged.
type LiveSession struct {
	viewer  string
	stocks  *StocksUseCase
	prefs   *PreferencesUseCase
	metrics domrepo.Metrics
	send    func(LiveMessage)
	l       *applogger.Logger

	views  ViewTracker
	charts ViewTracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	mask        signal.SelectionMask
	stockID     string
	view        *StockView
	timeRange   models.TimeRange
	cancelFetch context.CancelFunc
}

// NewLiveSession creates a session. send must be safe for concurrent use.
func NewLiveSession(ctx context.Context, viewer string, stocks *StocksUseCase, prefs *PreferencesUseCase, m domrepo.Metrics, send func(LiveMessage), l *applogger.Logger) *LiveSession {
	if l == nil {
		l = applogger.Nop()
	}
	sctx, cancel := context.WithCancel(ctx)
	return &LiveSession{
		viewer:    viewer,
		stocks:    stocks,
		prefs:     prefs,
		metrics:   m,
		send:      send,
		l:         l.With(applogger.String("viewer", viewer)),
		ctx:       sctx,
		cancel:    cancel,
		mask:      signal.DefaultMask(),
		timeRange: models.DefaultTimeRange(),
	}
}

func (s *LiveSession) Viewer() string { return s.viewer }

// Viewing returns the stock on screen, or "" on the board.
func (s *LiveSession) Viewing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stockID
}

// Start loads the stored mask and sends it with the board.
func (s *LiveSession) Start() {
	m, _, err := s.prefs.Mask(s.ctx, s.viewer)
	if err != nil {
		s.l.Warn("load mask failed", applogger.Error(err))
		m = signal.DefaultMask()
	}
	s.mu.Lock()
	s.mask = m
	s.mu.Unlock()
	s.send(LiveMessage{Type: LiveMask, Data: newMaskView(s.viewer, m, err == nil)})
	s.back()
}

// Handle applies one command. Fetches run in the background.
func (s *LiveSession) Handle(cmd LiveCommand) {
	switch cmd.Type {
	case LiveView:
		s.viewStock(cmd.StockID)
	case LiveToggle:
		s.toggle(cmd.Indicator)
	case LiveRange:
		s.setRange(models.TimeRange(cmd.TimeRange))
	case LiveBack:
		s.back()
	default:
		s.sendError(s.views.Current(), "", errors.New("unknown command "+cmd.Type))
	}
}

// Deliver applies fresh upstream signals when they concern the stock on
// screen. Other stocks are ignored.
func (s *LiveSession) Deliver(u models.SignalUpdate) {
	s.mu.Lock()
	if s.view == nil || s.view.Stock == nil || s.view.Stock.ID != u.StockID {
		s.mu.Unlock()
		return
	}
	d := *s.view.Stock
	d.Signals = u.Signals
	next := *s.view
	next.Stock = &d
	next.Rejudge(s.mask)
	s.view = &next
	epoch := s.views.Current()
	s.mu.Unlock()

	s.send(LiveMessage{Type: LiveUpdate, Epoch: epoch, StockID: u.StockID, Data: next.Verdict})
}

// Close cancels in-flight fetches and waits for them.
func (s *LiveSession) Close() {
	s.cancel()
	s.wg.Wait()
}

// fetchCtx cancels the previous fetch and returns a context for the next.
func (s *LiveSession) fetchCtx() context.Context {
	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.cancelFetch = cancel
	s.mu.Unlock()
	return ctx
}

// viewStock starts a new epoch. Epochs only move under s.mu so the view
// state and the epoch it belongs to change together.
func (s *LiveSession) viewStock(id string) {
	ctx := s.fetchCtx()

	s.mu.Lock()
	epoch := s.views.Begin()
	chartEpoch := s.charts.Begin()
	s.stockID = id
	s.view = nil
	mask := s.mask.Clone()
	tr := s.timeRange
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		v, err := s.stocks.DetailWithMask(ctx, id, mask)
		if !s.views.Fresh(epoch) {
			s.dropStale()
			return
		}
		if err != nil {
			s.sendError(epoch, id, err)
			return
		}
		s.mu.Lock()
		if !s.views.Fresh(epoch) {
			s.mu.Unlock()
			s.dropStale()
			return
		}
		// a toggle may have landed while fetching
		if !sameMask(mask, s.mask) {
			v.Rejudge(s.mask)
		}
		s.view = v
		s.mu.Unlock()
		s.send(LiveMessage{Type: LiveStock, Epoch: epoch, StockID: id, Data: v})

		s.fetchChart(ctx, id, tr, epoch, chartEpoch)
	}()
}

func (s *LiveSession) setRange(r models.TimeRange) {
	s.mu.Lock()
	s.timeRange = r
	id := s.stockID
	epoch := s.views.Current()
	s.mu.Unlock()
	if id == "" {
		return
	}
	chartEpoch := s.charts.Begin()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fetchChart(s.ctx, id, r, epoch, chartEpoch)
	}()
}

func (s *LiveSession) fetchChart(ctx context.Context, id string, r models.TimeRange, epoch, chartEpoch uint64) {
	c, err := s.stocks.PriceChart(ctx, id, r, 0)
	if !s.views.Fresh(epoch) || !s.charts.Fresh(chartEpoch) {
		s.dropStale()
		return
	}
	if err != nil {
		s.sendError(epoch, id, err)
		return
	}
	s.send(LiveMessage{Type: LiveChart, Epoch: epoch, StockID: id, Data: c})
}

func (s *LiveSession) back() {
	ctx := s.fetchCtx()

	s.mu.Lock()
	epoch := s.views.Begin()
	s.charts.Begin()
	s.stockID = ""
	s.view = nil
	mask := s.mask.Clone()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		b, err := s.stocks.BoardWithMask(ctx, mask)
		if !s.views.Fresh(epoch) {
			s.dropStale()
			return
		}
		if err != nil {
			s.sendError(epoch, "", err)
			return
		}
		s.send(LiveMessage{Type: LiveBoard, Epoch: epoch, Data: b})
	}()
}

// toggle flips an indicator. A failure leaves the mask untouched.
func (s *LiveSession) toggle(name string) {
	mv, err := s.prefs.Toggle(s.ctx, s.viewer, name)
	epoch := s.views.Current()
	if err != nil {
		s.sendError(epoch, "", err)
		return
	}
	m, _ := signal.ParseMask(mv.Mask)

	s.mu.Lock()
	s.mask = m
	var rejudged *StockView
	if s.view != nil {
		next := *s.view
		next.Rejudge(m)
		s.view = &next
		rejudged = &next
	}
	s.mu.Unlock()

	s.send(LiveMessage{Type: LiveMask, Epoch: epoch, Data: mv})
	if rejudged != nil {
		s.send(LiveMessage{Type: LiveStock, Epoch: epoch, StockID: rejudged.Stock.ID, Data: rejudged})
	}
}

func (s *LiveSession) dropStale() {
	if s.metrics != nil {
		s.metrics.RecordStaleDrop()
	}
}

func (s *LiveSession) sendError(epoch uint64, stockID string, err error) {
	if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		return
	}
	code, msg := ErrorCode(err)
	s.send(LiveMessage{Type: LiveError, Epoch: epoch, StockID: stockID, Error: &LiveErrorBody{Code: code, Message: msg}})
}

// ErrorCode maps a use case error to a stable code and a message safe to
// show a viewer.
func ErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, domrepo.ErrStockNotFound):
		return "ERR_NOT_FOUND", "Stock not found"
	case errors.Is(err, signal.ErrUnknownIndicator):
		return "ERR_VALIDATION", err.Error()
	case errors.Is(err, domrepo.ErrUpstream):
		return "ERR_UPSTREAM", "Stock data provider is unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "ERR_TIMEOUT", "Request timed out"
	default:
		return "ERR_INTERNAL", "Something went wrong"
	}
}

func sameMask(a, b signal.SelectionMask) bool {
	return a.String() == b.String()
}
