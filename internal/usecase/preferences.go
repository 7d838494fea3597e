package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
	applogger "StockPulse/pkg/logger"
)

// IndicatorState is one row of a viewer's mask as the UI renders it.
type IndicatorState struct {
	Name        signal.IndicatorName `json:"name"`
	DisplayName string               `json:"displayName"`
	Weight      float64              `json:"weight"`
	Selected    bool                 `json:"selected"`
}

// MaskView is a viewer's mask with the full catalog attached.
type MaskView struct {
	Viewer     string                 `json:"viewer"`
	Mask       string                 `json:"mask"`
	Selected   []signal.IndicatorName `json:"selected"`
	Indicators []IndicatorState       `json:"indicators"`
	Stored     bool                   `json:"stored"`
}

func newMaskView(viewer string, m signal.SelectionMask, stored bool) *MaskView {
	cat := signal.Catalog()
	states := make([]IndicatorState, len(cat))
	for i, info := range cat {
		states[i] = IndicatorState{
			Name:        info.Name,
			DisplayName: info.DisplayName,
			Weight:      info.Weight,
			Selected:    m.Selected(info.Name),
		}
	}
	return &MaskView{
		Viewer:     viewer,
		Mask:       m.String(),
		Selected:   m.Names(),
		Indicators: states,
		Stored:     stored,
	}
}

const maskStripes = 64

// PreferencesUseCase owns the per-viewer selection mask.
type PreferencesUseCase struct {
	store domrepo.PreferenceStore
	l     *applogger.Logger
	locks [maskStripes]sync.Mutex
}

func NewPreferencesUseCase(store domrepo.PreferenceStore, l *applogger.Logger) *PreferencesUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &PreferencesUseCase{store: store, l: l}
}

// lock serialises read-modify-write on one viewer's mask.
func (uc *PreferencesUseCase) lock(viewer string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(viewer))
	mu := &uc.locks[h.Sum32()%maskStripes]
	mu.Lock()
	return mu.Unlock
}

// Mask returns the stored mask, or every indicator when nothing is stored.
func (uc *PreferencesUseCase) Mask(ctx context.Context, viewer string) (signal.SelectionMask, bool, error) {
	if viewer == "" || uc.store == nil {
		return signal.DefaultMask(), false, nil
	}
	m, ok, err := uc.store.GetMask(ctx, viewer)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return signal.DefaultMask(), false, nil
	}
	return m, true, nil
}

// Resolve picks the mask for a request: an explicit indicators list wins,
// then the viewer's stored mask, then all indicators. A store failure falls
// back to all indicators so the board still renders.
func (uc *PreferencesUseCase) Resolve(ctx context.Context, indicators, viewer string) (signal.SelectionMask, error) {
	if strings.TrimSpace(indicators) != "" {
		return signal.ParseMask(indicators)
	}
	m, _, err := uc.Mask(ctx, viewer)
	if err != nil {
		uc.l.Warn("mask lookup failed, using all indicators",
			applogger.String("viewer", viewer), applogger.Error(err))
		return signal.DefaultMask(), nil
	}
	return m, nil
}

func (uc *PreferencesUseCase) Get(ctx context.Context, viewer string) (*MaskView, error) {
	m, stored, err := uc.Mask(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("get mask: %w", err)
	}
	return newMaskView(viewer, m, stored), nil
}

// Toggle flips one indicator for viewer and stores the result.
func (uc *PreferencesUseCase) Toggle(ctx context.Context, viewer, name string) (*MaskView, error) {
	n, ok := signal.ParseIndicator(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", signal.ErrUnknownIndicator, name)
	}
	defer uc.lock(viewer)()

	m, _, err := uc.Mask(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	next := m.Toggle(n)
	if err := uc.store.SaveMask(ctx, viewer, next); err != nil {
		return nil, err
	}
	uc.l.Debug("indicator toggled",
		applogger.String("viewer", viewer),
		applogger.String("indicator", string(n)),
		applogger.Bool("selected", next.Selected(n)))
	return newMaskView(viewer, next, true), nil
}

// Reset drops the stored mask, which restores every indicator.
func (uc *PreferencesUseCase) Reset(ctx context.Context, viewer string) (*MaskView, error) {
	defer uc.lock(viewer)()
	if err := uc.store.DeleteMask(ctx, viewer); err != nil {
		return nil, err
	}
	return newMaskView(viewer, signal.DefaultMask(), false), nil
}
