package summarizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"StockPulse/internal/domain/service"
)

// Placeholder answers without calling any model. It is used when no API key
// is configured.
type Placeholder struct {
	Delay time.Duration
}

func (p Placeholder) Summarize(ctx context.Context, req service.SectionRequest) (string, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	keys := make([]string, 0, len(req.Data))
	for k := range req.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := fmt.Sprintf("Placeholder summary for %s of %s. Textual data: %s.", req.Title, req.StockName, strings.Join(keys, ", "))
	if len(req.Images) > 0 {
		out += fmt.Sprintf(" %d chart image(s) prepared.", len(req.Images))
	}
	return out, nil
}
