package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/signal"
)

const boardJSON = `[
 {"id":"TCS","name":"Tata Consultancy","currentPrice":3500.5,"marketCap":"12,00,000 Cr",
  "signals":[{"name":"EMA","decision":"Buy"},{"name":"RSI","decision":"Sell"}]},
 {"id":"INFY","name":"Infosys","currentPrice":1500,"marketCap":"6,00,000 Cr",
  "signals":[{"name":"EMA","decision":"Sell"},{"name":"MACD","decision":"Strong Sell"}]}
]`

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
provider:
  base_url: %s
  attempts: 1
storage:
  driver: sqlite
  sqlite:
    path: %s
summarizer:
  provider: placeholder
scheduler:
  enabled: false
`, baseURL, filepath.Join(dir, "history.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSignalCommand_PrintsBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stocks", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(boardJSON))
	}))
	defer srv.Close()
	cfgPath := writeConfig(t, srv.URL+"/api")

	out, err := run(t, "--config", cfgPath, "signal", "--indicators", "EMA")
	require.NoError(t, err)
	assert.Contains(t, out, "TCS")
	assert.Contains(t, out, "3500.50")
	assert.Contains(t, out, "indicators: EMA")
	assert.Contains(t, out, "Buy")
	assert.Contains(t, out, "Sell")
}

func TestSignalCommand_RejectsUnknownIndicator(t *testing.T) {
	_, err := run(t, "signal", "--indicators", "FOO")
	require.Error(t, err)
}

func TestSignalCommand_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := run(t, "--config", writeConfig(t, srv.URL+"/api"), "signal")
	require.Error(t, err)
}

func TestHistoryCommand_EmptyStore(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t, "http://127.0.0.1:1/api"), "history", "TCS")
	require.NoError(t, err)
	assert.Contains(t, out, "Signal history TCS")
	assert.Contains(t, out, "no snapshots recorded")
}

func TestHistoryCommand_RequiresStockID(t *testing.T) {
	_, err := run(t, "history")
	require.Error(t, err)
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	renderHistory(&buf, "INFY", []models.SignalSnapshot{{
		StockID:    "INFY",
		Decision:   signal.StrongSell,
		Score:      -2.5,
		Source:     "refresh",
		RecordedAt: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}})
	out := buf.String()
	assert.Contains(t, out, "2024-03-15 09:30:00")
	assert.Contains(t, out, "-2.50")
	assert.Contains(t, out, "Strong Sell")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
