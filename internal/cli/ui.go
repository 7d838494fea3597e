package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/signal"
	"StockPulse/internal/usecase"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	// keyed by signal style class
	verdictStyles = map[string]lipgloss.Style{
		signal.ClassStrongBuy:  lipgloss.NewStyle().Foreground(lipgloss.Color("#059669")).Bold(true),
		signal.ClassBuy:        lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
		signal.ClassNeutral:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		signal.ClassSell:       lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")),
		signal.ClassStrongSell: lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true),
	}
)

func verdict(label string) string {
	if st, ok := verdictStyles[signal.StyleClass(label)]; ok {
		return st.Render(label)
	}
	return label
}

func renderBoard(w io.Writer, b *usecase.Board) {
	fmt.Fprintln(w, titleStyle.Render("Stock signals"))
	fmt.Fprintln(w, mutedStyle.Render("indicators: "+b.Mask))
	fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("%-12s %-32s %10s  %s", "ID", "NAME", "PRICE", "SIGNAL")))
	for _, row := range b.Stocks {
		fmt.Fprintf(w, "%-12s %-32s %10s  %s\n",
			row.ID, truncate(row.Name, 32), price(row.CurrentPrice), verdict(row.OverallSignal))
	}
	if len(b.Stocks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no stocks"))
	}
}

func renderHistory(w io.Writer, stockID string, snaps []models.SignalSnapshot) {
	fmt.Fprintln(w, titleStyle.Render("Signal history "+stockID))
	if len(snaps) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no snapshots recorded"))
		return
	}
	fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("%-20s %-8s %7s  %s", "RECORDED", "SOURCE", "SCORE", "SIGNAL")))
	for _, s := range snaps {
		fmt.Fprintf(w, "%-20s %-8s %7.2f  %s\n",
			s.RecordedAt.Format("2006-01-02 15:04:05"), s.Source, s.Score, verdict(s.Decision.String()))
	}
}

func price(n models.Num) string {
	v, ok := n.Get()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
