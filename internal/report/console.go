package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"ohlcv-backtester/pkg/types"
	"ohlcv-backtester/pkg/utils"
)

const defaultConsoleWidth = 80

// consoleWidth returns the detected terminal width, falling back to
// defaultConsoleWidth when stdout isn't a TTY.
func consoleWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return defaultConsoleWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultConsoleWidth
	}
	return w
}

// String renders a human console summary box of a completed run, sizing
// the box to the detected terminal width (clamped to 40..100 columns),
// formatting large counts with go-humanize and the run duration with
// utils.FormatDuration.
func String(r types.BacktestReport) string {
	width := consoleWidth()
	if width > 100 {
		width = 100
	}
	if width < 40 {
		width = 40
	}
	rule := strings.Repeat("-", width)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Backtest report  run=%s\n", r.RunID)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Final equity:     %s (%.2f%% return)\n",
		utils.FormatMoney(decimal.NewFromFloat(r.FinalEquity), "USD"), r.TotalReturnPct)
	fmt.Fprintf(&b, "Trades:           %s total, %s winning (%.1f%% win rate)\n",
		humanize.Comma(int64(r.TotalTrades)), humanize.Comma(int64(r.WinningTrades)), r.WinRate*100)
	fmt.Fprintf(&b, "Gross profit:     %s\n", utils.FormatMoney(decimal.NewFromFloat(r.GrossProfit), "USD"))
	fmt.Fprintf(&b, "Gross loss:       %s\n", utils.FormatMoney(decimal.NewFromFloat(r.GrossLoss), "USD"))
	fmt.Fprintf(&b, "Profit factor:    %.2f\n", r.ProfitFactor)
	fmt.Fprintf(&b, "Bars processed:   %s in %s (%.0f bars/sec)\n",
		humanize.Comma(int64(len(r.EquityCurve))),
		utils.FormatDuration(time.Duration(r.DurationMs)*time.Millisecond),
		r.BarsPerSec)
	fmt.Fprintln(&b, rule)
	return b.String()
}
