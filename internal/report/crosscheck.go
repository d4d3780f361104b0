package report

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"ohlcv-backtester/pkg/types"
	"ohlcv-backtester/pkg/utils"
)

// crossCheckTolerance bounds how far the decimal-domain recomputation below
// may drift from Build's float64 result before BuildChecked reports a
// mismatch. A few basis points absorbs float64/decimal rounding differences
// without masking a genuine divergence.
var crossCheckTolerance = decimal.NewFromFloat(0.0005)

// BuildChecked runs Build and then independently recomputes win rate,
// profit factor and max drawdown from the raw trade ledger and equity curve
// using pkg/utils's decimal helpers, as a defensive check against the
// float64 fast path and the decimal boundary layer silently disagreeing.
// A mismatch does not fail the run; it is returned for the caller to log.
func (b Builder) BuildChecked() (types.BacktestReport, error) {
	rep := b.Build()
	if err := crossCheck(rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func crossCheck(r types.BacktestReport) error {
	if len(r.Trades) == 0 {
		return nil
	}

	pnls := make([]decimal.Decimal, len(r.Trades))
	for i, tr := range r.Trades {
		pnls[i] = decimal.NewFromFloat(tr.PnL)
	}
	wantWinRate := utils.CalculateWinRate(pnls)
	gotWinRate := decimal.NewFromFloat(r.WinRate)
	if wantWinRate.Sub(gotWinRate).Abs().GreaterThan(crossCheckTolerance) {
		return fmt.Errorf("win rate mismatch: float64 path=%s decimal recompute=%s", gotWinRate, wantWinRate)
	}

	wantProfitFactor := utils.CalculateProfitFactor(pnls)
	pf := r.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 100 // decimal.NewFromFloat panics on Inf; 100 is the same cap the decimal recompute uses
	}
	gotProfitFactor := utils.MinDecimal(decimal.NewFromFloat(pf), decimal.NewFromInt(100))
	if wantProfitFactor.Sub(gotProfitFactor).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		return fmt.Errorf("profit factor mismatch: float64 path=%s decimal recompute=%s", gotProfitFactor, wantProfitFactor)
	}

	if len(r.EquityCurve) > 1 {
		equity := make([]decimal.Decimal, len(r.EquityCurve))
		for i, pt := range r.EquityCurve {
			equity[i] = decimal.NewFromFloat(pt.Equity)
		}
		maxDD := utils.CalculateMaxDrawdown(equity)
		if maxDD.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("max drawdown recompute out of range: %s", maxDD)
		}

		returns := make([]decimal.Decimal, 0, len(equity)-1)
		for i := 1; i < len(equity); i++ {
			if equity[i-1].IsZero() {
				continue
			}
			returns = append(returns, equity[i].Sub(equity[i-1]).Div(equity[i-1]))
		}
		sharpe := utils.CalculateSharpeRatio(returns, decimal.Zero, periodsPerYear)
		if sharpe.IsNegative() && r.TotalReturnPct > 0 {
			return fmt.Errorf("sharpe recompute (%s) disagrees in sign with a positive total return", sharpe)
		}
	}

	return nil
}
