package report

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAssessViabilityPassesWhenAllThresholdsClear(t *testing.T) {
	r := DecimalReport{
		TotalTrades:  50,
		ProfitFactor: decimal.NewFromFloat(2.0),
		WinRate:      decimal.NewFromFloat(0.55),
	}
	metrics := ExtendedMetrics{
		SharpeRatio: decimal.NewFromFloat(1.2),
		MaxDrawdown: decimal.NewFromFloat(0.1),
	}
	verdict := AssessViability(r, metrics, DefaultViabilityThresholds())
	if !verdict.Viable {
		t.Fatalf("expected viable verdict, got failed checks: %v", verdict.FailedChecks)
	}
}

func TestAssessViabilityFlagsInsufficientTrades(t *testing.T) {
	r := DecimalReport{
		TotalTrades:  5,
		ProfitFactor: decimal.NewFromFloat(2.0),
		WinRate:      decimal.NewFromFloat(0.55),
	}
	metrics := ExtendedMetrics{
		SharpeRatio: decimal.NewFromFloat(1.2),
		MaxDrawdown: decimal.NewFromFloat(0.1),
	}
	verdict := AssessViability(r, metrics, DefaultViabilityThresholds())
	if verdict.Viable {
		t.Fatalf("expected non-viable verdict with only 5 trades")
	}
	found := false
	for _, c := range verdict.FailedChecks {
		if c == "insufficient trades for statistical significance" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected insufficient-trades failure, got %v", verdict.FailedChecks)
	}
}

func TestAssessViabilityFlagsDrawdownAboveLimit(t *testing.T) {
	r := DecimalReport{
		TotalTrades:  100,
		ProfitFactor: decimal.NewFromFloat(2.0),
		WinRate:      decimal.NewFromFloat(0.55),
	}
	metrics := ExtendedMetrics{
		SharpeRatio: decimal.NewFromFloat(1.2),
		MaxDrawdown: decimal.NewFromFloat(0.5),
	}
	verdict := AssessViability(r, metrics, DefaultViabilityThresholds())
	if verdict.Viable {
		t.Fatalf("expected non-viable verdict with 50%% drawdown")
	}
}
