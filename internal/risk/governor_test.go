package risk

import (
	"testing"
	"time"

	"ohlcv-backtester/pkg/types"
)

func dayBar(day int, hour int, close float64) types.Bar {
	ts := time.Date(2024, 1, 1+day, hour, 0, 0, 0, time.UTC).Unix()
	return types.Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 1000}
}

func TestMaxTradesPerDayCap(t *testing.T) {
	g := New(nil, Config{ATRStopMultiplier: 2.0, MaxTradesPerDay: 2, CooldownBars: 5})

	bar1 := dayBar(0, 1, 100)
	if !g.CanEnter(bar1) {
		t.Fatal("first entry of the day should be allowed")
	}
	g.OnEntry(100, 1.0, types.SideLong, bar1.Timestamp)
	g.OnExit(true)

	bar2 := dayBar(0, 2, 101)
	if !g.CanEnter(bar2) {
		t.Fatal("second entry of the day should be allowed")
	}
	g.OnEntry(101, 1.0, types.SideLong, bar2.Timestamp)
	g.OnExit(true)

	bar3 := dayBar(0, 3, 102)
	if g.CanEnter(bar3) {
		t.Fatal("third entry of the same day should be blocked by the per-day cap")
	}

	bar4 := dayBar(1, 1, 103)
	if !g.CanEnter(bar4) {
		t.Fatal("entry on the next calendar day should reset the cap")
	}
}

func TestCooldownBlocksEntryAfterLoss(t *testing.T) {
	g := New(nil, Config{ATRStopMultiplier: 2.0, MaxTradesPerDay: 10, CooldownBars: 3})

	bar1 := dayBar(0, 1, 100)
	g.OnEntry(100, 1.0, types.SideLong, bar1.Timestamp)
	g.OnExit(false) // loss -> cooldown

	if g.CanEnter(dayBar(0, 2, 99)) {
		t.Fatal("entry should be blocked immediately after a loss")
	}
	g.Tick()
	g.Tick()
	if g.CanEnter(dayBar(0, 3, 99)) {
		t.Fatal("entry should still be blocked before cooldown fully elapses")
	}
	g.Tick()
	if !g.CanEnter(dayBar(0, 4, 99)) {
		t.Fatal("entry should be allowed once cooldown reaches zero")
	}
}

func TestTrailingStopMonotoneForLong(t *testing.T) {
	g := New(nil, Config{ATRStopMultiplier: 2.0, MaxTradesPerDay: 10, CooldownBars: 5})
	g.OnEntry(100, 1.0, types.SideLong, 0)
	initialStop := g.StopPrice()
	if initialStop != 98.0 {
		t.Fatalf("initial stop = %v, want 98.0", initialStop)
	}

	g.CheckExit(types.Bar{High: 105, Low: 104, Close: 104.5})
	raised := g.StopPrice()
	if raised <= initialStop {
		t.Fatalf("stop should ratchet up on a new favorable high: got %v, was %v", raised, initialStop)
	}

	g.CheckExit(types.Bar{High: 103, Low: 102, Close: 102.5})
	if g.StopPrice() != raised {
		t.Fatalf("stop should not retreat on a pullback: got %v, want %v", g.StopPrice(), raised)
	}
}

func TestStopTriggersOnLowBreach(t *testing.T) {
	g := New(nil, Config{ATRStopMultiplier: 2.0, MaxTradesPerDay: 10, CooldownBars: 5})
	g.OnEntry(100, 1.0, types.SideLong, 0)
	if g.CheckExit(types.Bar{High: 100, Low: 98.5, Close: 99}) {
		t.Fatal("stop at 98.0 should not trigger on low 98.5")
	}
	if !g.CheckExit(types.Bar{High: 99, Low: 97.5, Close: 98}) {
		t.Fatal("stop at 98.0 should trigger on low 97.5")
	}
}

func TestCheckExitFalseWhileFlat(t *testing.T) {
	g := New(nil, Config{ATRStopMultiplier: 2.0, MaxTradesPerDay: 10, CooldownBars: 5})
	if g.CheckExit(types.Bar{High: 100, Low: 50, Close: 75}) {
		t.Fatal("CheckExit should return false while flat")
	}
}
