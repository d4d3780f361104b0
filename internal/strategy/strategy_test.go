package strategy

import (
	"testing"

	"ohlcv-backtester/pkg/types"
)

func bar(ts int64, open, high, low, close, volume float64) types.Bar {
	return types.Bar{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

func TestMomentumFlatBeforeReady(t *testing.T) {
	m := NewMomentum(nil, types.DefaultMomentumConfig())
	m.OnBar(bar(0, 100, 100, 100, 100, 1000))
	if m.Signal() != 0 {
		t.Fatalf("Signal() = %d before indicators ready, want 0", m.Signal())
	}
}

func TestMomentumConstantPriceNeverEntersLong(t *testing.T) {
	m := NewMomentum(nil, types.DefaultMomentumConfig())
	for i := int64(0); i < 400; i++ {
		m.OnBar(bar(i, 100, 100, 100, 100, 1000))
	}
	if m.Signal() != 0 {
		t.Fatalf("Signal() = %d for a flat constant-price series, want 0", m.Signal())
	}
}

func TestMomentumRisingSeriesWithVolumeEventuallyGoesLong(t *testing.T) {
	m := NewMomentum(nil, types.DefaultMomentumConfig())
	price := 100.0
	for i := int64(0); i < 300; i++ {
		m.OnBar(bar(i, price, price, price, price, 1000))
	}
	sawLong := false
	for i := int64(300); i < 420; i++ {
		open := price
		price += 0.15
		m.OnBar(bar(i, open, price+0.1, price-0.1, price, 2000))
		if m.Signal() == 1 {
			sawLong = true
		}
	}
	if !sawLong {
		t.Fatal("expected at least one long signal during a sustained rise with doubled volume")
	}
}

func TestMeanReversionFlatBeforeReady(t *testing.T) {
	mr := NewMeanReversion(nil, types.DefaultMeanReversionConfig())
	mr.OnBar(bar(0, 100, 100, 100, 100, 1000))
	if mr.Signal() != 0 {
		t.Fatalf("Signal() = %d before indicators ready, want 0", mr.Signal())
	}
}

func TestMeanReversionConstantPriceNeverEnters(t *testing.T) {
	mr := NewMeanReversion(nil, types.DefaultMeanReversionConfig())
	for i := int64(0); i < 200; i++ {
		mr.OnBar(bar(i, 100, 100, 100, 100, 1000))
	}
	if mr.Signal() != 0 {
		t.Fatalf("Signal() = %d for a flat constant-price series, want 0", mr.Signal())
	}
}
