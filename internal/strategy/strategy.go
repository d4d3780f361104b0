// Package strategy implements the signal-producing layer: two independent
// producers sharing a small capability set (OnBar/Signal/Name), dispatched
// by the engine according to the current regime.
package strategy

import "ohlcv-backtester/pkg/types"

// Producer is the contract every signal producer satisfies. A producer
// whose indicators are not yet ready must return 0 from Signal.
type Producer interface {
	OnBar(bar types.Bar)
	Signal() int
	Name() string
}
