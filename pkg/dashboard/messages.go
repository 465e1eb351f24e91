package dashboard

import (
	"time"

	"github.com/marketfeed/kstream/strategy"
	"github.com/marketfeed/kstream/wire"
)

// tickerMsg carries one ticker update into the Bubble Tea update loop.
type tickerMsg wire.Ticker

// alertMsg carries one fired strategy alert.
type alertMsg strategy.Alert

// errorMsg carries a runtime error.
type errorMsg struct{ err error }

// refreshMsg ticks periodically to pull a fresh stream.Snapshot.
type refreshMsg time.Time
