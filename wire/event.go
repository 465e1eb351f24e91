// Package wire implements the inbound/outbound JSON wire codec for the
// exchange's streaming market-data protocol. It is pure: no shared state,
// no background allocation, safe for concurrent use by construction.
package wire

import "time"

// Channel is a tagged enum over the server's channel names.
type Channel string

const (
	ChannelTicker     Channel = "ticker"
	ChannelTrade      Channel = "trade"
	ChannelBook       Channel = "book"
	ChannelOHLC       Channel = "ohlc"
	ChannelOwnTrades  Channel = "ownTrades"
	ChannelOpenOrders Channel = "openOrders"
	ChannelBalances   Channel = "balances"
	ChannelHeartbeat  Channel = "heartbeat"
)

// Side is the trade side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Ticker is a best-bid/ask snapshot for a symbol.
type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    float64
	High      float64
	Low       float64
	Timestamp string
}

// Spread returns ask - bid.
func (t Ticker) Spread() float64 { return t.Ask - t.Bid }

// Mid returns the midpoint of bid and ask.
func (t Ticker) Mid() float64 { return (t.Ask + t.Bid) / 2 }

// SpreadPercent returns 100*spread/mid, or 0 when mid <= 0.
func (t Ticker) SpreadPercent() float64 {
	mid := t.Mid()
	if mid <= 0 {
		return 0
	}
	return 100 * t.Spread() / mid
}

// Trade is a single executed trade.
type Trade struct {
	Symbol    string
	Price     float64
	Quantity  float64
	Side      Side
	Timestamp string
}

// PriceLevel is a (price, quantity) pair. Quantity == 0 denotes deletion
// in an incremental update.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// BookData is the parsed payload of a book data frame, prior to being
// applied to the book engine.
type BookData struct {
	Symbol     string
	Bids       []PriceLevel
	Asks       []PriceLevel
	IsSnapshot bool
	Checksum   uint32
}

// OHLC is an open/high/low/close candle.
type OHLC struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp int64
	Interval  int
}

// Order, OwnTrade, Balance are opaque beyond routing: the core passes
// their raw decoded fields through to the matching callback.
type Order struct {
	Fields map[string]any
}

type OwnTrade struct {
	Fields map[string]any
}

type Balance struct {
	Fields map[string]any
}

// Kind tags the payload carried by an Event.
type Kind int

const (
	KindTicker Kind = iota
	KindTrade
	KindBook
	KindOHLC
	KindOrder
	KindOwnTrade
	KindBalance
	KindSubscribed
	KindUnsubscribed
	KindHeartbeat
	KindError
)

// ErrorKind mirrors apperror.Kind without importing apperror, to keep the
// wire package dependency-free; the runtime translates it.
type ErrorKind string

const (
	ErrNone          ErrorKind = ""
	ErrInvalidSymbol ErrorKind = "INVALID_SYMBOL"
	ErrParse         ErrorKind = "PARSE_ERROR"
)

// Event is the tagged-variant queued message: exactly one payload field
// is meaningful, selected by Kind. Pattern-match on Kind, never on a
// virtual type() method.
type Event struct {
	Kind Kind

	Channel string
	Symbol  string
	Seq     *int64

	ReceivedAt time.Time

	Ticker   Ticker
	Trade    Trade
	Book     BookData
	OHLC     OHLC
	Order    Order
	OwnTrade OwnTrade
	Balance  Balance

	// Subscribed/Unsubscribed markers.
	AckSymbols []string

	// Error marker.
	ErrKind ErrorKind
	ErrText string
}
