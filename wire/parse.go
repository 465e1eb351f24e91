package wire

import (
	"encoding/json"
	"strconv"
)

// ackFrame is the shape of a subscribe/unsubscribe acknowledgement.
type ackFrame struct {
	Method  string          `json:"method"`
	Success *bool           `json:"success"`
	Error   string          `json:"error"`
	Result  json.RawMessage `json:"result"`
}

type ackResult struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

// dataFrame is the shape of a channel data push.
type dataFrame struct {
	Channel string            `json:"channel"`
	Type    string            `json:"type"`
	Data    []json.RawMessage `json:"data"`
}

// rawTicker/rawTrade/rawBook/rawOHLC mirror the field conventions in
// §4.1, with numeric-or-string coercion via coerceFloat/coerceUint32.
type rawTicker struct {
	Symbol    string          `json:"symbol"`
	Bid       json.RawMessage `json:"bid"`
	Ask       json.RawMessage `json:"ask"`
	Last      json.RawMessage `json:"last"`
	Volume    json.RawMessage `json:"volume"`
	High      json.RawMessage `json:"high"`
	Low       json.RawMessage `json:"low"`
	Timestamp string          `json:"timestamp"`
}

type rawTrade struct {
	Symbol    string          `json:"symbol"`
	Price     json.RawMessage `json:"price"`
	Qty       json.RawMessage `json:"qty"`
	Side      string          `json:"side"`
	Timestamp string          `json:"timestamp"`
}

type rawLevel struct {
	Price json.RawMessage `json:"price"`
	Qty   json.RawMessage `json:"qty"`
}

type rawBook struct {
	Symbol   string          `json:"symbol"`
	Bids     []rawLevel      `json:"bids"`
	Asks     []rawLevel      `json:"asks"`
	Checksum json.RawMessage `json:"checksum"`
}

type rawOHLC struct {
	Symbol    string          `json:"symbol"`
	Open      json.RawMessage `json:"open"`
	High      json.RawMessage `json:"high"`
	Low       json.RawMessage `json:"low"`
	Close     json.RawMessage `json:"close"`
	Volume    json.RawMessage `json:"volume"`
	Timestamp int64           `json:"timestamp"`
	Interval  int             `json:"interval"`
}

// coerceFloat accepts a JSON number or a JSON string containing a number.
func coerceFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return 0
}

func coerceUint32(raw json.RawMessage) uint32 {
	if len(raw) == 0 {
		return 0
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return uint32(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseUint(s, 10, 32); err == nil {
			return uint32(v)
		}
	}
	return 0
}

// Parse turns one inbound UTF-8 text frame into exactly one Event.
func Parse(frame []byte) Event {
	var probe struct {
		Method  string `json:"method"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
	}

	if probe.Method == "subscribe" || probe.Method == "unsubscribe" {
		var ack ackFrame
		if err := json.Unmarshal(frame, &ack); err != nil {
			return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
		}
		if ack.Success != nil && !*ack.Success {
			return Event{Kind: KindError, ErrKind: ErrInvalidSymbol, ErrText: ack.Error}
		}
		var res ackResult
		_ = json.Unmarshal(ack.Result, &res)
		kind := KindSubscribed
		if probe.Method == "unsubscribe" {
			kind = KindUnsubscribed
		}
		return Event{Kind: kind, Channel: res.Channel, AckSymbols: res.Symbol}
	}

	if probe.Channel == string(ChannelHeartbeat) {
		return Event{Kind: KindHeartbeat, Channel: string(ChannelHeartbeat)}
	}

	var df dataFrame
	if err := json.Unmarshal(frame, &df); err != nil {
		return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
	}
	if len(df.Data) == 0 {
		return Event{Kind: KindHeartbeat, Channel: df.Channel}
	}

	isSnapshot := df.Type != "update"

	switch Channel(df.Channel) {
	case ChannelTicker:
		var rt rawTicker
		if err := json.Unmarshal(df.Data[0], &rt); err != nil {
			return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
		}
		t := Ticker{
			Symbol:    rt.Symbol,
			Bid:       coerceFloat(rt.Bid),
			Ask:       coerceFloat(rt.Ask),
			Last:      coerceFloat(rt.Last),
			Volume:    coerceFloat(rt.Volume),
			High:      coerceFloat(rt.High),
			Low:       coerceFloat(rt.Low),
			Timestamp: rt.Timestamp,
		}
		return Event{Kind: KindTicker, Channel: df.Channel, Symbol: t.Symbol, Ticker: t}

	case ChannelTrade:
		var rt rawTrade
		if err := json.Unmarshal(df.Data[0], &rt); err != nil {
			return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
		}
		tr := Trade{
			Symbol:    rt.Symbol,
			Price:     coerceFloat(rt.Price),
			Quantity:  coerceFloat(rt.Qty),
			Side:      Side(rt.Side),
			Timestamp: rt.Timestamp,
		}
		return Event{Kind: KindTrade, Channel: df.Channel, Symbol: tr.Symbol, Trade: tr}

	case ChannelBook:
		var rb rawBook
		if err := json.Unmarshal(df.Data[0], &rb); err != nil {
			return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
		}
		bd := BookData{
			Symbol:     rb.Symbol,
			Bids:       toLevels(rb.Bids),
			Asks:       toLevels(rb.Asks),
			IsSnapshot: isSnapshot,
			Checksum:   coerceUint32(rb.Checksum),
		}
		return Event{Kind: KindBook, Channel: df.Channel, Symbol: bd.Symbol, Book: bd}

	case ChannelOHLC:
		var ro rawOHLC
		if err := json.Unmarshal(df.Data[0], &ro); err != nil {
			return Event{Kind: KindError, ErrKind: ErrParse, ErrText: err.Error()}
		}
		o := OHLC{
			Symbol:    ro.Symbol,
			Open:      coerceFloat(ro.Open),
			High:      coerceFloat(ro.High),
			Low:       coerceFloat(ro.Low),
			Close:     coerceFloat(ro.Close),
			Volume:    coerceFloat(ro.Volume),
			Timestamp: ro.Timestamp,
			Interval:  ro.Interval,
		}
		return Event{Kind: KindOHLC, Channel: df.Channel, Symbol: o.Symbol, OHLC: o}

	case ChannelOwnTrades:
		var m map[string]any
		_ = json.Unmarshal(df.Data[0], &m)
		return Event{Kind: KindOwnTrade, Channel: df.Channel, OwnTrade: OwnTrade{Fields: m}}

	case ChannelOpenOrders:
		var m map[string]any
		_ = json.Unmarshal(df.Data[0], &m)
		return Event{Kind: KindOrder, Channel: df.Channel, Order: Order{Fields: m}}

	case ChannelBalances:
		var m map[string]any
		_ = json.Unmarshal(df.Data[0], &m)
		return Event{Kind: KindBalance, Channel: df.Channel, Balance: Balance{Fields: m}}

	default:
		return Event{Kind: KindHeartbeat, Channel: df.Channel}
	}
}

func toLevels(raw []rawLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(raw))
	for _, r := range raw {
		out = append(out, PriceLevel{Price: coerceFloat(r.Price), Quantity: coerceFloat(r.Qty)})
	}
	return out
}
