package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/marketfeed/kstream/book"
	"github.com/shopspring/decimal"
)

// PriceAlert fires when a ticker's last price crosses an above and/or
// below threshold. One-shot by default; Recurring allows it to fire
// repeatedly, optionally rate-limited by Cooldown. Grounded on
// original_source/include/kraken/strategies/price_alert.hpp.
type PriceAlert struct {
	Symbol    string
	Above     *float64
	Below     *float64
	Recurring bool
	Cooldown  time.Duration

	mu          sync.Mutex
	fired       bool
	lastFiredAt time.Time
}

// NewPriceAlert constructs a PriceAlert for symbol. Pass nil for Above
// or Below to leave that bound unset.
func NewPriceAlert(symbol string, above, below *float64, recurring bool, cooldown time.Duration) *PriceAlert {
	return &PriceAlert{Symbol: symbol, Above: above, Below: below, Recurring: recurring, Cooldown: cooldown}
}

func (p *PriceAlert) Capabilities() Capability { return CapTicker }

func (p *PriceAlert) Check(ctx Context) (bool, string) {
	if ctx.Event.Symbol != p.Symbol || ctx.Ticker == nil {
		return false, ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.Cooldown > 0 && !p.lastFiredAt.IsZero() && now.Sub(p.lastFiredAt) < p.Cooldown {
		return false, ""
	}
	if !p.Recurring && p.fired {
		return false, ""
	}

	last := ctx.Ticker.Last
	var triggered bool
	var bound string
	switch {
	case p.Above != nil && last >= *p.Above:
		triggered, bound = true, fmt.Sprintf("ABOVE %.2f", *p.Above)
	case p.Below != nil && last <= *p.Below:
		triggered, bound = true, fmt.Sprintf("BELOW %.2f", *p.Below)
	}
	if !triggered {
		return false, ""
	}

	p.fired = true
	p.lastFiredAt = now
	return true, fmt.Sprintf("%s = %.2f [%s]", p.Symbol, last, bound)
}

// Reset clears the one-shot/cooldown state, letting the alert fire again.
func (p *PriceAlert) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fired = false
	p.lastFiredAt = time.Time{}
}

// VolumeSpike fires when a ticker's 24h volume exceeds Multiplier times
// the average of the samples before it in a rolling window of Lookback
// samples (the current one included). Uses decimal.Decimal
// for the running sum to avoid float drift across long-lived streams.
// Grounded on
// original_source/include/kraken/strategies/volume_spike.hpp.
type VolumeSpike struct {
	Symbols    map[string]struct{}
	Multiplier float64
	Lookback   int

	mu      sync.Mutex
	history map[string][]decimal.Decimal
}

// NewVolumeSpike constructs a VolumeSpike over symbols.
func NewVolumeSpike(symbols []string, multiplier float64, lookback int) *VolumeSpike {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &VolumeSpike{Symbols: set, Multiplier: multiplier, Lookback: lookback, history: make(map[string][]decimal.Decimal)}
}

func (v *VolumeSpike) Capabilities() Capability { return CapTicker }

func (v *VolumeSpike) Check(ctx Context) (bool, string) {
	if ctx.Ticker == nil {
		return false, ""
	}
	if _, ok := v.Symbols[ctx.Event.Symbol]; !ok {
		return false, ""
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	vol := decimal.NewFromFloat(ctx.Ticker.Volume)
	h := append(v.history[ctx.Event.Symbol], vol)
	if len(h) > v.Lookback {
		h = h[len(h)-v.Lookback:]
	}
	v.history[ctx.Event.Symbol] = h

	if len(h) < v.Lookback/2 {
		return false, ""
	}

	sum := decimal.Zero
	for _, s := range h[:len(h)-1] {
		sum = sum.Add(s)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(h) - 1)))
	threshold := avg.Mul(decimal.NewFromFloat(v.Multiplier))
	if vol.LessThanOrEqual(threshold) {
		return false, ""
	}
	return true, fmt.Sprintf("%s volume %s exceeds %gx average %s", ctx.Event.Symbol, vol.String(), v.Multiplier, avg.String())
}

// Reset clears all accumulated rolling history.
func (v *VolumeSpike) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = make(map[string][]decimal.Decimal)
}

// SpreadAlert fires when a ticker's spread falls outside [Min, Max].
// Grounded on
// original_source/include/kraken/strategies/spread_alert.hpp.
type SpreadAlert struct {
	Symbol string
	Min    float64
	Max    float64 // 0 means unbounded
}

func NewSpreadAlert(symbol string, min, max float64) *SpreadAlert {
	return &SpreadAlert{Symbol: symbol, Min: min, Max: max}
}

func (s *SpreadAlert) Capabilities() Capability { return CapTicker }

func (s *SpreadAlert) Check(ctx Context) (bool, string) {
	if ctx.Event.Symbol != s.Symbol || ctx.Ticker == nil {
		return false, ""
	}
	spread := ctx.Ticker.Spread()
	if spread >= s.Min && (s.Max == 0 || spread <= s.Max) {
		return false, ""
	}
	return true, fmt.Sprintf("%s spread %.4f outside [%.4f, %.4f]", s.Symbol, spread, s.Min, s.Max)
}

// Logic selects Composite's combination rule.
type Logic int

const (
	LogicAND Logic = iota
	LogicOR
)

// Composite combines a non-empty list of child predicates with AND/OR
// logic. Grounded on
// original_source/include/kraken/strategies/composite.hpp.
type Composite struct {
	logic    Logic
	children []Predicate
}

// NewComposite builds a Composite; it panics if children is empty,
// mirroring the teacher's invalid_argument-on-construction contract.
func NewComposite(logic Logic, children ...Predicate) *Composite {
	if len(children) == 0 {
		panic("strategy: Composite requires at least one child predicate")
	}
	return &Composite{logic: logic, children: children}
}

func (c *Composite) Capabilities() Capability {
	var caps Capability
	for _, child := range c.children {
		caps |= child.Capabilities()
	}
	return caps
}

func (c *Composite) Check(ctx Context) (bool, string) {
	switch c.logic {
	case LogicAND:
		// Every child sees every event (no short-circuit), so stateful
		// children such as VolumeSpike keep their history primed.
		all := true
		for _, child := range c.children {
			if ok, _ := child.Check(ctx); !ok {
				all = false
			}
		}
		if !all {
			return false, ""
		}
		return true, "Composite(AND) triggered (all conditions met)"
	default:
		for _, child := range c.children {
			if ok, _ := child.Check(ctx); ok {
				return true, "Composite(OR) triggered (any condition met)"
			}
		}
		return false, ""
	}
}

// Breakout is price-above-threshold AND volume-spike-confirmed.
// Grounded on
// original_source/include/kraken/strategies/presets.hpp's
// StrategyPresets::breakout.
func Breakout(symbol string, priceThreshold, volumeMultiplier float64) *Composite {
	above := priceThreshold
	price := NewPriceAlert(symbol, &above, nil, true, 0)
	volume := NewVolumeSpike([]string{symbol}, volumeMultiplier, 20)
	return NewComposite(LogicAND, price, volume)
}

// levelStrategy backs SupportLevel/ResistanceLevel: it needs both the
// latest ticker and book for its symbol, matching the teacher's joint
// check(Ticker, OrderBook) overload.
type levelStrategy struct {
	name         string
	symbol       string
	level        float64
	tolerancePct float64
	minLiquidity float64
	bidSide      bool // true = support (bid liquidity), false = resistance (ask liquidity)
}

func (l *levelStrategy) Capabilities() Capability { return CapTicker | CapBook }

func (l *levelStrategy) Check(ctx Context) (bool, string) {
	if ctx.Event.Symbol != l.symbol || ctx.Ticker == nil || ctx.Book == nil {
		return false, ""
	}
	diff := ctx.Ticker.Last - l.level
	if diff < 0 {
		diff = -diff
	}
	toleranceAbs := l.level * (l.tolerancePct / 100.0)
	if diff > toleranceAbs {
		return false, ""
	}

	var liquidity float64
	side := "ask"
	if l.bidSide {
		liquidity = ctx.Book.CumulativeLiquidity(book.Bid, 5)
		side = "bid"
	} else {
		liquidity = ctx.Book.CumulativeLiquidity(book.Ask, 5)
	}
	if liquidity < l.minLiquidity {
		return false, ""
	}
	return true, fmt.Sprintf("%s price %.2f near %s level %.2f (tolerance %.2f%%) with strong %s liquidity",
		l.symbol, ctx.Ticker.Last, l.name, l.level, l.tolerancePct, side)
}

// SupportLevel triggers when price is within tolerance of a support
// level and the book shows strong bid liquidity. Grounded on
// original_source/include/kraken/strategies/presets.hpp's
// StrategyPresets::support_level.
func SupportLevel(symbol string, level, tolerancePercent, minLiquidity float64) Predicate {
	return &levelStrategy{name: "support", symbol: symbol, level: level, tolerancePct: tolerancePercent, minLiquidity: minLiquidity, bidSide: true}
}

// ResistanceLevel triggers when price is within tolerance of a
// resistance level and the book shows strong ask liquidity.
func ResistanceLevel(symbol string, level, tolerancePercent, minLiquidity float64) Predicate {
	return &levelStrategy{name: "resistance", symbol: symbol, level: level, tolerancePct: tolerancePercent, minLiquidity: minLiquidity, bidSide: false}
}
