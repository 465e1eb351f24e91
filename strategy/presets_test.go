package strategy

import (
	"testing"

	"github.com/marketfeed/kstream/book"
	"github.com/marketfeed/kstream/wire"
)

func tickerCtx(symbol string, last, volume float64) Context {
	t := wire.Ticker{Symbol: symbol, Last: last, Volume: volume}
	evt := wire.Event{Kind: wire.KindTicker, Symbol: symbol, Ticker: t}
	return Context{Event: evt, Ticker: &evt.Ticker}
}

func TestPriceAlertOneShotFiresOnceAtThreshold(t *testing.T) {
	above := 50000.0
	alert := NewPriceAlert("BTC/USD", &above, nil, false, 0)

	fires := 0
	var lastPrice float64
	for _, last := range []float64{49000, 51000, 52000} {
		if ok, _ := alert.Check(tickerCtx("BTC/USD", last, 0)); ok {
			fires++
			lastPrice = last
		}
	}
	if fires != 1 {
		t.Fatalf("expected exactly one fire, got %d", fires)
	}
	if lastPrice != 51000 {
		t.Fatalf("expected the fire at last=51000, got %v", lastPrice)
	}
}

func TestPriceAlertRecurringFiresEveryTime(t *testing.T) {
	above := 50000.0
	alert := NewPriceAlert("BTC/USD", &above, nil, true, 0)

	fires := 0
	for _, last := range []float64{49000, 51000, 52000} {
		if ok, _ := alert.Check(tickerCtx("BTC/USD", last, 0)); ok {
			fires++
		}
	}
	if fires != 2 {
		t.Fatalf("expected two fires for two above-threshold ticks, got %d", fires)
	}
}

func TestCompositeANDMatchesPriceAndVolumeSpike(t *testing.T) {
	above := 50000.0
	price := NewPriceAlert("BTC/USD", &above, nil, true, 0)
	volume := NewVolumeSpike([]string{"BTC/USD"}, 2.0, 5)
	composite := NewComposite(LogicAND, price, volume)

	for i := 0; i < 5; i++ {
		if ok, _ := composite.Check(tickerCtx("BTC/USD", 40000, 100)); ok {
			t.Fatal("priming ticks below threshold must not fire")
		}
	}

	if ok, _ := composite.Check(tickerCtx("BTC/USD", 51000, 250)); !ok {
		t.Fatal("expected composite AND to fire when both price and volume conditions hold")
	}

	price.Reset()
	if ok, _ := composite.Check(tickerCtx("BTC/USD", 51000, 150)); ok {
		t.Fatal("expected composite AND to not fire when volume spike condition fails")
	}
}

func TestVolumeSpikeRequiresEnoughHistory(t *testing.T) {
	v := NewVolumeSpike([]string{"BTC/USD"}, 2.0, 10)
	if ok, _ := v.Check(tickerCtx("BTC/USD", 0, 1000)); ok {
		t.Fatal("expected no fire before at least lookback/2 samples accumulate")
	}
}

func TestSpreadAlertFiresOutsideBounds(t *testing.T) {
	alert := NewSpreadAlert("BTC/USD", 1.0, 10.0)
	evt := wire.Event{Kind: wire.KindTicker, Symbol: "BTC/USD", Ticker: wire.Ticker{Symbol: "BTC/USD", Bid: 100, Ask: 100.5}}
	if ok, _ := alert.Check(Context{Event: evt, Ticker: &evt.Ticker}); !ok {
		t.Fatal("expected spread below minimum to fire")
	}

	evt.Ticker.Ask = 115
	if ok, _ := alert.Check(Context{Event: evt, Ticker: &evt.Ticker}); !ok {
		t.Fatal("expected spread above maximum to fire")
	}

	evt.Ticker.Ask = 105
	if ok, _ := alert.Check(Context{Event: evt, Ticker: &evt.Ticker}); ok {
		t.Fatal("expected spread within bounds to not fire")
	}
}

func buildBookWithBidLiquidity(t *testing.T, symbol string, bidPrice, bidQty float64) *book.OrderBook {
	t.Helper()
	e := book.NewEngine()
	bids := []book.Level{{Price: bidPrice, Quantity: bidQty}}
	asks := []book.Level{{Price: bidPrice + 10, Quantity: 1}}
	if !e.Apply(symbol, bids, asks, true, 0) {
		t.Fatal("expected snapshot with zero checksum to be accepted (checksum disabled)")
	}
	return e.Get(symbol)
}

func TestSupportLevelRequiresPriceNearLevelAndBidLiquidity(t *testing.T) {
	s := SupportLevel("BTC/USD", 45000, 1.0, 10.0)
	ob := buildBookWithBidLiquidity(t, "BTC/USD", 45000, 20)

	evt := wire.Event{Kind: wire.KindTicker, Symbol: "BTC/USD", Ticker: wire.Ticker{Symbol: "BTC/USD", Last: 45050}}
	ok, _ := s.Check(Context{Event: evt, Ticker: &evt.Ticker, Book: ob})
	if !ok {
		t.Fatal("expected support level to trigger with price near level and strong bid liquidity")
	}

	evt.Ticker.Last = 50000
	if ok, _ := s.Check(Context{Event: evt, Ticker: &evt.Ticker, Book: ob}); ok {
		t.Fatal("expected support level to not trigger far from the level")
	}
}

func TestResistanceLevelRequiresAskLiquidity(t *testing.T) {
	r := ResistanceLevel("BTC/USD", 45000, 1.0, 10.0)
	e := book.NewEngine()
	bids := []book.Level{{Price: 44990, Quantity: 1}}
	asks := []book.Level{{Price: 45000, Quantity: 20}}
	e.Apply("BTC/USD", bids, asks, true, 0)
	ob := e.Get("BTC/USD")

	evt := wire.Event{Kind: wire.KindTicker, Symbol: "BTC/USD", Ticker: wire.Ticker{Symbol: "BTC/USD", Last: 45010}}
	ok, _ := r.Check(Context{Event: evt, Ticker: &evt.Ticker, Book: ob})
	if !ok {
		t.Fatal("expected resistance level to trigger with price near level and strong ask liquidity")
	}
}

func TestBreakoutRequiresBothPriceAndVolumeSpike(t *testing.T) {
	breakout := Breakout("BTC/USD", 50000, 2.0)
	for i := 0; i < 10; i++ {
		breakout.Check(tickerCtx("BTC/USD", 40000, 100))
	}
	if ok, _ := breakout.Check(tickerCtx("BTC/USD", 51000, 300)); !ok {
		t.Fatal("expected breakout to fire on price+volume confirmation")
	}
}

func TestCompositeRequiresAtLeastOneChild(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected NewComposite with no children to panic")
		}
	}()
	NewComposite(LogicAND)
}
