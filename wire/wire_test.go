package wire

import (
	"encoding/json"
	"testing"
)

func TestParseTicker(t *testing.T) {
	frame := []byte(`{"channel":"ticker","data":[{"symbol":"BTC/USD","bid":"50000.0","ask":50001.0,"last":50000.5,"volume":10,"high":51000,"low":49000,"timestamp":"2024-01-01T00:00:00Z"}]}`)
	ev := Parse(frame)
	if ev.Kind != KindTicker {
		t.Fatalf("expected KindTicker, got %v", ev.Kind)
	}
	if ev.Ticker.Bid != 50000.0 || ev.Ticker.Ask != 50001.0 {
		t.Fatalf("bad coercion: %+v", ev.Ticker)
	}
	if ev.Ticker.Spread() != 1.0 {
		t.Fatalf("expected spread 1.0, got %v", ev.Ticker.Spread())
	}
}

func TestParseHeartbeat(t *testing.T) {
	ev := Parse([]byte(`{"channel":"heartbeat"}`))
	if ev.Kind != KindHeartbeat {
		t.Fatalf("expected heartbeat, got %v", ev.Kind)
	}
}

func TestParseEmptyDataIsHeartbeat(t *testing.T) {
	ev := Parse([]byte(`{"channel":"ticker","data":[]}`))
	if ev.Kind != KindHeartbeat {
		t.Fatalf("expected heartbeat for empty data, got %v", ev.Kind)
	}
	ev2 := Parse([]byte(`{"channel":"ticker"}`))
	if ev2.Kind != KindHeartbeat {
		t.Fatalf("expected heartbeat for missing data, got %v", ev2.Kind)
	}
}

func TestParseSubscribedAck(t *testing.T) {
	ev := Parse([]byte(`{"method":"subscribe","success":true,"result":{"channel":"ticker","symbol":["BTC/USD"]}}`))
	if ev.Kind != KindSubscribed {
		t.Fatalf("expected KindSubscribed, got %v", ev.Kind)
	}
	if ev.Channel != "ticker" || len(ev.AckSymbols) != 1 || ev.AckSymbols[0] != "BTC/USD" {
		t.Fatalf("bad ack: %+v", ev)
	}
}

func TestParseFailedAck(t *testing.T) {
	ev := Parse([]byte(`{"method":"subscribe","success":false,"error":"bad symbol"}`))
	if ev.Kind != KindError || ev.ErrKind != ErrInvalidSymbol {
		t.Fatalf("expected InvalidSymbol error, got %+v", ev)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	ev := Parse([]byte(`{not json`))
	if ev.Kind != KindError || ev.ErrKind != ErrParse {
		t.Fatalf("expected ParseError, got %+v", ev)
	}
}

func TestParseBook(t *testing.T) {
	frame := []byte(`{"channel":"book","data":[{"symbol":"BTC/USD","bids":[{"price":50000.0,"qty":1.5}],"asks":[{"price":50001.0,"qty":1.0}],"checksum":12345}]}`)
	ev := Parse(frame)
	if ev.Kind != KindBook {
		t.Fatalf("expected KindBook, got %v", ev.Kind)
	}
	if ev.Book.Checksum != 12345 {
		t.Fatalf("expected checksum 12345, got %d", ev.Book.Checksum)
	}
	if !ev.Book.IsSnapshot {
		t.Fatalf("expected snapshot by default")
	}
}

func TestBuildSubscribeBook(t *testing.T) {
	b := BuildSubscribe(ChannelBook, []string{"BTC/USD"}, 10)
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	params := got["params"].(map[string]any)
	if got["method"] != "subscribe" || params["channel"] != "book" || params["depth"].(float64) != 10 {
		t.Fatalf("unexpected frame: %s", b)
	}
}

func TestBuildUnsubscribeHasNoDepth(t *testing.T) {
	b := BuildUnsubscribe(ChannelTicker, []string{"BTC/USD"})
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	params := got["params"].(map[string]any)
	if _, ok := params["depth"]; ok {
		t.Fatalf("unsubscribe frame should not carry depth: %s", b)
	}
}

func TestBuildSubscribeExactShape(t *testing.T) {
	b := BuildSubscribe(ChannelTicker, []string{"BTC/USD", "ETH/USD"}, 0)
	want := `{"method":"subscribe","params":{"channel":"ticker","symbol":["BTC/USD","ETH/USD"]}}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestBuildAuthenticatedSubscribeCarriesTokenNotSymbols(t *testing.T) {
	b := BuildAuthenticatedSubscribe(ChannelOwnTrades, "abc:123:def")
	want := `{"method":"subscribe","params":{"channel":"ownTrades","token":"abc:123:def"}}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}
