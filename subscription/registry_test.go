package subscription

import (
	"encoding/json"
	"testing"

	"github.com/marketfeed/kstream/wire"
)

func collect(frames *[][]byte) FrameSender {
	return func(f []byte) { *frames = append(*frames, f) }
}

func TestSubscribeEmitsSubscribeFrame(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	if h.ID() != 1 {
		t.Fatalf("expected first id to be 1, got %d", h.ID())
	}
	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame, got %d", len(frames))
	}
}

func TestReleaseUnsubscribesAtZeroRefs(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	h.Release()
	if len(frames) != 2 {
		t.Fatalf("expected subscribe+unsubscribe frames, got %d", len(frames))
	}
	if len(r.Records()) != 0 {
		t.Fatal("expected record to be retired after release")
	}
}

func TestRetainDelaysUnsubscribeUntilLastRelease(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	h.Retain()
	h.Release()
	if len(r.Records()) != 1 {
		t.Fatal("expected record to survive one release with two refs held")
	}
	h.Release()
	if len(r.Records()) != 0 {
		t.Fatal("expected record retired after final release")
	}
}

func TestPauseThenResumeResetsConfirmedAndResubscribes(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	r.OnSubscribed("ticker", []string{"XBT/USD"})

	h.Pause()
	snaps := r.Records()
	if snaps[0].Desired != Paused {
		t.Fatalf("expected Paused, got %v", snaps[0].Desired)
	}

	h.Resume()
	snaps = r.Records()
	if snaps[0].Desired != Active || snaps[0].Confirmed {
		t.Fatalf("expected Active+unconfirmed after resume, got %+v", snaps[0])
	}
	if len(frames) != 3 {
		t.Fatalf("expected subscribe, unsubscribe, subscribe; got %d frames", len(frames))
	}
}

func TestAddSymbolsOnlySendsDelta(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	frames = nil
	h.AddSymbols("XBT/USD", "ETH/USD")
	if len(frames) != 1 {
		t.Fatalf("expected one frame for the delta, got %d", len(frames))
	}
	snaps := r.Records()
	if len(snaps[0].Symbols) != 2 {
		t.Fatalf("expected two symbols tracked, got %v", snaps[0].Symbols)
	}
}

func TestAddSymbolsNoOpWhenNothingNew(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	frames = nil
	h.AddSymbols("XBT/USD")
	if len(frames) != 0 {
		t.Fatalf("expected no frame when nothing new was added, got %d", len(frames))
	}
}

func TestRemoveSymbolsOnlySendsDelta(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD", "ETH/USD"}, 0)
	frames = nil
	h.RemoveSymbols("ETH/USD")
	if len(frames) != 1 {
		t.Fatalf("expected one frame for the delta, got %d", len(frames))
	}
	snaps := r.Records()
	if len(snaps[0].Symbols) != 1 || snaps[0].Symbols[0] != "XBT/USD" {
		t.Fatalf("expected only XBT/USD to remain, got %v", snaps[0].Symbols)
	}
}

func TestReplayAllResubscribesActiveOnly(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	active := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	paused := r.Subscribe(wire.ChannelBook, []string{"ETH/USD"}, 10)
	paused.Pause()
	r.OnSubscribed("ticker", []string{"XBT/USD"})

	frames = nil
	r.ReplayAll()
	if len(frames) != 1 {
		t.Fatalf("expected exactly one replay frame for the active subscription, got %d", len(frames))
	}

	for _, s := range r.Records() {
		if s.ID == active.ID() && s.Confirmed {
			t.Fatal("expected active subscription to be unconfirmed again after replay")
		}
	}
}

func TestOnSubscribedPartialAckDoesNotMatch(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	r.Subscribe(wire.ChannelTicker, []string{"XBT/USD", "ETH/USD"}, 0)
	r.OnSubscribed("ticker", []string{"XBT/USD"})
	if r.Records()[0].Confirmed {
		t.Fatal("expected a partial symbol-set ack to not confirm the subscription")
	}
}

func TestOnSubscribedExactSetMatches(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	r.Subscribe(wire.ChannelTicker, []string{"XBT/USD", "ETH/USD"}, 0)
	r.OnSubscribed("ticker", []string{"ETH/USD", "XBT/USD"})
	if !r.Records()[0].Confirmed {
		t.Fatal("expected an exact (order-independent) symbol-set ack to confirm")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	h := r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)
	r.Unsubscribe(h.ID())
	frames = nil
	r.Unsubscribe(h.ID())
	if len(frames) != 0 {
		t.Fatalf("expected unsubscribing twice to be a no-op, got %d frames", len(frames))
	}
}

func TestPrivateChannelSubscribeCarriesTokenNotSymbols(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	r.SetTokenSource(func() string { return "key:123:sig" })
	r.Subscribe(wire.ChannelOwnTrades, nil, 0)

	var got map[string]any
	if err := json.Unmarshal(frames[0], &got); err != nil {
		t.Fatal(err)
	}
	params := got["params"].(map[string]any)
	if params["token"] != "key:123:sig" {
		t.Fatalf("expected token in subscribe frame, got %s", frames[0])
	}
	if _, ok := params["symbol"]; ok {
		t.Fatalf("private channel subscribe should not carry a symbol list, got %s", frames[0])
	}
}

func TestPublicChannelSubscribeIgnoresTokenSource(t *testing.T) {
	var frames [][]byte
	r := New(collect(&frames))
	r.SetTokenSource(func() string { return "key:123:sig" })
	r.Subscribe(wire.ChannelTicker, []string{"XBT/USD"}, 0)

	var got map[string]any
	if err := json.Unmarshal(frames[0], &got); err != nil {
		t.Fatal(err)
	}
	params := got["params"].(map[string]any)
	if _, ok := params["token"]; ok {
		t.Fatalf("public channel subscribe should not carry a token, got %s", frames[0])
	}
}
