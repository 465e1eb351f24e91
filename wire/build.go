package wire

import "encoding/json"

// Method is the outbound request verb.
type Method string

const (
	MethodSubscribe   Method = "subscribe"
	MethodUnsubscribe Method = "unsubscribe"
)

type subscribeParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol,omitempty"`
	Depth   int      `json:"depth,omitempty"`
	Token   string   `json:"token,omitempty"`
}

type subscribeFrame struct {
	Method Method          `json:"method"`
	Params subscribeParams `json:"params"`
}

// BuildSubscribe emits a subscribe frame for the given channel and
// symbols. depth is included only when channel is book and depth > 0.
func BuildSubscribe(channel Channel, symbols []string, depth int) []byte {
	return buildFrame(MethodSubscribe, channel, symbols, depth, "")
}

// BuildUnsubscribe emits an unsubscribe frame for the given channel and
// symbols.
func BuildUnsubscribe(channel Channel, symbols []string) []byte {
	return buildFrame(MethodUnsubscribe, channel, symbols, 0, "")
}

// BuildAuthenticatedSubscribe emits a subscribe frame carrying an
// authentication token, for the private channels (ownTrades, openOrders,
// balances) that require one instead of a symbol list.
func BuildAuthenticatedSubscribe(channel Channel, token string) []byte {
	return buildFrame(MethodSubscribe, channel, nil, 0, token)
}

func buildFrame(method Method, channel Channel, symbols []string, depth int, token string) []byte {
	params := subscribeParams{Channel: string(channel), Symbol: symbols, Token: token}
	if method == MethodSubscribe && channel == ChannelBook && depth > 0 {
		params.Depth = depth
	}
	frame := subscribeFrame{Method: method, Params: params}
	b, err := json.Marshal(frame)
	if err != nil {
		// Marshal of a struct of strings/ints cannot fail.
		panic(err)
	}
	return b
}
