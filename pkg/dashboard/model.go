package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marketfeed/kstream/strategy"
	"github.com/marketfeed/kstream/stream"
	"github.com/marketfeed/kstream/wire"
)

const maxAlerts = 8

// model is the Bubble Tea model driving the dashboard, grounded on
// pkg/ui's model shape (a single struct holding every view's state,
// updated by typed messages) but scoped to one runtime's ticker table,
// connection state, and alert feed instead of the arbitrage bot's
// multi-pane opportunity/price view.
type model struct {
	rt      *stream.Runtime
	keys    keyMap
	width   int
	height  int
	tickers map[string]wire.Ticker
	order   []string // sorted symbol order, stable table rendering
	alerts  []string
	state   stream.ConnectionState
	err     error
	snap    stream.Snapshot
}

// New builds a dashboard over rt, which may be nil if the runtime is
// constructed after the dashboard (wire it in with SetRuntime before
// calling Run). Wire cfg.Callbacks.OnTicker/OnAlert/OnError to the
// returned Dashboard's methods of the same name, then call Run.
func New(rt *stream.Runtime) *Dashboard {
	return &Dashboard{m: &model{
		rt:      rt,
		keys:    defaultKeyMap(),
		tickers: make(map[string]wire.Ticker),
	}}
}

// SetRuntime wires the runtime whose metrics the dashboard polls for
// its periodic snapshot refresh and connection-status indicator.
func (d *Dashboard) SetRuntime(rt *stream.Runtime) { d.m.rt = rt }

// Dashboard owns the running *tea.Program and exposes the callback
// adapters stream.Config.Callbacks expects.
type Dashboard struct {
	m *model
	p *tea.Program
}

// OnTicker is a stream.Callbacks.OnTicker adapter.
func (d *Dashboard) OnTicker(tk wire.Ticker) { d.send(tickerMsg(tk)) }

// OnAlert is a stream.Callbacks.OnAlert adapter.
func (d *Dashboard) OnAlert(a strategy.Alert) { d.send(alertMsg(a)) }

// OnError is a stream.Callbacks.OnError adapter.
func (d *Dashboard) OnError(err error) { d.send(errorMsg{err: err}) }

func (d *Dashboard) send(msg tea.Msg) {
	if d.p != nil {
		d.p.Send(msg)
	}
}

// Run starts the Bubble Tea event loop; blocks until the program exits
// (the user quits). It does not watch any context of rt.
func (d *Dashboard) Run() error {
	d.p = tea.NewProgram(d.m, tea.WithAltScreen())
	_, err := d.p.Run()
	return err
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *model) Init() tea.Cmd {
	return tickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch {
		case msg.String() == "q", msg.String() == "ctrl+c":
			return m, tea.Quit
		}
	case tickerMsg:
		tk := wire.Ticker(msg)
		if _, seen := m.tickers[tk.Symbol]; !seen {
			m.order = append(m.order, tk.Symbol)
			sort.Strings(m.order)
		}
		m.tickers[tk.Symbol] = tk
	case alertMsg:
		m.alerts = append(m.alerts, msg.Message)
		if len(m.alerts) > maxAlerts {
			m.alerts = m.alerts[len(m.alerts)-maxAlerts:]
		}
	case errorMsg:
		m.err = msg.err
	case refreshMsg:
		if m.rt != nil {
			m.snap = m.rt.Metrics()
			m.state = m.snap.ConnectionState
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m *model) statusView() string {
	switch m.state {
	case stream.Connected:
		return statusConnected.Render("● connected")
	case stream.Connecting, stream.Reconnecting:
		return statusReconnect.Render("● reconnecting")
	default:
		return statusDown.Render("● disconnected")
	}
}

func (m *model) tickerTable() string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-12s %10s %10s %10s", "symbol", "last", "bid", "ask")))
	b.WriteString("\n")
	for _, sym := range m.order {
		tk := m.tickers[sym]
		b.WriteString(tableCellStyle.Render(fmt.Sprintf("%-12s %10.4f %10.4f %10.4f", tk.Symbol, tk.Last, tk.Bid, tk.Ask)))
		b.WriteString("\n")
	}
	if len(m.order) == 0 {
		b.WriteString(mutedStyle.Render("waiting for ticks...\n"))
	}
	return b.String()
}

func (m *model) alertFeed() string {
	if len(m.alerts) == 0 {
		return mutedStyle.Render("no alerts yet")
	}
	var b strings.Builder
	for _, a := range m.alerts {
		b.WriteString(alertStyle.Render("! " + a))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) View() string {
	header := titleStyle.Render("kstream dashboard") + "  " + m.statusView()
	metrics := mutedStyle.Render(fmt.Sprintf(
		"received=%d processed=%d dropped=%d gaps=%d reconnects=%d",
		m.snap.MessagesReceived, m.snap.MessagesProcessed, m.snap.MessagesDropped,
		m.snap.GapsDetected, m.snap.ReconnectAttempts,
	))

	body := boxStyle.Render(m.tickerTable()) + "\n" + boxStyle.Render(m.alertFeed())
	if m.err != nil {
		body += "\n" + statusDown.Render("error: "+m.err.Error())
	}

	help := helpStyle.Render("q: quit")
	return strings.Join([]string{header, metrics, body, help}, "\n")
}
