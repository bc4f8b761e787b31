// Owns the single live WebSocket connection to the resolved backend and
// dispatches its typed events (array status, job log, resync progress) to
// subscribers. Exactly one channel is connected at any time; the only
// reconnect mechanism is a new Connect() call.
package pushchannel

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/function61/gokit/logex"
	"github.com/gorilla/websocket"
	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/komtypes"
)

type Status string

const (
	Disconnected Status = "disconnected"
	Connecting   Status = "connecting"
	Connected    Status = "connected"
)

// all callbacks are invoked from the channel's read goroutine (or from
// Connect/Disconnect for the lifecycle ones); nil callbacks are skipped
type Handlers struct {
	OnConnect        func(mode accessmode.Mode)
	OnDisconnect     func(mode accessmode.Mode, err error) // err nil on explicit disconnect
	OnArrayStatus    func(status komtypes.ArrayStatus)
	OnMdraidLog      func(event komtypes.MdraidLogEvent)
	OnResyncProgress func(event komtypes.ResyncProgressEvent)
}

type Manager struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	mode     accessmode.Mode
	status   Status
	handlers Handlers

	// a https-served embedded page cannot open a plaintext LAN socket
	// (mixed content), so such connects are skipped instead of attempted
	embeddedBrowser bool
	secureContext   bool

	logl *logex.Leveled
}

type Option func(m *Manager)

// marks the client as running inside a browser shell over a secure
// transport; connects to the private backend will then be skipped
func InsideSecureBrowser() Option {
	return func(m *Manager) {
		m.embeddedBrowser = true
		m.secureContext = true
	}
}

func New(handlers Handlers, logger *log.Logger, options ...Option) *Manager {
	m := &Manager{
		status:   Disconnected,
		handlers: handlers,
		logl:     logex.Levels(logger),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Connect opens the channel for the given mode, first tearing down any
// previous channel (its disconnect errors are swallowed - we're abandoning
// it anyway). Safe to call on every mode change.
func (m *Manager) Connect(ctx context.Context, mode accessmode.Mode, urls *komtypes.RestClientUrlBuilder) error {
	m.disconnect(nil)

	if m.embeddedBrowser && m.secureContext && mode == accessmode.ModePrivate {
		m.logl.Info.Printf("skipping connect to %s: secure embedded context cannot reach the LAN backend", mode)
		return nil
	}

	m.mu.Lock()
	m.status = Connecting
	m.mode = mode
	m.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, urls.PushChannel(), nil)
	if err != nil {
		m.mu.Lock()
		m.status = Disconnected
		m.mu.Unlock()

		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.status = Connected
	m.mu.Unlock()

	if m.handlers.OnConnect != nil {
		m.handlers.OnConnect(mode)
	}

	go m.readLoop(conn, mode)

	return nil
}

// Disconnect tears down the current channel, if any. Best-effort.
func (m *Manager) Disconnect() {
	m.disconnect(nil)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

func (m *Manager) disconnect(cause error) {
	m.mu.Lock()
	conn := m.conn
	mode := m.mode
	wasConnected := m.status == Connected
	m.conn = nil
	m.status = Disconnected
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close() // swallow: channel may already be broken
	}

	if wasConnected && m.handlers.OnDisconnect != nil {
		m.handlers.OnDisconnect(mode, cause)
	}
}

func (m *Manager) readLoop(conn *websocket.Conn, mode accessmode.Mode) {
	for {
		envelope := komtypes.PushEnvelope{}
		if err := conn.ReadJSON(&envelope); err != nil {
			// reading from a conn we already replaced/closed is not an
			// error worth surfacing twice
			m.mu.Lock()
			stale := m.conn != conn
			m.mu.Unlock()

			if !stale {
				m.logl.Error.Printf("channel read (%s): %v", mode, err)
				m.disconnect(err)
			}

			return
		}

		m.dispatch(envelope)
	}
}

func (m *Manager) dispatch(envelope komtypes.PushEnvelope) {
	switch envelope.Type {
	case komtypes.EventMdraidStatus:
		status := komtypes.ArrayStatus{}
		if err := json.Unmarshal(envelope.Payload, &status); err != nil {
			m.logl.Error.Printf("malformed %s: %v", envelope.Type, err)
			return
		}

		if m.handlers.OnArrayStatus != nil {
			m.handlers.OnArrayStatus(status)
		}
	case komtypes.EventMdraidLog:
		event := komtypes.MdraidLogEvent{}
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			m.logl.Error.Printf("malformed %s: %v", envelope.Type, err)
			return
		}

		if m.handlers.OnMdraidLog != nil {
			m.handlers.OnMdraidLog(event)
		}
	case komtypes.EventMdraidResyncProgress:
		event := komtypes.ResyncProgressEvent{}
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			m.logl.Error.Printf("malformed %s: %v", envelope.Type, err)
			return
		}

		if m.handlers.OnResyncProgress != nil {
			m.handlers.OnResyncProgress(event)
		}
	default:
		m.logl.Debug.Printf("ignoring unknown event type: %s", envelope.Type)
	}
}
