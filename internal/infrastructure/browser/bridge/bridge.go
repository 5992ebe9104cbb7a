// Package bridge exposes the browser boundary as a WebSocket endpoint the
// companion extension connects to. The extension streams lifecycle events to
// the daemon and answers correlation-id tagged commands (create window, close
// window, query tabs).
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// ErrNotConnected is returned for commands while no extension is connected.
var ErrNotConnected = errors.New("browser extension not connected")

var (
	metricConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "bridge",
		Name:      "connections_total",
		Help:      "Extension WebSocket connections accepted.",
	})
	metricEventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "bridge",
		Name:      "events_received_total",
		Help:      "Browser lifecycle events received from the extension.",
	})
	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "bridge",
		Name:      "events_dropped_total",
		Help:      "Events dropped because the internal event buffer was full.",
	})
)

const (
	eventBufferSize = 1024
	writeTimeout    = 10 * time.Second
)

// Bridge implements port.Browser on top of a single extension connection.
// Only one extension connection is active at a time; a newer connection
// replaces the previous one, matching how an extension reload behaves.
type Bridge struct {
	ctx            context.Context
	requestTimeout time.Duration
	upgrader       websocket.Upgrader
	events         chan port.Event

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	pending   map[string]chan commandResult
	onConnect []func()
}

// New creates a Bridge. ctx scopes background reads and is attached to
// logging; requestTimeout bounds how long a command waits for the extension.
func New(ctx context.Context, requestTimeout time.Duration) *Bridge {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Bridge{
		ctx:            ctx,
		requestTimeout: requestTimeout,
		upgrader: websocket.Upgrader{
			// The listener binds to loopback; the extension connects from a
			// browser origin, so origin checking is handled by bind address.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		events:  make(chan port.Event, eventBufferSize),
		pending: make(map[string]chan commandResult),
	}
}

// OnConnect registers fn to run every time an extension connects. Register
// before the listener starts serving. fn runs on its own goroutine: connect
// callbacks issue commands over the new connection, and replies can only be
// delivered while the read loop is serving.
func (b *Bridge) OnConnect(fn func()) {
	b.mu.Lock()
	b.onConnect = append(b.onConnect, fn)
	b.mu.Unlock()
}

// Handler returns the HTTP handler that upgrades extension connections.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleUpgrade)
	return mux
}

// Events implements port.Browser.
func (b *Bridge) Events() <-chan port.Event { return b.events }

// TabURLs implements port.Browser by asking the extension for the window's
// complete ordered tab list.
func (b *Bridge) TabURLs(ctx context.Context, windowID entity.WindowID) ([]string, error) {
	result, err := b.request(ctx, outboundCommand{
		Action:   actionQueryTabs,
		WindowID: windowID,
	})
	if err != nil {
		return nil, err
	}
	return result.urls, nil
}

// CreateWindow implements port.Browser.
func (b *Bridge) CreateWindow(ctx context.Context, urls []string) (entity.WindowID, error) {
	result, err := b.request(ctx, outboundCommand{
		Action: actionCreateWindow,
		URLs:   urls,
	})
	if err != nil {
		return 0, err
	}
	return result.windowID, nil
}

// CloseWindow implements port.Browser.
func (b *Bridge) CloseWindow(ctx context.Context, windowID entity.WindowID) error {
	_, err := b.request(ctx, outboundCommand{
		Action:   actionCloseWindow,
		WindowID: windowID,
	})
	return err
}

func (b *Bridge) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(b.ctx)

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	metricConnections.Inc()
	log.Info().Str("remote", r.RemoteAddr).Msg("extension connected")

	b.mu.Lock()
	if b.conn != nil {
		// Replace the stale connection; its read loop will exit on close
		_ = b.conn.Close()
		b.failPendingLocked(errors.New("extension reconnected"))
	}
	b.conn = conn
	callbacks := append(([]func())(nil), b.onConnect...)
	b.mu.Unlock()

	for _, fn := range callbacks {
		go fn()
	}

	b.readLoop(conn)
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	log := logging.FromContext(b.ctx)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if b.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("extension read failed")
			}
			break
		}

		switch msg.Type {
		case messageTypeEvent:
			b.dispatchEvent(msg)
		case messageTypeResult:
			b.dispatchResult(msg)
		default:
			log.Warn().Str("type", msg.Type).Msg("unknown bridge message type")
		}
	}

	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
		b.failPendingLocked(ErrNotConnected)
	}
	b.mu.Unlock()

	_ = conn.Close()
	log.Info().Msg("extension disconnected")
}

func (b *Bridge) dispatchEvent(msg inboundMessage) {
	metricEventsReceived.Inc()
	ev := port.Event{
		Type:       port.EventType(msg.Event),
		WindowID:   entity.WindowID(msg.WindowID),
		WindowType: entity.WindowType(msg.WindowType),
		TabID:      entity.TabID(msg.TabID),
		URL:        msg.URL,
		Index:      msg.Index,
	}
	select {
	case b.events <- ev:
	default:
		metricEventsDropped.Inc()
		logging.FromContext(b.ctx).Warn().
			Str("event", msg.Event).
			Int64("window_id", msg.WindowID).
			Msg("event buffer full, dropping event")
	}
}

func (b *Bridge) dispatchResult(msg inboundMessage) {
	b.mu.Lock()
	ch, ok := b.pending[msg.ID]
	delete(b.pending, msg.ID)
	b.mu.Unlock()
	if !ok {
		// Command already timed out
		return
	}

	result := commandResult{
		windowID: entity.WindowID(msg.WindowID),
		urls:     msg.URLs,
	}
	if msg.Error != "" {
		result.err = fmt.Errorf("extension: %s", msg.Error)
	}
	ch <- result
}

// request sends one command and waits for its correlated result.
func (b *Bridge) request(ctx context.Context, cmd outboundCommand) (commandResult, error) {
	cmd.Type = messageTypeCommand
	cmd.ID = uuid.NewString()

	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return commandResult{}, ErrNotConnected
	}
	ch := make(chan commandResult, 1)
	b.pending[cmd.ID] = ch
	b.mu.Unlock()

	if err := b.writeJSON(conn, cmd); err != nil {
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		return commandResult{}, fmt.Errorf("failed to send %s command: %w", cmd.Action, err)
	}

	timer := time.NewTimer(b.requestTimeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		return result, result.err
	case <-timer.C:
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		return commandResult{}, fmt.Errorf("%s command timed out after %s", cmd.Action, b.requestTimeout)
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		return commandResult{}, ctx.Err()
	}
}

// writeJSON serializes concurrent command writers onto the single connection.
func (b *Bridge) writeJSON(conn *websocket.Conn, v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// failPendingLocked resolves every outstanding command with err. Caller holds
// b.mu.
func (b *Bridge) failPendingLocked(err error) {
	for id, ch := range b.pending {
		ch <- commandResult{err: err}
		delete(b.pending, id)
	}
}
