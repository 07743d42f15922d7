package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// wsInitialRetryDelay is the wait before the first reconnect attempt.
	wsInitialRetryDelay = 500 * time.Millisecond

	// wsMaxRetryDelay caps the doubling reconnect delay.
	wsMaxRetryDelay = 30 * time.Second
)

// WebsocketSource subscribes to push notifications over the backend's /ws
// endpoint. The source reconnects automatically with a capped doubling
// delay; each drop emits StateDisconnected, each attempt StateConnecting,
// each established connection StateConnected. State transitions themselves
// never carry events - only decoded push payloads do.
type WebsocketSource struct {
	events <-chan Event
	errors <-chan error
	states <-chan ConnState
	cancel func()
	once   sync.Once
}

// websocketURL converts the backend base URL into the /ws endpoint.
func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme: %q", u.Scheme)
	}

	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// NewWebsocketSource starts the dial loop against the backend at baseURL.
// The access token is attached as the session cookie, mirroring the REST
// client. Caller must Close() when done; cancelling ctx also stops the
// subscription. A backend that is down at start is not an error - the
// source keeps dialing.
func NewWebsocketSource(ctx context.Context, baseURL, token string) (*WebsocketSource, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Cookie", fmt.Sprintf("sibyl_access_token=%s", token))
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	statesChan := make(chan ConnState, 4)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go runWebsocketLoop(subCtx, wsURL, header, eventsChan, errorsChan, statesChan)

	return &WebsocketSource{
		events: eventsChan,
		errors: errorsChan,
		states: statesChan,
		cancel: cancelFunc,
	}, nil
}

// runWebsocketLoop dials, drains one connection, and redials until ctx ends.
func runWebsocketLoop(ctx context.Context, wsURL string, header http.Header, events chan<- Event, errs chan<- error, states chan<- ConnState) {
	defer close(events)
	defer close(errs)
	defer close(states)

	delay := wsInitialRetryDelay

	for {
		sendState(ctx, states, StateConnecting)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sendError(ctx, errs, fmt.Errorf("websocket dial failed: %w", err))
			sendState(ctx, states, StateDisconnected)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > wsMaxRetryDelay {
				delay = wsMaxRetryDelay
			}
			continue
		}

		sendState(ctx, states, StateConnected)
		delay = wsInitialRetryDelay

		readWebsocket(ctx, conn, events, errs)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		sendState(ctx, states, StateDisconnected)
	}
}

// readWebsocket decodes push events from one connection until it drops.
// Malformed messages are reported and skipped.
func readWebsocket(ctx context.Context, conn *websocket.Conn, events chan<- Event, errs chan<- error) {
	// Unblock ReadJSON when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				sendError(ctx, errs, fmt.Errorf("websocket read failed: %w", err))
			}
			return
		}

		if err := ev.Validate(); err != nil {
			sendError(ctx, errs, fmt.Errorf("invalid push event: %w", err))
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func sendState(ctx context.Context, states chan<- ConnState, st ConnState) {
	select {
	case states <- st:
	case <-ctx.Done():
	}
}

func sendError(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}

// Events returns the channel of push notifications.
func (s *WebsocketSource) Events() <-chan Event { return s.events }

// Errors returns the channel of non-fatal subscription errors.
func (s *WebsocketSource) Errors() <-chan error { return s.errors }

// States returns the channel of connection-state transitions.
func (s *WebsocketSource) States() <-chan ConnState { return s.states }

// Close stops the dial loop. Safe to call multiple times.
func (s *WebsocketSource) Close() error {
	s.once.Do(s.cancel)
	return nil
}
