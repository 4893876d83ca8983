package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds the silence between client messages. Browsers ping
	// well inside it while the quiz tab is open.
	readWait = 2 * time.Minute
)

// ErrMalformedMessage wraps a client message that is not a JSON envelope.
// The connection stays usable after it.
var ErrMalformedMessage = errors.New("malformed message")

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// WriteClose sends a normal close frame with reason.
func WriteClose(conn *websocket.Conn, reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// ReadRequest reads one client message with a read deadline and returns its
// action along with the raw bytes for typed decoding.
func ReadRequest(conn *websocket.Conn) (Action, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", raw, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return env.Action, raw, nil
}
