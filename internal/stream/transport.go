package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Transport is one open streaming connection.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Ping() error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	EnableCompression bool
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := *websocket.DefaultDialer
	dialer.EnableCompression = d.EnableCompression
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
