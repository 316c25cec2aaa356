package indicatorfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"PaperTune/internal/domain/models"
	drepo "PaperTune/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a SnapshotStream backed by the indicator engine's
// WebSocket feed. The engine pushes one frame per closed candle per
// subscribed ticker.
type Client struct {
	apiKey         string
	websocketURL   string
	tickers        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new indicator feed SnapshotStream.
func New(apiKey, websocketURL string, tickers []string, reconnectDelay, pingInterval time.Duration) drepo.SnapshotStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		tickers:        tickers,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the feed endpoint, attaching the API token when set.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("indicatorfeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("indicatorfeed: connected")
	return nil
}

// Subscribe subscribes to configured tickers on both scoring timeframes.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("indicatorfeed not connected")
	}
	for _, t := range c.tickers {
		for _, tf := range []string{string(drepo.TF1h), string(drepo.TF4h)} {
			msg := map[string]string{"type": "subscribe", "ticker": t, "timeframe": tf}
			if err := c.conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("subscribe %s %s: %w", t, tf, err)
			}
		}
		log.Printf("indicatorfeed: subscribed %s", t)
	}
	return nil
}

type feedMessage struct {
	Type string                      `json:"type"`
	Data []*models.IndicatorSnapshot `json:"data"`
}

// Read streams snapshot events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.IndicatorSnapshot, <-chan error) {
	snaps := make(chan *models.IndicatorSnapshot, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(snaps)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("indicatorfeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("indicatorfeed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-snapshot frames
					continue
				}
				if m.Type != "snapshot" {
					continue
				}
				for _, s := range m.Data {
					if s == nil {
						continue
					}
					select {
					case snaps <- s:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return snaps, errs
}

// Reconnect drops the current connection, waits out the backoff and
// re-subscribes from scratch.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close tears down the underlying connection if one is open.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the feed is currently dialed in.
func (c *Client) IsConnected() bool { return c.connected }
