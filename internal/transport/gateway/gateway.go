// Package gateway implements transport.Messenger against the chat
// platform's websocket event gateway and HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pokeball/internal/transport"
)

// Config configures gateway client behavior.
type Config struct {
	// GatewayURL is the websocket endpoint for the event stream.
	GatewayURL string
	// APIBaseURL is the HTTP API root for sends and lookups.
	APIBaseURL string
	// Token authenticates both the gateway session and API calls.
	Token string

	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// EventBuffer is the capacity of the inbound event channel.
	EventBuffer int
}

func (c *Config) applyDefaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 1 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 1024
	}
}

// waiter is one pending AwaitNext registration.
type waiter struct {
	channelID string
	match     transport.MatchFunc
	ch        chan *transport.Message
}

// Client connects to the gateway and implements transport.Messenger.
type Client struct {
	config Config
	httpc  *http.Client
	log    zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	waiters   map[uint64]*waiter
	waitersMu sync.Mutex
	waiterID  atomic.Uint64

	events chan *transport.Message

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// New connects to the gateway and starts the read and ping loops.
func New(ctx context.Context, config Config, log zerolog.Logger) (*Client, error) {
	config.applyDefaults()

	c := &Client{
		config:  config,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "gateway").Logger(),
		waiters: make(map[uint64]*waiter),
		events:  make(chan *transport.Message, config.EventBuffer),
		done:    make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Events is the stream of inbound messages not consumed by a waiter.
func (c *Client) Events() <-chan *transport.Message {
	return c.events
}

// connect establishes the websocket connection and identifies.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.GatewayURL, nil)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}

	identify := gatewayFrame{
		Op: "identify",
		D:  json.RawMessage(fmt.Sprintf(`{"token":%q}`, c.config.Token)),
	}
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(identify); err != nil {
		conn.Close()
		return fmt.Errorf("gateway identify: %w", err)
	}

	c.conn = conn
	return nil
}

// Close shuts down the connection and all pending waiters.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.waitersMu.Lock()
	for id, w := range c.waiters {
		close(w.ch)
		delete(c.waiters, id)
	}
	c.waitersMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// readLoop reads gateway frames and dispatches inbound messages.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleFrame(payload)
	}
}

// reconnect attempts to re-establish the gateway session.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.log.Warn().Err(err).Msg("gateway reconnect failed, will retry")
		return
	}

	c.log.Info().Msg("gateway reconnected")
}

// handleFrame decodes a frame and dispatches message-create events.
func (c *Client) handleFrame(payload []byte) {
	var frame gatewayFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Debug().Err(err).Msg("undecodable gateway frame")
		return
	}

	if frame.T != "MESSAGE_CREATE" || frame.D == nil {
		return
	}

	var wire wireMessage
	if err := json.Unmarshal(frame.D, &wire); err != nil {
		c.log.Debug().Err(err).Msg("undecodable message payload")
		return
	}

	msg := wire.toMessage()

	// Waiters get first claim; a consumed message still flows to the
	// event stream so the monitor loop sees every inbound message.
	c.offerToWaiters(msg)

	select {
	case c.events <- msg:
	case <-c.done:
	}
}

// offerToWaiters hands the message to every matching pending AwaitNext.
func (c *Client) offerToWaiters(m *transport.Message) {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()

	for id, w := range c.waiters {
		if w.channelID != "" && w.channelID != m.ChannelID {
			continue
		}
		if w.match != nil && !w.match(m) {
			continue
		}
		select {
		case w.ch <- m:
		default:
		}
		delete(c.waiters, id)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// AwaitNext blocks for the next message in channelID matching match.
func (c *Client) AwaitNext(ctx context.Context, channelID string, match transport.MatchFunc, timeout time.Duration) (*transport.Message, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("gateway closed")
	}

	w := &waiter{
		channelID: channelID,
		match:     match,
		ch:        make(chan *transport.Message, 1),
	}
	id := c.waiterID.Add(1)

	c.waitersMu.Lock()
	c.waiters[id] = w
	c.waitersMu.Unlock()

	cancelWaiter := func() {
		c.waitersMu.Lock()
		delete(c.waiters, id)
		c.waitersMu.Unlock()
	}

	if timeout == 0 {
		timeout = transport.DefaultAwaitTimeout
	}

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case m, ok := <-w.ch:
		if !ok {
			return nil, fmt.Errorf("gateway closed")
		}
		return m, nil
	case <-timerC:
		cancelWaiter()
		return nil, nil
	case <-ctx.Done():
		cancelWaiter()
		return nil, ctx.Err()
	case <-c.done:
		cancelWaiter()
		return nil, fmt.Errorf("gateway closed")
	}
}

// gatewayFrame is the envelope for gateway traffic.
type gatewayFrame struct {
	Op string          `json:"op,omitempty"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// wireMessage is the API/gateway message shape.
type wireMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Author    struct {
		ID string `json:"id"`
	} `json:"author"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Embeds    []wireEmbed `json:"embeds"`
	Components []struct {
		Components []struct {
			Label    string `json:"label"`
			CustomID string `json:"custom_id"`
		} `json:"components"`
	} `json:"components"`
}

type wireEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
	Image struct {
		URL string `json:"url"`
	} `json:"image"`
	Fields []struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline"`
	} `json:"fields"`
}

func (w *wireMessage) toMessage() *transport.Message {
	m := &transport.Message{
		ID:        w.ID,
		ChannelID: w.ChannelID,
		GuildID:   w.GuildID,
		AuthorID:  w.Author.ID,
		Content:   w.Content,
		Timestamp: w.Timestamp,
	}
	for _, e := range w.Embeds {
		embed := transport.Embed{
			Title:       e.Title,
			Description: e.Description,
			Footer:      e.Footer.Text,
			Color:       e.Color,
			ImageURL:    e.Image.URL,
		}
		for _, f := range e.Fields {
			embed.Fields = append(embed.Fields, transport.EmbedField{
				Name: f.Name, Value: f.Value, Inline: f.Inline,
			})
		}
		m.Embeds = append(m.Embeds, embed)
	}
	for _, row := range w.Components {
		for _, comp := range row.Components {
			m.Components = append(m.Components, transport.Component{
				Label: comp.Label, CustomID: comp.CustomID,
			})
		}
	}
	return m
}

// apiRequest performs an authenticated HTTP API call.
func (c *Client) apiRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.APIBaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return transport.ErrForbidden
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Send posts text to a channel.
func (c *Client) Send(ctx context.Context, channelID, text string) (*transport.Message, error) {
	var wire wireMessage
	err := c.apiRequest(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/messages", channelID),
		map[string]string{"content": text}, &wire)
	if err != nil {
		return nil, err
	}
	return wire.toMessage(), nil
}

// History returns up to limit most recent messages, newest first.
func (c *Client) History(ctx context.Context, channelID string, limit int) ([]*transport.Message, error) {
	var wires []wireMessage
	err := c.apiRequest(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit), nil, &wires)
	if err != nil {
		return nil, err
	}

	messages := make([]*transport.Message, 0, len(wires))
	for i := range wires {
		messages = append(messages, wires[i].toMessage())
	}
	return messages, nil
}

// SendDM delivers text and an optional embed to a user's direct channel.
func (c *Client) SendDM(ctx context.Context, userID, text string, embed *transport.Embed) (*transport.Message, error) {
	var dm struct {
		ID string `json:"id"`
	}
	err := c.apiRequest(ctx, http.MethodPost, "/users/@me/channels",
		map[string]string{"recipient_id": userID}, &dm)
	if err != nil {
		return nil, fmt.Errorf("open dm channel: %w", err)
	}

	body := map[string]any{"content": text}
	if embed != nil {
		wire := map[string]any{
			"title":       embed.Title,
			"description": embed.Description,
			"color":       embed.Color,
		}
		if embed.Footer != "" {
			wire["footer"] = map[string]string{"text": embed.Footer}
		}
		if len(embed.Fields) > 0 {
			var fields []map[string]any
			for _, f := range embed.Fields {
				fields = append(fields, map[string]any{
					"name": f.Name, "value": f.Value, "inline": f.Inline,
				})
			}
			wire["fields"] = fields
		}
		body["embeds"] = []map[string]any{wire}
	}

	var wire wireMessage
	err = c.apiRequest(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/messages", dm.ID), body, &wire)
	if err != nil {
		return nil, err
	}
	return wire.toMessage(), nil
}

// Pin pins a message in its channel.
func (c *Client) Pin(ctx context.Context, m *transport.Message) error {
	return c.apiRequest(ctx, http.MethodPut,
		fmt.Sprintf("/channels/%s/pins/%s", m.ChannelID, m.ID), nil, nil)
}

// ClickButton activates the component with the given label on m.
func (c *Client) ClickButton(ctx context.Context, m *transport.Message, label string) error {
	button, ok := transport.Buttons(m)[label]
	if !ok {
		return fmt.Errorf("message has no %q button", label)
	}

	body := map[string]any{
		"type":       3, // component interaction
		"channel_id": m.ChannelID,
		"message_id": m.ID,
		"data": map[string]any{
			"component_type": 2,
			"custom_id":      button.CustomID,
		},
	}
	return c.apiRequest(ctx, http.MethodPost, "/interactions", body, nil)
}

// Delete removes a message.
func (c *Client) Delete(ctx context.Context, m *transport.Message) error {
	return c.apiRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/channels/%s/messages/%s", m.ChannelID, m.ID), nil, nil)
}

// DownloadImage fetches the raw bytes behind an image URL.
func (c *Client) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Verify interface compliance at compile time.
var _ transport.Messenger = (*Client)(nil)
