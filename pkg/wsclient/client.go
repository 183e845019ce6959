// Package wsclient sends a single payload over a short-lived websocket connection.
package wsclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrInvalidURI   = errors.New("invalid websocket uri")
	ErrConnection   = errors.New("websocket connection failed")
	ErrInterrupted  = errors.New("websocket wait interrupted")
	ErrNotConnected = errors.New("websocket not connected")
	ErrCloseTimeout = errors.New("websocket close handshake timed out")
)

const DefaultCloseTimeout = 5 * time.Second

// State is the lifecycle position of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateSent
	StateClosing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateSent:
		return "SENT"
	case StateClosing:
		return "CLOSING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of one connection attempt.
type Outcome struct {
	Opened bool
	Err    error
}

type Option func(*Client)

// WithCloseTimeout bounds the wait for the peer's close frame.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.closeTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification for wss:// targets.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.skipVerify = skip
	}
}

// WithDialer replaces the default dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// Client drives one connection through connect, send and close.
// A Client is not reusable once closed.
type Client struct {
	uri          *url.URL
	startMessage string
	header       http.Header

	dialer       *websocket.Dialer
	skipVerify   bool
	closeTimeout time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
	err   error
}

// New validates uri and prepares a client. headers may be nil.
func New(uri string, startMessage string, headers map[string]string, opts ...Option) (*Client, error) {
	parsed, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	c := &Client{
		uri:          parsed,
		startMessage: startMessage,
		header:       http.Header{},
		closeTimeout: DefaultCloseTimeout,
		logger:       slog.Default(),
		state:        StateIdle,
	}
	for key, value := range headers {
		c.header.Set(key, value)
	}
	for _, opt := range opts {
		opt(c)
	}
	base := websocket.DefaultDialer
	if c.dialer != nil {
		base = c.dialer
	}
	dialer := *base
	c.dialer = &dialer
	if c.skipVerify {
		c.dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return c, nil
}

// ParseURI parses uri and requires a ws or wss scheme and a host.
func ParseURI(uri string) (*url.URL, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("%w: %q needs to start with ws:// or wss://", ErrInvalidURI, uri)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURI, uri)
	}
	return parsed, nil
}

// Connect opens the connection and blocks until the handshake has completed or
// failed. On success the start message, if any, is sent before returning.
// Failures are captured in the outcome and remain available from Err.
func (c *Client) Connect(ctx context.Context) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return Outcome{Opened: c.conn != nil, Err: c.err}
	}
	c.state = StateConnecting

	conn, resp, err := c.dialer.DialContext(ctx, c.uri.String(), c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.fail(ctx, err, resp)
		return Outcome{Err: c.err}
	}
	c.conn = conn
	c.state = StateOpen
	c.logger.Debug("websocket connection established", "url", c.uri.Redacted(), "localAddr", conn.LocalAddr())

	if c.startMessage != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c.startMessage)); err != nil {
			c.err = fmt.Errorf("%w: failed to send start message: %w", ErrConnection, err)
			c.logger.Debug("failed to send start message", "error", err)
		}
	}
	return Outcome{Opened: true, Err: c.err}
}

func (c *Client) fail(ctx context.Context, err error, resp *http.Response) {
	c.state = StateFailed
	switch {
	case ctx.Err() != nil:
		c.err = fmt.Errorf("%w: %w", ErrInterrupted, err)
	case resp != nil:
		c.err = fmt.Errorf("%w: %w (status %s)", ErrConnection, err, resp.Status)
	default:
		c.err = fmt.Errorf("%w: %w", ErrConnection, err)
	}
	c.logger.Debug("websocket connection failed", "url", c.uri.Redacted(), "error", c.err)
}

// IsOpen reports whether the connection is established and not yet closing.
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen || c.state == StateSent
}

// Err returns the captured error, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes payload as a single text frame. No acknowledgement is awaited.
func (c *Client) Send(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen && c.state != StateSent {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
	}
	c.state = StateSent
	return nil
}

// Close performs the close handshake and releases the socket. It blocks until the
// peer answers with its own close frame or the close timeout elapses. Closing a
// client that never opened is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state == StateDone {
		return nil
	}
	c.state = StateClosing
	defer func() {
		_ = c.conn.Close()
		c.state = StateDone
	}()

	deadline := time.Now().Add(c.closeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return fmt.Errorf("failed to send close message: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	for {
		// Frames arriving before the close reply are dropped.
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			c.logger.Debug("websocket closed", "code", closeErr.Code, "text", closeErr.Text)
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w after %s", ErrCloseTimeout, c.closeTimeout)
		}
		return fmt.Errorf("failed waiting for close reply: %w", err)
	}
}
