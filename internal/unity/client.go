// Package unity implements the client side of the Unity editor MCP bridge:
// a TCP connection per command, an optional length-prefixed framing
// handshake, and retries while the bridge is unreachable or the editor is
// reloading its script domain.
package unity

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"unitymcp/internal/errors"
	"unitymcp/internal/telemetry"
)

const (
	// DefaultPort is the port the Unity bridge listens on.
	DefaultPort = 6400

	// maxRetryDelay caps the exponential backoff between attempts.
	maxRetryDelay = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	Host             string
	Port             int
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	MaxInFlight      int64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Host:             "127.0.0.1",
		Port:             DefaultPort,
		ConnectTimeout:   2 * time.Second,
		RequestTimeout:   30 * time.Second,
		HandshakeTimeout: time.Second,
		MaxRetries:       3,
		RetryDelay:       250 * time.Millisecond,
		MaxInFlight:      4,
	}
}

// Client sends commands to the Unity bridge. It is safe for concurrent use.
type Client struct {
	opts   Options
	logger *slog.Logger
	sem    *semaphore.Weighted
	dialer net.Dialer
}

// NewClient creates a bridge client. Zero option fields take their defaults.
func NewClient(opts Options, logger *slog.Logger) *Client {
	def := DefaultOptions()
	if opts.Host == "" {
		opts.Host = def.Host
	}
	if opts.Port <= 0 {
		opts.Port = def.Port
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = def.MaxInFlight
	}

	return &Client{
		opts:   opts,
		logger: logger,
		sem:    semaphore.NewWeighted(opts.MaxInFlight),
		dialer: net.Dialer{Timeout: opts.ConnectTimeout},
	}
}

// Addr returns the bridge address.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
}

// Send issues one logical command. Connection failures and domain reloads
// are retried; an error reply from the bridge is not.
func (c *Client) Send(ctx context.Context, command string, params map[string]interface{}) (resp *Response, err error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	payload, err := json.Marshal(request{Type: command, Params: params})
	if err != nil {
		return nil, errors.Wrap(errors.InvalidParameter, "cannot encode parameters for "+command, err)
	}

	ctx, span := telemetry.StartSpan(ctx, "unity.send",
		attribute.String("unity.command", command),
		attribute.String("unity.addr", c.Addr()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(errors.Cancelled, command+" cancelled before it was sent", err)
	}
	defer c.sem.Release(1)

	var lastErr error
	delay := c.opts.RetryDelay
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return nil, errors.Wrap(errors.Cancelled, command+" cancelled while retrying", err)
			}
			delay = nextDelay(delay)

			c.logger.Debug("Retrying bridge command",
				"command", command,
				"attempt", attempt+1,
				"lastError", lastErr,
			)
		}

		raw, err := c.roundTrip(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(errors.Cancelled, command+" cancelled", ctx.Err())
			}
			var perr *ProtocolError
			if stderrors.As(err, &perr) {
				return nil, errors.Wrap(errors.InvalidResponse, "malformed reply to "+command, err)
			}
			lastErr = err
			continue
		}

		resp, hint, err := decodeReply(raw)
		if err != nil {
			return nil, err
		}
		if hint.reloading() {
			lastErr = fmt.Errorf("editor is reloading")
			if d := hint.retryAfter(); d > 0 {
				delay = d
			}
			c.logger.Info("Unity is reloading, will retry",
				"command", command,
				"retryAfter", delay.String(),
			)
			continue
		}

		span.SetAttributes(
			attribute.Int("unity.attempts", attempt+1),
			attribute.Bool("unity.success", resp.Success),
		)
		return resp, nil
	}

	c.logger.Warn("Unity bridge unreachable",
		"addr", c.Addr(),
		"command", command,
		"error", lastErr,
	)
	msg := fmt.Sprintf("Unity bridge at %s did not answer %s after %d attempts", c.Addr(), command, c.opts.MaxRetries+1)
	return nil, errors.Wrap(errors.BridgeUnavailable, msg, lastErr)
}

// Ping checks that the bridge answers.
func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.roundTrip(ctx, []byte("ping"))
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(errors.Cancelled, "ping cancelled", ctx.Err())
		}
		return errors.Wrap(errors.BridgeUnavailable, "Unity bridge at "+c.Addr()+" is not reachable", err)
	}

	var reply bridgeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return errors.Wrap(errors.InvalidResponse, "malformed ping reply", err)
	}
	if reply.Status != "success" {
		return errors.New(errors.CommandFailed, "ping failed: "+firstNonEmpty(reply.Error, reply.Message, reply.Status))
	}

	var result struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(reply.Result, &result)
	if result.Message != "pong" {
		return errors.New(errors.InvalidResponse, fmt.Sprintf("unexpected ping reply %q", result.Message))
	}
	return nil
}

// roundTrip opens a connection, writes payload and reads exactly one reply.
func (c *Client) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.Addr())
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	// Unblock any pending read or write when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	br := bufio.NewReader(conn)
	framed, err := c.handshake(conn, br)
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(c.opts.RequestTimeout)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if framed {
		if err := writeFrame(conn, payload); err != nil {
			return nil, err
		}
		return readFrame(br)
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, err
	}
	return readLegacy(br)
}

// handshake reads the optional greeting. Bridges that stay silent are
// treated as legacy, unframed peers.
func (c *Client) handshake(conn net.Conn, br *bufio.Reader) (bool, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout)); err != nil {
		return false, err
	}

	line, err := br.ReadString('\n')
	if err != nil {
		var ne net.Error
		if stderrors.As(err, &ne) && ne.Timeout() && line == "" {
			return false, nil
		}
		return false, err
	}

	framed := supportsFraming(line)
	c.logger.Debug("Unity bridge handshake",
		"greeting", strings.TrimSpace(line),
		"framed", framed,
	)
	return framed, nil
}

// decodeReply unwraps the bridge reply into the editor's response.
func decodeReply(raw []byte) (*Response, reloadHint, error) {
	var reply bridgeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, reloadHint{}, errors.Wrap(errors.InvalidResponse, "bridge reply is not JSON", err)
	}

	var outer reloadHint
	_ = json.Unmarshal(raw, &outer)
	if outer.reloading() {
		return nil, outer, nil
	}

	switch reply.Status {
	case "success":
	case "error":
		msg := firstNonEmpty(reply.Error, reply.Message, "command failed")
		if strings.Contains(strings.ToLower(msg), "reloading") {
			return nil, reloadHint{State: "reloading"}, nil
		}
		return nil, reloadHint{}, errors.New(errors.CommandFailed, msg)
	default:
		return nil, reloadHint{}, errors.New(errors.InvalidResponse, fmt.Sprintf("unknown reply status %q", reply.Status))
	}

	if len(reply.Result) == 0 || string(reply.Result) == "null" {
		return &Response{Success: true}, reloadHint{}, nil
	}

	var inner reloadHint
	_ = json.Unmarshal(reply.Result, &inner)
	if inner.reloading() {
		return nil, inner, nil
	}

	resp := &Response{}
	if err := json.Unmarshal(reply.Result, resp); err != nil {
		return nil, reloadHint{}, errors.Wrap(errors.InvalidResponse, "bridge result is not an object", err)
	}
	return resp, reloadHint{}, nil
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
