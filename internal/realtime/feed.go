// Package realtime subscribes to row changes on the platform's realtime
// websocket, which speaks Phoenix channel framing.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/hub"
	"nexus-chat/pkg/logger"
)

const (
	// Time allowed to write a frame to the server
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the server
	maxMessageSize = 1024 * 1024

	minBackoff = 500 * time.Millisecond
)

// Phoenix events.
const (
	eventJoin        = "phx_join"
	eventReply       = "phx_reply"
	eventError       = "phx_error"
	eventClose       = "phx_close"
	eventHeartbeat   = "heartbeat"
	eventAccessToken = "access_token"
	eventChanges     = "postgres_changes"
	topicPhoenix     = "phoenix"
)

type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

// channel is one joined topic filtered to a single table.
type channel struct {
	topic string
	table string
}

var channels = []channel{
	{topic: "realtime:public-characters", table: TableCharacter},
	{topic: "realtime:delete-history", table: TableDeleteHistory},
}

// TokenSource supplies the user's access token for row-level security.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Options struct {
	// BaseURL is the platform URL; the websocket path is derived from it.
	BaseURL      string
	APIKey       string
	Tokens       TokenSource
	Heartbeat    time.Duration
	ReconnectMax time.Duration
	Dialer       *websocket.Dialer
	Logger       *logger.Logger
}

// Feed maintains the websocket and publishes decoded changes.
type Feed struct {
	url          string
	tokens       TokenSource
	heartbeat    time.Duration
	reconnectMax time.Duration
	dialer       *websocket.Dialer
	log          *logger.Logger
	changes      *hub.Hub[Change]
	ref          atomic.Uint64

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected bool
}

func NewFeed(opts Options) (*Feed, error) {
	u, err := websocketURL(opts.BaseURL, opts.APIKey)
	if err != nil {
		return nil, err
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Feed{
		url:          u,
		tokens:       opts.Tokens,
		heartbeat:    opts.Heartbeat,
		reconnectMax: opts.ReconnectMax,
		dialer:       opts.Dialer,
		log:          opts.Logger.With("component", "realtime"),
		changes:      hub.New[Change]("realtime", opts.Logger),
	}, nil
}

func websocketURL(base, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Host == "" {
		return "", errors.NewBadRequestError(errors.CodeValidation, "Invalid realtime base URL").WithCause(err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path += "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe registers fn for every change and returns the unsubscribe func.
func (f *Feed) Subscribe(fn func(Change)) func() {
	return f.changes.Subscribe(fn)
}

// Connected reports whether the socket is currently up.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Run keeps the feed connected until ctx ends, reconnecting with
// exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	defer f.changes.Close()

	backoff := minBackoff
	for {
		start := time.Now()
		err := f.serve(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > f.reconnectMax {
			backoff = minBackoff
		}
		f.log.Warn("Realtime connection lost", "error", err, "retry_in", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > f.reconnectMax {
			backoff = f.reconnectMax
		}
	}
}

func (f *Feed) serve(ctx context.Context) error {
	token, err := f.tokens.Token(ctx)
	if err != nil {
		return err
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, http.Header{})
	if err != nil {
		return errors.Transport(err)
	}
	conn.SetReadLimit(maxMessageSize)

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()
	f.log.Info("Realtime connected")

	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.connected = false
		f.mu.Unlock()
		conn.Close()
	}()

	for _, ch := range channels {
		if err := f.join(conn, ch, token); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.readLoop(conn) })
	g.Go(func() error { return f.heartbeatLoop(gctx, conn) })
	return g.Wait()
}

func (f *Feed) nextRef() string {
	return strconv.FormatUint(f.ref.Add(1), 10)
}

func (f *Feed) write(conn *websocket.Conn, fr frame) error {
	if fr.Ref == nil {
		ref := f.nextRef()
		fr.Ref = &ref
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(fr); err != nil {
		return errors.Transport(err)
	}
	return nil
}

func (f *Feed) join(conn *websocket.Conn, ch channel, token string) error {
	payload, err := json.Marshal(map[string]any{
		"config": map[string]any{
			"broadcast": map[string]any{"self": false},
			"presence":  map[string]any{"key": ""},
			"postgres_changes": []map[string]string{
				{"event": "*", "schema": "public", "table": ch.table},
			},
		},
		"access_token": token,
	})
	if err != nil {
		return err
	}
	joinRef := uuid.NewString()
	return f.write(conn, frame{Topic: ch.topic, Event: eventJoin, Payload: payload, JoinRef: &joinRef})
}

// heartbeatLoop ends the connection when ctx ends by closing the socket,
// which unblocks the reader.
func (f *Feed) heartbeatLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(f.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return ctx.Err()
		case <-ticker.C:
			if err := f.write(conn, frame{Topic: topicPhoenix, Event: eventHeartbeat, Payload: json.RawMessage(`{}`)}); err != nil {
				return err
			}
		}
	}
}

func (f *Feed) readLoop(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(2*f.heartbeat + writeWait))
		var fr frame
		if err := conn.ReadJSON(&fr); err != nil {
			switch err.(type) {
			case *json.SyntaxError, *json.UnmarshalTypeError:
				f.log.Warn("Dropping malformed realtime frame", "error", err)
				continue
			}
			return errors.Transport(err)
		}
		f.handle(fr)
	}
}

func (f *Feed) handle(fr frame) {
	switch fr.Event {
	case eventChanges:
		ch, ok := decodeChange(fr.Payload)
		if !ok {
			f.log.Warn("Ignoring undecodable change", "topic", fr.Topic)
			return
		}
		f.changes.Publish(ch)
	case eventReply:
		var reply struct {
			Status   string          `json:"status"`
			Response json.RawMessage `json:"response"`
		}
		if err := json.Unmarshal(fr.Payload, &reply); err == nil && reply.Status != "ok" {
			f.log.Warn("Realtime request rejected", "topic", fr.Topic, "status", reply.Status, "response", string(reply.Response))
		}
	case eventError, eventClose:
		f.log.Warn("Realtime channel closed", "topic", fr.Topic, "event", fr.Event)
	}
}

// UpdateToken pushes a refreshed access token to every joined channel. It
// is a no-op while disconnected; the next connection joins with a fresh
// token.
func (f *Feed) UpdateToken(token string) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil || token == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if err := f.write(conn, frame{Topic: ch.topic, Event: eventAccessToken, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}
