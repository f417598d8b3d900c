// Package remote is the websocket client for the content service: catalog
// documents and structure payloads on demand. One connection, one request
// in flight at a time; the service serializes callers anyway.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"spawnforge.ai/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 30 * time.Second
)

// Client implements content.Fetcher over a websocket to the content
// service. Safe for concurrent use; requests are serialized on the mutex.
type Client struct {
	url        string
	clientName string
	worldSeed  int64
	log        *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	welcome protocol.WelcomeMsg
}

func NewClient(url, clientName string, worldSeed int64, log *zap.Logger) *Client {
	return &Client{url: url, clientName: clientName, worldSeed: worldSeed, log: log}
}

// Connect dials and performs the HELLO/WELCOME handshake. Reconnecting an
// already-connected client closes the old connection first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := d.DialContext(ctx, c.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      c.clientName,
		WorldSeed:       c.worldSeed,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return fmt.Errorf("hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("welcome: %w", err)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil || w.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return fmt.Errorf("welcome: unexpected message %q", string(msg))
	}
	c.conn = conn
	c.welcome = w
	c.log.Info("content service connected",
		zap.String("url", c.url),
		zap.String("catalog", w.CatalogID),
		zap.String("digest", w.CatalogDigest))
	return nil
}

// Welcome returns the handshake result.
func (c *Client) Welcome() protocol.WelcomeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// roundTrip sends one request and reads messages until the reply matches
// wantType. Unknown message types are skipped; errors of type ERROR abort.
func (c *Client) roundTrip(ctx context.Context, req any, wantType string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		c.closeLocked()
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.closeLocked()
			return nil, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case wantType:
			return msg, nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				return nil, fmt.Errorf("content service error")
			}
			return nil, fmt.Errorf("content service error %s: %s", e.Code, e.Message)
		default:
			c.log.Debug("skipping unexpected message", zap.String("type", base.Type))
		}
	}
}

// FetchCatalog requests the catalog document. A knownDigest matching the
// service's current document yields (nil, digest, nil) without the body.
func (c *Client) FetchCatalog(ctx context.Context, catalogID, knownDigest string) ([]byte, string, error) {
	req := protocol.CatalogReqMsg{
		Type:            protocol.TypeCatalogReq,
		ProtocolVersion: protocol.Version,
		CatalogID:       catalogID,
		KnownDigest:     knownDigest,
	}
	msg, err := c.roundTrip(ctx, req, protocol.TypeCatalog)
	if err != nil {
		return nil, "", err
	}
	var reply protocol.CatalogMsg
	if err := json.Unmarshal(msg, &reply); err != nil {
		return nil, "", fmt.Errorf("catalog reply: %w", err)
	}
	if reply.NotModified {
		return nil, reply.Digest, nil
	}
	if len(reply.Raw) == 0 {
		return nil, "", fmt.Errorf("catalog reply: empty document")
	}
	return reply.Raw, reply.Digest, nil
}

// FetchPayload implements content.Fetcher.
func (c *Client) FetchPayload(ctx context.Context, id string) ([]byte, error) {
	req := protocol.PayloadReqMsg{
		Type:            protocol.TypePayloadReq,
		ProtocolVersion: protocol.Version,
		EntryID:         id,
	}
	msg, err := c.roundTrip(ctx, req, protocol.TypePayload)
	if err != nil {
		return nil, err
	}
	var reply protocol.PayloadMsg
	if err := json.Unmarshal(msg, &reply); err != nil {
		return nil, fmt.Errorf("payload reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("payload %s: %s", id, reply.Error)
	}
	if reply.EntryID != id {
		return nil, fmt.Errorf("payload reply for %s, want %s", reply.EntryID, id)
	}
	if len(reply.Raw) == 0 {
		return nil, fmt.Errorf("payload %s: empty document", id)
	}
	return reply.Raw, nil
}
