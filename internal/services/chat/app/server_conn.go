package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	apperrors "github.com/rentora/rentora/internal/platform/errors"
	chatstorage "github.com/rentora/rentora/internal/services/chat/storage"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes = 16 * 1024
	maxMessageBodyRunes  = 2000

	// Ordinary disconnects and protocol errors carry distinct close
	// statuses so the two are distinguishable in logs and client traces.
	closeStatusNormal        = 1000
	closeStatusProtocolError = 1002
)

// connState enumerates the connection lifecycle. Closed is terminal.
type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

// wsConnContextKey carries handshake results into the WebSocket goroutine.
type wsConnContextKey struct{}

type wsConnContext struct {
	roomID   string
	identity identity
}

// inboundFrame is the client -> server wire shape. The payload is kept raw
// so oversized frames can be rejected before parsing.
type inboundFrame struct {
	Data json.RawMessage `json:"data"`
}

// inboundMessage is the fixed payload shape the frontend sends.
type inboundMessage struct {
	ConversationID string `json:"conversation_id"`
	SentToID       string `json:"sent_to_id"`
	Name           string `json:"name"`
	Body           string `json:"body"`
}

// outboundMessage is the server -> client wire shape.
type outboundMessage struct {
	Body string `json:"body"`
	Name string `json:"name"`
}

// wsPeer serializes writes to one WebSocket so a connection's inbound stream
// stays first-in-first-delivered even under concurrent broadcasts.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) push(msg outboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(msg)
}

// chatConn drives one connection through Connecting -> Open -> Closed.
//
// The goroutine running the read loop owns the connection exclusively;
// the registry is the only state it shares with other connections.
type chatConn struct {
	ws          *websocket.Conn
	peer        *wsPeer
	registry    *roomRegistry
	broadcaster *roomBroadcaster
	store       messageStore
	roomID      string
	identity    identity

	state        connState
	teardownOnce sync.Once
}

func handleWSConn(ws *websocket.Conn, registry *roomRegistry, broadcaster *roomBroadcaster, store messageStore) {
	request := ws.Request()
	if request == nil {
		_ = ws.Close()
		return
	}
	connCtx, ok := request.Context().Value(wsConnContextKey{}).(wsConnContext)
	if !ok {
		_ = ws.Close()
		return
	}

	c := &chatConn{
		ws:          ws,
		peer:        newWSPeer(json.NewEncoder(ws)),
		registry:    registry,
		broadcaster: broadcaster,
		store:       store,
		roomID:      connCtx.roomID,
		identity:    connCtx.identity,
		state:       stateConnecting,
	}
	// Teardown runs exactly once no matter which suspension point the
	// connection dies at.
	defer c.teardown(closeStatusNormal)

	c.onConnect()

	decoder := json.NewDecoder(ws)
	for c.state == stateOpen {
		var frame inboundFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				c.onDisconnect()
				return
			}
			c.onProtocolError(fmt.Errorf("decode frame: %w", err))
			return
		}
		c.onFrame(request.Context(), frame)
	}
}

// onConnect moves Connecting -> Open: the connection joins its room and
// starts receiving broadcasts.
func (c *chatConn) onConnect() {
	c.registry.join(c.roomID, c.peer)
	c.state = stateOpen
	log.Printf("chat: connection joined room=%q user=%q", c.roomID, c.identity.userID)
}

// onFrame handles one inbound frame while Open. A valid payload is persisted
// and fanned out; a malformed one is a protocol error that closes the
// connection rather than being silently dropped.
func (c *chatConn) onFrame(ctx context.Context, frame inboundFrame) {
	msg, err := parseInboundFrame(frame)
	if err != nil {
		c.onProtocolError(err)
		return
	}

	c.persist(ctx, msg)

	c.broadcaster.broadcast(c.roomID, outboundMessage{
		Body: msg.Body,
		Name: msg.Name,
	})
}

// persist appends the message durably. Persistence failures are logged and
// never block delivery: the channel favors real-time fan-out over durability.
func (c *chatConn) persist(ctx context.Context, msg inboundMessage) {
	if c.store == nil {
		return
	}
	if c.identity.isAnonymous() {
		log.Printf("chat: skipping persistence for anonymous sender in room=%q", c.roomID)
		return
	}

	_, err := c.store.AppendMessage(ctx, chatstorage.AppendMessageInput{
		ConversationID: msg.ConversationID,
		Body:           msg.Body,
		SenderID:       c.identity.userID,
		RecipientID:    msg.SentToID,
	})
	if err != nil {
		log.Printf("chat: persist message for room=%q failed, continuing with delivery: %v", c.roomID, err)
	}
}

// onDisconnect moves Open -> Closed after a peer-initiated close.
func (c *chatConn) onDisconnect() {
	log.Printf("chat: connection left room=%q user=%q", c.roomID, c.identity.userID)
	c.teardown(closeStatusNormal)
}

// onProtocolError moves Open -> Closed after a malformed frame.
func (c *chatConn) onProtocolError(err error) {
	log.Printf("chat: protocol error on room=%q user=%q, closing connection: %v", c.roomID, c.identity.userID, err)
	c.teardown(closeStatusProtocolError)
}

// teardown releases the connection's registry membership and socket exactly
// once. Closed is terminal.
func (c *chatConn) teardown(status int) {
	c.teardownOnce.Do(func() {
		c.registry.leave(c.roomID, c.peer)
		if status != closeStatusNormal {
			_ = c.ws.WriteClose(status)
		}
		_ = c.ws.Close()
		c.state = stateClosed
	})
}

// parseInboundFrame validates the fixed payload shape the frontend sends.
func parseInboundFrame(frame inboundFrame) (inboundMessage, error) {
	if len(frame.Data) == 0 {
		return inboundMessage{}, apperrors.New(apperrors.CodeChatMalformedPayload, "frame data is required")
	}
	if len(frame.Data) > maxFramePayloadBytes {
		return inboundMessage{}, apperrors.New(apperrors.CodeChatMalformedPayload, "frame payload too large")
	}

	var msg inboundMessage
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		return inboundMessage{}, apperrors.Wrap(apperrors.CodeChatMalformedPayload, "decode frame data", err)
	}

	msg.ConversationID = strings.TrimSpace(msg.ConversationID)
	if msg.ConversationID == "" {
		return inboundMessage{}, apperrors.New(apperrors.CodeChatMalformedPayload, "conversation_id is required")
	}
	msg.SentToID = strings.TrimSpace(msg.SentToID)
	if msg.SentToID == "" {
		return inboundMessage{}, apperrors.New(apperrors.CodeChatMalformedPayload, "sent_to_id is required")
	}
	msg.Name = strings.TrimSpace(msg.Name)
	if msg.Name == "" {
		return inboundMessage{}, apperrors.New(apperrors.CodeChatMalformedPayload, "name is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return inboundMessage{}, apperrors.New(apperrors.CodeChatMalformedPayload, "body is required")
	}
	if utf8.RuneCountInString(msg.Body) > maxMessageBodyRunes {
		return inboundMessage{}, apperrors.WithMetadata(apperrors.CodeChatMalformedPayload, "body is too long",
			map[string]string{"max_runes": fmt.Sprintf("%d", maxMessageBodyRunes)})
	}
	return msg, nil
}
