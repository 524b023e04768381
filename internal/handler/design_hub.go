package handler

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"canvas-backend/internal/cache"
	"canvas-backend/internal/config"
	"canvas-backend/internal/model"
	"canvas-backend/internal/presence"
)

// =============================================================================
// Design Hub - Design 단위 WebSocket 룸 관리
// =============================================================================

// Machine-readable error kinds surfaced to the originating connection.
const (
	ErrCodeValidation = "VALIDATION"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeAuth       = "AUTH"
	ErrCodeStore      = "STORE_FAILURE"
)

// wsConn is the slice of *websocket.Conn the hub needs for fan-out.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WSMessage WebSocket 메시지 봉투
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload join 요청
type JoinPayload struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// WelcomePayload sent to a connection right after it joins a room.
type WelcomePayload struct {
	ConnectionID   string                 `json:"connectionId"`
	Participants   []presence.Participant `json:"participants"`
	RecentComments []cache.DesignComment  `json:"recentComments,omitempty"`
}

// PresencePayload 프레즌스 브로드캐스트
type PresencePayload struct {
	DesignID     int64                  `json:"designId"`
	Participants []presence.Participant `json:"participants"`
}

// CursorPayload relayed to peers; Cursor nil means the pointer left the
// canvas.
type CursorPayload struct {
	ConnectionID string           `json:"connectionId"`
	Cursor       *presence.Cursor `json:"cursor"`
}

// PatchPayload carries an opaque document patch. The hub never inspects
// Patch: it forwards whatever the sender produced, last write wins.
type PatchPayload struct {
	ActorID string          `json:"actorId,omitempty"`
	Patch   json.RawMessage `json:"patch"`
}

// CommentCreatePayload comment:create 요청
type CommentCreatePayload struct {
	Message  string          `json:"message"`
	Mentions []int64         `json:"mentions,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
}

// ErrorPayload error 응답 (송신자에게만 전달)
type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// DesignHub manages all design rooms and their connections
type DesignHub struct {
	rooms       map[int64]*DesignRoom
	mu          sync.RWMutex
	db          *gorm.DB
	registry    *presence.Registry
	cfg         *config.Config
	redisClient *cache.RedisClient // nil when Redis is not configured
}

// DesignRoom is the set of connections subscribed to one design.
type DesignRoom struct {
	designID int64
	clients  map[string]*RoomClient // connID -> client
	mu       sync.RWMutex
	hub      *DesignHub
}

// RoomClient is one websocket connection inside a room.
type RoomClient struct {
	ConnID  string
	UserID  int64
	Name    string
	Color   string
	conn    wsConn
	writeMu sync.Mutex
}

// NewDesignHub creates a new DesignHub instance
func NewDesignHub(db *gorm.DB, cfg *config.Config, redisClient *cache.RedisClient) *DesignHub {
	return &DesignHub{
		rooms:       make(map[int64]*DesignRoom),
		db:          db,
		registry:    presence.NewRegistry(),
		cfg:         cfg,
		redisClient: redisClient,
	}
}

// Registry exposes the presence registry (health endpoint, tests).
func (h *DesignHub) Registry() *presence.Registry {
	return h.registry
}

func (h *DesignHub) getOrCreateRoom(designID int64) *DesignRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[designID]; exists {
		return room
	}

	room := &DesignRoom{
		designID: designID,
		clients:  make(map[string]*RoomClient),
		hub:      h,
	}
	h.rooms[designID] = room
	log.Printf("[DesignHub] Created room: %d", designID)

	return room
}

func (h *DesignHub) removeRoomIfEmpty(designID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[designID]
	if !exists {
		return
	}
	room.mu.RLock()
	empty := len(room.clients) == 0
	room.mu.RUnlock()
	if empty {
		delete(h.rooms, designID)
		log.Printf("[DesignHub] Removed room: %d", designID)
	}
}

// addClient registers the connection in the room and the presence
// registry, then pushes updated presence to everyone in the room.
func (h *DesignHub) addClient(designID int64, client *RoomClient) {
	room := h.getOrCreateRoom(designID)

	room.mu.Lock()
	room.clients[client.ConnID] = client
	total := len(room.clients)
	room.mu.Unlock()

	h.registry.Join(designID, presence.Participant{
		ConnID: client.ConnID,
		UserID: client.UserID,
		Name:   client.Name,
		Color:  client.Color,
	})

	log.Printf("[Design %d] Joined: %s (%s), total: %d", designID, client.Name, client.ConnID, total)
	h.broadcastPresence(designID)
}

// removeClient is the single cleanup path for both explicit leave and
// transport disconnect; calling it twice for one connection is harmless.
func (h *DesignHub) removeClient(designID int64, connID string) {
	h.mu.RLock()
	room := h.rooms[designID]
	h.mu.RUnlock()
	if room == nil {
		return
	}

	room.mu.Lock()
	_, present := room.clients[connID]
	if present {
		delete(room.clients, connID)
	}
	remaining := len(room.clients)
	room.mu.Unlock()

	if !present {
		return
	}

	h.registry.Leave(designID, connID)
	log.Printf("[Design %d] Left: %s, remaining: %d", designID, connID, remaining)

	if remaining == 0 {
		h.removeRoomIfEmpty(designID)
		return
	}
	h.broadcastPresence(designID)
}

// =============================================================================
// Fan-out
// =============================================================================

func (h *DesignHub) snapshotClients(designID int64) []*RoomClient {
	h.mu.RLock()
	room := h.rooms[designID]
	h.mu.RUnlock()
	if room == nil {
		return nil
	}

	room.mu.RLock()
	defer room.mu.RUnlock()
	clients := make([]*RoomClient, 0, len(room.clients))
	for _, c := range room.clients {
		clients = append(clients, c)
	}
	return clients
}

// broadcast sends a message to every room member except excludeConnID
// (empty string excludes nobody). A failed peer write is dropped: the
// next patch supersedes it.
func (h *DesignHub) broadcast(designID int64, msg WSMessage, excludeConnID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Design %d] Failed to marshal %s message: %v", designID, msg.Type, err)
		return
	}

	for _, client := range h.snapshotClients(designID) {
		if client.ConnID == excludeConnID {
			continue
		}
		client.send(data)
	}
}

func (c *RoomClient) send(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[DesignHub] Failed to send to %s: %v", c.ConnID, err)
	}
}

func (c *RoomClient) sendMessage(msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[DesignHub] Failed to marshal %s payload: %v", msgType, err)
		return
	}
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	c.send(data)
}

func (c *RoomClient) sendError(code, message string, details map[string]string) {
	c.sendMessage("error", ErrorPayload{Code: code, Message: message, Details: details})
}

func (h *DesignHub) broadcastPresence(designID int64) {
	payload, err := json.Marshal(PresencePayload{
		DesignID:     designID,
		Participants: h.registry.List(designID),
	})
	if err != nil {
		return
	}
	h.broadcast(designID, WSMessage{Type: "presence", Payload: payload}, "")
}

// relayPatch forwards the opaque patch to every room member except the
// sender. No validation, no merge, no acknowledgement.
func (h *DesignHub) relayPatch(designID int64, senderConnID string, patch json.RawMessage) {
	payload, err := json.Marshal(PatchPayload{ActorID: senderConnID, Patch: patch})
	if err != nil {
		return
	}
	h.broadcast(designID, WSMessage{Type: "patch", Payload: payload}, senderConnID)
}

func (h *DesignHub) relayCursor(designID int64, senderConnID string, cursor *presence.Cursor) {
	h.registry.UpdateCursor(designID, senderConnID, cursor)

	payload, err := json.Marshal(CursorPayload{ConnectionID: senderConnID, Cursor: cursor})
	if err != nil {
		return
	}
	h.broadcast(designID, WSMessage{Type: "cursor", Payload: payload}, senderConnID)
}

// BroadcastComment pushes a persisted comment to the whole room,
// including the author's own connections (clients dedup by id). The
// REST fallback path uses this too.
func (h *DesignHub) BroadcastComment(designID int64, comment CommentResponse) {
	payload, err := json.Marshal(comment)
	if err != nil {
		return
	}
	h.broadcast(designID, WSMessage{Type: "comment:created", Payload: payload}, "")
}

// =============================================================================
// Connection handling
// =============================================================================

// HandleWebSocket WebSocket 연결 처리 (디자인 룸)
func (h *DesignHub) HandleWebSocket(c *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DesignHub] recovered from panic: %v", r)
		}
	}()

	designID, ok1 := c.Locals("designID").(int64)
	userID, ok2 := c.Locals("userID").(int64)
	userName, ok3 := c.Locals("name").(string)
	if !ok1 || !ok2 || !ok3 {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"code":"AUTH","message":"invalid session"}}`))
		c.Close()
		return
	}

	connID := uuid.NewString()
	client := &RoomClient{
		ConnID: connID,
		UserID: userID,
		Name:   userName,
		conn:   c,
	}
	joined := false

	// Disconnect is the backstop cleanup trigger when leave is skipped
	// (crash, network loss); removeClient tolerates both paths firing.
	defer func() {
		h.removeClient(designID, connID)
		c.Close()
	}()

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "join":
			var p JoinPayload
			if len(msg.Payload) > 0 {
				json.Unmarshal(msg.Payload, &p)
			}
			if p.Name != "" {
				client.Name = p.Name
			}
			client.Color = p.Color
			h.addClient(designID, client)
			joined = true
			client.sendMessage("welcome", h.welcomePayload(designID, connID))

		case "leave":
			h.removeClient(designID, connID)
			joined = false

		case "cursor":
			if !joined {
				continue
			}
			var cur *presence.Cursor
			if len(msg.Payload) > 0 && string(msg.Payload) != "null" {
				cur = &presence.Cursor{}
				if err := json.Unmarshal(msg.Payload, cur); err != nil {
					continue
				}
			}
			h.relayCursor(designID, connID, cur)

		case "patch":
			if !joined {
				continue
			}
			var p PatchPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil || len(p.Patch) == 0 {
				// Bare payloads are treated as the patch itself.
				p.Patch = msg.Payload
			}
			h.relayPatch(designID, connID, p.Patch)

		case "comment:create":
			h.handleCommentCreate(designID, client, msg.Payload)

		case "ping":
			client.sendMessage("pong", struct{}{})
		}
	}
}

func (h *DesignHub) welcomePayload(designID int64, connID string) WelcomePayload {
	w := WelcomePayload{
		ConnectionID: connID,
		Participants: h.registry.List(designID),
	}

	if h.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if recent, err := h.redisClient.GetRecentComments(ctx, designID, h.cfg.Canvas.RecentComments); err == nil {
			w.RecentComments = recent
		}
	}
	return w
}

// =============================================================================
// Comment broadcast (Pending -> Persisted -> Broadcast | Rejected)
// =============================================================================

func (h *DesignHub) handleCommentCreate(designID int64, client *RoomClient, raw json.RawMessage) {
	var p CommentCreatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		client.sendError(ErrCodeValidation, "malformed comment payload", nil)
		return
	}

	comment, details := h.createComment(designID, client.UserID, client.Name, &p)
	if details != nil {
		client.sendError(ErrCodeValidation, "invalid comment", details)
		return
	}
	if comment == nil {
		client.sendError(ErrCodeStore, "failed to save comment", nil)
		return
	}

	h.BroadcastComment(designID, *comment)
}

// createComment validates, resolves mentions, persists and caches one
// comment. A non-nil details map means validation rejected the payload;
// nil comment with nil details means the store failed.
func (h *DesignHub) createComment(designID, authorID int64, authorName string, p *CommentCreatePayload) (*CommentResponse, map[string]string) {
	p.Message = strings.TrimSpace(p.Message)
	if p.Message == "" {
		return nil, map[string]string{"message": "must not be empty"}
	}
	if max := h.cfg.Canvas.MaxCommentLength; len(p.Message) > max {
		return nil, map[string]string{"message": "too long"}
	}

	var position *string
	if len(p.Position) > 0 && string(p.Position) != "null" {
		var pos struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(p.Position, &pos); err != nil {
			return nil, map[string]string{"position": "must be {x, y}"}
		}
		s := string(p.Position)
		position = &s
	}

	mentions := h.resolveCommentMentions(designID, p)

	mentionsJSON, _ := json.Marshal(mentions)
	record := model.Comment{
		DesignID: designID,
		AuthorID: authorID,
		Message:  p.Message,
		Mentions: string(mentionsJSON),
		Position: position,
	}
	if err := h.db.Create(&record).Error; err != nil {
		log.Printf("[Design %d] Failed to persist comment: %v", designID, err)
		return nil, nil
	}

	resp := CommentResponse{
		ID:         record.ID,
		DesignID:   designID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Message:    record.Message,
		Mentions:   mentions,
		Position:   p.Position,
		CreatedAt:  record.CreatedAt,
	}

	if h.redisClient != nil {
		go func(c CommentResponse) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			cached := cache.DesignComment(c)
			if err := h.redisClient.AddComment(ctx, &cached); err != nil {
				log.Printf("[Design %d] Failed to cache comment: %v", designID, err)
			}
		}(resp)
	}

	return &resp, nil
}

// resolveCommentMentions merges explicit mention ids with ids resolved
// from @name labels in the message text. Labels match current room
// participants first, then the design's owner and collaborators; an
// unknown label stays literal text.
func (h *DesignHub) resolveCommentMentions(designID int64, p *CommentCreatePayload) []int64 {
	known := make(map[string]int64)

	var owner struct {
		ID   int64
		Name string
	}
	if err := h.db.Table("users").
		Select("users.id, users.name").
		Joins("JOIN designs ON designs.owner_id = users.id").
		Where("designs.id = ?", designID).
		Scan(&owner).Error; err == nil && owner.ID != 0 {
		known[owner.Name] = owner.ID
	}

	var collaborators []struct {
		ID   int64
		Name string
	}
	if err := h.db.Table("users").
		Select("users.id, users.name").
		Joins("JOIN design_collaborators ON design_collaborators.user_id = users.id").
		Where("design_collaborators.design_id = ?", designID).
		Scan(&collaborators).Error; err == nil {
		for _, u := range collaborators {
			known[u.Name] = u.ID
		}
	}

	// Room participants win on name collisions: they are who the author
	// is looking at.
	for _, part := range h.registry.List(designID) {
		if part.UserID != 0 {
			known[part.Name] = part.UserID
		}
	}

	resolved, _ := ResolveMentions(ParseMentionLabels(p.Message), known)

	seen := make(map[int64]bool)
	mentions := make([]int64, 0, len(p.Mentions)+len(resolved))
	for _, id := range append(p.Mentions, resolved...) {
		if id != 0 && !seen[id] {
			seen[id] = true
			mentions = append(mentions, id)
		}
	}
	return mentions
}
