package handler

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"canvas-backend/internal/config"
	"canvas-backend/internal/presence"
)

// fakeConn records everything written to it.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.messages = append(f.messages, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// received returns the decoded messages of one type, in order.
func (f *fakeConn) received(t *testing.T, msgType string) []WSMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []WSMessage
	for _, data := range f.messages {
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("undecodable message on the wire: %v", err)
		}
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

func newTestHub() *DesignHub {
	cfg := &config.Config{}
	cfg.Canvas.MaxCommentLength = 2000
	cfg.Canvas.RecentComments = 50
	return NewDesignHub(nil, cfg, nil)
}

func joinTestClient(h *DesignHub, designID int64, connID string, userID int64, name string) (*RoomClient, *fakeConn) {
	conn := &fakeConn{}
	client := &RoomClient{
		ConnID: connID,
		UserID: userID,
		Name:   name,
		conn:   conn,
	}
	h.addClient(designID, client)
	return client, conn
}

func TestRelayPatchExcludesSender(t *testing.T) {
	h := newTestHub()
	_, senderConn := joinTestClient(h, 1, "conn-a", 10, "Ava")
	_, peerConn := joinTestClient(h, 1, "conn-b", 20, "Ben")

	patch := json.RawMessage(`{"elements":[{"id":"el-1","x":5}]}`)
	h.relayPatch(1, "conn-a", patch)

	if got := senderConn.received(t, "patch"); len(got) != 0 {
		t.Fatalf("sender received its own patch back: %d messages", len(got))
	}

	msgs := peerConn.received(t, "patch")
	if len(msgs) != 1 {
		t.Fatalf("peer patch count = %d, want 1", len(msgs))
	}
	var p PatchPayload
	if err := json.Unmarshal(msgs[0].Payload, &p); err != nil {
		t.Fatalf("unmarshal patch payload: %v", err)
	}
	if p.ActorID != "conn-a" {
		t.Errorf("actorId = %q, want conn-a", p.ActorID)
	}
	if string(p.Patch) != string(patch) {
		t.Errorf("patch relayed = %s, want verbatim %s", p.Patch, patch)
	}
}

func TestRelayPatchStaysInRoom(t *testing.T) {
	h := newTestHub()
	joinTestClient(h, 1, "conn-a", 10, "Ava")
	_, otherRoomConn := joinTestClient(h, 2, "conn-x", 30, "Cam")

	h.relayPatch(1, "conn-a", json.RawMessage(`{"name":"renamed"}`))

	if got := otherRoomConn.received(t, "patch"); len(got) != 0 {
		t.Fatalf("patch for design 1 leaked into design 2: %d messages", len(got))
	}
}

func TestPresenceBroadcastOnJoinAndLeave(t *testing.T) {
	h := newTestHub()
	_, connA := joinTestClient(h, 1, "conn-a", 10, "Ava")
	joinTestClient(h, 1, "conn-b", 20, "Ben")

	// conn-a saw presence for its own join and again for conn-b's.
	msgs := connA.received(t, "presence")
	if len(msgs) != 2 {
		t.Fatalf("presence messages = %d, want 2", len(msgs))
	}
	var pp PresencePayload
	if err := json.Unmarshal(msgs[1].Payload, &pp); err != nil {
		t.Fatalf("unmarshal presence payload: %v", err)
	}
	if len(pp.Participants) != 2 {
		t.Fatalf("participants after second join = %d, want 2", len(pp.Participants))
	}

	h.removeClient(1, "conn-b")

	msgs = connA.received(t, "presence")
	if len(msgs) != 3 {
		t.Fatalf("presence messages after leave = %d, want 3", len(msgs))
	}
	if err := json.Unmarshal(msgs[2].Payload, &pp); err != nil {
		t.Fatalf("unmarshal presence payload: %v", err)
	}
	if len(pp.Participants) != 1 || pp.Participants[0].ConnID != "conn-a" {
		t.Fatalf("participants after leave = %+v, want only conn-a", pp.Participants)
	}
}

func TestRemoveClientIdempotent(t *testing.T) {
	h := newTestHub()
	joinTestClient(h, 1, "conn-a", 10, "Ava")

	// Explicit leave followed by the disconnect cleanup path.
	h.removeClient(1, "conn-a")
	h.removeClient(1, "conn-a")

	if got := h.registry.Count(1); got != 0 {
		t.Fatalf("registry count = %d, want 0", got)
	}
	h.mu.RLock()
	_, roomExists := h.rooms[1]
	h.mu.RUnlock()
	if roomExists {
		t.Fatal("empty room was not removed")
	}
}

func TestCursorRelayUpdatesRegistry(t *testing.T) {
	h := newTestHub()
	joinTestClient(h, 1, "conn-a", 10, "Ava")
	_, peerConn := joinTestClient(h, 1, "conn-b", 20, "Ben")

	h.relayCursor(1, "conn-a", &presence.Cursor{X: 120, Y: 40})

	parts := h.registry.List(1)
	var ava *presence.Participant
	for i := range parts {
		if parts[i].ConnID == "conn-a" {
			ava = &parts[i]
		}
	}
	if ava == nil || ava.Cursor == nil || ava.Cursor.X != 120 || ava.Cursor.Y != 40 {
		t.Fatalf("registry cursor = %+v, want {120 40}", ava)
	}

	// nil cursor means the pointer left the canvas.
	h.relayCursor(1, "conn-a", nil)
	for _, part := range h.registry.List(1) {
		if part.ConnID == "conn-a" && part.Cursor != nil {
			t.Fatalf("cursor not cleared: %+v", part.Cursor)
		}
	}

	msgs := peerConn.received(t, "cursor")
	if len(msgs) != 2 {
		t.Fatalf("peer cursor messages = %d, want 2", len(msgs))
	}
	var cp CursorPayload
	if err := json.Unmarshal(msgs[1].Payload, &cp); err != nil {
		t.Fatalf("unmarshal cursor payload: %v", err)
	}
	if cp.Cursor != nil {
		t.Fatalf("relayed clear cursor = %+v, want null", cp.Cursor)
	}
}

func TestCommentBroadcastIncludesAuthor(t *testing.T) {
	h := newTestHub()
	_, authorConn := joinTestClient(h, 1, "conn-a", 10, "Ava")
	_, peerConn := joinTestClient(h, 1, "conn-b", 20, "Ben")

	h.BroadcastComment(1, CommentResponse{
		ID:       7,
		DesignID: 1,
		AuthorID: 10,
		Message:  "looks good",
		Mentions: []int64{},
	})

	for name, conn := range map[string]*fakeConn{"author": authorConn, "peer": peerConn} {
		msgs := conn.received(t, "comment:created")
		if len(msgs) != 1 {
			t.Fatalf("%s comment messages = %d, want 1", name, len(msgs))
		}
		var resp CommentResponse
		if err := json.Unmarshal(msgs[0].Payload, &resp); err != nil {
			t.Fatalf("unmarshal comment payload: %v", err)
		}
		if resp.ID != 7 || resp.Message != "looks good" {
			t.Errorf("%s got comment %+v", name, resp)
		}
	}
}

func TestFailedPeerWriteDoesNotBlockOthers(t *testing.T) {
	h := newTestHub()
	joinTestClient(h, 1, "conn-a", 10, "Ava")
	_, deadConn := joinTestClient(h, 1, "conn-b", 20, "Ben")
	_, liveConn := joinTestClient(h, 1, "conn-c", 30, "Cam")
	deadConn.fail = true

	h.relayPatch(1, "conn-a", json.RawMessage(`{"width":1280}`))

	if got := liveConn.received(t, "patch"); len(got) != 1 {
		t.Fatalf("healthy peer patch count = %d, want 1", len(got))
	}
	// The dead peer stays in the room; reads decide disconnects.
	if got := h.registry.Count(1); got != 3 {
		t.Fatalf("registry count = %d, want 3", got)
	}
}
