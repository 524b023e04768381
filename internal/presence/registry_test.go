package presence

import (
	"fmt"
	"testing"
)

func TestJoinLeaveTracksExactMembership(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 5; i++ {
		r.Join(1, Participant{ConnID: fmt.Sprintf("conn-%d", i), UserID: int64(i), Name: fmt.Sprintf("user-%d", i)})
	}
	if got := r.Count(1); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}

	r.Leave(1, "conn-2")
	r.Leave(1, "conn-2") // disconnect after explicit leave: must be harmless

	seen := make(map[string]bool)
	for _, p := range r.List(1) {
		if seen[p.ConnID] {
			t.Fatalf("duplicate participant %s", p.ConnID)
		}
		seen[p.ConnID] = true
	}
	if len(seen) != 4 || seen["conn-2"] {
		t.Fatalf("membership = %v, want 4 without conn-2", seen)
	}
}

func TestJoinIsIdempotentPerConnection(t *testing.T) {
	r := NewRegistry()
	r.Join(1, Participant{ConnID: "c1", Name: "first"})
	r.Join(1, Participant{ConnID: "c1", Name: "renamed"})

	list := r.List(1)
	if len(list) != 1 {
		t.Fatalf("count = %d, want 1", len(list))
	}
	if list[0].Name != "renamed" {
		t.Fatalf("rejoin did not replace the participant: %q", list[0].Name)
	}
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	r := NewRegistry()
	r.Join(7, Participant{ConnID: "c1"})
	r.Leave(7, "c1")

	if len(r.Rooms()) != 0 {
		t.Fatalf("empty room leaked: %v", r.Rooms())
	}
}

func TestUpdateCursor(t *testing.T) {
	r := NewRegistry()
	r.Join(1, Participant{ConnID: "c1"})

	r.UpdateCursor(1, "c1", &Cursor{X: 10, Y: 20})
	list := r.List(1)
	if list[0].Cursor == nil || list[0].Cursor.X != 10 || list[0].Cursor.Y != 20 {
		t.Fatalf("cursor = %+v, want (10, 20)", list[0].Cursor)
	}

	r.UpdateCursor(1, "c1", nil)
	if r.List(1)[0].Cursor != nil {
		t.Fatal("nil cursor update must clear the stored cursor")
	}

	// Unknown connection or room: no panic, no effect.
	r.UpdateCursor(1, "ghost", &Cursor{X: 1})
	r.UpdateCursor(99, "c1", &Cursor{X: 1})
}

func TestRoomsAreIsolated(t *testing.T) {
	r := NewRegistry()
	r.Join(1, Participant{ConnID: "a"})
	r.Join(2, Participant{ConnID: "b"})

	if r.Count(1) != 1 || r.Count(2) != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", r.Count(1), r.Count(2))
	}
	if r.List(1)[0].ConnID != "a" || r.List(2)[0].ConnID != "b" {
		t.Fatal("participants bled across rooms")
	}
}

func TestListReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Join(1, Participant{ConnID: "c1"})
	r.UpdateCursor(1, "c1", &Cursor{X: 5})

	list := r.List(1)
	list[0].Cursor.X = 999
	list[0].Name = "tampered"

	fresh := r.List(1)
	if fresh[0].Cursor.X != 5 || fresh[0].Name != "" {
		t.Fatal("List must return snapshots, not live references")
	}
}
