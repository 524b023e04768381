package editor

import (
	"fmt"
	"reflect"
	"testing"
)

func newTestSession() *Session {
	return NewSession(testState(3), 1)
}

func TestUndoRedoRestoresIdenticalState(t *testing.T) {
	s := newTestSession()

	s.Checkpoint()
	s.MoveElement("a", 200, 150)
	moved := s.State()

	s.Checkpoint()
	s.ResizeElement("b", 50, 50)
	before := s.State()

	if !s.Undo() {
		t.Fatal("Undo returned false")
	}
	if !reflect.DeepEqual(s.State(), moved) {
		t.Fatalf("undo did not restore checkpoint state:\n got %+v\nwant %+v", s.State(), moved)
	}
	if !s.Redo() {
		t.Fatal("Redo returned false")
	}
	if !reflect.DeepEqual(s.State(), before) {
		t.Fatalf("redo did not restore state:\n got %+v\nwant %+v", s.State(), before)
	}
}

func TestUndoRedoAcross50Checkpoints(t *testing.T) {
	s := NewSession(State{Width: 800, Height: 600}, 1)
	s.AddElement(Element{ID: "el", Width: 24, Height: 24})

	snapshots := make([]State, 0, HistoryLimit)
	for i := 0; i < HistoryLimit; i++ {
		snapshots = append(snapshots, s.State())
		s.Checkpoint()
		s.MoveElement("el", float64(i+1), float64(i+1))
	}

	for i := HistoryLimit - 1; i >= 0; i-- {
		if !s.Undo() {
			t.Fatalf("undo %d failed", HistoryLimit-i)
		}
		if !reflect.DeepEqual(s.State(), snapshots[i]) {
			t.Fatalf("undo to checkpoint %d mismatched", i)
		}
	}
	if s.Undo() {
		t.Fatal("undo past the oldest checkpoint should be a no-op")
	}
}

func TestHistoryEvictsOldestBeyondCap(t *testing.T) {
	s := NewSession(State{Width: 800, Height: 600}, 1)
	s.AddElement(Element{ID: "el", Width: 24, Height: 24})

	// 51 checkpoints: the first one must be evicted.
	for i := 0; i < HistoryLimit+1; i++ {
		s.Checkpoint()
		s.MoveElement("el", float64(i+1), 0)
	}

	undone := 0
	for s.Undo() {
		undone++
	}
	if undone != HistoryLimit {
		t.Fatalf("undone %d checkpoints, want %d", undone, HistoryLimit)
	}
	// Oldest surviving checkpoint is after the first (evicted) move.
	if got := s.State().Elements[0].X; got != 1 {
		t.Fatalf("oldest reachable state has x = %v, want 1", got)
	}
}

func TestCheckpointAfterUndoClearsRedo(t *testing.T) {
	s := newTestSession()

	s.Checkpoint()
	s.MoveElement("a", 100, 100)
	s.Undo()

	if !s.CanRedo() {
		t.Fatal("expected redo available after undo")
	}
	s.Checkpoint()
	s.MoveElement("a", 300, 300)

	if s.CanRedo() {
		t.Fatal("new checkpoint after undo must clear the redo stack")
	}
	if s.Redo() {
		t.Fatal("Redo should be a no-op after history diverged")
	}
}

func TestLocalMutationEmitsPatch(t *testing.T) {
	s := newTestSession()
	var got []Patch
	s.OnPatch(func(p Patch) { got = append(got, p) })

	s.MoveElement("a", 120, 80)

	if len(got) != 1 {
		t.Fatalf("emitted %d patches, want 1", len(got))
	}
	if got[0].Elements == nil {
		t.Fatal("move patch carries no elements")
	}
	el := (*got[0].Elements)[0]
	if el.X != 120 || el.Y != 80 {
		t.Fatalf("patched position (%v, %v), want (120, 80)", el.X, el.Y)
	}
	if got[0].Name != nil || got[0].Width != nil {
		t.Fatal("move patch must stay sparse")
	}
}

func TestApplyRemoteDoesNotRebroadcast(t *testing.T) {
	s := newTestSession()
	emitted := 0
	s.OnPatch(func(Patch) { emitted++ })

	name := "renamed by peer"
	s.ApplyRemote(Patch{Name: &name})

	if emitted != 0 {
		t.Fatalf("remote apply emitted %d patches, want 0", emitted)
	}
	if s.State().Name != name {
		t.Fatalf("remote patch not merged: name = %q", s.State().Name)
	}
}

func TestApplyRemoteMergesOnlyPresentFields(t *testing.T) {
	s := newTestSession()
	prev := s.State()

	w := 1024.0
	s.ApplyRemote(Patch{Width: &w})

	got := s.State()
	if got.Width != 1024 {
		t.Fatalf("width = %v, want 1024", got.Width)
	}
	if got.Name != prev.Name || !reflect.DeepEqual(got.Elements, prev.Elements) {
		t.Fatal("fields absent from the patch must be untouched")
	}
}

func TestDirtyTracking(t *testing.T) {
	s := newTestSession()
	if s.Dirty() {
		t.Fatal("fresh session must be clean")
	}

	s.MoveElement("a", 500, 400)
	if !s.Dirty() {
		t.Fatal("mutation must mark the session dirty")
	}

	s.MarkSaved()
	if s.Dirty() {
		t.Fatal("MarkSaved must reset dirtiness")
	}
	if s.Version() != 2 {
		t.Fatalf("version = %d, want 2", s.Version())
	}

	// Selection is not persisted state.
	s.Select("b")
	if s.Dirty() {
		t.Fatal("selection change alone must not dirty the session")
	}
}

func TestZIndexDenseAfterAddDeleteReorder(t *testing.T) {
	s := NewSession(State{Width: 800, Height: 600}, 1)
	for i := 0; i < 5; i++ {
		s.AddElement(Element{ID: fmt.Sprintf("el-%d", i), Width: 30, Height: 30})
	}
	s.DeleteElement("el-2")
	s.ReorderElement("el-4", 0)

	st := s.State()
	if len(st.Elements) != 4 {
		t.Fatalf("len = %d, want 4", len(st.Elements))
	}
	if st.Elements[0].ID != "el-4" {
		t.Fatalf("reorder put %q first, want el-4", st.Elements[0].ID)
	}
	for i, el := range st.Elements {
		if el.ZIndex != i {
			t.Fatalf("zIndex gap at %d: got %d", i, el.ZIndex)
		}
	}
}

func TestDragEndStateMatchesRelayedPatch(t *testing.T) {
	// A drag: one checkpoint, many intermediate moves; only the final
	// position matters to a peer applying the last patch.
	s := NewSession(State{Width: 800, Height: 600}, 1)
	s.AddElement(Element{ID: "text-1", Type: ElementText, X: 40, Y: 40, Width: 120, Height: 40})

	var last Patch
	s.OnPatch(func(p Patch) { last = p })

	s.Checkpoint()
	for i := 1; i <= 10; i++ {
		s.MoveElement("text-1", 40+float64(i*10), 40+float64(i*5))
	}

	peer := NewSession(State{Width: 800, Height: 600}, 1)
	peer.ApplyRemote(last)

	got := peer.State().Elements[0]
	if got.X != 140 || got.Y != 90 {
		t.Fatalf("peer sees (%v, %v), want (140, 90)", got.X, got.Y)
	}
}

func TestUndoBroadcastsRestoredState(t *testing.T) {
	s := newTestSession()
	var last Patch
	s.OnPatch(func(p Patch) { last = p })

	s.Checkpoint()
	s.MoveElement("a", 300, 200)
	s.Undo()

	if last.Elements == nil {
		t.Fatal("undo must broadcast the restored elements")
	}
	if (*last.Elements)[0].X == 300 {
		t.Fatal("undo broadcast still carries the undone position")
	}
}
