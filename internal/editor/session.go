package editor

import (
	"reflect"
)

// HistoryLimit bounds the undo/redo stacks; the oldest checkpoint is
// evicted first once exceeded.
const HistoryLimit = 50

// applyState guards against re-broadcasting a patch that came from a
// peer: while a remote patch is being merged, nothing is emitted.
type applyState int

const (
	stateIdle applyState = iota
	stateApplyingRemote
)

// Session is the reconciliation layer for one open design: it applies
// local edits optimistically, merges inbound remote patches, keeps a
// bounded undo/redo history and tracks dirtiness against the last saved
// snapshot. A Session is not safe for concurrent use; callers drive it
// from a single goroutine the way a browser drives its event loop.
type Session struct {
	state    State
	baseline State
	version  int64

	past   []State
	future []State
	limit  int

	mode    applyState
	onPatch func(Patch)
}

// NewSession opens a working copy at the given persisted version.
func NewSession(initial State, version int64) *Session {
	Normalize(&initial)
	return &Session{
		state:    initial.Clone(),
		baseline: initial.Clone(),
		version:  version,
		limit:    HistoryLimit,
	}
}

// OnPatch registers the broadcast callback. Local mutations emit a sparse
// patch through it; remote merges never do.
func (s *Session) OnPatch(fn func(Patch)) {
	s.onPatch = fn
}

// State returns a snapshot of the working copy.
func (s *Session) State() State {
	return s.state.Clone()
}

// Version returns the version the working copy is based on.
func (s *Session) Version() int64 {
	return s.version
}

func (s *Session) emit(p Patch) {
	if s.mode == stateApplyingRemote || s.onPatch == nil {
		return
	}
	s.onPatch(p)
}

// =============================================================================
// History
// =============================================================================

// Checkpoint opens one history entry for a discrete interaction
// (pointer-down..pointer-up, one field edit). All mutations until the
// next Checkpoint coalesce into it. Checkpointing after an undo clears
// the redo stack (linear history, not a tree).
func (s *Session) Checkpoint() {
	s.past = append(s.past, s.state.Clone())
	if len(s.past) > s.limit {
		s.past = s.past[1:]
	}
	s.future = s.future[:0]
}

// CanUndo reports whether a checkpoint is available.
func (s *Session) CanUndo() bool { return len(s.past) > 0 }

// CanRedo reports whether an undone checkpoint is available.
func (s *Session) CanRedo() bool { return len(s.future) > 0 }

// Undo restores the newest checkpoint and broadcasts the restored state.
// Beyond the history bound it is a no-op.
func (s *Session) Undo() bool {
	if len(s.past) == 0 {
		return false
	}
	s.future = append(s.future, s.state.Clone())
	s.state = s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.emit(s.fullPatch())
	return true
}

// Redo is the mirror of Undo.
func (s *Session) Redo() bool {
	if len(s.future) == 0 {
		return false
	}
	s.past = append(s.past, s.state.Clone())
	if len(s.past) > s.limit {
		s.past = s.past[1:]
	}
	s.state = s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]
	s.emit(s.fullPatch())
	return true
}

func (s *Session) fullPatch() Patch {
	st := s.state.Clone()
	return Patch{
		Elements:          &st.Elements,
		SelectedElementID: &st.SelectedElementID,
		Width:             &st.Width,
		Height:            &st.Height,
		Name:              &st.Name,
		IsPublic:          &st.IsPublic,
	}
}

// =============================================================================
// Local mutations (optimistic apply)
// =============================================================================

// AddElement appends an element and selects it.
func (s *Session) AddElement(el Element) {
	s.state.Elements = append(s.state.Elements, el)
	s.state.SelectedElementID = el.ID
	Normalize(&s.state)
	p := elementsPatch(&s.state)
	sel := s.state.SelectedElementID
	p.SelectedElementID = &sel
	s.emit(p)
}

// DeleteElement removes an element by id.
func (s *Session) DeleteElement(id string) bool {
	for i := range s.state.Elements {
		if s.state.Elements[i].ID == id {
			s.state.Elements = append(s.state.Elements[:i], s.state.Elements[i+1:]...)
			if s.state.SelectedElementID == id {
				s.state.SelectedElementID = ""
			}
			Normalize(&s.state)
			p := elementsPatch(&s.state)
			sel := s.state.SelectedElementID
			p.SelectedElementID = &sel
			s.emit(p)
			return true
		}
	}
	return false
}

// MoveElement sets an element's position; it is clamped into the canvas.
func (s *Session) MoveElement(id string, x, y float64) bool {
	return s.mutateElement(id, func(el *Element) {
		el.X = x
		el.Y = y
	})
}

// ResizeElement sets an element's size; the minimum size is enforced.
func (s *Session) ResizeElement(id string, w, h float64) bool {
	return s.mutateElement(id, func(el *Element) {
		el.Width = w
		el.Height = h
	})
}

// RotateElement sets an element's rotation in degrees.
func (s *Session) RotateElement(id string, deg float64) bool {
	return s.mutateElement(id, func(el *Element) {
		el.Rotation = deg
	})
}

// RenameElement sets an element's display name.
func (s *Session) RenameElement(id, name string) bool {
	return s.mutateElement(id, func(el *Element) {
		el.Name = name
	})
}

// ToggleHidden flips an element's visibility.
func (s *Session) ToggleHidden(id string) bool {
	return s.mutateElement(id, func(el *Element) {
		el.Hidden = !el.Hidden
	})
}

// StyleElement applies a style mutation (opacity, fill, font, ...) to one
// element.
func (s *Session) StyleElement(id string, mutate func(*Element)) bool {
	return s.mutateElement(id, mutate)
}

// ReorderElement moves an element to a new index in the render order;
// zIndex values are renumbered densely afterwards.
func (s *Session) ReorderElement(id string, index int) bool {
	from := -1
	for i := range s.state.Elements {
		if s.state.Elements[i].ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index >= len(s.state.Elements) {
		index = len(s.state.Elements) - 1
	}
	el := s.state.Elements[from]
	s.state.Elements = append(s.state.Elements[:from], s.state.Elements[from+1:]...)
	s.state.Elements = append(s.state.Elements[:index], append([]Element{el}, s.state.Elements[index:]...)...)
	Normalize(&s.state)
	s.emit(elementsPatch(&s.state))
	return true
}

func (s *Session) mutateElement(id string, mutate func(*Element)) bool {
	el := s.state.findElement(id)
	if el == nil {
		return false
	}
	mutate(el)
	Normalize(&s.state)
	s.emit(elementsPatch(&s.state))
	return true
}

// SetCanvasSize resizes the canvas; elements are re-clamped into it.
func (s *Session) SetCanvasSize(w, h float64) {
	s.state.Width = w
	s.state.Height = h
	Normalize(&s.state)
	p := elementsPatch(&s.state)
	p.Width = &w
	p.Height = &h
	s.emit(p)
}

// SetName renames the design.
func (s *Session) SetName(name string) {
	s.state.Name = name
	s.emit(Patch{Name: &name})
}

// SetPublic toggles public sharing.
func (s *Session) SetPublic(isPublic bool) {
	s.state.IsPublic = isPublic
	s.emit(Patch{IsPublic: &isPublic})
}

// Select changes the local selection. Selection travels in patches so
// peers can show who is editing what, but it is never part of dirtiness.
func (s *Session) Select(id string) {
	s.state.SelectedElementID = id
	s.emit(Patch{SelectedElementID: &id})
}

// =============================================================================
// Remote patches
// =============================================================================

// ApplyRemote merges a peer's patch into the working copy. Only fields
// present in the patch are touched, no history entry is opened, and the
// guard suppresses any broadcast for the duration of the merge.
func (s *Session) ApplyRemote(p Patch) {
	s.mode = stateApplyingRemote
	defer func() { s.mode = stateIdle }()
	s.state.Merge(p)
}

// =============================================================================
// Dirty tracking & save
// =============================================================================

type savedFields struct {
	Elements []Element
	Width    float64
	Height   float64
	Name     string
	IsPublic bool
}

func persisted(s *State) savedFields {
	return savedFields{
		Elements: s.Elements,
		Width:    s.Width,
		Height:   s.Height,
		Name:     s.Name,
		IsPublic: s.IsPublic,
	}
}

// Dirty reports whether the working copy differs structurally from the
// last successfully persisted snapshot. Selection is excluded.
func (s *Session) Dirty() bool {
	return !reflect.DeepEqual(persisted(&s.state), persisted(&s.baseline))
}

// MarkSaved advances the baseline after a successful durable save; the
// version moves forward by exactly one.
func (s *Session) MarkSaved() {
	s.baseline = s.state.Clone()
	s.version++
}
