package presence

import "sync"

// Cursor is the last-known pointer position inside the canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is one live connection inside a design room. Ephemeral:
// created on join, destroyed on leave or disconnect, never persisted.
type Participant struct {
	ConnID string  `json:"connectionId"`
	UserID int64   `json:"userId"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	Cursor *Cursor `json:"cursor,omitempty"`
}

// Registry is the per-process table of connected participants, keyed by
// design then connection. Presence lives and dies with this process;
// scaling out would need an external backplane, which is out of scope.
type Registry struct {
	rooms map[int64]map[string]*Participant
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int64]map[string]*Participant),
	}
}

// Join registers a participant under a design room. Idempotent per
// connection: a repeated join replaces the stored participant.
func (r *Registry) Join(designID int64, p Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[designID]
	if room == nil {
		room = make(map[string]*Participant)
		r.rooms[designID] = room
	}
	cp := p
	room[p.ConnID] = &cp
}

// Leave removes a connection from a room. Empty rooms are deleted so the
// registry never holds stale entries. Safe to call twice; explicit leave
// and the transport disconnect both funnel here.
func (r *Registry) Leave(designID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[designID]
	if room == nil {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, designID)
	}
}

// UpdateCursor stores the connection's cursor; nil clears it (pointer
// left the canvas). Unknown connections are ignored.
func (r *Registry) UpdateCursor(designID int64, connID string, c *Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[designID]
	if room == nil {
		return
	}
	if p, ok := room[connID]; ok {
		p.Cursor = c
	}
}

// List returns a snapshot of the room's participants for a presence
// broadcast. The slice and its entries are copies.
func (r *Registry) List(designID int64) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[designID]
	out := make([]Participant, 0, len(room))
	for _, p := range room {
		cp := *p
		if p.Cursor != nil {
			c := *p.Cursor
			cp.Cursor = &c
		}
		out = append(out, cp)
	}
	return out
}

// Count returns the number of participants in a room.
func (r *Registry) Count(designID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[designID])
}

// Rooms returns the ids of rooms that currently have participants.
func (r *Registry) Rooms() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}
